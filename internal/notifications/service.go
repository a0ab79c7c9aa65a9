package notifications

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/bissquit/status-garden/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// CatalogReader resolves organizations and services for subscription checks
// and payload snapshots. Implemented by catalog.Service.
type CatalogReader interface {
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
	GetService(ctx context.Context, id string) (*domain.Service, error)
}

// Service implements subscription business logic.
type Service struct {
	repo    Repository
	catalog CatalogReader
}

// NewService creates a new notifications service.
func NewService(repo Repository, catalog CatalogReader) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// Subscribe registers an email for an organization's incident notifications.
// The returned token authorizes unsubscription and is shown exactly once;
// only its bcrypt hash is stored.
func (s *Service) Subscribe(ctx context.Context, organizationID, email string) (*domain.Subscriber, string, error) {
	if _, err := s.catalog.GetOrganization(ctx, organizationID); err != nil {
		return nil, "", err
	}

	if existing, err := s.repo.GetSubscriberByEmail(ctx, organizationID, email); err == nil && existing != nil {
		return nil, "", ErrAlreadySubscribed
	} else if err != nil && !errors.Is(err, ErrSubscriberNotFound) {
		return nil, "", fmt.Errorf("check existing subscriber: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate unsubscribe token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash unsubscribe token: %w", err)
	}

	subscriber := &domain.Subscriber{
		OrganizationID:       organizationID,
		Email:                email,
		UnsubscribeTokenHash: string(hash),
	}
	if err := s.repo.CreateSubscriber(ctx, subscriber); err != nil {
		return nil, "", fmt.Errorf("create subscriber: %w", err)
	}

	return subscriber, token, nil
}

// Unsubscribe removes a subscriber after verifying the unsubscribe token.
func (s *Service) Unsubscribe(ctx context.Context, subscriberID, token string) error {
	subscriber, err := s.repo.GetSubscriberByID(ctx, subscriberID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(subscriber.UnsubscribeTokenHash), []byte(token)); err != nil {
		return ErrInvalidUnsubscribeToken
	}

	return s.repo.DeleteSubscriber(ctx, subscriberID)
}

// ListSubscribers retrieves all subscribers of an organization.
func (s *Service) ListSubscribers(ctx context.Context, organizationID string) ([]*domain.Subscriber, error) {
	return s.repo.ListSubscribers(ctx, organizationID)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
