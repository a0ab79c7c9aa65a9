package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSubscribeIssuesTokenOnce(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, newFakeCatalog())

	subscriber, token, err := svc.Subscribe(context.Background(), "org-1", "user@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Only the hash is stored, and it verifies against the issued token.
	stored, err := repo.GetSubscriberByID(context.Background(), subscriber.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token, stored.UnsubscribeTokenHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.UnsubscribeTokenHash), []byte(token)))
}

func TestSubscribeDuplicateEmail(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, newFakeCatalog())

	_, _, err := svc.Subscribe(context.Background(), "org-1", "user@example.com")
	require.NoError(t, err)

	_, _, err = svc.Subscribe(context.Background(), "org-1", "user@example.com")
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestSubscribeUnknownOrganization(t *testing.T) {
	svc := NewService(newMemoryRepository(), newFakeCatalog())

	_, _, err := svc.Subscribe(context.Background(), "org-missing", "user@example.com")
	assert.Error(t, err)
}

func TestUnsubscribeVerifiesToken(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, newFakeCatalog())

	subscriber, token, err := svc.Subscribe(context.Background(), "org-1", "user@example.com")
	require.NoError(t, err)

	err = svc.Unsubscribe(context.Background(), subscriber.ID, "wrong-token")
	assert.ErrorIs(t, err, ErrInvalidUnsubscribeToken)

	require.NoError(t, svc.Unsubscribe(context.Background(), subscriber.ID, token))

	_, err = repo.GetSubscriberByID(context.Background(), subscriber.ID)
	assert.ErrorIs(t, err, ErrSubscriberNotFound)

	err = svc.Unsubscribe(context.Background(), subscriber.ID, token)
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
}
