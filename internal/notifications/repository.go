// Package notifications provides email subscriptions and queue-backed
// delivery of incident update notifications.
package notifications

import (
	"context"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

// Repository defines the interface for notifications data access.
type Repository interface {
	// Subscribers
	CreateSubscriber(ctx context.Context, subscriber *domain.Subscriber) error
	GetSubscriberByID(ctx context.Context, id string) (*domain.Subscriber, error)
	GetSubscriberByEmail(ctx context.Context, organizationID, email string) (*domain.Subscriber, error)
	ListSubscribers(ctx context.Context, organizationID string) ([]*domain.Subscriber, error)
	DeleteSubscriber(ctx context.Context, id string) error

	// Queue. EnqueueBatch skips items whose (incident_update_id,
	// subscriber_id) pair already exists. FetchPendingNotifications claims
	// due items for processing so concurrent workers never pick the same
	// item.
	EnqueueBatch(ctx context.Context, items []*QueueItem) error
	FetchPendingNotifications(ctx context.Context, limit int) ([]*QueueItem, error)
	MarkAsSent(ctx context.Context, itemID string) error
	MarkAsFailed(ctx context.Context, itemID string, reason error) error
	MarkForRetry(ctx context.Context, itemID string, reason error, nextAttemptAt time.Time) error
	GetQueueStats(ctx context.Context) (*QueueStats, error)
}
