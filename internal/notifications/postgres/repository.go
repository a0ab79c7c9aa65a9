// Package postgres provides the PostgreSQL implementation of the
// notifications repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/notifications"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the notifications.Repository interface using
// PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSubscriber creates a new subscriber.
func (r *Repository) CreateSubscriber(ctx context.Context, subscriber *domain.Subscriber) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO subscribers (organization_id, email, unsubscribe_token_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		subscriber.OrganizationID, subscriber.Email, subscriber.UnsubscribeTokenHash,
	).Scan(&subscriber.ID, &subscriber.CreatedAt)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

// GetSubscriberByID retrieves a subscriber by ID.
func (r *Repository) GetSubscriberByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	return r.getSubscriber(ctx, `WHERE id = $1`, id)
}

// GetSubscriberByEmail retrieves a subscriber by organization and email.
func (r *Repository) GetSubscriberByEmail(ctx context.Context, organizationID, email string) (*domain.Subscriber, error) {
	return r.getSubscriber(ctx, `WHERE organization_id = $1 AND email = $2`, organizationID, email)
}

func (r *Repository) getSubscriber(ctx context.Context, where string, args ...any) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	err := r.db.QueryRow(ctx,
		`SELECT id, organization_id, email, unsubscribe_token_hash, created_at
		 FROM subscribers `+where,
		args...,
	).Scan(&sub.ID, &sub.OrganizationID, &sub.Email, &sub.UnsubscribeTokenHash, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return &sub, nil
}

// ListSubscribers retrieves all subscribers of an organization.
func (r *Repository) ListSubscribers(ctx context.Context, organizationID string) ([]*domain.Subscriber, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, organization_id, email, unsubscribe_token_hash, created_at
		 FROM subscribers WHERE organization_id = $1
		 ORDER BY created_at`,
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]*domain.Subscriber, 0)
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(&sub.ID, &sub.OrganizationID, &sub.Email,
			&sub.UnsubscribeTokenHash, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subscribers = append(subscribers, &sub)
	}
	return subscribers, rows.Err()
}

// DeleteSubscriber removes a subscriber. Pending queue items for the
// subscriber are removed via CASCADE.
func (r *Repository) DeleteSubscriber(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrSubscriberNotFound
	}
	return nil
}

// EnqueueBatch inserts queue items, silently skipping pairs that are already
// queued.
func (r *Repository) EnqueueBatch(ctx context.Context, items []*notifications.QueueItem) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		payload, err := json.Marshal(item.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		batch.Queue(
			`INSERT INTO notification_queue (incident_update_id, subscriber_id, payload, status, max_attempts, next_attempt_at)
			 VALUES ($1, $2, $3, 'pending', $4, now())
			 ON CONFLICT (incident_update_id, subscriber_id) DO NOTHING`,
			item.IncidentUpdateID, item.SubscriberID, payload, item.MaxAttempts,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("enqueue item: %w", err)
		}
	}
	return nil
}

// Processing rows older than this are treated as abandoned by a crashed
// worker and become claimable again.
const staleProcessingAfter = 5 * time.Minute

// FetchPendingNotifications claims up to limit due items. Claimed rows move
// to processing inside the same statement so concurrent workers skip them.
// Stale processing rows left behind by a crashed worker are reclaimed too.
func (r *Repository) FetchPendingNotifications(ctx context.Context, limit int) ([]*notifications.QueueItem, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE notification_queue SET status = 'processing', updated_at = now()
		 WHERE id IN (
		 	SELECT id FROM notification_queue
		 	WHERE (status = 'pending' AND next_attempt_at <= now())
		 	   OR (status = 'processing' AND updated_at < now() - make_interval(secs => $2))
		 	ORDER BY next_attempt_at
		 	LIMIT $1
		 	FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, incident_update_id, subscriber_id, payload, status, attempts, max_attempts, next_attempt_at, COALESCE(last_error, ''), created_at, updated_at, sent_at`,
		limit, staleProcessingAfter.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch pending notifications: %w", err)
	}
	defer rows.Close()

	items := make([]*notifications.QueueItem, 0)
	for rows.Next() {
		var item notifications.QueueItem
		var payload []byte
		if err := rows.Scan(&item.ID, &item.IncidentUpdateID, &item.SubscriberID, &payload,
			&item.Status, &item.Attempts, &item.MaxAttempts, &item.NextAttemptAt,
			&item.LastError, &item.CreatedAt, &item.UpdatedAt, &item.SentAt); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		if err := json.Unmarshal(payload, &item.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// MarkAsSent marks a queue item as delivered.
func (r *Repository) MarkAsSent(ctx context.Context, itemID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notification_queue
		 SET status = 'sent', attempts = attempts + 1, sent_at = now(), updated_at = now()
		 WHERE id = $1`,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("mark as sent: %w", err)
	}
	return nil
}

// MarkAsFailed marks a queue item as permanently failed.
func (r *Repository) MarkAsFailed(ctx context.Context, itemID string, reason error) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notification_queue
		 SET status = 'failed', attempts = attempts + 1, last_error = $2, updated_at = now()
		 WHERE id = $1`,
		itemID, reason.Error(),
	)
	if err != nil {
		return fmt.Errorf("mark as failed: %w", err)
	}
	return nil
}

// MarkForRetry schedules another delivery attempt.
func (r *Repository) MarkForRetry(ctx context.Context, itemID string, reason error, nextAttemptAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notification_queue
		 SET status = 'pending', attempts = attempts + 1, last_error = $2, next_attempt_at = $3, updated_at = now()
		 WHERE id = $1`,
		itemID, reason.Error(), nextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("mark for retry: %w", err)
	}
	return nil
}

// GetQueueStats returns queue size per status.
func (r *Repository) GetQueueStats(ctx context.Context) (*notifications.QueueStats, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, count(*) FROM notification_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}
	defer rows.Close()

	stats := &notifications.QueueStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		switch notifications.QueueStatus(status) {
		case notifications.QueueStatusPending:
			stats.Pending = count
		case notifications.QueueStatusProcessing:
			stats.Processing = count
		case notifications.QueueStatusSent:
			stats.Sent = count
		case notifications.QueueStatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}
