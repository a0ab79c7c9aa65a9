package notifications

import (
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

// MessageKind classifies the rendered notification.
type MessageKind string

// Message kinds.
const (
	MessageKindInitial  MessageKind = "initial"
	MessageKindUpdate   MessageKind = "update"
	MessageKindResolved MessageKind = "resolved"
)

// KindForUpdate classifies an incident update for template selection.
func KindForUpdate(incident *domain.Incident, update *domain.IncidentUpdate) MessageKind {
	switch {
	case update.Phase.IsTerminal():
		return MessageKindResolved
	case incident.CreatedAt.Equal(update.CreatedAt):
		return MessageKindInitial
	default:
		return MessageKindUpdate
	}
}

// Payload is the snapshot rendered into the outgoing email. It is stored with
// the queue item so delivery does not depend on the incident still existing.
type Payload struct {
	Kind             MessageKind          `json:"kind"`
	OrganizationName string               `json:"organization_name"`
	OrganizationSlug string               `json:"organization_slug"`
	IncidentID       string               `json:"incident_id"`
	Title            string               `json:"title"`
	Impact           domain.Impact        `json:"impact"`
	Phase            domain.IncidentPhase `json:"phase"`
	Message          string               `json:"message"`
	Services         []string             `json:"services"`
	OccurredAt       time.Time            `json:"occurred_at"`
}

// QueueStatus represents the status of a queue item.
type QueueStatus string

// Queue statuses.
const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

// QueueItem represents one pending delivery: a single incident update for a
// single subscriber. The (incident_update_id, subscriber_id) pair is unique so
// re-enqueueing the same update is a no-op.
type QueueItem struct {
	ID               string
	IncidentUpdateID string
	SubscriberID     string
	Payload          Payload
	Status           QueueStatus
	Attempts         int
	MaxAttempts      int
	NextAttemptAt    time.Time
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SentAt           *time.Time
}

// QueueStats holds queue size per status.
type QueueStats struct {
	Pending    int
	Processing int
	Sent       int
	Failed     int
}
