package domain

import "time"

// Subscriber receives email notifications for incident updates in an
// organization. UnsubscribeTokenHash stores a bcrypt hash of the token
// handed out at subscribe time; the plaintext is never persisted.
type Subscriber struct {
	ID                   string    `json:"id"`
	OrganizationID       string    `json:"organization_id"`
	Email                string    `json:"email"`
	UnsubscribeTokenHash string    `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
}
