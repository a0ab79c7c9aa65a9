package domain

import "time"

// StatusLogEntry is one contiguous interval during which a service held a
// specific status. EndedAt nil marks the currently open interval; a service
// has exactly one open interval at any time.
type StatusLogEntry struct {
	ID        string        `json:"id"`
	ServiceID string        `json:"service_id"`
	Status    ServiceStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at"`
}

// IsOpen reports whether the interval is still active.
func (e *StatusLogEntry) IsOpen() bool {
	return e.EndedAt == nil
}

// Duration returns the interval length, treating an open interval as ending now.
func (e *StatusLogEntry) Duration(now time.Time) time.Duration {
	end := now
	if e.EndedAt != nil {
		end = *e.EndedAt
	}
	if end.Before(e.StartedAt) {
		return 0
	}
	return end.Sub(e.StartedAt)
}
