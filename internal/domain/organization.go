package domain

import (
	"regexp"
	"time"
)

// Organization owns services, incidents, maintenances and subscribers.
// The slug is immutable after creation and identifies the public status page.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// IsValidSlug reports whether s is a URL-safe slug.
func IsValidSlug(s string) bool {
	return len(s) > 0 && len(s) <= 255 && slugPattern.MatchString(s)
}
