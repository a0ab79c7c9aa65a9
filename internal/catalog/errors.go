package catalog

import "errors"

// Catalog errors.
var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrServiceNotFound      = errors.New("service not found")
	ErrSlugExists           = errors.New("slug already exists")
	ErrInvalidSlug          = errors.New("invalid slug format")
)
