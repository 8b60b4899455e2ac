package domain

import "time"

// CatalogEntry is a platform-curated product that sellers list against.
type CatalogEntry struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Slug               string         `json:"slug"`
	Brand              string         `json:"brand"`
	PlatformVisibility string         `json:"platform_visibility"`
	ClassificationID   string         `json:"classification_id"`
	CategoryID         string         `json:"category_id"`
	Attributes         map[string]any `json:"attributes"`
	ImageURL           string         `json:"image_url"`
	LicenseURL         string         `json:"license_url"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// IsActive reports whether the platform has the entry switched on.
func (e *CatalogEntry) IsActive() bool {
	return e.PlatformVisibility == StatusActive
}
