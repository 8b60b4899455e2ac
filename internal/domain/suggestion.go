package domain

import "time"

// Suggestion is a seller's proposal for a new catalog entry. Approving it
// creates the entry in the same transaction.
type Suggestion struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Brand            string         `json:"brand"`
	ImageURL         string         `json:"image_url"`
	LicenseURL       string         `json:"license_url"`
	ClassificationID string         `json:"classification_id"`
	CategoryID       string         `json:"category_id"`
	Attributes       map[string]any `json:"attributes"`
	SellerID         string         `json:"seller_id"`
	SellerName       string         `json:"seller_name"`
	ApprovalStatus   string         `json:"approval_status"`
	ResponseMessage  string         `json:"response_message"`
	RespondedAt      *time.Time     `json:"responded_at"`
	RespondedByID    string         `json:"responded_by_id"`
	RespondedByName  string         `json:"responded_by_name"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// SuggestionResponse is an admin's decision on a pending suggestion.
type SuggestionResponse struct {
	Decision    string
	Message     string
	RespondedBy string
	Responder   string
	RespondedAt time.Time
}

// ToCatalogEntry builds the catalog entry an approved suggestion turns into.
func (s *Suggestion) ToCatalogEntry(id, slug string, now time.Time) *CatalogEntry {
	return &CatalogEntry{
		ID:                 id,
		Name:               s.Name,
		Slug:               slug,
		Brand:              s.Brand,
		PlatformVisibility: StatusActive,
		ClassificationID:   s.ClassificationID,
		CategoryID:         s.CategoryID,
		Attributes:         s.Attributes,
		ImageURL:           s.ImageURL,
		LicenseURL:         s.LicenseURL,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
