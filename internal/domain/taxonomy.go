package domain

import "time"

// Classification is a top-level product type such as "Thuốc" or "Thực phẩm chức năng".
type Classification struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Category belongs to one classification; names are unique within it.
type Category struct {
	ID               string    `json:"id"`
	ClassificationID string    `json:"classification_id"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"created_at"`
}
