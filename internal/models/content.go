package models

import "time"

// Banner is a carousel slide on the storefront home screen.
type Banner struct {
	ID        int       `json:"id" db:"id"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	LinkURL   string    `json:"link_url" db:"link_url"`
	Active    bool      `json:"active" db:"active"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Notice is an admin-published notification. Read tracking is client-side.
type Notice struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
