package domain

import "time"

// Link represents a shortened URL shown on its owner's profile page
type Link struct {
	ID          int64      `json:"id"`
	Owner       string     `json:"owner"`
	OriginalURL string     `json:"original_url"`
	ShortCode   string     `json:"short_code"`
	Title       string     `json:"title"`
	Tags        []string   `json:"tags"` // Handled as JSON text in SQLite
	OrderKey    string     `json:"order_key"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	Clicks      int64      `json:"clicks,omitempty"` // Aggregated count
}

// Position is a link's place in its owner's ordering
type Position struct {
	LinkID   int64  `json:"link_id"`
	OrderKey string `json:"order_key"`
}
