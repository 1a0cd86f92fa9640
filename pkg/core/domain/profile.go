package domain

import "time"

// Profile is the personalised public page (link-in-bio) of one owner
type Profile struct {
	ID          int64     `json:"id"`
	Owner       string    `json:"owner"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Theme       string    `json:"theme"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Links       []Link    `json:"links,omitempty"` // Populated for the public view, in OrderKey order
}

// DefaultTheme is used when a profile is created without one
const DefaultTheme = "default"

// Principal is the authenticated caller acting on a scope
type Principal struct {
	Email string `json:"email"`
}

func (p Principal) Anonymous() bool {
	return p.Email == ""
}
