package handler

import (
	"time"

	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
)

// publicLink is what anonymous visitors see of a link. Owner, click counts
// and soft-delete state stay private.
type publicLink struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}

type publicProfile struct {
	Slug        string       `json:"slug"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Theme       string       `json:"theme"`
	Links       []publicLink `json:"links"`
}

func toPublicLink(l *domain.Link) publicLink {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return publicLink{
		ID:          l.ID,
		ShortCode:   l.ShortCode,
		OriginalURL: l.OriginalURL,
		Title:       l.Title,
		Tags:        tags,
		CreatedAt:   l.CreatedAt,
	}
}

func toPublicProfile(p *domain.Profile) publicProfile {
	links := make([]publicLink, len(p.Links))
	for i := range p.Links {
		links[i] = toPublicLink(&p.Links[i])
	}
	return publicProfile{
		Slug:        p.Slug,
		Title:       p.Title,
		Description: p.Description,
		Theme:       p.Theme,
		Links:       links,
	}
}
