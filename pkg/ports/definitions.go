package ports

import (
	"context"

	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
)

// LinkRepository defines storage operations for links
type LinkRepository interface {
	Create(ctx context.Context, link *domain.Link) error
	GetByShortCode(ctx context.Context, code string) (*domain.Link, error)
	GetByID(ctx context.Context, id int64) (*domain.Link, error)
	Update(ctx context.Context, link *domain.Link) error
	Delete(ctx context.Context, id int64) error // Soft delete, also drops the link from its ordering
	List(ctx context.Context, limit, offset int, filters map[string]interface{}) ([]domain.Link, error)
	Count(ctx context.Context, filters map[string]interface{}) (int64, error)
	Dump(ctx context.Context) ([]domain.Link, error) // For migration

	// Stats
	RecordVisit(ctx context.Context, visit *domain.Visit) error
	GetLinkStats(ctx context.Context, linkID int64) (*domain.LinkStats, error)
	GetDashboardStats(ctx context.Context, limit int, filters map[string]interface{}) ([]domain.Link, int64, error)

	// Ordering
	LastKey(ctx context.Context, owner string) (string, error)
	ScopeLinks(ctx context.Context, owner string) ([]domain.Link, error)
	SetOrderKeys(ctx context.Context, positions []domain.Position) error
} // LinkRepository ends here

// LinkFinder loads a single live link; nil when it does not exist
type LinkFinder interface {
	GetByID(ctx context.Context, id int64) (*domain.Link, error)
}

// OrderStore is the persistence side of the reorder protocol
type OrderStore interface {
	// ListByScope returns the positions of all live links of owner, sorted by key
	ListByScope(ctx context.Context, owner string) ([]domain.Position, error)
	// WithinTx runs fn in one transaction, committing only when fn returns nil
	WithinTx(ctx context.Context, fn func(tx OrderTx) error) error
}

// OrderTx is only valid inside WithinTx
type OrderTx interface {
	GetOwner(ctx context.Context, linkID int64) (owner string, exists bool, err error)
	// WriteKey swaps the link's key from expected to newKey; false if the
	// stored key no longer matches
	WriteKey(ctx context.Context, linkID int64, expected, newKey string) (bool, error)
}

// ProfileRepository defines storage operations for profile pages
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	GetProfileByOwner(ctx context.Context, owner string) (*domain.Profile, error)
	GetProfileBySlug(ctx context.Context, slug string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, profile *domain.Profile) error
	DeleteProfile(ctx context.Context, id int64) error
}

// Authorizer decides whether a principal may change a scope's ordering
type Authorizer interface {
	OwnsScope(ctx context.Context, principal domain.Principal, scope string) (bool, error)
}

// CacheInvalidator is told when a scope's cached views went stale
type CacheInvalidator interface {
	InvalidateScope(ctx context.Context, scope string) error
}

// ProfileCache stores the ordered links rendered on a public profile.
// Callers read Version before loading links and pass it to SetLinks, which
// drops the write if the scope was invalidated in between.
type ProfileCache interface {
	CacheInvalidator
	GetLinks(ctx context.Context, scope string) ([]domain.Link, bool, error)
	Version(ctx context.Context, scope string) (int64, error)
	SetLinks(ctx context.Context, scope string, version int64, links []domain.Link) error
}

// ReorderService moves one link to a new index within its owner's ordering
type ReorderService interface {
	Reorder(ctx context.Context, principal domain.Principal, linkID int64, targetIndex int) error
}

// ProfileService defines business logic for profile pages
type ProfileService interface {
	SaveProfile(ctx context.Context, principal domain.Principal, slug, title, description, theme string) (*domain.Profile, error)
	GetOwnProfile(ctx context.Context, principal domain.Principal) (*domain.Profile, error)
	DeleteProfile(ctx context.Context, principal domain.Principal) error
	GetPublicProfile(ctx context.Context, slug string) (*domain.Profile, error)
}

// LinkService defines the business logic operations
type LinkService interface {
	Shorten(ctx context.Context, principal domain.Principal, originalURL, title string, tags []string, customCode string) (*domain.Link, error)
	GetOriginalURL(ctx context.Context, code string) (string, error)
	UpdateLink(ctx context.Context, principal domain.Principal, id int64, originalURL, title string, tags []string) (*domain.Link, error)
	DeleteLink(ctx context.Context, principal domain.Principal, id int64) error
	ListLinks(ctx context.Context, principal domain.Principal, page, limit int, search string, tag string) ([]domain.Link, int64, error)

	// Stats
	RecordVisit(ctx context.Context, shortCode, referer, userAgent, ip string) error
	GetLinkStats(ctx context.Context, principal domain.Principal, id int64) (*domain.LinkStats, error)
	GetDashboard(ctx context.Context, principal domain.Principal, limit int, search, tag, domainFilter string) ([]domain.Link, int64, error)
	GetLinkByShortCode(ctx context.Context, code string) (*domain.Link, error)
}
