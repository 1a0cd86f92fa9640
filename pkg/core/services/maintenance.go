package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/orderkey"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

// Maintenance holds the bulk operations used by the CLI
type Maintenance struct {
	repo        ports.LinkRepository
	invalidator ports.CacheInvalidator
	logger      logrus.FieldLogger
}

func NewMaintenance(repo ports.LinkRepository, invalidator ports.CacheInvalidator, logger logrus.FieldLogger) *Maintenance {
	return &Maintenance{repo: repo, invalidator: invalidator, logger: logger}
}

// Rekey rewrites owner's order keys to a compact ascending sequence in the
// current display order. Links that never had a key end up last.
func (m *Maintenance) Rekey(ctx context.Context, owner string) (int, error) {
	owner = normalizeEmail(owner)
	links, err := m.repo.ScopeLinks(ctx, owner)
	if err != nil {
		return 0, domain.Classify(err, "load links")
	}

	keys := orderkey.Sequence(len(links))
	positions := make([]domain.Position, len(links))
	for i, l := range links {
		positions[i] = domain.Position{LinkID: l.ID, OrderKey: keys[i]}
	}
	if err := m.repo.SetOrderKeys(ctx, positions); err != nil {
		return 0, domain.Classify(err, "write order keys")
	}

	err = m.invalidator.InvalidateScope(ctx, owner)
	recordCacheInvalidate("rekey", err)
	if err != nil {
		m.logger.WithError(err).WithField("owner", owner).Warn("profile cache invalidation failed")
	}
	return len(positions), nil
}

// Import creates links, skipping short codes that already exist. Each link
// is appended to its owner's ordering in input order; imported keys are
// discarded.
func (m *Maintenance) Import(ctx context.Context, links []domain.Link) (int, error) {
	lastKeys := map[string]string{}
	touched := map[string]bool{}
	count := 0

	for _, l := range links {
		existing, err := m.repo.GetByShortCode(ctx, l.ShortCode)
		if err != nil {
			return count, domain.Classify(err, "check short code")
		}
		if existing != nil {
			m.logger.WithField("short_code", l.ShortCode).Info("skipping existing code")
			continue
		}

		owner := normalizeEmail(l.Owner)
		last, ok := lastKeys[owner]
		if !ok {
			if last, err = m.repo.LastKey(ctx, owner); err != nil {
				return count, domain.Classify(err, "load last order key")
			}
		}
		key, err := orderkey.Generate(last, "")
		if err != nil {
			return count, domain.Unexpected("generate order key", err)
		}

		link := l
		link.ID = 0
		link.Owner = owner
		link.OrderKey = key
		link.Clicks = 0
		if link.CreatedAt.IsZero() {
			link.CreatedAt = time.Now()
		}
		if link.UpdatedAt.IsZero() {
			link.UpdatedAt = link.CreatedAt
		}

		if err := m.repo.Create(ctx, &link); err != nil {
			m.logger.WithError(err).WithField("short_code", l.ShortCode).Warn("failed to import link")
			continue
		}
		lastKeys[owner] = key
		touched[owner] = true
		count++
	}

	for owner := range touched {
		err := m.invalidator.InvalidateScope(ctx, owner)
		recordCacheInvalidate("import", err)
		if err != nil {
			m.logger.WithError(err).WithField("owner", owner).Warn("profile cache invalidation failed")
		}
	}
	return count, nil
}
