package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/orderkey"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

// ReorderCoordinator turns "move link X to index N" into a single order key
// write. The sibling read is a snapshot; the transaction re-checks existence
// and ownership and compares the moved link's key before writing, so a stale
// snapshot yields a conflict instead of a lost update. Nothing is retried here.
type ReorderCoordinator struct {
	links       ports.LinkFinder
	store       ports.OrderStore
	authz       ports.Authorizer
	invalidator ports.CacheInvalidator
	logger      logrus.FieldLogger
}

func NewReorderCoordinator(links ports.LinkFinder, store ports.OrderStore, authz ports.Authorizer, invalidator ports.CacheInvalidator, logger logrus.FieldLogger) *ReorderCoordinator {
	return &ReorderCoordinator{
		links:       links,
		store:       store,
		authz:       authz,
		invalidator: invalidator,
		logger:      logger,
	}
}

func (c *ReorderCoordinator) Reorder(ctx context.Context, principal domain.Principal, linkID int64, targetIndex int) (err error) {
	defer func() { recordReorder(err) }()

	if linkID <= 0 {
		return domain.InvalidArgument("link id must be positive")
	}
	if targetIndex < 0 {
		return domain.InvalidArgument("index must not be negative")
	}

	link, err := c.links.GetByID(ctx, linkID)
	if err != nil {
		return domain.Classify(err, "load link")
	}
	if link == nil {
		return domain.NotFound("link not found")
	}
	scope := link.Owner
	if err := c.authorize(ctx, principal, scope); err != nil {
		return err
	}

	siblings, err := c.store.ListByScope(ctx, scope)
	if err != nil {
		return domain.Classify(err, "load ordering")
	}

	current := -1
	currentKey := link.OrderKey
	remaining := make([]domain.Position, 0, len(siblings))
	for i, p := range siblings {
		if p.LinkID == linkID {
			current, currentKey = i, p.OrderKey
			continue
		}
		remaining = append(remaining, p)
	}

	before, after := neighbours(remaining, targetIndex)
	if current >= 0 && current == min(targetIndex, len(remaining)) && fitsBetween(currentKey, before, after) {
		c.logger.WithFields(logrus.Fields{"link_id": linkID, "index": targetIndex}).Debug("link already in place")
		return nil
	}

	newKey, err := orderkey.Generate(before, after)
	if err != nil {
		return domain.Unexpected("generate order key", err)
	}

	err = c.store.WithinTx(ctx, func(tx ports.OrderTx) error {
		owner, exists, err := tx.GetOwner(ctx, linkID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NotFound("link no longer exists")
		}
		if err := c.authorize(ctx, principal, owner); err != nil {
			return err
		}
		if owner != scope {
			return domain.Conflict("link changed owner while being moved", nil)
		}

		swapped, err := tx.WriteKey(ctx, linkID, currentKey, newKey)
		if err != nil {
			return err
		}
		if !swapped {
			return domain.Conflict("link was moved concurrently", nil)
		}
		return nil
	})
	if err != nil {
		return domain.Classify(err, "persist order key")
	}

	c.logger.WithFields(logrus.Fields{
		"link_id":   linkID,
		"index":     targetIndex,
		"order_key": newKey,
	}).Info("link reordered")

	invErr := c.invalidator.InvalidateScope(ctx, scope)
	recordCacheInvalidate("reorder", invErr)
	if invErr != nil {
		c.logger.WithError(invErr).WithField("link_id", linkID).Warn("profile cache invalidation failed")
	}
	return nil
}

func (c *ReorderCoordinator) authorize(ctx context.Context, principal domain.Principal, scope string) error {
	ok, err := c.authz.OwnsScope(ctx, principal, scope)
	if err != nil {
		return domain.Unexpected("check ownership", err)
	}
	if !ok {
		return domain.Unauthorized("you don't have permission to reorder these links")
	}
	return nil
}

// neighbours returns the keys bounding index in remaining. Tied keys leave no
// room between them, so the slot moves in front of the tie group.
func neighbours(remaining []domain.Position, index int) (before, after string) {
	if len(remaining) == 0 {
		return "", ""
	}
	if index >= len(remaining) {
		return remaining[len(remaining)-1].OrderKey, ""
	}

	after = remaining[index].OrderKey
	for i := index - 1; i >= 0; i-- {
		if orderkey.Compare(remaining[i].OrderKey, after) < 0 {
			return remaining[i].OrderKey, after
		}
	}
	return "", after
}

func fitsBetween(key, before, after string) bool {
	if key == "" {
		return false
	}
	if before != "" && orderkey.Compare(key, before) <= 0 {
		return false
	}
	if after != "" && orderkey.Compare(key, after) >= 0 {
		return false
	}
	return true
}

var _ ports.ReorderService = (*ReorderCoordinator)(nil)
