package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/orderkey"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

type LinkService struct {
	repo        ports.LinkRepository
	authz       ports.Authorizer
	invalidator ports.CacheInvalidator
	logger      logrus.FieldLogger
	visitSalt   string
}

func NewLinkService(repo ports.LinkRepository, authz ports.Authorizer, invalidator ports.CacheInvalidator, logger logrus.FieldLogger, visitSalt string) *LinkService {
	return &LinkService{
		repo:        repo,
		authz:       authz,
		invalidator: invalidator,
		logger:      logger,
		visitSalt:   visitSalt,
	}
}

// Shorten creates a link owned by principal and appends it to the end of
// the owner's ordering.
func (s *LinkService) Shorten(ctx context.Context, principal domain.Principal, originalURL, title string, tags []string, customCode string) (*domain.Link, error) {
	if principal.Anonymous() {
		return nil, domain.Unauthorized("sign in to create links")
	}
	if originalURL == "" {
		return nil, domain.InvalidArgument("original URL is required")
	}

	code := customCode
	if code == "" {
		var err error
		code, err = generateShortCode(6)
		if err != nil {
			return nil, domain.Unexpected("generate short code", err)
		}
	} else {
		existing, err := s.repo.GetByShortCode(ctx, code)
		if err != nil {
			return nil, domain.Classify(err, "check custom code")
		}
		if existing != nil {
			return nil, domain.InvalidArgument("custom code already exists")
		}
	}

	owner := normalizeEmail(principal.Email)
	last, err := s.repo.LastKey(ctx, owner)
	if err != nil {
		return nil, domain.Classify(err, "load last order key")
	}
	key, err := orderkey.Generate(last, "")
	if err != nil {
		return nil, domain.Unexpected("generate order key", err)
	}

	now := time.Now()
	link := &domain.Link{
		Owner:       owner,
		OriginalURL: originalURL,
		ShortCode:   code,
		Title:       title,
		Tags:        tags,
		OrderKey:    key,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, link); err != nil {
		return nil, domain.Classify(err, "create link")
	}

	s.invalidate(ctx, owner, "create")
	return link, nil
}

func (s *LinkService) GetOriginalURL(ctx context.Context, code string) (string, error) {
	link, err := s.GetLinkByShortCode(ctx, code)
	if err != nil {
		return "", err
	}
	return link.OriginalURL, nil
}

// ownedLink loads a live link and checks that principal may change it
func (s *LinkService) ownedLink(ctx context.Context, principal domain.Principal, id int64) (*domain.Link, error) {
	if id <= 0 {
		return nil, domain.InvalidArgument("link id must be positive")
	}
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Classify(err, "load link")
	}
	if link == nil {
		return nil, domain.NotFound("link not found")
	}
	ok, err := s.authz.OwnsScope(ctx, principal, link.Owner)
	if err != nil {
		return nil, domain.Unexpected("check ownership", err)
	}
	if !ok {
		return nil, domain.Unauthorized("you don't have permission to change this link")
	}
	return link, nil
}

func (s *LinkService) UpdateLink(ctx context.Context, principal domain.Principal, id int64, originalURL, title string, tags []string) (*domain.Link, error) {
	link, err := s.ownedLink(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	// Update fields if provided (naive partial update logic)
	if originalURL != "" {
		link.OriginalURL = originalURL
	}
	if title != "" {
		link.Title = title
	}
	if tags != nil {
		link.Tags = tags
	}
	link.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, link); err != nil {
		return nil, domain.Classify(err, "update link")
	}

	s.invalidate(ctx, link.Owner, "update")
	return link, nil
}

// DeleteLink soft-deletes the link, which also removes it from the ordering
func (s *LinkService) DeleteLink(ctx context.Context, principal domain.Principal, id int64) error {
	link, err := s.ownedLink(ctx, principal, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return domain.Classify(err, "delete link")
	}

	s.invalidate(ctx, link.Owner, "delete")
	return nil
}

// ListLinks returns the principal's links in display order
func (s *LinkService) ListLinks(ctx context.Context, principal domain.Principal, page, limit int, search string, tag string) ([]domain.Link, int64, error) {
	if principal.Anonymous() {
		return nil, 0, domain.Unauthorized("sign in to list links")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit

	filters := map[string]interface{}{
		"owner":  normalizeEmail(principal.Email),
		"search": search,
		"tag":    tag,
	}

	links, err := s.repo.List(ctx, limit, offset, filters)
	if err != nil {
		return nil, 0, domain.Classify(err, "list links")
	}

	count, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, 0, domain.Classify(err, "count links")
	}

	return links, count, nil
}

func (s *LinkService) RecordVisit(ctx context.Context, shortCode, referer, userAgent, ip string) error {
	link, err := s.GetLinkByShortCode(ctx, shortCode)
	if err != nil {
		return err
	}

	visit := &domain.Visit{
		LinkID:    link.ID,
		Referer:   referer,
		UserAgent: userAgent,
		IPHash:    s.hashIP(ip),
		CreatedAt: time.Now(),
	}

	if err := s.repo.RecordVisit(ctx, visit); err != nil {
		return domain.Classify(err, "record visit")
	}
	return nil
}

func (s *LinkService) hashIP(ip string) string {
	sum := sha256.Sum256([]byte(s.visitSalt + ip))
	return hex.EncodeToString(sum[:])
}

func (s *LinkService) GetLinkStats(ctx context.Context, principal domain.Principal, id int64) (*domain.LinkStats, error) {
	if _, err := s.ownedLink(ctx, principal, id); err != nil {
		return nil, err
	}
	stats, err := s.repo.GetLinkStats(ctx, id)
	if err != nil {
		return nil, domain.Classify(err, "load link stats")
	}
	return stats, nil
}

func (s *LinkService) GetDashboard(ctx context.Context, principal domain.Principal, limit int, search, tag, domainFilter string) ([]domain.Link, int64, error) {
	if principal.Anonymous() {
		return nil, 0, domain.Unauthorized("sign in to view the dashboard")
	}
	if limit < 1 {
		limit = 10
	}
	filters := map[string]interface{}{
		"owner":  normalizeEmail(principal.Email),
		"search": search,
		"tag":    tag,
		"domain": domainFilter,
	}
	links, total, err := s.repo.GetDashboardStats(ctx, limit, filters)
	if err != nil {
		return nil, 0, domain.Classify(err, "load dashboard")
	}
	return links, total, nil
}

func (s *LinkService) GetLinkByShortCode(ctx context.Context, code string) (*domain.Link, error) {
	if code == "" {
		return nil, domain.InvalidArgument("short code is required")
	}
	link, err := s.repo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, domain.Classify(err, "load link")
	}
	if link == nil {
		return nil, domain.NotFound("link not found")
	}
	return link, nil
}

func (s *LinkService) invalidate(ctx context.Context, scope, reason string) {
	err := s.invalidator.InvalidateScope(ctx, scope)
	recordCacheInvalidate(reason, err)
	if err != nil {
		s.logger.WithError(err).WithField("reason", reason).Warn("profile cache invalidation failed")
	}
}

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateShortCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}

var _ ports.LinkService = (*LinkService)(nil)
