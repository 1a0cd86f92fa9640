package services

import (
	"context"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,38}[a-z0-9]$`)

type ProfileService struct {
	profiles ports.ProfileRepository
	links    ports.LinkRepository
	cache    ports.ProfileCache
	logger   logrus.FieldLogger
}

func NewProfileService(profiles ports.ProfileRepository, links ports.LinkRepository, cache ports.ProfileCache, logger logrus.FieldLogger) *ProfileService {
	return &ProfileService{profiles: profiles, links: links, cache: cache, logger: logger}
}

// SaveProfile creates the principal's profile or updates the existing one
func (s *ProfileService) SaveProfile(ctx context.Context, principal domain.Principal, slug, title, description, theme string) (*domain.Profile, error) {
	if principal.Anonymous() {
		return nil, domain.Unauthorized("sign in to edit your profile")
	}
	if !slugPattern.MatchString(slug) {
		return nil, domain.InvalidArgument("slug must be 3-40 lowercase letters, digits or dashes")
	}
	if theme == "" {
		theme = domain.DefaultTheme
	}
	owner := normalizeEmail(principal.Email)

	existing, err := s.profiles.GetProfileBySlug(ctx, slug)
	if err != nil {
		return nil, domain.Classify(err, "check slug")
	}
	if existing != nil && existing.Owner != owner {
		return nil, domain.InvalidArgument("slug already exists")
	}

	profile, err := s.profiles.GetProfileByOwner(ctx, owner)
	if err != nil {
		return nil, domain.Classify(err, "load profile")
	}

	now := time.Now()
	if profile == nil {
		profile = &domain.Profile{
			Owner:       owner,
			Slug:        slug,
			Title:       title,
			Description: description,
			Theme:       theme,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.profiles.CreateProfile(ctx, profile); err != nil {
			return nil, domain.Classify(err, "create profile")
		}
		return profile, nil
	}

	profile.Slug = slug
	profile.Title = title
	profile.Description = description
	profile.Theme = theme
	profile.UpdatedAt = now

	if err := s.profiles.UpdateProfile(ctx, profile); err != nil {
		return nil, domain.Classify(err, "update profile")
	}
	return profile, nil
}

func (s *ProfileService) GetOwnProfile(ctx context.Context, principal domain.Principal) (*domain.Profile, error) {
	if principal.Anonymous() {
		return nil, domain.Unauthorized("sign in to view your profile")
	}
	profile, err := s.profiles.GetProfileByOwner(ctx, normalizeEmail(principal.Email))
	if err != nil {
		return nil, domain.Classify(err, "load profile")
	}
	if profile == nil {
		return nil, domain.NotFound("profile not found")
	}
	return profile, nil
}

func (s *ProfileService) DeleteProfile(ctx context.Context, principal domain.Principal) error {
	profile, err := s.GetOwnProfile(ctx, principal)
	if err != nil {
		return err
	}
	if err := s.profiles.DeleteProfile(ctx, profile.ID); err != nil {
		return domain.Classify(err, "delete profile")
	}

	err = s.cache.InvalidateScope(ctx, profile.Owner)
	recordCacheInvalidate("profile_delete", err)
	if err != nil {
		s.logger.WithError(err).Warn("profile cache invalidation failed")
	}
	return nil
}

// GetPublicProfile returns the profile behind slug with its links in order.
// The link list comes from the cache when present. On a miss the cache
// generation is read before loading so a list that a concurrent reorder
// already superseded is not written back.
func (s *ProfileService) GetPublicProfile(ctx context.Context, slug string) (*domain.Profile, error) {
	profile, err := s.profiles.GetProfileBySlug(ctx, slug)
	if err != nil {
		return nil, domain.Classify(err, "load profile")
	}
	if profile == nil {
		return nil, domain.NotFound("profile not found")
	}

	links, hit, err := s.cache.GetLinks(ctx, profile.Owner)
	if err != nil {
		s.logger.WithError(err).WithField("slug", slug).Warn("profile cache read failed")
	}
	recordCacheRequest(hit)

	if !hit {
		version, verr := s.cache.Version(ctx, profile.Owner)
		if verr != nil {
			s.logger.WithError(verr).WithField("slug", slug).Warn("profile cache read failed")
		}
		links, err = s.links.ScopeLinks(ctx, profile.Owner)
		if err != nil {
			return nil, domain.Classify(err, "load profile links")
		}
		if verr == nil {
			if err := s.cache.SetLinks(ctx, profile.Owner, version, links); err != nil {
				s.logger.WithError(err).WithField("slug", slug).Warn("profile cache write failed")
			}
		}
	}

	profile.Links = links
	return profile, nil
}

var _ ports.ProfileService = (*ProfileService)(nil)
