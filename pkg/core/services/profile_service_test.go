package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-linkpage/pkg/adapters/cache"
	"github.com/wadjakorntonsri/go-linkpage/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/logging"
)

type profileFixture struct {
	profiles *ProfileService
	links    *LinkService
	reorder  *ReorderCoordinator
	repo     *sqlite.SQLiteRepository
	cache    *cache.RedisProfileCache
	redis    *miniredis.Miniredis
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	profileCache := cache.NewRedisProfileCacheWithClient(client, time.Minute)
	repo := newRepo(t)
	authz := NewOwnerAuthorizer(nil)
	logger := logging.Discard()

	return &profileFixture{
		profiles: NewProfileService(repo, repo, profileCache, logger),
		links:    NewLinkService(repo, authz, profileCache, logger, "salt"),
		reorder:  NewReorderCoordinator(repo, repo, authz, profileCache, logger),
		repo:     repo,
		cache:    profileCache,
		redis:    mr,
	}
}

func titles(links []domain.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Title
	}
	return out
}

func TestSaveProfile(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p := domain.Principal{Email: alice}

	created, err := f.profiles.SaveProfile(ctx, p, "alice", "Alice", "hello", "")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, domain.DefaultTheme, created.Theme)

	updated, err := f.profiles.SaveProfile(ctx, p, "alice-page", "Alice", "bye", "dark")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	own, err := f.profiles.GetOwnProfile(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "alice-page", own.Slug)
	assert.Equal(t, "dark", own.Theme)
	assert.Equal(t, "bye", own.Description)
}

func TestSaveProfile_Rejections(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()

	_, err := f.profiles.SaveProfile(ctx, domain.Principal{}, "alice", "", "", "")
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))

	for _, slug := range []string{"", "ab", "Alice", "-alice", "alice-", "al ice"} {
		_, err = f.profiles.SaveProfile(ctx, domain.Principal{Email: alice}, slug, "", "", "")
		assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err), slug)
	}

	_, err = f.profiles.SaveProfile(ctx, domain.Principal{Email: alice}, "taken", "", "", "")
	require.NoError(t, err)
	_, err = f.profiles.SaveProfile(ctx, domain.Principal{Email: bob}, "taken", "", "", "")
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
}

func TestGetPublicProfile_CachedAndInvalidatedOnReorder(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p := domain.Principal{Email: alice}

	_, err := f.profiles.SaveProfile(ctx, p, "alice", "Alice", "", "")
	require.NoError(t, err)

	var ids []int64
	for _, title := range []string{"one", "two", "three"} {
		l, err := f.links.Shorten(ctx, p, "https://"+title+".example", title, nil, "")
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}

	public, err := f.profiles.GetPublicProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, titles(public.Links))
	assert.True(t, f.redis.Exists("profile:links:"+alice))

	require.NoError(t, f.reorder.Reorder(ctx, p, ids[2], 0))
	assert.False(t, f.redis.Exists("profile:links:"+alice))

	public, err = f.profiles.GetPublicProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "one", "two"}, titles(public.Links))
}

// slowScope calls during after loading links and before returning them
type slowScope struct {
	*sqlite.SQLiteRepository
	during func()
}

func (s *slowScope) ScopeLinks(ctx context.Context, owner string) ([]domain.Link, error) {
	links, err := s.SQLiteRepository.ScopeLinks(ctx, owner)
	if s.during != nil {
		s.during()
		s.during = nil
	}
	return links, err
}

func TestGetPublicProfile_ReorderDuringFillIsNotOverwritten(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p := domain.Principal{Email: alice}

	_, err := f.profiles.SaveProfile(ctx, p, "alice", "Alice", "", "")
	require.NoError(t, err)
	var ids []int64
	for _, title := range []string{"one", "two", "three"} {
		l, err := f.links.Shorten(ctx, p, "https://"+title+".example", title, nil, "")
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}

	scope := &slowScope{SQLiteRepository: f.repo, during: func() {
		require.NoError(t, f.reorder.Reorder(ctx, p, ids[2], 0))
	}}
	profiles := NewProfileService(f.repo, scope, f.cache, logging.Discard())

	// The fill that raced the reorder returns what it loaded but caches nothing.
	public, err := profiles.GetPublicProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, titles(public.Links))
	assert.False(t, f.redis.Exists("profile:links:"+alice))

	public, err = profiles.GetPublicProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "one", "two"}, titles(public.Links))
	assert.True(t, f.redis.Exists("profile:links:"+alice))

	public, err = profiles.GetPublicProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "one", "two"}, titles(public.Links))
}

func TestGetPublicProfile_ServesCachedLinks(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p := domain.Principal{Email: alice}

	_, err := f.profiles.SaveProfile(ctx, p, "alice", "Alice", "", "")
	require.NoError(t, err)
	require.NoError(t, f.redis.Set("profile:links:"+alice, `[{"id":99,"title":"cached"}]`))

	public, err := f.profiles.GetPublicProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"cached"}, titles(public.Links))
}

func TestGetPublicProfile_NotFound(t *testing.T) {
	f := newProfileFixture(t)
	_, err := f.profiles.GetPublicProfile(context.Background(), "nobody")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestDeleteProfile(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p := domain.Principal{Email: alice}

	_, err := f.profiles.SaveProfile(ctx, p, "alice", "", "", "")
	require.NoError(t, err)
	_, err = f.profiles.GetPublicProfile(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, f.profiles.DeleteProfile(ctx, p))
	assert.False(t, f.redis.Exists("profile:links:"+alice))

	_, err = f.profiles.GetOwnProfile(ctx, p)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	err = f.profiles.DeleteProfile(ctx, p)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
