package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
)

func TestPublicProfile_HidesOwnerData(t *testing.T) {
	deleted := time.Now()
	profile := &domain.Profile{
		ID:    3,
		Owner: "alice@example.com",
		Slug:  "alice",
		Title: "Alice",
		Theme: domain.DefaultTheme,
		Links: []domain.Link{
			{ID: 1, Owner: "alice@example.com", ShortCode: "one", OriginalURL: "https://1.example", OrderKey: "n", Clicks: 12},
			{ID: 2, Owner: "alice@example.com", ShortCode: "two", OriginalURL: "https://2.example", Tags: []string{"x"}, DeletedAt: &deleted},
		},
	}

	body, err := json.Marshal(toPublicProfile(profile))
	require.NoError(t, err)
	for _, leak := range []string{"alice@example.com", `"owner"`, `"clicks"`, `"deleted_at"`, `"order_key"`} {
		assert.NotContains(t, string(body), leak)
	}

	var got publicProfile
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "alice", got.Slug)
	require.Len(t, got.Links, 2)
	assert.Equal(t, "one", got.Links[0].ShortCode)
	assert.Equal(t, []string{}, got.Links[0].Tags)
	assert.Equal(t, []string{"x"}, got.Links[1].Tags)
}

func TestPublicLink_HidesOwnerData(t *testing.T) {
	body, err := json.Marshal(toPublicLink(&domain.Link{ID: 1, Owner: "alice@example.com", ShortCode: "one", Clicks: 4}))
	require.NoError(t, err)
	assert.NotContains(t, string(body), "alice@example.com")
	assert.NotContains(t, string(body), `"clicks"`)
	assert.Contains(t, string(body), `"short_code":"one"`)
}
