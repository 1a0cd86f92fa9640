// Package app wires configuration, storage, cache and services into the
// HTTP handler shared by the server binary and the serverless entrypoint.
package app

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/adapters/cache"
	"github.com/wadjakorntonsri/go-linkpage/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-linkpage/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-linkpage/pkg/config"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/services"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

type App struct {
	Handler http.Handler
	Repo    *sqlite.SQLiteRepository
	closers []func() error
}

func New(cfg *config.Config, logger logrus.FieldLogger) (*App, error) {
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "init repository")
	}
	a := &App{Repo: repo, closers: []func() error{repo.Close}}

	profileCache, err := a.profileCache(cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	authz := services.NewOwnerAuthorizer(cfg.AdminEmails)
	a.Handler = handler.NewRouter(cfg, handler.Services{
		Links:    services.NewLinkService(repo, authz, profileCache, logger, cfg.VisitSalt),
		Reorder:  services.NewReorderCoordinator(repo, repo, authz, profileCache, logger),
		Profiles: services.NewProfileService(repo, repo, profileCache, logger),
	}, logger)
	return a, nil
}

func (a *App) profileCache(cfg *config.Config, logger logrus.FieldLogger) (ports.ProfileCache, error) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, profile cache disabled")
		return cache.NopCache{}, nil
	}
	c, err := cache.NewRedisProfileCache(cfg.RedisURL, cfg.ProfileCacheTTL)
	if err != nil {
		return nil, errors.Wrap(err, "init profile cache")
	}
	a.closers = append(a.closers, c.Close)
	return c, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
