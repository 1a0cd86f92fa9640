package handler

import (
	"net/http"

	"github.com/wadjakorntonsri/go-linkpage/pkg/app"
	"github.com/wadjakorntonsri/go-linkpage/pkg/config"
	"github.com/wadjakorntonsri/go-linkpage/pkg/logging"
)

var mux http.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(cfg.LogLevel, cfg.IsProduction())

	// Note: On Vercel, db.sqlite is ephemeral unless using a remote SQL/Turso URL in DATABASE_URL
	application, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialise")
		panic(err)
	}
	mux = application.Handler
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
