package handler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/config"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

// Services groups what the router dispatches to
type Services struct {
	Links    ports.LinkService
	Reorder  ports.ReorderService
	Profiles ports.ProfileService
}

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, svc Services, logger logrus.FieldLogger) http.Handler {
	h := NewHTTPHandler(svc.Links, svc.Reorder, logger)
	ph := NewProfileHandler(svc.Profiles, logger)
	mw := NewMiddleware(cfg, logger)
	authHandler := NewAuthHandler(cfg, logger)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /open/{short_code}", h.Redirect)
	mux.HandleFunc("GET /l/{short_code}", h.GetPublicByShortCode)
	mux.HandleFunc("POST /l/{short_code}/visits", h.Track)
	mux.HandleFunc("GET /u/{slug}", ph.GetPublicProfile)
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)

	// Protected Routes (API & Dashboard)
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /api/v1/links", h.Create)
	protectedMux.HandleFunc("GET /api/v1/links", h.List)
	protectedMux.HandleFunc("GET /api/v1/links/{id}/stats", h.Stats)
	protectedMux.HandleFunc("PUT /api/v1/links/{id}/position", h.Reorder)
	protectedMux.HandleFunc("GET /api/v1/dashboard", h.Dashboard)
	protectedMux.HandleFunc("PUT /api/v1/links/{id}", h.Update)
	protectedMux.HandleFunc("DELETE /api/v1/links/{id}", h.Delete)

	protectedMux.HandleFunc("PUT /api/v1/profile", ph.SaveProfile)
	protectedMux.HandleFunc("GET /api/v1/profile", ph.GetProfile)
	protectedMux.HandleFunc("DELETE /api/v1/profile", ph.DeleteProfile)

	// protectedMux holds full paths, so the /api/v1/ prefix only gates them
	mux.Handle("/api/v1/", mw.AuthMiddleware(protectedMux))

	return RequestID(mw.RequestLogger(newCORS(cfg.CORSOrigins).Handler(mux)))
}

func newCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	})
}
