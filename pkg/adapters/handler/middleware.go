package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/config"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
)

type contextKey int

const (
	principalKey contextKey = iota
	requestIDKey
)

const RequestIDHeader = "X-Request-ID"

type Middleware struct {
	jwtSecret []byte
	logger    logrus.FieldLogger
}

func NewMiddleware(cfg *config.Config, logger logrus.FieldLogger) *Middleware {
	return &Middleware{
		jwtSecret: []byte(cfg.JWTSecret),
		logger:    logger,
	}
}

// PrincipalFromContext returns the caller set by AuthMiddleware, anonymous
// when there is none
func PrincipalFromContext(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(principalKey).(domain.Principal)
	return p
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// AuthMiddleware verifies the JWT token from the cookie
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("auth_token")
		if err != nil {
			m.reject(w, r)
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
			return m.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.Subject == "" {
			m.logger.WithField("request_id", RequestIDFromContext(r.Context())).Debug("rejected auth token")
			m.reject(w, r)
			return
		}

		ctx := WithPrincipal(r.Context(), domain.Principal{Email: claims.Subject})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeJSON(w, http.StatusUnauthorized, APIError{
			Code:    "unauthenticated",
			Message: "sign in first",
			Meta:    map[string]string{"request_id": RequestIDFromContext(r.Context())},
		})
		return
	}
	http.Redirect(w, r, "/auth/google/login", http.StatusTemporaryRedirect)
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/v1/dashboard" // Dashboard might be viewed in browser
}

// RequestID reuses the caller's X-Request-ID or assigns a fresh one
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request. Run it inside RequestID.
func (m *Middleware) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := m.logger.WithFields(logrus.Fields{
			"request_id": RequestIDFromContext(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).String(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request completed")
			return
		}
		entry.Debug("request completed")
	})
}
