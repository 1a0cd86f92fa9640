package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type AuthHandler struct {
	oauthConfig   *oauth2.Config
	jwtSecret     []byte
	frontendURL   string
	allowedEmails []string
	isProduction  bool
	logger        logrus.FieldLogger
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewAuthHandler(cfg *config.Config, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		jwtSecret:     []byte(cfg.JWTSecret),
		frontendURL:   cfg.FrontendURL,
		allowedEmails: cfg.AllowedEmails,
		isProduction:  cfg.IsProduction(),
		logger:        logger,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := h.generateStateOauthCookie(w)
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithField("request_id", RequestIDFromContext(r.Context()))

	oauthState, err := r.Cookie("oauthstate")
	if err != nil {
		log.WithError(err).Warn("callback without oauthstate cookie")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	if r.FormValue("state") != oauthState.Value {
		log.Warn("callback with mismatched oauth state")
		http.Error(w, "invalid oauth google state", http.StatusBadRequest)
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.WithError(err).Error("oauth code exchange failed")
		http.Error(w, "code exchange failed", http.StatusInternalServerError)
		return
	}

	response, err := h.oauthConfig.Client(r.Context(), token).Get(userInfoURL)
	if err != nil {
		log.WithError(err).Error("failed getting user info")
		http.Error(w, "failed getting user info", http.StatusInternalServerError)
		return
	}
	defer response.Body.Close()

	var googleUser GoogleUser
	if err := json.NewDecoder(response.Body).Decode(&googleUser); err != nil {
		log.WithError(err).Error("failed decoding user info")
		http.Error(w, "failed decoding user info", http.StatusInternalServerError)
		return
	}

	if !h.allowed(googleUser.Email) {
		log.WithField("email", googleUser.Email).Warn("email not in allowlist")
		http.Error(w, "Access denied: your email is not in the allowlist", http.StatusForbidden)
		return
	}

	expirationTime := time.Now().Add(24 * time.Hour)
	claims := &jwt.RegisteredClaims{
		Subject:   strings.ToLower(googleUser.Email),
		ExpiresAt: jwt.NewNumericDate(expirationTime),
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
	if err != nil {
		log.WithError(err).Error("failed signing JWT")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    tokenString,
		Expires:  expirationTime,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	log.WithField("email", claims.Subject).Info("login successful")
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

// allowed reports whether email may sign in; an empty allowlist admits everyone
func (h *AuthHandler) allowed(email string) bool {
	if len(h.allowedEmails) == 0 {
		return true
	}
	for _, a := range h.allowedEmails {
		if strings.EqualFold(strings.TrimSpace(a), email) {
			return true
		}
	}
	return false
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Expires:  time.Now().Add(-1 * time.Hour),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Expires:  time.Now().Add(20 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state
}
