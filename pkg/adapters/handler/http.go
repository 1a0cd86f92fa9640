package handler

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

type HTTPHandler struct {
	service ports.LinkService
	reorder ports.ReorderService
	logger  logrus.FieldLogger
}

func NewHTTPHandler(service ports.LinkService, reorder ports.ReorderService, logger logrus.FieldLogger) *HTTPHandler {
	return &HTTPHandler{service: service, reorder: reorder, logger: logger}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	OriginalURL string   `json:"original_url" validate:"required,url"`
	Title       string   `json:"title" validate:"max=200"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
	CustomCode  string   `json:"custom_code,omitempty" validate:"omitempty,alphanum,min=3,max=32"`
}

// UpdateLinkRequest payload
type UpdateLinkRequest struct {
	OriginalURL string   `json:"original_url,omitempty" validate:"omitempty,url"`
	Title       string   `json:"title,omitempty" validate:"max=200"`
	Tags        []string `json:"tags,omitempty" validate:"max=20,dive,max=50"`
}

// ReorderRequest moves a link to Index within its owner's list; an index
// past the end appends
type ReorderRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	link, err := h.service.Shorten(r.Context(), PrincipalFromContext(r.Context()), req.OriginalURL, req.Title, req.Tags, req.CustomCode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, link)
}

// Reorder handles PUT /api/v1/links/{id}/position
func (h *HTTPHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req ReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.reorder.Reorder(r.Context(), PrincipalFromContext(r.Context()), id, *req.Index); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Redirect to original URL
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("short_code")

	originalURL, err := h.service.GetOriginalURL(r.Context(), code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// Visits are recorded after the response unless no_stat is set
	if r.URL.Query().Get("no_stat") == "" {
		referer, userAgent, ip := r.Header.Get("Referer"), r.UserAgent(), clientIP(r)
		ctx := context.WithoutCancel(r.Context())
		go func() {
			if err := h.service.RecordVisit(ctx, code, referer, userAgent, ip); err != nil {
				h.logger.WithError(err).WithField("short_code", code).Warn("failed to record visit")
			}
		}()
	}

	http.Redirect(w, r, originalURL, http.StatusFound)
}

// Get Public Link (without redirect, for metadata resolution)
func (h *HTTPHandler) GetPublicByShortCode(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.GetLinkByShortCode(r.Context(), r.PathValue("short_code"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toPublicLink(link))
}

// Track records a visit synchronously, for clients that resolve links themselves
func (h *HTTPHandler) Track(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("short_code")
	if err := h.service.RecordVisit(r.Context(), code, r.Header.Get("Referer"), r.UserAgent(), clientIP(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get Stats for a Link
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	stats, err := h.service.GetLinkStats(r.Context(), PrincipalFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Get Dashboard
func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	links, total, err := h.service.GetDashboard(r.Context(), PrincipalFromContext(r.Context()), limit, q.Get("search"), q.Get("tag"), q.Get("domain"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"top_links":    links,
		"total_clicks": total,
	})
}

// List Links in display order
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	links, count, err := h.service.ListLinks(r.Context(), PrincipalFromContext(r.Context()), page, limit, q.Get("search"), q.Get("tag"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  links,
		"total": count,
		"page":  page,
		"limit": limit,
	})
}

// Update Link
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req UpdateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	link, err := h.service.UpdateLink(r.Context(), PrincipalFromContext(r.Context()), id, req.OriginalURL, req.Title, req.Tags)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, link)
}

// Delete Link
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.DeleteLink(r.Context(), PrincipalFromContext(r.Context()), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
