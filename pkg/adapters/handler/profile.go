package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

type ProfileHandler struct {
	service ports.ProfileService
	logger  logrus.FieldLogger
}

func NewProfileHandler(service ports.ProfileService, logger logrus.FieldLogger) *ProfileHandler {
	return &ProfileHandler{service: service, logger: logger}
}

type saveProfileRequest struct {
	Slug        string `json:"slug" validate:"required,min=3,max=40"`
	Title       string `json:"title" validate:"max=100"`
	Description string `json:"description" validate:"max=500"`
	Theme       string `json:"theme" validate:"omitempty,oneof=default dark light"`
}

func (h *ProfileHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var req saveProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	profile, err := h.service.SaveProfile(r.Context(), PrincipalFromContext(r.Context()), req.Slug, req.Title, req.Description, req.Theme)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetOwnProfile(r.Context(), PrincipalFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProfile(r.Context(), PrincipalFromContext(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPublicProfile renders the public page data for /u/{slug}
func (h *ProfileHandler) GetPublicProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetPublicProfile(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, toPublicProfile(profile))
}
