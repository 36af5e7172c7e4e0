package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contactsbook/apiserver/internal/services"
	"github.com/contactsbook/apiserver/types"
)

const (
	maxAvatarBytes  = 5 << 20
	formFieldAvatar = "file"
)

// ProfileManager updates the authenticated user's profile.
type ProfileManager interface {
	UpdateAvatar(ctx context.Context, user types.User, r io.Reader, size int64, contentType string) (types.User, error)
}

// UserHandler serves the current user's profile.
type UserHandler struct {
	profiles ProfileManager
	logger   *slog.Logger
}

func NewUserHandler(profiles ProfileManager, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{profiles: profiles, logger: logger}
}

// UserRouter registers profile routes. Every route requires authentication.
func UserRouter(r chi.Router, h *UserHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/me/", h.Me)
	r.Patch("/avatar", h.UpdateAvatar)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, services.MsgInvalidCredentials)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateAvatar stores the uploaded multipart "file" as the user's avatar.
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, services.MsgInvalidCredentials)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+1<<20)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile(formFieldAvatar)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	updated, err := h.profiles.UpdateAvatar(r.Context(), user, file, header.Size, contentType)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
