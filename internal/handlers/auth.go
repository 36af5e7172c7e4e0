package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/contactsbook/apiserver/internal/services"
	"github.com/contactsbook/apiserver/types"
)

// SessionManager is the session lifecycle consumed by the auth routes.
type SessionManager interface {
	Authenticator
	Signup(ctx context.Context, in services.SignupInput, baseURL string) (types.User, error)
	Login(ctx context.Context, email, password string) (types.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (types.TokenPair, error)
	Logout(ctx context.Context, user types.User) error
	ConfirmEmail(ctx context.Context, token string) (string, error)
	RequestEmail(ctx context.Context, email, baseURL string) (string, error)
}

// AuthHandler serves registration, login, token refresh and email
// confirmation.
type AuthHandler struct {
	sessions SessionManager
	baseURL  string
	logger   *slog.Logger
}

// NewAuthHandler constructs an AuthHandler. baseURL prefixes confirmation
// links; when empty it is derived from each request.
func NewAuthHandler(sessions SessionManager, baseURL string, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{sessions: sessions, baseURL: baseURL, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Get("/refresh_token", h.RefreshToken)
	r.Get("/confirmed_email/{token}", h.ConfirmedEmail)
	r.Post("/request_email", h.RequestEmail)
	r.With(RequireUser(h.sessions, h.logger)).Post("/logout", h.Logout)
}

type SignupRequest struct {
	Username string `json:"username" validate:"required,min=5,max=26"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=20"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Signup registers an account and queues the confirmation letter.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.sessions.Signup(r.Context(), services.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, h.publicBaseURL(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login exchanges form-encoded credentials (the email goes in "username")
// for a token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid form")
		return
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	if !validateRequest(w, form) {
		return
	}

	pair, err := h.sessions.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// RefreshToken rotates the session using the bearer refresh token.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, services.MsgInvalidCredentials)
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) ConfirmedEmail(w http.ResponseWriter, r *http.Request) {
	message, err := h.sessions.ConfirmEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *AuthHandler) RequestEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	message, err := h.sessions.RequestEmail(r.Context(), req.Email, h.publicBaseURL(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// Logout revokes the caller's refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, services.MsgInvalidCredentials)
		return
	}
	if err := h.sessions.Logout(r.Context(), user); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) publicBaseURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}
