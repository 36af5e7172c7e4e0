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

// contactParam names the path segment after /contact/. PUT and DELETE read
// it as an ID, GET as a search term.
const contactParam = "elem"

// ContactManager is the contact use-case surface consumed by ContactHandler.
type ContactManager interface {
	List(ctx context.Context, userID, skip, limit int) ([]types.Contact, error)
	ListAll(ctx context.Context, userID int) ([]types.Contact, error)
	Search(ctx context.Context, userID int, term string) ([]types.Contact, error)
	Create(ctx context.Context, contact types.Contact) (types.Contact, error)
	Update(ctx context.Context, contact types.Contact) (types.Contact, error)
	Delete(ctx context.Context, userID, id int) error
	UpcomingBirthdays(ctx context.Context, userID int) ([]types.Contact, error)
	Healthy(ctx context.Context) error
}

type ContactHandler struct {
	contacts ContactManager
	logger   *slog.Logger
}

func NewContactHandler(contacts ContactManager, logger *slog.Logger) *ContactHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactHandler{contacts: contacts, logger: logger}
}

// ContactRouter registers contact routes. authMiddleware guards every route;
// listLimiter, when non-nil, throttles the paginated listing.
func ContactRouter(r chi.Router, h *ContactHandler, authMiddleware, listLimiter func(http.Handler) http.Handler) {
	r.Get("/api/healthchecker", h.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		list := r.With()
		if listLimiter != nil {
			list = r.With(listLimiter)
		}
		list.Get("/", h.List)

		r.Get("/contacts", h.ListAll)
		r.Get("/contacts/HB", h.UpcomingBirthdays)
		r.Post("/contact", h.Create)
		r.Put("/contact/{"+contactParam+"}", h.Update)
		r.Get("/contact/{"+contactParam+"}", h.Search)
		r.Delete("/contact/{"+contactParam+"}", h.Delete)
	})
}

// ContactRequest is the body of contact create and update calls.
type ContactRequest struct {
	Name     string      `json:"name" validate:"required,max=50"`
	Surname  string      `json:"surname" validate:"required,max=50"`
	Email    string      `json:"email" validate:"required,email"`
	Phone    string      `json:"phone" validate:"required,max=30"`
	Birthday *types.Date `json:"birthday" validate:"required"`
	Notes    string      `json:"notes" validate:"max=2000"`
}

func (req ContactRequest) toContact(userID int) types.Contact {
	return types.Contact{
		UserID:   userID,
		Name:     strings.TrimSpace(req.Name),
		Surname:  strings.TrimSpace(req.Surname),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Birthday: *req.Birthday,
		Notes:    req.Notes,
	}
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	skip, err := parseNonNegativeQuery(r, "skip", 0)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	limit, err := parseNonNegativeQuery(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	contacts, err := h.contacts.List(r.Context(), user.ID, skip, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *ContactHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	contacts, err := h.contacts.ListAll(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req ContactRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.contacts.Create(r.Context(), req.toContact(user.ID))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, contactParam)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid contact id")
		return
	}
	var req ContactRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	contact := req.toContact(user.ID)
	contact.ID = id
	updated, err := h.contacts.Update(r.Context(), contact)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Search matches the path segment against name, surname and email.
func (h *ContactHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	contacts, err := h.contacts.Search(r.Context(), user.ID, chi.URLParam(r, contactParam))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, contactParam)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid contact id")
		return
	}
	if err := h.contacts.Delete(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: services.MsgContactDeleted})
}

func (h *ContactHandler) UpcomingBirthdays(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	contacts, err := h.contacts.UpcomingBirthdays(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// HealthCheck reports whether the database answers.
func (h *ContactHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.contacts.Healthy(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Error connecting to the database")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Welcome to Contacts Book!"})
}

func (h *ContactHandler) requireUser(w http.ResponseWriter, r *http.Request) (types.User, bool) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, services.MsgInvalidCredentials)
	}
	return user, ok
}
