package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/contactsbook/apiserver/internal/store"
	"github.com/contactsbook/apiserver/types"
)

const (
	MsgNotFound        = "NOT FOUND"
	MsgContactEmail    = "Contact with this email already exists"
	MsgContactPhone    = "Contact with this phone already exists"
	MsgContactDeleted  = "Contact deleted successfully"
	defaultContactPage = 100
	maxContactPage     = 1000

	// BirthdayWindow is how far ahead UpcomingBirthdays looks.
	BirthdayWindow = 7 * 24 * time.Hour
)

// ContactRepository defines persistence operations for contacts.
type ContactRepository interface {
	List(ctx context.Context, userID, offset, limit int) ([]types.Contact, error)
	ListAll(ctx context.Context, userID int) ([]types.Contact, error)
	Search(ctx context.Context, userID int, term string) ([]types.Contact, error)
	Get(ctx context.Context, userID, id int) (types.Contact, error)
	FindByEmailOrPhone(ctx context.Context, userID int, email, phone string) (types.Contact, error)
	Create(ctx context.Context, contact types.Contact) (types.Contact, error)
	Update(ctx context.Context, contact types.Contact) (types.Contact, error)
	Delete(ctx context.Context, userID, id int) error
	Ping(ctx context.Context) error
}

// ContactService encapsulates contact use-cases. Every call is scoped to
// the owner's user ID.
type ContactService struct {
	repo   ContactRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewContactService(repo ContactRepository, logger *slog.Logger) *ContactService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactService{repo: repo, logger: logger, now: time.Now}
}

func (s *ContactService) List(ctx context.Context, userID, skip, limit int) ([]types.Contact, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultContactPage
	}
	if limit > maxContactPage {
		limit = maxContactPage
	}
	contacts, err := s.repo.List(ctx, userID, skip, limit)
	if err != nil {
		return nil, s.internal(ctx, "list contacts", err)
	}
	return contacts, nil
}

func (s *ContactService) ListAll(ctx context.Context, userID int) ([]types.Contact, error) {
	contacts, err := s.repo.ListAll(ctx, userID)
	if err != nil {
		return nil, s.internal(ctx, "list contacts", err)
	}
	return contacts, nil
}

// Search returns contacts whose name, surname or email contains term.
// No match is reported as not found.
func (s *ContactService) Search(ctx context.Context, userID int, term string) ([]types.Contact, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, notFound(MsgNotFound)
	}
	contacts, err := s.repo.Search(ctx, userID, term)
	if err != nil {
		return nil, s.internal(ctx, "search contacts", err)
	}
	if len(contacts) == 0 {
		return nil, notFound(MsgNotFound)
	}
	return contacts, nil
}

// Create adds a contact unless the owner already has one with the same
// email or phone.
func (s *ContactService) Create(ctx context.Context, contact types.Contact) (types.Contact, error) {
	existing, err := s.repo.FindByEmailOrPhone(ctx, contact.UserID, contact.Email, contact.Phone)
	switch {
	case err == nil:
		return types.Contact{}, duplicateContact(existing, contact)
	case !errors.Is(err, store.ErrNotFound):
		return types.Contact{}, s.internal(ctx, "check contact", err)
	}

	created, err := s.repo.Create(ctx, contact)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Contact{}, storeConflict(err)
		}
		return types.Contact{}, s.internal(ctx, "create contact", err)
	}
	return created, nil
}

func (s *ContactService) Update(ctx context.Context, contact types.Contact) (types.Contact, error) {
	existing, err := s.repo.FindByEmailOrPhone(ctx, contact.UserID, contact.Email, contact.Phone)
	switch {
	case err == nil && existing.ID != contact.ID:
		return types.Contact{}, duplicateContact(existing, contact)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return types.Contact{}, s.internal(ctx, "check contact", err)
	}

	updated, err := s.repo.Update(ctx, contact)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.Contact{}, notFound(MsgNotFound)
		case errors.Is(err, store.ErrConflict):
			return types.Contact{}, storeConflict(err)
		}
		return types.Contact{}, s.internal(ctx, "update contact", err)
	}
	return updated, nil
}

func (s *ContactService) Delete(ctx context.Context, userID, id int) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(MsgNotFound)
		}
		return s.internal(ctx, "delete contact", err)
	}
	return nil
}

// UpcomingBirthdays returns contacts whose next birthday falls within
// BirthdayWindow of today, soonest first.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, userID int) ([]types.Contact, error) {
	contacts, err := s.repo.ListAll(ctx, userID)
	if err != nil {
		return nil, s.internal(ctx, "list contacts", err)
	}
	return upcomingBirthdays(contacts, s.now(), BirthdayWindow), nil
}

// Healthy reports whether the database answers.
func (s *ContactService) Healthy(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return s.internal(ctx, "database health check", err)
	}
	return nil
}

func (s *ContactService) internal(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, op+" failed", "error", err)
	return internal(err)
}

func duplicateContact(existing, candidate types.Contact) error {
	if strings.EqualFold(existing.Email, candidate.Email) {
		return conflict(MsgContactEmail)
	}
	return conflict(MsgContactPhone)
}

// storeConflict names the column behind a unique violation that slipped
// past the duplicate check.
func storeConflict(err error) error {
	if errors.Is(err, store.ErrDuplicatePhone) {
		return conflict(MsgContactPhone)
	}
	return conflict(MsgContactEmail)
}
