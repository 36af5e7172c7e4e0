package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/contactsbook/apiserver/types"
)

const contactColumns = `id, user_id, name, surname, email, phone, birthday, notes, created_at, updated_at`

// ContactRepository handles persistence for contacts. Every query is scoped
// to the owning user.
type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) List(ctx context.Context, userID, offset, limit int) ([]types.Contact, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 100
	}

	const query = `SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1
		ORDER BY id
		OFFSET $2 LIMIT $3`
	return r.queryContacts(ctx, query, userID, offset, limit)
}

func (r *ContactRepository) ListAll(ctx context.Context, userID int) ([]types.Contact, error) {
	const query = `SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1
		ORDER BY id`
	return r.queryContacts(ctx, query, userID)
}

// Search matches term case-insensitively against name, surname and email.
func (r *ContactRepository) Search(ctx context.Context, userID int, term string) ([]types.Contact, error) {
	const query = `SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1
		  AND (name ILIKE $2 OR surname ILIKE $2 OR email ILIKE $2)
		ORDER BY id`
	return r.queryContacts(ctx, query, userID, "%"+escapeLike(term)+"%")
}

func (r *ContactRepository) Get(ctx context.Context, userID, id int) (types.Contact, error) {
	const query = `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1 AND id = $2`
	return scanContact(r.db.QueryRowContext(ctx, query, userID, id))
}

// FindByEmailOrPhone returns a contact of the user sharing email or phone.
func (r *ContactRepository) FindByEmailOrPhone(ctx context.Context, userID int, email, phone string) (types.Contact, error) {
	const query = `SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1 AND (email = $2 OR phone = $3)
		ORDER BY id
		LIMIT 1`
	return scanContact(r.db.QueryRowContext(ctx, query, userID, email, phone))
}

func (r *ContactRepository) Create(ctx context.Context, contact types.Contact) (types.Contact, error) {
	now := time.Now()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	const query = `
		INSERT INTO contacts (user_id, name, surname, email, phone, birthday, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		contact.UserID,
		contact.Name,
		contact.Surname,
		contact.Email,
		contact.Phone,
		contact.Birthday.Time,
		contact.Notes,
		contact.CreatedAt,
		contact.UpdatedAt,
	).Scan(&contact.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Contact{}, contactConflict(err)
		}
		return types.Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return contact, nil
}

func (r *ContactRepository) Update(ctx context.Context, contact types.Contact) (types.Contact, error) {
	contact.UpdatedAt = time.Now()

	const query = `
		UPDATE contacts
		SET name = $1,
			surname = $2,
			email = $3,
			phone = $4,
			birthday = $5,
			notes = $6,
			updated_at = $7
		WHERE id = $8 AND user_id = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		contact.Name,
		contact.Surname,
		contact.Email,
		contact.Phone,
		contact.Birthday.Time,
		contact.Notes,
		contact.UpdatedAt,
		contact.ID,
		contact.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Contact{}, contactConflict(err)
		}
		return types.Contact{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Contact{}, err
	}
	if affected == 0 {
		return types.Contact{}, ErrNotFound
	}
	return contact, nil
}

func (r *ContactRepository) Delete(ctx context.Context, userID, id int) error {
	const query = `DELETE FROM contacts WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping verifies database connectivity.
func (r *ContactRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}

func (r *ContactRepository) queryContacts(ctx context.Context, query string, args ...any) ([]types.Contact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]types.Contact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (types.Contact, error) {
	var contact types.Contact
	var birthday time.Time
	err := row.Scan(
		&contact.ID,
		&contact.UserID,
		&contact.Name,
		&contact.Surname,
		&contact.Email,
		&contact.Phone,
		&birthday,
		&contact.Notes,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Contact{}, ErrNotFound
		}
		return types.Contact{}, err
	}
	contact.Birthday = types.Date{Time: birthday}
	return contact, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
