package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/contactsbook/apiserver/types"
)

const userColumns = `id, username, email, password_hash, avatar, confirmed, refresh_token, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Create inserts a new user. A duplicate email yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (username, email, password_hash, avatar, confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.PasswordHash,
		nullString(user.Avatar),
		user.Confirmed,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrConflict
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SetRefreshToken stores token as the user's active refresh token; nil clears it.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID int, token *string) error {
	const query = `UPDATE users SET refresh_token = $1, updated_at = $2 WHERE id = $3`
	var value sql.NullString
	if token != nil {
		value = sql.NullString{String: *token, Valid: true}
	}
	return r.execOne(ctx, query, value, time.Now(), userID)
}

func (r *UserRepository) SetConfirmed(ctx context.Context, email string) error {
	const query = `UPDATE users SET confirmed = TRUE, updated_at = $1 WHERE email = $2`
	return r.execOne(ctx, query, time.Now(), email)
}

// SetAvatar updates the avatar URL and returns the updated user.
func (r *UserRepository) SetAvatar(ctx context.Context, email, url string) (types.User, error) {
	const query = `
		UPDATE users
		SET avatar = $1,
			updated_at = $2
		WHERE email = $3
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, nullString(url), time.Now(), email))
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
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

func scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	var avatar, refreshToken sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&avatar,
		&user.Confirmed,
		&refreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.Avatar = avatar.String
	if refreshToken.Valid {
		token := refreshToken.String
		user.RefreshToken = &token
	}
	return user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
