package types

import "time"

// User represents an account in the contacts book.
// It contains identity, confirmation state, and the active refresh token.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the display name chosen at signup.
	Username string `json:"username" db:"username"`

	// Email is the user's unique login identifier.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt digest of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Avatar is the URL of the user's avatar image. Empty when none
	// could be resolved.
	Avatar string `json:"avatar" db:"avatar"`

	// Confirmed reports whether the email address has been verified.
	// It flips to true exactly once through the confirmation flow.
	Confirmed bool `json:"confirmed" db:"confirmed"`

	// RefreshToken is the currently valid refresh token, or nil when the
	// user has no active session (never logged in, logged out, or revoked).
	RefreshToken *string `json:"-" db:"refresh_token"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
