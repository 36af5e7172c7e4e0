package auth

import "errors"

var (
	// ErrInvalidToken is returned when a token is malformed or its signature does not verify.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpired is returned when a token is past its expiry.
	ErrExpired = errors.New("token expired")

	// ErrWrongScope is returned when a valid token is presented for an operation
	// its scope does not allow.
	ErrWrongScope = errors.New("invalid scope for token")

	// ErrInvalidEmailToken wraps every failure to decode an email-verification token.
	ErrInvalidEmailToken = errors.New("invalid token for email verification")

	// ErrMissingSubject is returned when a token carries no subject.
	ErrMissingSubject = errors.New("missing subject")

	// ErrConfig is returned for an unusable codec configuration.
	ErrConfig = errors.New("invalid auth config")
)
