package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("already exists")

// Contact uniqueness violations. Both match ErrConflict.
var (
	ErrDuplicateEmail = fmt.Errorf("%w: contact email", ErrConflict)
	ErrDuplicatePhone = fmt.Errorf("%w: contact phone", ErrConflict)
)

const (
	uniqueViolation = pq.ErrorCode("23505")

	contactEmailConstraint = "contacts_user_email_key"
	contactPhoneConstraint = "contacts_user_phone_key"
)

// contactConflict maps a unique violation on contacts to the error naming
// the duplicated column.
func contactConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case contactEmailConstraint:
			return ErrDuplicateEmail
		case contactPhoneConstraint:
			return ErrDuplicatePhone
		}
	}
	return ErrConflict
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
