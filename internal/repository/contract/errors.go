package contract

import "errors"

// ErrUniqueViolation is returned when an insert hits a unique constraint.
var ErrUniqueViolation = errors.New("unique constraint violation")
