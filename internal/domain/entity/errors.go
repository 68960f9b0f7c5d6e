package entity

import "errors"

var (
	// ErrValidation is returned when a required field is missing or malformed, or an enum is violated
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when no document exists with the given id
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional write sees a different version than expected
	ErrConflict = errors.New("version conflict")

	// ErrForbidden is returned when the acting user may not perform the operation
	ErrForbidden = errors.New("forbidden")
)
