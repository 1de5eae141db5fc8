package repository

import "errors"

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Uniqueness violations. Every backend enforces these as constraints, not only
// as application-level checks.
var (
	ErrCodeTaken         = errors.New("registration code already exists")
	ErrDuplicateEmail    = errors.New("email already registered for this event")
	ErrDuplicateIDNumber = errors.New("id number already registered for this event")
	ErrOrderExists       = errors.New("order number already exists")
	ErrEventExists       = errors.New("event id already exists")
	ErrFieldNameTaken    = errors.New("field name already exists")
)
