package service

import "errors"

// Domain errors surfaced to handlers. Anything not matching one of these is
// an internal failure.
var (
	ErrEventNotFound = errors.New("event not found")

	// The registrant's email or ID number is already on the event's ledger.
	ErrDuplicateEmail    = errors.New("email already registered for this event")
	ErrDuplicateIDNumber = errors.New("id number already registered for this event")
	// The client-generated code is taken; the client should retry with a fresh one.
	ErrCodeCollision = errors.New("registration code already exists, please retry with a new code")

	// The code is unknown or belongs to another event.
	ErrInvalidCode        = errors.New("invalid registration code")
	ErrQuantityOutOfRange = errors.New("quantity must be between 1 and 4")

	ErrWindowClosed         = errors.New("window is not open")
	ErrInvalidInput         = errors.New("invalid input")
	ErrRegistrationNotFound = errors.New("registration not found")

	ErrFormFieldNotFound = errors.New("form field not found")
	ErrFieldNameTaken    = errors.New("field name already exists")
)

func invalidInput(msg string) error {
	return &inputError{msg: msg}
}

type inputError struct{ msg string }

func (e *inputError) Error() string        { return e.msg }
func (e *inputError) Is(target error) bool { return target == ErrInvalidInput }
