// Package repository implements persistence for events, registrations,
// orders and registration form fields. Two families of backends exist: KV-backed repositories over an
// abstract Store (in-memory or JSON-file), and pgx-backed Postgres
// repositories with real unique constraints.
package repository

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/event-presale/internal/model"
)

// EventRepository is the event registry read/write contract.
type EventRepository interface {
	Create(ctx context.Context, e *model.Event) error
	Update(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
}

// RegistrationRepository stores registrations keyed by code and indexed by
// (event, email) and (event, id number).
type RegistrationRepository interface {
	// Create inserts reg, failing with ErrDuplicateEmail, ErrDuplicateIDNumber
	// or ErrCodeTaken when a uniqueness constraint would be violated.
	Create(ctx context.Context, reg *model.Registration) error
	GetByCode(ctx context.Context, code string) (*model.Registration, error)
	// FindDuplicate reports the first identity field already registered for
	// eventID, checking email before id number. Empty fields are skipped.
	FindDuplicate(ctx context.Context, eventID string, id model.Identity) (model.DuplicateReason, error)
	// List returns registrations for eventID, or all when eventID is empty.
	List(ctx context.Context, eventID string) ([]model.Registration, error)
	Delete(ctx context.Context, code string) (*model.Registration, error)
}

// OrderRepository stores completed purchases.
type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	List(ctx context.Context, eventID string) ([]model.Order, error)
}

// FormFieldRepository stores the admin-defined registration form. Field names
// are unique across all fields.
type FormFieldRepository interface {
	// Create inserts f, failing with ErrFieldNameTaken when its name is in use.
	Create(ctx context.Context, f *model.FormField) error
	// Update replaces f, failing with ErrNotFound or ErrFieldNameTaken.
	Update(ctx context.Context, f *model.FormField) error
	GetByID(ctx context.Context, id string) (*model.FormField, error)
	// List returns all fields by order, then creation time.
	List(ctx context.Context) ([]model.FormField, error)
	Delete(ctx context.Context, id string) error
	// Reorder sets each listed field's order to its index. Unknown IDs are
	// skipped.
	Reorder(ctx context.Context, ids []string, at time.Time) error
}
