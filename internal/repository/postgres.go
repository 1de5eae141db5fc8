package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-presale/internal/model"
)

// Constraint names declared in database.Schema. Unique violations are mapped
// back to domain errors by name.
const (
	ConstraintEventPK          = "events_pkey"
	ConstraintRegistrationPK   = "registrations_pkey"
	ConstraintRegistrationMail = "registrations_event_email_key"
	ConstraintRegistrationID   = "registrations_event_id_number_key"
	ConstraintOrderPK          = "orders_pkey"
	ConstraintFormFieldName    = "form_fields_name_key"
)

const pgUniqueViolation = "23505"

// uniqueViolation maps a Postgres unique violation to its domain error, or
// returns nil when err is something else.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case ConstraintRegistrationMail:
		return ErrDuplicateEmail
	case ConstraintRegistrationID:
		return ErrDuplicateIDNumber
	case ConstraintRegistrationPK:
		return ErrCodeTaken
	case ConstraintOrderPK:
		return ErrOrderExists
	case ConstraintEventPK:
		return ErrEventExists
	case ConstraintFormFieldName:
		return ErrFieldNameTaken
	}
	return nil
}

// PGEventRepository handles persistence for events.
type PGEventRepository struct {
	db *pgxpool.Pool
}

// NewPGEventRepository constructs a PGEventRepository.
func NewPGEventRepository(db *pgxpool.Pool) *PGEventRepository {
	return &PGEventRepository{db: db}
}

const eventColumns = `id, name, description, capacity, registration_start, registration_end,
	sale_start, sale_end, countdown_type, countdown_start, round_duration_ms, round_capacity,
	created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	var countdownType string
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.Capacity, &e.RegistrationStartTime, &e.RegistrationEndTime,
		&e.SaleStartTime, &e.SaleEndTime, &countdownType, &e.CountdownStartTime, &e.RoundDurationMs, &e.RoundCapacity,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.CountdownType = model.CountdownType(countdownType)
	return &e, nil
}

func (r *PGEventRepository) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.Name, e.Description, e.Capacity, e.RegistrationStartTime, e.RegistrationEndTime,
		e.SaleStartTime, e.SaleEndTime, string(e.CountdownType), e.CountdownStartTime, e.RoundDurationMs, e.RoundCapacity,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *PGEventRepository) Update(ctx context.Context, e *model.Event) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET name = $2, description = $3, capacity = $4,
		 registration_start = $5, registration_end = $6, sale_start = $7, sale_end = $8,
		 countdown_type = $9, countdown_start = $10, round_duration_ms = $11, round_capacity = $12,
		 updated_at = $13
		 WHERE id = $1`,
		e.ID, e.Name, e.Description, e.Capacity,
		e.RegistrationStartTime, e.RegistrationEndTime, e.SaleStartTime, e.SaleEndTime,
		string(e.CountdownType), e.CountdownStartTime, e.RoundDurationMs, e.RoundCapacity,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns a single event or ErrNotFound.
func (r *PGEventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// List returns all events ordered by creation time descending.
func (r *PGEventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// PGRegistrationRepository handles persistence for registrations. Uniqueness
// of (event_id, email_norm), (event_id, id_number_norm) and code is enforced by
// table constraints, so concurrent inserts from several API instances cannot
// both succeed.
type PGRegistrationRepository struct {
	db *pgxpool.Pool
}

// NewPGRegistrationRepository constructs a PGRegistrationRepository.
func NewPGRegistrationRepository(db *pgxpool.Pool) *PGRegistrationRepository {
	return &PGRegistrationRepository{db: db}
}

func (r *PGRegistrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	id := reg.UserData.Identity()
	_, err := r.db.Exec(ctx,
		`INSERT INTO registrations (code, event_id, email_norm, id_number_norm, user_data, registration_time)
		 VALUES ($1, $2, $3, NULLIF($4::text, ''), $5, $6)`,
		reg.RegistrationCode, reg.EventID, id.Email, id.IDNumber, reg.UserData, reg.RegistrationTime,
	)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	if err := row.Scan(&reg.RegistrationCode, &reg.EventID, &reg.UserData, &reg.RegistrationTime); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *PGRegistrationRepository) GetByCode(ctx context.Context, code string) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT code, event_id, user_data, registration_time FROM registrations WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (r *PGRegistrationRepository) FindDuplicate(ctx context.Context, eventID string, id model.Identity) (model.DuplicateReason, error) {
	var emailHit, idHit bool
	err := r.db.QueryRow(ctx,
		`SELECT
		   EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND $2 <> '' AND email_norm = $2),
		   EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND $3 <> '' AND id_number_norm = $3)`,
		eventID, id.Email, id.IDNumber,
	).Scan(&emailHit, &idHit)
	if err != nil {
		return model.DuplicateNone, fmt.Errorf("check duplicate: %w", err)
	}
	switch {
	case emailHit:
		return model.DuplicateEmail, nil
	case idHit:
		return model.DuplicateIDNumber, nil
	}
	return model.DuplicateNone, nil
}

// List returns registrations for an event (all when eventID is empty), newest first.
func (r *PGRegistrationRepository) List(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT code, event_id, user_data, registration_time
		 FROM registrations
		 WHERE $1 = '' OR event_id = $1
		 ORDER BY registration_time DESC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func (r *PGRegistrationRepository) Delete(ctx context.Context, code string) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`DELETE FROM registrations WHERE code = $1
		 RETURNING code, event_id, user_data, registration_time`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	return reg, nil
}

// PGOrderRepository handles persistence for orders.
type PGOrderRepository struct {
	db *pgxpool.Pool
}

// NewPGOrderRepository constructs a PGOrderRepository.
func NewPGOrderRepository(db *pgxpool.Pool) *PGOrderRepository {
	return &PGOrderRepository{db: db}
}

func (r *PGOrderRepository) Create(ctx context.Context, o *model.Order) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO orders (order_number, event_id, registration_code, quantity, purchase_time, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		o.OrderNumber, o.EventID, o.RegistrationCode, o.Quantity, o.PurchaseTime, string(o.Status),
	)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *PGOrderRepository) List(ctx context.Context, eventID string) ([]model.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT order_number, event_id, registration_code, quantity, purchase_time, status
		 FROM orders
		 WHERE $1 = '' OR event_id = $1
		 ORDER BY purchase_time DESC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var status string
		if err := rows.Scan(&o.OrderNumber, &o.EventID, &o.RegistrationCode, &o.Quantity, &o.PurchaseTime, &status); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// PGFormFieldRepository handles persistence for registration form fields.
// Name uniqueness is the form_fields_name_key constraint.
type PGFormFieldRepository struct {
	db *pgxpool.Pool
}

// NewPGFormFieldRepository constructs a PGFormFieldRepository.
func NewPGFormFieldRepository(db *pgxpool.Pool) *PGFormFieldRepository {
	return &PGFormFieldRepository{db: db}
}

const formFieldColumns = `id, field_label, field_name, field_element, field_type, placeholder,
	required, options, sort_order, created_at, updated_at`

func scanFormField(row pgx.Row) (*model.FormField, error) {
	var f model.FormField
	var element string
	err := row.Scan(
		&f.ID, &f.FieldLabel, &f.FieldName, &element, &f.FieldType, &f.Placeholder,
		&f.Required, &f.Options, &f.Order, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.FieldElement = model.FieldElement(element)
	return &f, nil
}

func (r *PGFormFieldRepository) Create(ctx context.Context, f *model.FormField) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO form_fields (`+formFieldColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		f.ID, f.FieldLabel, f.FieldName, string(f.FieldElement), f.FieldType, f.Placeholder,
		f.Required, f.Options, f.Order, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert form field: %w", err)
	}
	return nil
}

func (r *PGFormFieldRepository) Update(ctx context.Context, f *model.FormField) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE form_fields SET field_label = $2, field_name = $3, field_element = $4,
		 field_type = $5, placeholder = $6, required = $7, options = $8, updated_at = $9
		 WHERE id = $1`,
		f.ID, f.FieldLabel, f.FieldName, string(f.FieldElement),
		f.FieldType, f.Placeholder, f.Required, f.Options, f.UpdatedAt,
	)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update form field: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGFormFieldRepository) GetByID(ctx context.Context, id string) (*model.FormField, error) {
	f, err := scanFormField(r.db.QueryRow(ctx, `SELECT `+formFieldColumns+` FROM form_fields WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get form field: %w", err)
	}
	return f, nil
}

func (r *PGFormFieldRepository) List(ctx context.Context) ([]model.FormField, error) {
	rows, err := r.db.Query(ctx, `SELECT `+formFieldColumns+` FROM form_fields ORDER BY sort_order, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list form fields: %w", err)
	}
	defer rows.Close()

	var fields []model.FormField
	for rows.Next() {
		f, err := scanFormField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form field: %w", err)
		}
		fields = append(fields, *f)
	}
	return fields, rows.Err()
}

func (r *PGFormFieldRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM form_fields WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete form field: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder applies the whole ordering in one transaction.
func (r *PGFormFieldRepository) Reorder(ctx context.Context, ids []string, at time.Time) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for i, id := range ids {
			if _, err := tx.Exec(ctx,
				`UPDATE form_fields SET sort_order = $2, updated_at = $3 WHERE id = $1`, id, i, at); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reorder form fields: %w", err)
	}
	return nil
}
