package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-presale/internal/model"
)

// KVEventRepository persists events in a Store keyed by event ID.
type KVEventRepository struct {
	store Store[model.Event]
}

// NewKVEventRepository constructs a KVEventRepository.
func NewKVEventRepository(store Store[model.Event]) *KVEventRepository {
	return &KVEventRepository{store: store}
}

// EventKey extracts the store key of an event.
func EventKey(e model.Event) string { return e.ID }

func (r *KVEventRepository) Create(ctx context.Context, e *model.Event) error {
	if _, ok, err := r.store.Get(ctx, e.ID); err != nil {
		return fmt.Errorf("get event: %w", err)
	} else if ok {
		return ErrEventExists
	}
	if err := r.store.Set(ctx, e.ID, *e); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *KVEventRepository) Update(ctx context.Context, e *model.Event) error {
	if _, ok, err := r.store.Get(ctx, e.ID); err != nil {
		return fmt.Errorf("get event: %w", err)
	} else if !ok {
		return ErrNotFound
	}
	if err := r.store.Set(ctx, e.ID, *e); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (r *KVEventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// List returns all events ordered by creation time descending.
func (r *KVEventRepository) List(ctx context.Context) ([]model.Event, error) {
	events, err := r.store.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

// KVRegistrationRepository persists registrations in a Store keyed by code and
// keeps (event, email) and (event, id number) indexes in memory so that
// uniqueness checks are lookups rather than scans.
type KVRegistrationRepository struct {
	store Store[model.Registration]

	mu      sync.RWMutex
	byEmail map[string]string
	byID    map[string]string
}

// RegistrationKey extracts the store key of a registration.
func RegistrationKey(r model.Registration) string { return r.RegistrationCode }

// NewKVRegistrationRepository builds the identity indexes from the store's
// current contents.
func NewKVRegistrationRepository(ctx context.Context, store Store[model.Registration]) (*KVRegistrationRepository, error) {
	r := &KVRegistrationRepository{
		store:   store,
		byEmail: make(map[string]string),
		byID:    make(map[string]string),
	}
	regs, err := store.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}
	for _, reg := range regs {
		r.index(&reg)
	}
	return r, nil
}

func identityKey(eventID, value string) string {
	return eventID + "\x00" + value
}

func (r *KVRegistrationRepository) index(reg *model.Registration) {
	id := reg.UserData.Identity()
	if id.Email != "" {
		r.byEmail[identityKey(reg.EventID, id.Email)] = reg.RegistrationCode
	}
	if id.IDNumber != "" {
		r.byID[identityKey(reg.EventID, id.IDNumber)] = reg.RegistrationCode
	}
}

func (r *KVRegistrationRepository) unindex(reg *model.Registration) {
	id := reg.UserData.Identity()
	emailKey := identityKey(reg.EventID, id.Email)
	if r.byEmail[emailKey] == reg.RegistrationCode {
		delete(r.byEmail, emailKey)
	}
	idKey := identityKey(reg.EventID, id.IDNumber)
	if r.byID[idKey] == reg.RegistrationCode {
		delete(r.byID, idKey)
	}
}

func (r *KVRegistrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reason := r.duplicate(reg.EventID, reg.UserData.Identity()); reason != model.DuplicateNone {
		return reasonErr(reason)
	}
	if _, ok, err := r.store.Get(ctx, reg.RegistrationCode); err != nil {
		return fmt.Errorf("get registration: %w", err)
	} else if ok {
		return ErrCodeTaken
	}

	if err := r.store.Set(ctx, reg.RegistrationCode, *reg); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	r.index(reg)
	return nil
}

func reasonErr(reason model.DuplicateReason) error {
	if reason == model.DuplicateEmail {
		return ErrDuplicateEmail
	}
	return ErrDuplicateIDNumber
}

func (r *KVRegistrationRepository) duplicate(eventID string, id model.Identity) model.DuplicateReason {
	if id.Email != "" {
		if _, ok := r.byEmail[identityKey(eventID, id.Email)]; ok {
			return model.DuplicateEmail
		}
	}
	if id.IDNumber != "" {
		if _, ok := r.byID[identityKey(eventID, id.IDNumber)]; ok {
			return model.DuplicateIDNumber
		}
	}
	return model.DuplicateNone
}

func (r *KVRegistrationRepository) FindDuplicate(_ context.Context, eventID string, id model.Identity) (model.DuplicateReason, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.duplicate(eventID, id), nil
}

func (r *KVRegistrationRepository) GetByCode(ctx context.Context, code string) (*model.Registration, error) {
	reg, ok, err := r.store.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &reg, nil
}

// List returns registrations newest first.
func (r *KVRegistrationRepository) List(ctx context.Context, eventID string) ([]model.Registration, error) {
	regs, err := r.store.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	out := regs[:0]
	for _, reg := range regs {
		if eventID == "" || reg.EventID == eventID {
			out = append(out, reg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RegistrationTime.After(out[j].RegistrationTime)
	})
	return out, nil
}

func (r *KVRegistrationRepository) Delete(ctx context.Context, code string) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok, err := r.store.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	if err := r.store.Delete(ctx, code); err != nil {
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	r.unindex(&reg)
	return &reg, nil
}

// KVOrderRepository persists orders in a Store keyed by order number.
type KVOrderRepository struct {
	mu    sync.Mutex
	store Store[model.Order]
}

// OrderKey extracts the store key of an order.
func OrderKey(o model.Order) string { return o.OrderNumber }

// NewKVOrderRepository constructs a KVOrderRepository.
func NewKVOrderRepository(store Store[model.Order]) *KVOrderRepository {
	return &KVOrderRepository{store: store}
}

func (r *KVOrderRepository) Create(ctx context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok, err := r.store.Get(ctx, o.OrderNumber); err != nil {
		return fmt.Errorf("get order: %w", err)
	} else if ok {
		return ErrOrderExists
	}
	if err := r.store.Set(ctx, o.OrderNumber, *o); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// List returns orders for eventID (all when empty), newest first.
func (r *KVOrderRepository) List(ctx context.Context, eventID string) ([]model.Order, error) {
	orders, err := r.store.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := orders[:0]
	for _, o := range orders {
		if eventID == "" || o.EventID == eventID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PurchaseTime.After(out[j].PurchaseTime)
	})
	return out, nil
}

// KVFormFieldRepository persists form fields in a Store keyed by field ID.
// Name uniqueness is checked under mu, which serialises all writes.
type KVFormFieldRepository struct {
	mu    sync.Mutex
	store Store[model.FormField]
}

// FormFieldKey extracts the store key of a form field.
func FormFieldKey(f model.FormField) string { return f.ID }

// NewKVFormFieldRepository constructs a KVFormFieldRepository.
func NewKVFormFieldRepository(store Store[model.FormField]) *KVFormFieldRepository {
	return &KVFormFieldRepository{store: store}
}

func (r *KVFormFieldRepository) nameTaken(ctx context.Context, name, exceptID string) (bool, error) {
	fields, err := r.store.Values(ctx)
	if err != nil {
		return false, fmt.Errorf("list form fields: %w", err)
	}
	for _, f := range fields {
		if f.ID != exceptID && f.FieldName == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *KVFormFieldRepository) Create(ctx context.Context, f *model.FormField) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if taken, err := r.nameTaken(ctx, f.FieldName, f.ID); err != nil {
		return err
	} else if taken {
		return ErrFieldNameTaken
	}
	if err := r.store.Set(ctx, f.ID, *f); err != nil {
		return fmt.Errorf("insert form field: %w", err)
	}
	return nil
}

func (r *KVFormFieldRepository) Update(ctx context.Context, f *model.FormField) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok, err := r.store.Get(ctx, f.ID); err != nil {
		return fmt.Errorf("get form field: %w", err)
	} else if !ok {
		return ErrNotFound
	}
	if taken, err := r.nameTaken(ctx, f.FieldName, f.ID); err != nil {
		return err
	} else if taken {
		return ErrFieldNameTaken
	}
	if err := r.store.Set(ctx, f.ID, *f); err != nil {
		return fmt.Errorf("update form field: %w", err)
	}
	return nil
}

func (r *KVFormFieldRepository) GetByID(ctx context.Context, id string) (*model.FormField, error) {
	f, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get form field: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (r *KVFormFieldRepository) List(ctx context.Context) ([]model.FormField, error) {
	fields, err := r.store.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("list form fields: %w", err)
	}
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Order != fields[j].Order {
			return fields[i].Order < fields[j].Order
		}
		return fields[i].CreatedAt.Before(fields[j].CreatedAt)
	})
	return fields, nil
}

func (r *KVFormFieldRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok, err := r.store.Get(ctx, id); err != nil {
		return fmt.Errorf("get form field: %w", err)
	} else if !ok {
		return ErrNotFound
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete form field: %w", err)
	}
	return nil
}

func (r *KVFormFieldRepository) Reorder(ctx context.Context, ids []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, id := range ids {
		f, ok, err := r.store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get form field: %w", err)
		}
		if !ok {
			continue
		}
		f.Order = i
		f.UpdatedAt = at
		if err := r.store.Set(ctx, id, f); err != nil {
			return fmt.Errorf("reorder form field: %w", err)
		}
	}
	return nil
}
