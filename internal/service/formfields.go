package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Shivanand-hulikatti/event-presale/internal/clock"
	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/repository"
)

const (
	fieldNameAvailable = "field name is available"
	fieldNameInUse     = "field name already exists"
)

// FormFieldService manages the admin-defined registration form.
type FormFieldService struct {
	fields repository.FormFieldRepository
	clock  clock.Source
}

// NewFormFieldService constructs a FormFieldService.
func NewFormFieldService(fields repository.FormFieldRepository, src clock.Source) *FormFieldService {
	return &FormFieldService{fields: fields, clock: src}
}

func validateFormField(req *model.FormFieldRequest) error {
	req.FieldLabel = strings.TrimSpace(req.FieldLabel)
	req.FieldName = model.NormalizeFieldName(req.FieldName)
	if req.FieldLabel == "" || req.FieldName == "" || req.FieldElement == "" {
		return invalidInput("field_label, field_name and field_element are required")
	}
	if !req.FieldElement.Valid() {
		return invalidInput(fmt.Sprintf("unknown field_element %q", req.FieldElement))
	}
	switch req.FieldElement {
	case model.ElementSelect, model.ElementRadio:
		if len(req.Options) == 0 {
			return invalidInput(fmt.Sprintf("%s fields need at least one option", req.FieldElement))
		}
	}
	return nil
}

func applyFormFieldRequest(f *model.FormField, req model.FormFieldRequest) {
	f.FieldLabel = req.FieldLabel
	f.FieldName = req.FieldName
	f.FieldElement = req.FieldElement
	f.FieldType = req.FieldType
	f.Placeholder = req.Placeholder
	f.Required = req.Required
	f.Options = req.Options
}

func mapFieldErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrFieldNameTaken):
		return ErrFieldNameTaken
	case errors.Is(err, repository.ErrNotFound):
		return ErrFormFieldNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// List returns the form in display order.
func (s *FormFieldService) List(ctx context.Context) ([]model.FormField, error) {
	fields, err := s.fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list form fields: %w", err)
	}
	return fields, nil
}

func (s *FormFieldService) Get(ctx context.Context, id string) (*model.FormField, error) {
	f, err := s.fields.GetByID(ctx, id)
	if err != nil {
		return nil, mapFieldErr("get form field", err)
	}
	return f, nil
}

// Create appends a new field at the end of the form.
func (s *FormFieldService) Create(ctx context.Context, req model.FormFieldRequest) (*model.FormField, error) {
	if err := validateFormField(&req); err != nil {
		return nil, err
	}
	existing, err := s.fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list form fields: %w", err)
	}
	order := 0
	for _, f := range existing {
		order = max(order, f.Order+1)
	}

	now := s.clock.Now().UTC()
	f := &model.FormField{ID: uuid.NewString(), Order: order, CreatedAt: now, UpdatedAt: now}
	applyFormFieldRequest(f, req)
	if err := s.fields.Create(ctx, f); err != nil {
		return nil, mapFieldErr("create form field", err)
	}
	log.Info().Str("field_id", f.ID).Str("field_name", f.FieldName).Msg("form field created")
	return f, nil
}

// Update replaces the editable attributes of field id. Order and creation
// time are kept.
func (s *FormFieldService) Update(ctx context.Context, id string, req model.FormFieldRequest) (*model.FormField, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateFormField(&req); err != nil {
		return nil, err
	}
	applyFormFieldRequest(f, req)
	f.UpdatedAt = s.clock.Now().UTC()
	if err := s.fields.Update(ctx, f); err != nil {
		return nil, mapFieldErr("update form field", err)
	}
	return f, nil
}

func (s *FormFieldService) Delete(ctx context.Context, id string) error {
	if err := s.fields.Delete(ctx, id); err != nil {
		return mapFieldErr("delete form field", err)
	}
	log.Info().Str("field_id", id).Msg("form field deleted")
	return nil
}

// Reorder assigns each listed field its position in items. IDs that no
// longer exist are ignored.
func (s *FormFieldService) Reorder(ctx context.Context, items []model.FieldOrderItem) error {
	if items == nil {
		return invalidInput("field order must be a list")
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if err := s.fields.Reorder(ctx, ids, s.clock.Now().UTC()); err != nil {
		return fmt.Errorf("reorder form fields: %w", err)
	}
	return nil
}

// CheckName reports whether name is free for a field other than req.ExcludeID.
func (s *FormFieldService) CheckName(ctx context.Context, req model.FieldNameCheckRequest) (model.FieldNameCheck, error) {
	name := model.NormalizeFieldName(req.FieldName)
	if name == "" {
		return model.FieldNameCheck{}, invalidInput("field_name is required")
	}
	fields, err := s.fields.List(ctx)
	if err != nil {
		return model.FieldNameCheck{}, fmt.Errorf("list form fields: %w", err)
	}
	for _, f := range fields {
		if f.FieldName == name && f.ID != req.ExcludeID {
			return model.FieldNameCheck{IsValid: false, Message: fieldNameInUse}, nil
		}
	}
	return model.FieldNameCheck{IsValid: true, Message: fieldNameAvailable}, nil
}
