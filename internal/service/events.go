package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-presale/internal/clock"
	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/phase"
	"github.com/Shivanand-hulikatti/event-presale/internal/repository"
)

// MinRegistrationWindow is the shortest registration window an event may have.
const MinRegistrationWindow = 15 * time.Minute

// EventService is the event registry.
type EventService struct {
	events repository.EventRepository
	clock  clock.Source
}

// NewEventService constructs an EventService.
func NewEventService(events repository.EventRepository, src clock.Source) *EventService {
	return &EventService{events: events, clock: src}
}

// CreateEvent validates req and stores a new event with a fresh ID.
// The registration window may not start in the past.
func (s *EventService) CreateEvent(ctx context.Context, req model.EventRequest) (*model.Event, error) {
	now := s.clock.Now().UTC()
	if err := validateEvent(&req); err != nil {
		return nil, err
	}
	if req.RegistrationStartTime.Before(now) {
		return nil, invalidInput("registrationStartTime must not be in the past")
	}

	event := &model.Event{ID: uuid.NewString(), CreatedAt: now}
	applyEventRequest(event, req, now)
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// UpdateEvent replaces the editable fields of event id.
func (s *EventService) UpdateEvent(ctx context.Context, id string, req model.EventRequest) (*model.Event, error) {
	event, err := getEvent(ctx, s.events, id)
	if err != nil {
		return nil, err
	}
	if err := validateEvent(&req); err != nil {
		return nil, err
	}

	applyEventRequest(event, req, s.clock.Now().UTC())
	if err := s.events.Update(ctx, event); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func validateEvent(req *model.EventRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.Description == "" || req.RegistrationStartTime == nil || req.RegistrationEndTime == nil {
		return invalidInput("name, description, capacity, registrationStartTime and registrationEndTime are required")
	}
	if req.Capacity < 1 {
		return invalidInput("capacity must be at least 1")
	}
	start, end := *req.RegistrationStartTime, *req.RegistrationEndTime
	if !end.After(start) {
		return invalidInput("registrationEndTime must be after registrationStartTime")
	}
	if end.Sub(start) < MinRegistrationWindow {
		return invalidInput("registration window must be at least 15 minutes")
	}
	if req.SaleEndTime != nil {
		if req.SaleStartTime == nil {
			return invalidInput("saleEndTime requires saleStartTime")
		}
		if !req.SaleEndTime.After(*req.SaleStartTime) {
			return invalidInput("saleEndTime must be after saleStartTime")
		}
	}
	switch req.CountdownType {
	case "", model.CountdownDefault:
	case model.CountdownCustom:
		if req.CountdownStartTime == nil {
			return invalidInput("countdownStartTime is required for a custom countdown")
		}
	default:
		return invalidInput("countdownType must be default or custom")
	}
	if req.RoundDurationMs < 0 || req.RoundCapacity < 0 {
		return invalidInput("roundDuration and roundCapacity must not be negative")
	}
	return nil
}

func applyEventRequest(e *model.Event, req model.EventRequest, now time.Time) {
	e.Name = req.Name
	e.Description = req.Description
	e.Capacity = req.Capacity
	e.RegistrationStartTime = req.RegistrationStartTime.UTC()
	e.RegistrationEndTime = req.RegistrationEndTime.UTC()
	e.SaleStartTime = utcPtr(req.SaleStartTime)
	e.SaleEndTime = utcPtr(req.SaleEndTime)
	e.CountdownType = req.CountdownType
	e.CountdownStartTime = utcPtr(req.CountdownStartTime)
	e.RoundDurationMs = req.RoundDurationMs
	e.RoundCapacity = req.RoundCapacity
	e.UpdatedAt = now
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return getEvent(ctx, s.events, id)
}

// ListEvents returns every event, newest first.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListPublicEvents returns views of events whose registration has not ended.
func (s *EventService) ListPublicEvents(ctx context.Context) ([]model.EventView, error) {
	events, err := s.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]model.EventView, 0, len(events))
	for i := range events {
		if events[i].RegistrationEndTime.After(now) {
			views = append(views, View(&events[i], now))
		}
	}
	return views, nil
}

// GetPublicEvent returns the view of a single event.
func (s *EventService) GetPublicEvent(ctx context.Context, id string) (*model.EventView, error) {
	event, err := getEvent(ctx, s.events, id)
	if err != nil {
		return nil, err
	}
	v := View(event, s.clock.Now())
	return &v, nil
}

// View decorates e with the phases of its windows at now.
func View(e *model.Event, now time.Time) model.EventView {
	v := model.EventView{
		Event:             *e,
		RegistrationPhase: string(phase.Evaluate(now, e.RegistrationStartTime, e.RegistrationEndTime)),
	}
	if start, end, ok := e.ReleaseWindow(); ok {
		v.ReleasePhase = string(phase.Evaluate(now, start, end))
	}
	return v
}
