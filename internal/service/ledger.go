// Package service implements the registration ledger, purchase admission,
// the event registry and the admin read models on top of the repository
// layer. Every time-dependent decision reads the injected clock.Source.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Shivanand-hulikatti/event-presale/internal/clock"
	"github.com/Shivanand-hulikatti/event-presale/internal/metrics"
	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/notify"
	"github.com/Shivanand-hulikatti/event-presale/internal/phase"
	"github.com/Shivanand-hulikatti/event-presale/internal/repository"
)

const defaultPublishTimeout = 3 * time.Second

// Options carries the optional collaborators shared by Ledger and Admission.
type Options struct {
	Publisher notify.Publisher
	Metrics   *metrics.Metrics
	// EnforceTimeWindows rejects registrations outside the registration window
	// and purchases outside the release window.
	EnforceTimeWindows bool
	PublishTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Publisher == nil {
		o.Publisher = notify.Noop{}
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = defaultPublishTimeout
	}
	return o
}

// Ledger is the authoritative registration store. It serialises each
// check-then-insert on the event and the code so two concurrent attempts for
// the same identity or code cannot both succeed, and relies on the
// repository's own constraints across processes.
type Ledger struct {
	events repository.EventRepository
	regs   repository.RegistrationRepository
	clock  clock.Source
	locks  *keyLock
	opts   Options
}

// NewLedger constructs a Ledger.
func NewLedger(
	events repository.EventRepository,
	regs repository.RegistrationRepository,
	src clock.Source,
	opts Options,
) *Ledger {
	return &Ledger{
		events: events,
		regs:   regs,
		clock:  src,
		locks:  newKeyLock(),
		opts:   opts.withDefaults(),
	}
}

// Register records a registration. Checks run in order and the first failure
// wins: event exists, email unused for the event, id number unused for the
// event, code unused anywhere.
func (l *Ledger) Register(ctx context.Context, req model.RegisterRequest) (*model.Registration, error) {
	reg, err := l.register(ctx, req)
	l.opts.Metrics.ObserveRegistration(resultLabel(err))
	return reg, err
}

func (l *Ledger) register(ctx context.Context, req model.RegisterRequest) (*model.Registration, error) {
	req.EventID = strings.TrimSpace(req.EventID)
	req.RegistrationCode = strings.TrimSpace(req.RegistrationCode)
	req.UserData.Email = strings.TrimSpace(req.UserData.Email)
	req.UserData.IDNumber = strings.TrimSpace(req.UserData.IDNumber)
	if req.EventID == "" || req.RegistrationCode == "" || req.UserData.Email == "" {
		return nil, invalidInput("eventId, registrationCode and userData.email are required")
	}

	event, err := getEvent(ctx, l.events, req.EventID)
	if err != nil {
		return nil, err
	}
	now := l.clock.Now()
	if l.opts.EnforceTimeWindows && !phase.Open(now, event.RegistrationStartTime, event.RegistrationEndTime) {
		return nil, fmt.Errorf("%w: registration is %s", ErrWindowClosed,
			phase.Evaluate(now, event.RegistrationStartTime, event.RegistrationEndTime))
	}

	unlock := l.locks.Lock("event:"+event.ID, "code:"+req.RegistrationCode)
	defer unlock()

	reason, err := l.regs.FindDuplicate(ctx, event.ID, req.UserData.Identity())
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if reason != model.DuplicateNone {
		log.Info().Str("event_id", event.ID).Str("reason", string(reason)).Msg("registration rejected: duplicate identity")
		return nil, duplicateErr(reason)
	}

	if _, err := l.regs.GetByCode(ctx, req.RegistrationCode); err == nil {
		log.Info().Str("event_id", event.ID).Msg("registration rejected: code collision")
		return nil, ErrCodeCollision
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup code: %w", err)
	}

	reg := &model.Registration{
		EventID:          event.ID,
		RegistrationCode: req.RegistrationCode,
		UserData:         req.UserData,
		RegistrationTime: l.clock.Now().UTC(),
	}
	if err := l.regs.Create(ctx, reg); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrDuplicateEmail
		case errors.Is(err, repository.ErrDuplicateIDNumber):
			return nil, ErrDuplicateIDNumber
		case errors.Is(err, repository.ErrCodeTaken):
			return nil, ErrCodeCollision
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}

	log.Info().Str("event_id", event.ID).Str("code", reg.RegistrationCode).Msg("registration accepted")
	publish(ctx, l.opts, notify.QueueRegistrationCreated, notify.NewRegistrationCreated(event, reg))
	return reg, nil
}

// CheckDuplicate runs the same identity checks as Register without mutating
// anything. It is advisory; Register re-checks under the lock.
func (l *Ledger) CheckDuplicate(ctx context.Context, req model.CheckDuplicateRequest) (model.DuplicateCheck, error) {
	id := model.Identity{
		Email:    model.NormalizeEmail(req.Email),
		IDNumber: model.NormalizeIDNumber(req.IDNumber),
	}
	reason, err := l.regs.FindDuplicate(ctx, strings.TrimSpace(req.EventID), id)
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("check duplicate: %w", err)
	}
	return model.DuplicateCheck{IsDuplicate: reason != model.DuplicateNone, DuplicateReason: reason}, nil
}

// ValidateCode confirms code was issued for eventID and returns its owner.
// A code registered under another event is invalid here.
func (l *Ledger) ValidateCode(ctx context.Context, req model.ValidateCodeRequest) (*model.CodeOwner, error) {
	event, err := getEvent(ctx, l.events, strings.TrimSpace(req.EventID))
	if err != nil {
		return nil, err
	}
	reg, err := lookupCode(ctx, l.regs, event.ID, req.RegistrationCode)
	if err != nil {
		return nil, err
	}
	return &model.CodeOwner{Name: reg.UserData.Name, Email: reg.UserData.Email}, nil
}

// IsRegistered reports whether email holds a registration for eventID.
func (l *Ledger) IsRegistered(ctx context.Context, eventID, email string) (bool, error) {
	reason, err := l.regs.FindDuplicate(ctx, eventID, model.Identity{Email: model.NormalizeEmail(email)})
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return reason == model.DuplicateEmail, nil
}

func getEvent(ctx context.Context, events repository.EventRepository, id string) (*model.Event, error) {
	if id == "" {
		return nil, ErrEventNotFound
	}
	event, err := events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// lookupCode returns the registration for code, or ErrInvalidCode when the
// code is unknown or belongs to a different event.
func lookupCode(ctx context.Context, regs repository.RegistrationRepository, eventID, code string) (*model.Registration, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCode
	}
	reg, err := regs.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("lookup code: %w", err)
	}
	if reg.EventID != eventID {
		return nil, ErrInvalidCode
	}
	return reg, nil
}

func duplicateErr(reason model.DuplicateReason) error {
	if reason == model.DuplicateEmail {
		return ErrDuplicateEmail
	}
	return ErrDuplicateIDNumber
}

// publish delivers msg on a context detached from the request's cancellation
// and bounded by PublishTimeout. Failures are logged only.
func publish(ctx context.Context, opts Options, queue string, msg any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.PublishTimeout)
	defer cancel()
	if err := opts.Publisher.Publish(ctx, queue, msg); err != nil {
		log.Warn().Err(err).Str("queue", queue).Msg("notification dropped")
	}
}

// resultLabel maps an operation outcome to its metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultAccepted
	case errors.Is(err, ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrDuplicateIDNumber):
		return "duplicate_id_number"
	case errors.Is(err, ErrCodeCollision):
		return "code_collision"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrQuantityOutOfRange):
		return "quantity_out_of_range"
	case errors.Is(err, ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return metrics.ResultInternal
	}
}
