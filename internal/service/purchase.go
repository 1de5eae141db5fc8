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
	"github.com/Shivanand-hulikatti/event-presale/internal/notify"
	"github.com/Shivanand-hulikatti/event-presale/internal/phase"
	"github.com/Shivanand-hulikatti/event-presale/internal/repository"
)

// Quantity bounds per order.
const (
	MinQuantity = 1
	MaxQuantity = 4
)

// NewOrderNumber returns "ORD" followed by 32 hex digits of a random UUID.
func NewOrderNumber() string {
	return "ORD" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Admission validates redeemed codes and records orders.
type Admission struct {
	events   repository.EventRepository
	regs     repository.RegistrationRepository
	orders   repository.OrderRepository
	clock    clock.Source
	opts     Options
	newOrder func() string
}

// NewAdmission constructs an Admission.
func NewAdmission(
	events repository.EventRepository,
	regs repository.RegistrationRepository,
	orders repository.OrderRepository,
	src clock.Source,
	opts Options,
) *Admission {
	return &Admission{
		events:   events,
		regs:     regs,
		orders:   orders,
		clock:    src,
		opts:     opts.withDefaults(),
		newOrder: NewOrderNumber,
	}
}

// Purchase admits an order for req.Quantity tickets. Checks run in order:
// event exists, code belongs to the event, quantity within bounds, then the
// release window when enforcement is on. An order number collision is an
// internal failure.
func (a *Admission) Purchase(ctx context.Context, req model.PurchaseRequest) (*model.Order, error) {
	order, err := a.purchase(ctx, req)
	qty := 0
	if order != nil {
		qty = order.Quantity
	}
	a.opts.Metrics.ObservePurchase(resultLabel(err), qty)
	return order, err
}

func (a *Admission) purchase(ctx context.Context, req model.PurchaseRequest) (*model.Order, error) {
	event, err := getEvent(ctx, a.events, strings.TrimSpace(req.EventID))
	if err != nil {
		return nil, err
	}
	reg, err := lookupCode(ctx, a.regs, event.ID, req.RegistrationCode)
	if err != nil {
		return nil, err
	}
	if req.Quantity < MinQuantity || req.Quantity > MaxQuantity {
		return nil, ErrQuantityOutOfRange
	}

	now := a.clock.Now()
	if a.opts.EnforceTimeWindows {
		start, end, ok := event.ReleaseWindow()
		if !ok {
			return nil, fmt.Errorf("%w: no release window configured", ErrWindowClosed)
		}
		if !phase.Open(now, start, end) {
			return nil, fmt.Errorf("%w: release is %s", ErrWindowClosed, phase.Evaluate(now, start, end))
		}
	}

	order := &model.Order{
		OrderNumber:      a.newOrder(),
		EventID:          event.ID,
		RegistrationCode: reg.RegistrationCode,
		Quantity:         req.Quantity,
		PurchaseTime:     now.UTC(),
		Status:           model.OrderCompleted,
	}
	if err := a.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderExists) {
			log.Error().Str("order_number", order.OrderNumber).Msg("order number collision")
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	log.Info().
		Str("event_id", event.ID).
		Str("order_number", order.OrderNumber).
		Int("quantity", order.Quantity).
		Msg("purchase admitted")
	publish(ctx, a.opts, notify.QueueOrderCompleted, notify.NewOrderCompleted(event, reg, order))
	return order, nil
}
