package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/repository"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type published struct {
	queue string
	msg   any
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{queue: queue, msg: msg})
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) queues() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.queue)
	}
	return out
}

type LedgerSuite struct {
	suite.Suite
	ctx       context.Context
	clock     *clockwork.FakeClock
	events    *repository.KVEventRepository
	regs      *repository.KVRegistrationRepository
	orders    *repository.KVOrderRepository
	publisher *recordingPublisher
	ledger    *Ledger
	admission *Admission
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clockwork.NewFakeClockAt(base.Add(10 * time.Minute))
	s.events = repository.NewKVEventRepository(repository.NewMemoryStore[model.Event]())
	regs, err := repository.NewKVRegistrationRepository(s.ctx, repository.NewMemoryStore[model.Registration]())
	s.Require().NoError(err)
	s.regs = regs
	s.orders = repository.NewKVOrderRepository(repository.NewMemoryStore[model.Order]())
	s.publisher = &recordingPublisher{}

	for _, id := range []string{"E", "OTHER"} {
		s.Require().NoError(s.events.Create(s.ctx, &model.Event{
			ID:                    id,
			Name:                  "Event " + id,
			Capacity:              100,
			RegistrationStartTime: base,
			RegistrationEndTime:   base.Add(time.Hour),
			CreatedAt:             base,
		}))
	}
	s.build(false)
}

func (s *LedgerSuite) build(enforce bool) {
	opts := Options{Publisher: s.publisher, EnforceTimeWindows: enforce}
	s.ledger = NewLedger(s.events, s.regs, s.clock, opts)
	s.admission = NewAdmission(s.events, s.regs, s.orders, s.clock, opts)
}

func registerReq(eventID, code, email, id string) model.RegisterRequest {
	return model.RegisterRequest{
		EventID:          eventID,
		RegistrationCode: code,
		UserData:         model.UserData{Name: "User " + code, Email: email, IDNumber: id},
	}
}

func (s *LedgerSuite) TestEndToEndScenario() {
	reg, err := s.ledger.Register(s.ctx, registerReq("E", "CODE1", "a@x", "111"))
	s.Require().NoError(err)
	s.Equal("CODE1", reg.RegistrationCode)
	s.Equal(s.clock.Now().UTC(), reg.RegistrationTime)

	_, err = s.ledger.Register(s.ctx, registerReq("E", "CODE2", "a@x", "222"))
	s.ErrorIs(err, ErrDuplicateEmail)

	_, err = s.ledger.Register(s.ctx, registerReq("E", "CODE3", "c@x", "111"))
	s.ErrorIs(err, ErrDuplicateIDNumber)

	_, err = s.ledger.Register(s.ctx, registerReq("E", "CODE1", "d@x", "333"))
	s.ErrorIs(err, ErrCodeCollision)

	s.clock.Advance(2 * time.Hour)

	order, err := s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "CODE1", Quantity: 4})
	s.Require().NoError(err)
	s.Equal(model.OrderCompleted, order.Status)
	s.Equal(4, order.Quantity)

	_, err = s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "CODE1", Quantity: 5})
	s.ErrorIs(err, ErrQuantityOutOfRange)

	_, err = s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "BOGUS", Quantity: 1})
	s.ErrorIs(err, ErrInvalidCode)

	regs, err := s.regs.List(s.ctx, "E")
	s.Require().NoError(err)
	s.Len(regs, 1)
}

func (s *LedgerSuite) TestRegisterChecksEventFirst() {
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))

	_, err := s.ledger.Register(s.ctx, registerReq("MISSING", "C1", "a@x", "111"))
	s.ErrorIs(err, ErrEventNotFound)
}

func registerOK(s *LedgerSuite, eventID, code, email, id string) error {
	_, err := s.ledger.Register(s.ctx, registerReq(eventID, code, email, id))
	return err
}

func (s *LedgerSuite) TestRegisterEmailCheckedBeforeIDNumber() {
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))

	_, err := s.ledger.Register(s.ctx, registerReq("E", "C1", "A@X", "111"))
	s.ErrorIs(err, ErrDuplicateEmail)
}

func (s *LedgerSuite) TestRegisterRequiresFields() {
	tests := []struct {
		name string
		req  model.RegisterRequest
	}{
		{"missing event", registerReq("", "C1", "a@x", "111")},
		{"missing code", registerReq("E", "  ", "a@x", "111")},
		{"missing email", registerReq("E", "C1", "", "111")},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.ledger.Register(s.ctx, tt.req)
			s.ErrorIs(err, ErrInvalidInput)
		})
	}
}

func (s *LedgerSuite) TestSameIdentityOnAnotherEvent() {
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))
	s.NoError(registerOK(s, "OTHER", "C2", "a@x", "111"))

	_, err := s.ledger.Register(s.ctx, registerReq("OTHER", "C1", "z@x", "999"))
	s.ErrorIs(err, ErrCodeCollision)
}

func (s *LedgerSuite) TestCheckDuplicateIsIdempotent() {
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))

	tests := []struct {
		name string
		req  model.CheckDuplicateRequest
		want model.DuplicateCheck
	}{
		{"email", model.CheckDuplicateRequest{EventID: "E", Email: " A@x "}, model.DuplicateCheck{IsDuplicate: true, DuplicateReason: model.DuplicateEmail}},
		{"id number", model.CheckDuplicateRequest{EventID: "E", Email: "b@x", IDNumber: "111"}, model.DuplicateCheck{IsDuplicate: true, DuplicateReason: model.DuplicateIDNumber}},
		{"id number omitted", model.CheckDuplicateRequest{EventID: "E", Email: "b@x"}, model.DuplicateCheck{}},
		{"other event", model.CheckDuplicateRequest{EventID: "OTHER", Email: "a@x", IDNumber: "111"}, model.DuplicateCheck{}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			first, err := s.ledger.CheckDuplicate(s.ctx, tt.req)
			s.Require().NoError(err)
			second, err := s.ledger.CheckDuplicate(s.ctx, tt.req)
			s.Require().NoError(err)
			s.Equal(tt.want, first)
			s.Equal(first, second)
		})
	}
}

func (s *LedgerSuite) TestValidateCode() {
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))

	owner, err := s.ledger.ValidateCode(s.ctx, model.ValidateCodeRequest{EventID: "E", RegistrationCode: "C1"})
	s.Require().NoError(err)
	s.Equal(&model.CodeOwner{Name: "User C1", Email: "a@x"}, owner)

	_, err = s.ledger.ValidateCode(s.ctx, model.ValidateCodeRequest{EventID: "OTHER", RegistrationCode: "C1"})
	s.ErrorIs(err, ErrInvalidCode)

	_, err = s.ledger.ValidateCode(s.ctx, model.ValidateCodeRequest{EventID: "E", RegistrationCode: "C2"})
	s.ErrorIs(err, ErrInvalidCode)

	_, err = s.ledger.ValidateCode(s.ctx, model.ValidateCodeRequest{EventID: "MISSING", RegistrationCode: "C1"})
	s.ErrorIs(err, ErrEventNotFound)
}

func (s *LedgerSuite) TestIsRegistered() {
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))

	ok, err := s.ledger.IsRegistered(s.ctx, "E", "A@X")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.ledger.IsRegistered(s.ctx, "OTHER", "a@x")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *LedgerSuite) TestConcurrentRegisterSameIdentity() {
	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	var accepted, duplicates int

	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ledger.Register(s.ctx, registerReq("E", fmt.Sprintf("C%02d", i), "same@x", "SAME"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrDuplicateEmail):
				duplicates++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, accepted)
	s.Equal(workers-1, duplicates)
}

func (s *LedgerSuite) TestConcurrentRegisterSameCode() {
	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	var accepted, collisions int

	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eventID := "E"
			if i%2 == 1 {
				eventID = "OTHER"
			}
			_, err := s.ledger.Register(s.ctx, registerReq(eventID, "SHARED", fmt.Sprintf("u%d@x", i), fmt.Sprintf("ID%d", i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrCodeCollision):
				collisions++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, accepted)
	s.Equal(workers-1, collisions)
}

func (s *LedgerSuite) TestPurchaseQuantityBoundary() {
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))

	tests := []struct {
		quantity int
		wantErr  error
	}{
		{1, nil},
		{2, nil},
		{3, nil},
		{4, nil},
		{0, ErrQuantityOutOfRange},
		{5, ErrQuantityOutOfRange},
		{-1, ErrQuantityOutOfRange},
	}
	for _, tt := range tests {
		s.Run(fmt.Sprintf("quantity %d", tt.quantity), func() {
			order, err := s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "C1", Quantity: tt.quantity})
			if tt.wantErr != nil {
				s.ErrorIs(err, tt.wantErr)
				s.Nil(order)
				return
			}
			s.Require().NoError(err)
			s.Equal(tt.quantity, order.Quantity)
			s.Regexp(`^ORD[0-9A-F]{32}$`, order.OrderNumber)
		})
	}

	orders, err := s.orders.List(s.ctx, "E")
	s.Require().NoError(err)
	s.Len(orders, 4)
}

func (s *LedgerSuite) TestPurchaseCheckOrder() {
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))

	_, err := s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "MISSING", RegistrationCode: "BOGUS", Quantity: 9})
	s.ErrorIs(err, ErrEventNotFound)

	_, err = s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "OTHER", RegistrationCode: "C1", Quantity: 9})
	s.ErrorIs(err, ErrInvalidCode)
}

func (s *LedgerSuite) TestOrderNumberCollisionIsInternal() {
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))
	s.admission.newOrder = func() string { return "ORDFIXED" }

	_, err := s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "C1", Quantity: 1})
	s.Require().NoError(err)

	_, err = s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "C1", Quantity: 1})
	s.Require().Error(err)
	s.ErrorIs(err, repository.ErrOrderExists)
	s.Equal("internal", resultLabel(err))
}

func (s *LedgerSuite) TestEnforceTimeWindows() {
	s.clock = clockwork.NewFakeClockAt(base.Add(-10 * time.Minute))
	s.build(true)

	_, err := s.ledger.Register(s.ctx, registerReq("E", "C1", "a@x", "111"))
	s.ErrorIs(err, ErrWindowClosed)

	s.clock.Advance(10 * time.Minute)
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))

	_, err = s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "C1", Quantity: 1})
	s.ErrorIs(err, ErrWindowClosed, "no release window configured")

	event, err := s.events.GetByID(s.ctx, "E")
	s.Require().NoError(err)
	saleStart := base.Add(2 * time.Hour)
	event.SaleStartTime = &saleStart
	s.Require().NoError(s.events.Update(s.ctx, event))

	_, err = s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "C1", Quantity: 1})
	s.ErrorIs(err, ErrWindowClosed)

	s.clock.Advance(2 * time.Hour)
	_, err = s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "C1", Quantity: 1})
	s.NoError(err)

	s.clock.Advance(time.Hour)
	_, err = s.ledger.Register(s.ctx, registerReq("E", "C2", "b@x", "222"))
	s.ErrorIs(err, ErrWindowClosed)
}

func (s *LedgerSuite) TestWindowsIgnoredByDefault() {
	s.clock.Advance(24 * time.Hour)
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))

	_, err := s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "C1", Quantity: 1})
	s.NoError(err)
}

func (s *LedgerSuite) TestPublishesNotifications() {
	s.Require().NoError(registerOK(s, "E", "C1", "a@x", "111"))
	_, err := s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "C1", Quantity: 2})
	s.Require().NoError(err)

	s.Equal([]string{"registration.created", "order.completed"}, s.publisher.queues())
}

func (s *LedgerSuite) TestPublishFailureDoesNotFailRequest() {
	s.publisher.err = errors.New("broker down")

	s.NoError(registerOK(s, "E", "C1", "a@x", "111"))
	_, err := s.admission.Purchase(s.ctx, model.PurchaseRequest{EventID: "E", RegistrationCode: "C1", Quantity: 1})
	s.NoError(err)
}

func TestKeyLockSerialisesSameKey(t *testing.T) {
	locks := newKeyLock()
	var wg sync.WaitGroup
	counter := 0

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("event:E", "code:C")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}
	if len(locks.locks) != 0 {
		t.Fatalf("%d locks leaked", len(locks.locks))
	}
}
