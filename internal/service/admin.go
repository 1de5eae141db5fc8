package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Shivanand-hulikatti/event-presale/internal/clock"
	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/repository"
)

// Listing defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
	unknownEvent    = "unknown event"
	statsDays       = 7
	dateLayout      = "2006-01-02"
)

// AdminService serves the read models behind the admin API and the only
// deletion path for registrations.
type AdminService struct {
	events repository.EventRepository
	regs   repository.RegistrationRepository
	orders repository.OrderRepository
	clock  clock.Source
}

// NewAdminService constructs an AdminService.
func NewAdminService(
	events repository.EventRepository,
	regs repository.RegistrationRepository,
	orders repository.OrderRepository,
	src clock.Source,
) *AdminService {
	return &AdminService{events: events, regs: regs, orders: orders, clock: src}
}

// eventNames maps event ID to name for enrichment.
func (s *AdminService) eventNames(ctx context.Context) (map[string]model.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	byID := make(map[string]model.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}
	return byID, nil
}

func enrich(reg model.Registration, events map[string]model.Event) model.RegistrationListItem {
	name := unknownEvent
	if e, ok := events[reg.EventID]; ok {
		name = e.Name
	}
	return model.RegistrationListItem{Registration: reg, EventName: name}
}

func matches(reg *model.Registration, search string) bool {
	u := reg.UserData
	for _, field := range []string{u.Name, u.Email, u.Phone, u.IDNumber, reg.RegistrationCode} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// ListRegistrations returns one page of registrations, newest first,
// filtered by event and a case-insensitive search term.
func (s *AdminService) ListRegistrations(ctx context.Context, f model.RegistrationFilter) (*model.RegistrationPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	f.Limit = min(f.Limit, MaxPageSize)

	regs, err := s.regs.List(ctx, f.EventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		filtered := regs[:0]
		for i := range regs {
			if matches(&regs[i], search) {
				filtered = append(filtered, regs[i])
			}
		}
		regs = filtered
	}

	events, err := s.eventNames(ctx)
	if err != nil {
		return nil, err
	}

	total := len(regs)
	from := total
	if f.Page-1 < total/f.Limit+1 {
		from = min((f.Page-1)*f.Limit, total)
	}
	to := min(from+f.Limit, total)
	items := make([]model.RegistrationListItem, 0, to-from)
	for _, reg := range regs[from:to] {
		items = append(items, enrich(reg, events))
	}

	return &model.RegistrationPage{
		Items: items,
		Pagination: model.Pagination{
			CurrentPage:  f.Page,
			TotalPages:   (total + f.Limit - 1) / f.Limit,
			TotalItems:   total,
			ItemsPerPage: f.Limit,
		},
	}, nil
}

// Duplicates groups registrations sharing an email or id number across all
// events. Within one event the ledger forbids this, so every group spans
// several events.
func (s *AdminService) Duplicates(ctx context.Context) (*model.DuplicateReport, error) {
	regs, err := s.regs.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	events, err := s.eventNames(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.DuplicateReport{Groups: []model.DuplicateGroup{}}
	collect := func(kind model.DuplicateReason, key func(model.Identity) string) {
		groups := make(map[string][]model.RegistrationListItem)
		for _, reg := range regs {
			k := key(reg.UserData.Identity())
			if k == "" {
				continue
			}
			groups[k] = append(groups[k], enrich(reg, events))
		}
		values := make([]string, 0, len(groups))
		for v, members := range groups {
			if len(members) > 1 {
				values = append(values, v)
			}
		}
		sort.Strings(values)
		for _, v := range values {
			report.Groups = append(report.Groups, model.DuplicateGroup{
				Type:          kind,
				Value:         v,
				Count:         len(groups[v]),
				Registrations: groups[v],
			})
		}
	}
	collect(model.DuplicateEmail, func(id model.Identity) string { return id.Email })
	emailGroups := len(report.Groups)
	collect(model.DuplicateIDNumber, func(id model.Identity) string { return id.IDNumber })

	report.Summary = model.DuplicateSummary{
		TotalDuplicates:    len(report.Groups),
		EmailDuplicates:    emailGroups,
		IDNumberDuplicates: len(report.Groups) - emailGroups,
	}
	return report, nil
}

// Export flattens registrations for eventID (all when empty), newest first.
func (s *AdminService) Export(ctx context.Context, eventID string) ([]model.ExportRow, error) {
	regs, err := s.regs.List(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	events, err := s.eventNames(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]model.ExportRow, 0, len(regs))
	for _, reg := range regs {
		item := enrich(reg, events)
		u := reg.UserData
		rows = append(rows, model.ExportRow{
			RegistrationCode: reg.RegistrationCode,
			EventName:        item.EventName,
			Name:             u.Name,
			IDNumber:         u.IDNumber,
			Email:            u.Email,
			Phone:            u.Phone,
			Birthdate:        u.Birthdate,
			Gender:           u.Gender,
			Address:          u.Address,
			RegistrationTime: reg.RegistrationTime.UTC().Format(time.RFC3339),
		})
	}
	return rows, nil
}

// utf8BOM lets spreadsheet tools detect the encoding of exported CSV.
const utf8BOM = "\ufeff"

// WriteCSV writes rows as a BOM-prefixed CSV document with a header line.
func WriteCSV(w io.Writer, rows []model.ExportRow) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(model.ExportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DeleteRegistration removes the registration with code, freeing its
// identity and code for reuse.
func (s *AdminService) DeleteRegistration(ctx context.Context, code string) (*model.Registration, error) {
	reg, err := s.regs.Delete(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	log.Info().Str("event_id", reg.EventID).Str("code", code).Msg("registration deleted")
	return reg, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Stats summarises registrations per event and per UTC day, including a
// series for the last seven days ending today.
func (s *AdminService) Stats(ctx context.Context) (*model.RegistrationStats, error) {
	regs, err := s.regs.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	perEvent := make(map[string]int, len(events))
	byDate := make(map[string]int)
	for _, reg := range regs {
		perEvent[reg.EventID]++
		byDate[reg.RegistrationTime.UTC().Format(dateLayout)]++
	}

	stats := &model.RegistrationStats{
		Summary: model.StatsSummary{
			TotalRegistrations: len(regs),
			TotalEvents:        len(events),
		},
		EventStats:   make([]model.EventStats, 0, len(events)),
		DailyStats:   make([]model.DailyCount, 0, statsDays),
		AllDateStats: byDate,
	}
	if len(events) > 0 {
		stats.Summary.AverageRegistrationsPerEvent = round2(float64(len(regs)) / float64(len(events)))
	}
	for _, e := range events {
		es := model.EventStats{
			EventID:       e.ID,
			EventName:     e.Name,
			Capacity:      e.Capacity,
			Registrations: perEvent[e.ID],
		}
		if e.Capacity > 0 {
			es.RegistrationRate = round2(float64(es.Registrations) / float64(e.Capacity) * 100)
		}
		stats.EventStats = append(stats.EventStats, es)
	}

	today := s.clock.Now().UTC()
	for i := statsDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(dateLayout)
		stats.DailyStats = append(stats.DailyStats, model.DailyCount{Date: day, Count: byDate[day]})
	}
	return stats, nil
}

// ListOrders returns orders for eventID (all when empty), newest first.
func (s *AdminService) ListOrders(ctx context.Context, eventID string) ([]model.Order, error) {
	orders, err := s.orders.List(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
