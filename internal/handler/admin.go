package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/service"
)

// AdminHandler serves the authenticated admin API.
type AdminHandler struct {
	errorWriter
	events *service.EventService
	admin  *service.AdminService
	now    func() time.Time
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(events *service.EventService, admin *service.AdminService, now func() time.Time, exposeErrors bool) *AdminHandler {
	return &AdminHandler{
		errorWriter: errorWriter{exposeDetail: exposeErrors},
		events:      events,
		admin:       admin,
		now:         now,
	}
}

// ListEvents handles GET /api/admin/events
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeData(w, http.StatusOK, events)
}

// GetEvent handles GET /api/admin/events/{id}
func (h *AdminHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, event)
}

// CreateEvent handles POST /api/admin/events
func (h *AdminHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	log.Info().Str("event_id", event.ID).Str("name", event.Name).Msg("event created")
	writeData(w, http.StatusCreated, event)
}

// UpdateEvent handles PUT /api/admin/events/{id}
func (h *AdminHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.events.UpdateEvent(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	log.Info().Str("event_id", event.ID).Msg("event updated")
	writeData(w, http.StatusOK, event)
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// ListRegistrations handles GET /api/admin/registrations
func (h *AdminHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.admin.ListRegistrations(r.Context(), model.RegistrationFilter{
		EventID: q.Get("eventId"),
		Search:  q.Get("search"),
		Page:    queryInt(r, "page"),
		Limit:   queryInt(r, "limit"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*model.RegistrationPage
	}{true, page})
}

// Duplicates handles GET /api/admin/registrations/duplicates
func (h *AdminHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	report, err := h.admin.Duplicates(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*model.DuplicateReport
	}{true, report})
}

// Export handles GET /api/admin/registrations/export?format=json|csv
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	rows, err := h.admin.Export(r.Context(), r.URL.Query().Get("eventId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now().UTC()

	switch format := r.URL.Query().Get("format"); format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="registrations_%s.csv"`, now.Format("2006-01-02")))
		w.WriteHeader(http.StatusOK)
		if err := service.WriteCSV(w, rows); err != nil {
			log.Error().Err(err).Msg("write csv export")
		}
	case "", "json":
		writeJSON(w, http.StatusOK, struct {
			Success      bool              `json:"success"`
			Data         []model.ExportRow `json:"data"`
			ExportTime   time.Time         `json:"exportTime"`
			TotalRecords int               `json:"totalRecords"`
		}{true, rows, now, len(rows)})
	default:
		writeError(w, http.StatusBadRequest, "format must be json or csv")
	}
}

// DeleteRegistration handles DELETE /api/admin/registrations/{code}
func (h *AdminHandler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.admin.DeleteRegistration(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success             bool                `json:"success"`
		Message             string              `json:"message"`
		DeletedRegistration *model.Registration `json:"deletedRegistration"`
	}{true, "registration deleted", reg})
}

// Stats handles GET /api/admin/registrations/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

// ListOrders handles GET /api/admin/orders
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.admin.ListOrders(r.Context(), r.URL.Query().Get("eventId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeData(w, http.StatusOK, orders)
}
