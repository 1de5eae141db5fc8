package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-presale/internal/auth"
	"github.com/Shivanand-hulikatti/event-presale/internal/clock"
	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/service"
)

// PresaleHandler serves the public registration and purchase API.
type PresaleHandler struct {
	errorWriter
	ledger    *service.Ledger
	admission *service.Admission
	events    *service.EventService
	clock     clock.Source
}

// NewPresaleHandler constructs a PresaleHandler.
func NewPresaleHandler(
	ledger *service.Ledger,
	admission *service.Admission,
	events *service.EventService,
	src clock.Source,
	exposeErrors bool,
) *PresaleHandler {
	return &PresaleHandler{
		errorWriter: errorWriter{exposeDetail: exposeErrors},
		ledger:      ledger,
		admission:   admission,
		events:      events,
		clock:       src,
	}
}

// Time handles GET /api/time
// Returns the authoritative server time clients synchronise against.
func (h *PresaleHandler) Time(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, model.TimeResponse{Success: true, Time: h.clock.Now().UTC()})
}

// CheckDuplicate handles POST /api/events/check-duplicate
func (h *PresaleHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req model.CheckDuplicateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.ledger.CheckDuplicate(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.CheckDuplicateResponse{Success: true, DuplicateCheck: res})
}

// Register handles POST /api/register
// Records a registration, rejecting duplicate identities and codes.
func (h *PresaleHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reg, err := h.ledger.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.RegisterResponse{Success: true, RegistrationCode: reg.RegistrationCode})
}

// ValidateCode handles POST /api/validate-code
func (h *PresaleHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req model.ValidateCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner, err := h.ledger.ValidateCode(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, owner)
}

// Purchase handles POST /api/purchase
// Admits an order of 1 to 4 tickets for a valid registration code.
func (h *PresaleHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req model.PurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.admission.Purchase(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.PurchaseResponse{Success: true, OrderNumber: order.OrderNumber})
}

// RegistrationStatus handles GET /api/registrations/check/{eventId}
// The bearer token is the base64 encoding of the registrant's email.
func (h *PresaleHandler) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	token, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	email, err := auth.RegistrantEmail(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ok, err := h.ledger.IsRegistered(r.Context(), chi.URLParam(r, "eventId"), email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.RegistrationStatusResponse{Success: true, IsRegistered: ok})
}

// ListEvents handles GET /api/public/events
// Returns events still open or upcoming, newest first.
func (h *PresaleHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	views, err := h.events.ListPublicEvents(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, views)
}

// GetEvent handles GET /api/public/events/{id}
func (h *PresaleHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	view, err := h.events.GetPublicEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NotFound answers unknown routes with the standard envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "route not found")
}
