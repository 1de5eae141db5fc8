package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/service"
)

// FormFieldHandler serves the registration form builder. Reads are public so
// the registration page can render the form; writes require an admin token.
type FormFieldHandler struct {
	errorWriter
	fields *service.FormFieldService
}

// NewFormFieldHandler constructs a FormFieldHandler.
func NewFormFieldHandler(fields *service.FormFieldService, exposeErrors bool) *FormFieldHandler {
	return &FormFieldHandler{errorWriter: errorWriter{exposeDetail: exposeErrors}, fields: fields}
}

// List handles GET /api/form-fields
func (h *FormFieldHandler) List(w http.ResponseWriter, r *http.Request) {
	fields, err := h.fields.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if fields == nil {
		fields = []model.FormField{}
	}
	writeData(w, http.StatusOK, fields)
}

// Get handles GET /api/form-fields/{id}
func (h *FormFieldHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.fields.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, f)
}

// Create handles POST /api/form-fields
func (h *FormFieldHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.FormFieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := h.fields.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, f)
}

// Update handles PUT /api/form-fields/{id}
func (h *FormFieldHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.FormFieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := h.fields.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, f)
}

// Delete handles DELETE /api/form-fields/{id}
func (h *FormFieldHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.fields.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Response{Success: true, Message: "form field deleted"})
}

// Reorder handles PUT /api/form-fields/order with a JSON array of {id}.
func (h *FormFieldHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var items []model.FieldOrderItem
	if err := decodeJSON(w, r, &items); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.fields.Reorder(r.Context(), items); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Response{Success: true, Message: "field order updated"})
}

// CheckName handles POST /api/form-fields/validate
func (h *FormFieldHandler) CheckName(w http.ResponseWriter, r *http.Request) {
	var req model.FieldNameCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.fields.CheckName(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}
