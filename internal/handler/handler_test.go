package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Shivanand-hulikatti/event-presale/internal/auth"
	"github.com/Shivanand-hulikatti/event-presale/internal/config"
	"github.com/Shivanand-hulikatti/event-presale/internal/metrics"
	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/repository"
	"github.com/Shivanand-hulikatti/event-presale/internal/service"
)

var epoch = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

const testSecret = "test-secret"

type deps struct {
	events repository.EventRepository
	regs   repository.RegistrationRepository
	orders repository.OrderRepository
	fields repository.FormFieldRepository
}

func memoryDeps(t *testing.T) deps {
	t.Helper()
	regs, err := repository.NewKVRegistrationRepository(context.Background(), repository.NewMemoryStore[model.Registration]())
	require.NoError(t, err)
	return deps{
		events: repository.NewKVEventRepository(repository.NewMemoryStore[model.Event]()),
		regs:   regs,
		orders: repository.NewKVOrderRepository(repository.NewMemoryStore[model.Order]()),
		fields: repository.NewKVFormFieldRepository(repository.NewMemoryStore[model.FormField]()),
	}
}

func newServer(t *testing.T, d deps, fc *clockwork.FakeClock, enforce, exposeErrors bool) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	opts := service.Options{Metrics: m, EnforceTimeWindows: enforce}

	eventSvc := service.NewEventService(d.events, fc)
	presale := NewPresaleHandler(
		service.NewLedger(d.events, d.regs, fc, opts),
		service.NewAdmission(d.events, d.regs, d.orders, fc, opts),
		eventSvc, fc, exposeErrors,
	)
	admin := NewAdminHandler(eventSvc, service.NewAdminService(d.events, d.regs, d.orders, fc), fc.Now, exposeErrors)
	forms := NewFormFieldHandler(service.NewFormFieldService(d.fields, fc), exposeErrors)

	router := NewRouter(RouterConfig{
		Issuer:   auth.NewIssuer(testSecret, fc.Now),
		Metrics:  m,
		Gatherer: reg,
	}, presale, admin, forms)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, reg
}

type APISuite struct {
	suite.Suite
	clock *clockwork.FakeClock
	deps  deps
	srv   *httptest.Server
	token string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.clock = clockwork.NewFakeClockAt(epoch)
	s.deps = memoryDeps(s.T())
	s.srv, _ = newServer(s.T(), s.deps, s.clock, false, false)

	token, err := auth.NewIssuer(testSecret, s.clock.Now).Issue("ops", time.Hour)
	s.Require().NoError(err)
	s.token = token

	s.Require().NoError(s.deps.events.Create(context.Background(), &model.Event{
		ID:                    "E",
		Name:                  "Encore",
		Description:           "night show",
		Capacity:              10,
		RegistrationStartTime: epoch,
		RegistrationEndTime:   epoch.Add(time.Hour),
		CreatedAt:             epoch,
	}))
}

func (s *APISuite) do(method, path string, body any, header http.Header) (*http.Response, map[string]any) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(raw, &out), string(raw))
	} else {
		out = map[string]any{"raw": string(raw)}
	}
	return resp, out
}

func (s *APISuite) adminHeader() http.Header {
	return http.Header{"Authorization": {"Bearer " + s.token}}
}

func register(code, email, id string) map[string]any {
	return map[string]any{
		"eventId":          "E",
		"registrationCode": code,
		"userData":         map[string]any{"name": "N " + code, "email": email, "idNumber": id},
	}
}

func (s *APISuite) TestTime() {
	resp, body := s.do(http.MethodGet, "/api/time", nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, body["success"])
	s.Equal("2026-04-10T08:00:00Z", body["time"])
}

func (s *APISuite) TestRegisterScenario() {
	resp, body := s.do(http.MethodPost, "/api/register", register("CODE1", "a@x", "111"), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, body)
	s.Equal(map[string]any{"success": true, "registrationCode": "CODE1"}, body)

	tests := []struct {
		name    string
		payload map[string]any
		status  int
		message string
	}{
		{"duplicate email", register("CODE2", "a@x", "222"), http.StatusBadRequest, service.ErrDuplicateEmail.Error()},
		{"duplicate id number", register("CODE3", "c@x", "111"), http.StatusBadRequest, service.ErrDuplicateIDNumber.Error()},
		{"code collision", register("CODE1", "d@x", "333"), http.StatusBadRequest, service.ErrCodeCollision.Error()},
		{"unknown event", map[string]any{
			"eventId": "NOPE", "registrationCode": "X", "userData": map[string]any{"email": "e@x"},
		}, http.StatusNotFound, service.ErrEventNotFound.Error()},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, body := s.do(http.MethodPost, "/api/register", tt.payload, nil)
			s.Equal(tt.status, resp.StatusCode)
			s.Equal(false, body["success"])
			s.Equal(tt.message, body["message"])
		})
	}
}

func (s *APISuite) TestRegisterRejectsMalformedBody() {
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/register", strings.NewReader(`{"eventId":`))
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *APISuite) TestCheckDuplicate() {
	_, body := s.do(http.MethodPost, "/api/events/check-duplicate", map[string]any{"eventId": "E", "email": "a@x"}, nil)
	s.Equal(map[string]any{"success": true, "isDuplicate": false, "duplicateReason": nil}, body)

	s.do(http.MethodPost, "/api/register", register("CODE1", "a@x", "111"), nil)

	_, body = s.do(http.MethodPost, "/api/events/check-duplicate", map[string]any{"eventId": "E", "email": "z@x", "idNumber": "111"}, nil)
	s.Equal(map[string]any{"success": true, "isDuplicate": true, "duplicateReason": "idNumber"}, body)
}

func (s *APISuite) TestValidateCodeAndPurchase() {
	s.do(http.MethodPost, "/api/register", register("CODE1", "a@x", "111"), nil)

	resp, body := s.do(http.MethodPost, "/api/validate-code", map[string]any{"eventId": "E", "registrationCode": "CODE1"}, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(map[string]any{"name": "N CODE1", "email": "a@x"}, body["data"])

	resp, _ = s.do(http.MethodPost, "/api/validate-code", map[string]any{"eventId": "E", "registrationCode": "BOGUS"}, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	tests := []struct {
		name   string
		req    map[string]any
		status int
	}{
		{"ok", map[string]any{"eventId": "E", "registrationCode": "CODE1", "quantity": 4}, http.StatusOK},
		{"too many", map[string]any{"eventId": "E", "registrationCode": "CODE1", "quantity": 5}, http.StatusBadRequest},
		{"bogus code", map[string]any{"eventId": "E", "registrationCode": "BOGUS", "quantity": 1}, http.StatusBadRequest},
		{"unknown event", map[string]any{"eventId": "NOPE", "registrationCode": "CODE1", "quantity": 1}, http.StatusNotFound},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, body := s.do(http.MethodPost, "/api/purchase", tt.req, nil)
			s.Equal(tt.status, resp.StatusCode, body)
			if tt.status == http.StatusOK {
				s.Regexp(`^ORD[0-9A-F]{32}$`, body["orderNumber"])
			}
		})
	}
}

func (s *APISuite) TestRegistrationStatus() {
	s.do(http.MethodPost, "/api/register", register("CODE1", "a@x", "111"), nil)

	resp, _ := s.do(http.MethodGet, "/api/registrations/check/E", nil, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{"Authorization": {"Bearer " + base64.StdEncoding.EncodeToString([]byte("a@x"))}}
	resp, body := s.do(http.MethodGet, "/api/registrations/check/E", nil, header)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, body["isRegistered"])
}

func (s *APISuite) TestPublicEvents() {
	_, body := s.do(http.MethodGet, "/api/public/events", nil, nil)
	events := body["data"].([]any)
	s.Require().Len(events, 1)
	s.Equal("active", events[0].(map[string]any)["registrationPhase"])

	resp, _ := s.do(http.MethodGet, "/api/public/events/NOPE", nil, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	s.clock.Advance(2 * time.Hour)
	_, body = s.do(http.MethodGet, "/api/public/events", nil, nil)
	s.Empty(body["data"])
}

func (s *APISuite) TestAdminRequiresToken() {
	resp, body := s.do(http.MethodGet, "/api/admin/events", nil, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal(false, body["success"])

	resp, _ = s.do(http.MethodGet, "/api/admin/events", nil, http.Header{"Authorization": {"Bearer forged"}})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestAdminEventLifecycle() {
	req := map[string]any{
		"name":                  "Matinee",
		"description":           "afternoon",
		"capacity":              50,
		"registrationStartTime": epoch.Add(time.Hour),
		"registrationEndTime":   epoch.Add(90 * time.Minute),
	}
	resp, body := s.do(http.MethodPost, "/api/admin/events", req, s.adminHeader())
	s.Require().Equal(http.StatusCreated, resp.StatusCode, body)
	id := body["data"].(map[string]any)["id"].(string)

	req["registrationEndTime"] = epoch.Add(65 * time.Minute)
	resp, body = s.do(http.MethodPut, "/api/admin/events/"+id, req, s.adminHeader())
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("registration window must be at least 15 minutes", body["message"])

	_, body = s.do(http.MethodGet, "/api/admin/events", nil, s.adminHeader())
	s.Len(body["data"], 2)
}

func (s *APISuite) TestAdminRegistrations() {
	s.do(http.MethodPost, "/api/register", register("CODE1", "a@x", "111"), nil)
	s.do(http.MethodPost, "/api/register", register("CODE2", "b@x", "222"), nil)

	_, body := s.do(http.MethodGet, "/api/admin/registrations?search=b@&limit=5", nil, s.adminHeader())
	s.Len(body["data"], 1)
	s.Equal(float64(5), body["pagination"].(map[string]any)["itemsPerPage"])

	resp, body := s.do(http.MethodGet, "/api/admin/registrations/export?format=csv", nil, s.adminHeader())
	s.Equal("text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	s.Contains(resp.Header.Get("Content-Disposition"), "registrations_2026-04-10.csv")
	s.True(strings.HasPrefix(body["raw"].(string), "\ufeffregistrationCode,"))

	_, body = s.do(http.MethodGet, "/api/admin/registrations/export", nil, s.adminHeader())
	s.Equal(float64(2), body["totalRecords"])

	_, body = s.do(http.MethodGet, "/api/admin/registrations/stats", nil, s.adminHeader())
	summary := body["data"].(map[string]any)["summary"].(map[string]any)
	s.Equal(float64(2), summary["totalRegistrations"])

	_, body = s.do(http.MethodGet, "/api/admin/registrations/duplicates", nil, s.adminHeader())
	s.Empty(body["data"])

	resp, _ = s.do(http.MethodDelete, "/api/admin/registrations/CODE1", nil, s.adminHeader())
	s.Equal(http.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodDelete, "/api/admin/registrations/CODE1", nil, s.adminHeader())
	s.Equal(http.StatusNotFound, resp.StatusCode)

	s.do(http.MethodPost, "/api/purchase", map[string]any{"eventId": "E", "registrationCode": "CODE2", "quantity": 2}, nil)
	_, body = s.do(http.MethodGet, "/api/admin/orders?eventId=E", nil, s.adminHeader())
	s.Len(body["data"], 1)
}

func (s *APISuite) TestRegisterKeepsFormDefinedFields() {
	payload := map[string]any{
		"eventId":          "E",
		"registrationCode": "CUST1",
		"userData": map[string]any{
			"name": "Ada", "email": "ada@x", "idNumber": "A1",
			"company": "ACME", "shirtSize": "M",
		},
	}
	resp, body := s.do(http.MethodPost, "/api/register", payload, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, body)

	stored, err := s.deps.regs.GetByCode(context.Background(), "CUST1")
	s.Require().NoError(err)
	s.Equal("ada@x", stored.UserData.Email)
	s.Equal(map[string]any{"company": "ACME", "shirtSize": "M"}, stored.UserData.Extra)

	_, body = s.do(http.MethodGet, "/api/admin/registrations?eventId=E", nil, s.adminHeader())
	items := body["data"].([]any)
	s.Require().Len(items, 1)
	userData := items[0].(map[string]any)["userData"].(map[string]any)
	s.Equal("ACME", userData["company"])
	s.Equal("M", userData["shirtSize"])
	s.Equal("Ada", userData["name"])

	payload["registrationCode"] = "CUST2"
	payload["extra"] = true
	resp, body = s.do(http.MethodPost, "/api/register", payload, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode, "unknown top-level keys are still rejected")
	s.Contains(body["message"], "unknown field")
}

func (s *APISuite) TestFormFieldLifecycle() {
	field := map[string]any{"field_label": "Company", "field_name": "company", "field_element": "input"}

	resp, _ := s.do(http.MethodPost, "/api/form-fields", field, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(http.MethodPost, "/api/form-fields", field, s.adminHeader())
	s.Require().Equal(http.StatusCreated, resp.StatusCode, body)
	company := body["data"].(map[string]any)
	companyID := company["id"].(string)
	s.Equal(float64(0), company["order"])

	resp, body = s.do(http.MethodPost, "/api/form-fields", field, s.adminHeader())
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal(service.ErrFieldNameTaken.Error(), body["message"])

	resp, body = s.do(http.MethodPost, "/api/form-fields",
		map[string]any{"field_label": "Size", "field_name": "size", "field_element": "select", "options": []string{"S", "M"}},
		s.adminHeader())
	s.Require().Equal(http.StatusCreated, resp.StatusCode, body)
	sizeID := body["data"].(map[string]any)["id"].(string)

	_, body = s.do(http.MethodPost, "/api/form-fields/validate", map[string]any{"field_name": "company"}, s.adminHeader())
	s.Equal(map[string]any{"isValid": false, "message": "field name already exists"}, body["data"])
	_, body = s.do(http.MethodPost, "/api/form-fields/validate",
		map[string]any{"field_name": "company", "exclude_id": companyID}, s.adminHeader())
	s.Equal(true, body["data"].(map[string]any)["isValid"])

	resp, body = s.do(http.MethodPut, "/api/form-fields/order",
		[]map[string]any{{"id": sizeID}, {"id": companyID}}, s.adminHeader())
	s.Require().Equal(http.StatusOK, resp.StatusCode, body)

	resp, body = s.do(http.MethodGet, "/api/form-fields", nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	list := body["data"].([]any)
	s.Require().Len(list, 2)
	s.Equal("size", list[0].(map[string]any)["field_name"])
	s.Equal("company", list[1].(map[string]any)["field_name"])

	field["field_label"] = "Employer"
	resp, body = s.do(http.MethodPut, "/api/form-fields/"+companyID, field, s.adminHeader())
	s.Require().Equal(http.StatusOK, resp.StatusCode, body)
	s.Equal("Employer", body["data"].(map[string]any)["field_label"])

	resp, _ = s.do(http.MethodDelete, "/api/form-fields/"+companyID, nil, s.adminHeader())
	s.Equal(http.StatusOK, resp.StatusCode)
	resp, body = s.do(http.MethodGet, "/api/form-fields/"+companyID, nil, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal(service.ErrFormFieldNotFound.Error(), body["message"])
}

func (s *APISuite) TestUnknownRoute() {
	resp, body := s.do(http.MethodGet, "/api/nowhere", nil, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal(false, body["success"])
}

func TestWindowEnforcementReturnsForbidden(t *testing.T) {
	fc := clockwork.NewFakeClockAt(epoch)
	d := memoryDeps(t)
	require.NoError(t, d.events.Create(context.Background(), &model.Event{
		ID:                    "E",
		Name:                  "Later",
		Capacity:              1,
		RegistrationStartTime: epoch.Add(time.Hour),
		RegistrationEndTime:   epoch.Add(2 * time.Hour),
	}))
	srv, _ := newServer(t, d, fc, true, false)

	raw, _ := json.Marshal(register("C1", "a@x", "1"))
	resp, err := http.Post(srv.URL+"/api/register", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

type brokenEvents struct{ repository.EventRepository }

func (brokenEvents) GetByID(context.Context, string) (*model.Event, error) {
	return nil, errors.New("disk on fire")
}

func TestInternalErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		expose bool
	}{
		{"production hides detail", false},
		{"development exposes detail", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := memoryDeps(t)
			d.events = brokenEvents{d.events}
			srv, _ := newServer(t, d, clockwork.NewFakeClockAt(epoch), false, tt.expose)

			raw, _ := json.Marshal(register("C1", "a@x", "1"))
			resp, err := http.Post(srv.URL+"/api/register", "application/json", bytes.NewReader(raw))
			require.NoError(t, err)
			defer resp.Body.Close()

			var body model.Response
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Equal(t, "internal server error", body.Message)
			if tt.expose {
				assert.Contains(t, body.Error, "disk on fire")
			} else {
				assert.Empty(t, body.Error)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	fc := clockwork.NewFakeClockAt(epoch)
	srv, _ := newServer(t, memoryDeps(t), fc, false, false)

	raw, _ := json.Marshal(register("C1", "a@x", "1"))
	resp, err := http.Post(srv.URL+"/api/register", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), `presale_registrations_total{result="event_not_found"} 1`)
	assert.Contains(t, string(text), `presale_http_request_duration_seconds_count{method="POST",route="/api/register",status="404"} 1`)
}

func TestRateLimitWithoutRedisPassesThrough(t *testing.T) {
	h := RateLimit(config.RateLimit{Enabled: true, Capacity: 1}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/register", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimitKeyIgnoresClientPort(t *testing.T) {
	keyFor := func(remote string) string {
		r := httptest.NewRequest(http.MethodPost, "/api/register", nil)
		r.RemoteAddr = remote
		return rateLimitKey(r)
	}

	want := "presale:ratelimit:203.0.113.7:POST /api/register"
	for _, remote := range []string{"203.0.113.7:51000", "203.0.113.7:51001", "203.0.113.7"} {
		assert.Equal(t, want, keyFor(remote), remote)
	}
	assert.Equal(t, "presale:ratelimit:2001:db8::1:POST /api/register", keyFor("[2001:db8::1]:443"))
	assert.NotEqual(t, want, keyFor("198.51.100.2:51000"))
}
