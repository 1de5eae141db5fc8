package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-presale/internal/auth"
	"github.com/Shivanand-hulikatti/event-presale/internal/clock"
	"github.com/Shivanand-hulikatti/event-presale/internal/model"
)

func fakeServer(t *testing.T, events []model.EventView) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/time", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.TimeResponse{Success: true, Time: time.Now().UTC()})
	})
	mux.HandleFunc("/api/public/events", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.Response{Success: true, Data: events})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"launch"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch")
}

func TestUsage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), nil, &out))
	assert.Contains(t, out.String(), "countdown")
}

func TestAdminTokenVerifies(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"admin-token", "--secret", "s3cret", "--subject", "ops", "--ttl", "1h"}, &out)
	require.NoError(t, err)

	claims, err := auth.NewIssuer("s3cret", nil).VerifyAdmin(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestAdminTokenRequiresSecret(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "")
	err := run(context.Background(), []string{"admin-token"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestTimeReportsOffset(t *testing.T) {
	srv := fakeServer(t, nil)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"time", "--server", srv.URL}, &out))
	assert.Contains(t, out.String(), "degraded: false")
	assert.Contains(t, out.String(), "server:   "+srv.URL)
}

func TestTimeDegradesWhenServerFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"time", "--server", srv.URL, "--retries", "0"}, &out))
	assert.Contains(t, out.String(), "degraded: true")
}

func TestFetchEventsRejectsFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(model.Response{Success: false, Error: "boom"})
	}))
	defer srv.Close()

	_, err := fetchEvents(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCountdownOnce(t *testing.T) {
	now := time.Now().UTC()
	shownFrom := now.Add(-time.Minute)
	events := []model.EventView{
		{Event: model.Event{
			ID:                    "open",
			Name:                  "Open Now",
			RegistrationStartTime: now.Add(-time.Hour),
			RegistrationEndTime:   now.Add(2 * time.Hour),
		}},
		{Event: model.Event{
			ID:                    "soon",
			Name:                  "Starting Soon",
			RegistrationStartTime: now.Add(30 * time.Minute),
			RegistrationEndTime:   now.Add(3 * time.Hour),
			CountdownType:         model.CountdownCustom,
			CountdownStartTime:    &shownFrom,
		}},
	}
	srv := fakeServer(t, events)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"countdown", "--server", srv.URL, "--once"}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Starting Soon")
	assert.Contains(t, lines[0], string(clock.KindStart))
	assert.Contains(t, lines[1], "Open Now")
	assert.Contains(t, lines[1], string(clock.KindEnd))
}

func TestRenderBoardEmpty(t *testing.T) {
	var out bytes.Buffer
	renderBoard(&out, nil)
	assert.Equal(t, "no pending countdowns\n", out.String())
}
