package clock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-presale/internal/model"
)

// TimePath is the route serving authoritative time.
const TimePath = "/api/time"

// HTTPTimeSource fetches authoritative time from a presale API server.
type HTTPTimeSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTimeSource builds a fetcher for baseURL. A zero timeout defaults to 5s.
func NewHTTPTimeSource(baseURL string, timeout time.Duration) *HTTPTimeSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPTimeSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchTime performs GET /api/time and parses the ISO8601 timestamp.
func (c *HTTPTimeSource) FetchTime(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+TimePath, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return time.Time{}, fmt.Errorf("time endpoint returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	var payload model.TimeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return time.Time{}, fmt.Errorf("decode time response: %w", err)
	}
	if !payload.Success || payload.Time.IsZero() {
		return time.Time{}, errors.New("malformed time response")
	}
	return payload.Time, nil
}
