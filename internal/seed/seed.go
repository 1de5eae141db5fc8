// Package seed loads initial events from YAML or JSONC files into an empty
// event registry.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/repository"
)

type document struct {
	Events []model.Event `json:"events" yaml:"events"`
}

// Parse decodes a seed document. The format is chosen by extension: .yaml
// and .yml are YAML, anything else is JSON with comments allowed.
func Parse(name string, data []byte) ([]model.Event, error) {
	var doc document
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml seed: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return nil, fmt.Errorf("parse json seed: %w", err)
		}
	}

	for i, e := range doc.Events {
		if e.Name == "" || e.Capacity < 1 {
			return nil, fmt.Errorf("seed event %d: name and positive capacity are required", i)
		}
		if !e.RegistrationEndTime.After(e.RegistrationStartTime) {
			return nil, fmt.Errorf("seed event %q: registration end must be after start", e.Name)
		}
	}
	return doc.Events, nil
}

// LoadFile reads and parses path.
func LoadFile(path string) ([]model.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(path, data)
}

// Apply inserts events when the registry is empty and reports how many were
// inserted. Missing IDs are generated and timestamps default to now.
func Apply(ctx context.Context, repo repository.EventRepository, events []model.Event, now time.Time) (int, error) {
	existing, err := repo.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		log.Debug().Int("existing", len(existing)).Msg("event registry not empty, skipping seed")
		return 0, nil
	}

	for i := range events {
		e := events[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = e.CreatedAt
		}
		if err := repo.Create(ctx, &e); err != nil {
			return i, fmt.Errorf("seed event %q: %w", e.Name, err)
		}
	}
	return len(events), nil
}
