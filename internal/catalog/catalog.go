// Package catalog serves the property inventory backing the explore track
// and the assistant's question answering.
//
// Inventory is a JSON file. A small default set ships embedded in the
// binary; deployments point at their own file via configuration.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "embed"
)

//go:embed properties.json
var defaultProperties []byte

// DefaultCardLimit caps how many property cards a single chat response
// carries.
const DefaultCardLimit = 6

// Property is one inventory entry.
type Property struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Location    string `json:"location"`
	Price       string `json:"price"`
	Bedrooms    int    `json:"bedrooms"`
	AreaSqft    int    `json:"area_sqft"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// Opts holds configuration for the catalog service.
type Opts struct {
	// Path to an external properties JSON file. Empty means the embedded
	// default set.
	Path string
}

// Option configures the catalog service.
type Option func(*Opts)

// WithPath points the catalog at an external JSON file.
func WithPath(path string) Option {
	return func(o *Opts) { o.Path = path }
}

// Service answers property queries over a loaded inventory. The inventory
// is immutable after construction, so the service is safe for concurrent
// use.
type Service struct {
	properties []Property
}

// NewService loads the inventory from the configured path, or the embedded
// default set when no path is given.
func NewService(opts ...Option) (*Service, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	data := defaultProperties
	if cfg.Path != "" {
		loaded, err := os.ReadFile(cfg.Path)
		if err != nil {
			slog.Error("catalog.NewService: failed to read properties file", "error", err, "path", cfg.Path)
			return nil, fmt.Errorf("failed to read properties file: %w", err)
		}
		data = loaded
	}

	var properties []Property
	if err := json.Unmarshal(data, &properties); err != nil {
		slog.Error("catalog.NewService: failed to parse properties", "error", err)
		return nil, fmt.Errorf("failed to parse properties: %w", err)
	}

	slog.Debug("catalog.NewService loaded inventory", "count", len(properties), "embedded", cfg.Path == "")
	return &Service{properties: properties}, nil
}

// All returns a copy of the full inventory.
func (s *Service) All() []Property {
	out := make([]Property, len(s.properties))
	copy(out, s.properties)
	return out
}

// ByID returns the property with the given ID, or nil.
func (s *Service) ByID(id string) *Property {
	for i := range s.properties {
		if s.properties[i].ID == id {
			p := s.properties[i]
			return &p
		}
	}
	return nil
}

// Filter returns up to limit properties matching the given type and, when
// locations are provided, at least one location substring. Matching is
// case-insensitive. An empty propertyType matches every type.
func (s *Service) Filter(propertyType string, locations []string, limit int) []Property {
	if limit <= 0 {
		limit = DefaultCardLimit
	}
	wantType := strings.ToLower(strings.TrimSpace(propertyType))

	var out []Property
	for _, p := range s.properties {
		if wantType != "" && strings.ToLower(p.Type) != wantType {
			continue
		}
		if len(locations) > 0 && !matchesLocation(p.Location, locations) {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

func matchesLocation(propertyLocation string, locations []string) bool {
	haystack := strings.ToLower(propertyLocation)
	for _, loc := range locations {
		needle := strings.ToLower(strings.TrimSpace(loc))
		if needle != "" && strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// RelevantContext formats properties matching keywords in the question for
// inclusion in an assistant prompt. At most three entries are rendered to
// keep the prompt small.
func (s *Service) RelevantContext(question string) string {
	q := strings.ToLower(question)

	var relevant []Property
	switch {
	case strings.Contains(q, "omr"):
		relevant = s.Filter("", []string{"OMR"}, 0)
	case strings.Contains(q, "ecr"):
		relevant = s.Filter("", []string{"ECR"}, 0)
	case strings.Contains(q, "villa"):
		relevant = s.Filter("villa", nil, 0)
	case strings.Contains(q, "apartment") || strings.Contains(q, "flat"):
		relevant = s.Filter("apartment", nil, 0)
	case strings.Contains(q, "plot") || strings.Contains(q, "land"):
		relevant = s.Filter("plot", nil, 0)
	case strings.Contains(q, "commercial") || strings.Contains(q, "office"):
		relevant = s.Filter("commercial", nil, 0)
	default:
		relevant = s.properties
		if len(relevant) > 5 {
			relevant = relevant[:5]
		}
	}

	if len(relevant) == 0 {
		return "No specific properties match this query."
	}
	if len(relevant) > 3 {
		relevant = relevant[:3]
	}

	var b strings.Builder
	for _, p := range relevant {
		fmt.Fprintf(&b, "Property: %s\nType: %s\nLocation: %s\nPrice: ₹%s\n", p.Name, p.Type, p.Location, p.Price)
		if p.Bedrooms > 0 {
			fmt.Fprintf(&b, "Bedrooms: %d\n", p.Bedrooms)
		}
		if p.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", p.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Cards converts properties into the generic map shape carried by chat
// response metadata for the widget's property-card renderer.
func Cards(properties []Property) []map[string]any {
	cards := make([]map[string]any, 0, len(properties))
	for _, p := range properties {
		cards = append(cards, map[string]any{
			"id":        p.ID,
			"name":      p.Name,
			"type":      p.Type,
			"location":  p.Location,
			"price":     p.Price,
			"bedrooms":  p.Bedrooms,
			"area_sqft": p.AreaSqft,
			"image_url": p.ImageURL,
		})
	}
	return cards
}
