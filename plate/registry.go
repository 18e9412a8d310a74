package plate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrInvalidPattern reports a city pattern that cannot be used for matching.
var ErrInvalidPattern = errors.New("invalid city pattern")

// CityPattern maps an uppercase plate token to the display name of the
// issuing city.
type CityPattern struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Registry is an immutable, ordered set of city patterns. Patterns are kept
// longest code first; equal lengths keep their declaration order. A Registry
// is safe for concurrent use.
type Registry struct {
	patterns []CityPattern
}

var defaultRegistry = mustRegistry(
	CityPattern{Code: "ABUDHABI", Name: "Abu Dhabi"},
	CityPattern{Code: "AUH", Name: "Abu Dhabi"},
	CityPattern{Code: "ALAIN", Name: "Al Ain"},
	CityPattern{Code: "DUBAI", Name: "Dubai"},
	CityPattern{Code: "DXB", Name: "Dubai"},
	CityPattern{Code: "SHARJAH", Name: "Sharjah"},
	CityPattern{Code: "SHJ", Name: "Sharjah"},
	CityPattern{Code: "AJMAN", Name: "Ajman"},
	CityPattern{Code: "AJM", Name: "Ajman"},
	CityPattern{Code: "UMMALQUWAIN", Name: "Umm Al Quwain"},
	CityPattern{Code: "UAQ", Name: "Umm Al Quwain"},
	CityPattern{Code: "RASALKHAIMAH", Name: "Ras Al Khaimah"},
	CityPattern{Code: "RAK", Name: "Ras Al Khaimah"},
	CityPattern{Code: "FUJAIRAH", Name: "Fujairah"},
	CityPattern{Code: "FJR", Name: "Fujairah"},
)

// DefaultRegistry returns the built-in table of UAE emirate codes.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// NewRegistry validates the patterns and returns them as a Registry.
func NewRegistry(patterns ...CityPattern) (*Registry, error) {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]CityPattern, 0, len(patterns))
	for i, p := range patterns {
		if p.Code == "" {
			return nil, fmt.Errorf("%w: entry %d has an empty code", ErrInvalidPattern, i)
		}
		for _, r := range p.Code {
			if r < 'A' || r > 'Z' {
				return nil, fmt.Errorf("%w: code %q must contain only A-Z", ErrInvalidPattern, p.Code)
			}
		}
		if p.Name == "" {
			return nil, fmt.Errorf("%w: code %q has an empty name", ErrInvalidPattern, p.Code)
		}
		if _, dup := seen[p.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %q", ErrInvalidPattern, p.Code)
		}
		seen[p.Code] = struct{}{}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Code) > len(out[j].Code) })
	return &Registry{patterns: out}, nil
}

// LoadRegistry reads a JSON array of {"code", "name"} objects.
func LoadRegistry(r io.Reader) (*Registry, error) {
	var patterns []CityPattern
	if err := json.NewDecoder(r).Decode(&patterns); err != nil {
		return nil, fmt.Errorf("decode city registry: %w", err)
	}
	return NewRegistry(patterns...)
}

// Patterns returns a copy of the registry in matching order.
func (r *Registry) Patterns() []CityPattern {
	return append([]CityPattern(nil), r.patterns...)
}

// Len reports the number of patterns.
func (r *Registry) Len() int { return len(r.patterns) }

func mustRegistry(patterns ...CityPattern) *Registry {
	r, err := NewRegistry(patterns...)
	if err != nil {
		panic(err)
	}
	return r
}
