package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rentalyzer/internal/app"
	"rentalyzer/internal/domain"
)

type propertyFile struct {
	Properties []struct {
		Address      string   `yaml:"address"`
		Bedrooms     *int     `yaml:"bedrooms"`
		Bathrooms    *float64 `yaml:"bathrooms"`
		Accommodates *int     `yaml:"accommodates"`
	} `yaml:"properties"`
}

// loadProperties reads the warm list, skipping blank addresses and duplicates
// (by cache key). Accommodates falls back to bedrooms*2 like the API does.
func loadProperties(path string) ([]domain.PropertyQuery, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var pf propertyFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := map[string]struct{}{}
	out := make([]domain.PropertyQuery, 0, len(pf.Properties))
	for _, p := range pf.Properties {
		addr := strings.TrimSpace(p.Address)
		if addr == "" {
			continue
		}
		key := app.NormalizeAddress(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		q := domain.PropertyQuery{Address: addr, Bedrooms: p.Bedrooms, Bathrooms: p.Bathrooms}
		guests := app.Accommodates(domain.AnalysisRequest{Bedrooms: p.Bedrooms, Occupancy: p.Accommodates})
		if guests > 0 {
			q.Accommodates = &guests
		}
		out = append(out, q)
	}
	return out, nil
}
