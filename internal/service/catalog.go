package service

import (
	"context"
	"sync"

	"mapsjob/internal/core/ports"
)

// LocationCatalog resolves countries and their cities, remembering answers for its lifetime.
type LocationCatalog struct {
	dir ports.Directory

	mu        sync.Mutex
	countries []string
	cities    map[string][]string
}

// NewLocationCatalog creates a LocationCatalog backed by dir.
func NewLocationCatalog(dir ports.Directory) *LocationCatalog {
	return &LocationCatalog{dir: dir, cities: make(map[string][]string)}
}

// Countries returns the selectable countries.
func (c *LocationCatalog) Countries(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	cached := c.countries
	c.mu.Unlock()
	if cached != nil {
		return append([]string(nil), cached...), nil
	}

	countries, err := c.dir.Countries(ctx)
	if err != nil {
		return nil, err
	}
	if countries == nil {
		countries = []string{}
	}

	c.mu.Lock()
	c.countries = countries
	c.mu.Unlock()
	return append([]string(nil), countries...), nil
}

// Resolve returns the city list for country, ready to feed RequestBuilder.Build.
func (c *LocationCatalog) Resolve(ctx context.Context, country string) (ResolvedCities, error) {
	c.mu.Lock()
	cached, ok := c.cities[country]
	c.mu.Unlock()
	if ok {
		return ResolvedCities{Country: country, Cities: append([]string(nil), cached...)}, nil
	}

	cities, err := c.dir.Cities(ctx, country)
	if err != nil {
		return ResolvedCities{}, err
	}

	c.mu.Lock()
	c.cities[country] = cities
	c.mu.Unlock()
	return ResolvedCities{Country: country, Cities: append([]string(nil), cities...)}, nil
}
