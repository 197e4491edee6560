package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapsjob/internal/core/domain"
)

func TestBuildFileBased(t *testing.T) {
	b := NewRequestBuilder()
	ds := &domain.Dataset{Filename: "codes.csv", Content: []byte("75001\n")}

	sub, err := b.Build(Form{
		Mode:    domain.ModeFileBased,
		Dataset: ds,
		Keyword: " Restaurants ",
		Email:   "ops@example.com",
		Radius:  "5",
	}, ResolvedCities{})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeFileBased, sub.Mode)
	assert.Equal(t, "Restaurants", sub.Keyword)
	assert.Equal(t, 5.0, sub.RadiusKM)
	assert.Same(t, ds, sub.Dataset)
}

func TestBuildFileBasedReportsEveryField(t *testing.T) {
	b := NewRequestBuilder()

	_, err := b.Build(Form{Mode: domain.ModeFileBased, Dataset: &domain.Dataset{}, Email: "not-an-email", Radius: "far"}, ResolvedCities{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"file", "keyword", "email", "radius_km"}, fields)
}

func TestBuildRadius(t *testing.T) {
	b := NewRequestBuilder()
	base := Form{
		Mode:    domain.ModeFileBased,
		Dataset: &domain.Dataset{Content: []byte("x")},
		Keyword: "k",
		Email:   "a@b.co",
	}

	for _, radius := range []string{"", "abc", "0", "-3", "1e3"} {
		f := base
		f.Radius = radius
		_, err := b.Build(f, ResolvedCities{})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr, "radius %q", radius)
		assert.True(t, verr.Has("radius_km"), "radius %q", radius)
	}

	f := base
	f.Radius = "2.5"
	sub, err := b.Build(f, ResolvedCities{})
	require.NoError(t, err)
	assert.Equal(t, 2.5, sub.RadiusKM)
}

func TestBuildLocationBased(t *testing.T) {
	b := NewRequestBuilder()
	resolved := ResolvedCities{Country: "France", Cities: []string{"Paris", "Lyon"}}

	sub, err := b.Build(Form{
		Mode:    domain.ModeLocationBased,
		Keyword: "Cafe",
		Email:   "ops@example.com",
		Country: "France",
		City:    "lyon",
		Radius:  "10",
		Dataset: &domain.Dataset{Content: []byte("ignored")},
	}, resolved)
	require.NoError(t, err)
	assert.Equal(t, "Lyon", sub.City)
	assert.Equal(t, "France", sub.Country)
	assert.Nil(t, sub.Dataset)
}

func TestBuildLocationCityNotResolved(t *testing.T) {
	b := NewRequestBuilder()
	form := Form{
		Mode:    domain.ModeLocationBased,
		Keyword: "Restaurants",
		Email:   "ops@example.com",
		Country: "France",
		City:    "Paris",
		Radius:  "5",
	}

	// City list not loaded yet.
	_, err := b.Build(form, ResolvedCities{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("city"))

	// City list belongs to another country.
	_, err = b.Build(form, ResolvedCities{Country: "Germany", Cities: []string{"Paris"}})
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("city"))
}

func TestBuildLocationMissingFields(t *testing.T) {
	b := NewRequestBuilder()

	_, err := b.Build(Form{Mode: domain.ModeLocationBased, Radius: "5"}, ResolvedCities{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"keyword", "email", "country", "city"} {
		assert.True(t, verr.Has(field), field)
	}
	assert.False(t, verr.Has("radius_km"))
}

func TestBuildUnknownMode(t *testing.T) {
	_, err := NewRequestBuilder().Build(Form{Mode: "satellite"}, ResolvedCities{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("mode"))
}
