package service

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"mapsjob/internal/core/domain"
)

// Form holds raw user input for a search.
type Form struct {
	Mode     domain.Mode
	Dataset  *domain.Dataset
	Keyword  string
	Email    string
	Location string // optional free-text hint for file-based searches
	Country  string
	City     string
	Radius   string
}

// ResolvedCities is the city list the directory returned for a country.
type ResolvedCities struct {
	Country string
	Cities  []string
}

type fileFields struct {
	Dataset []byte `json:"file" validate:"min=1"`
	Keyword string `json:"keyword" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Radius  string `json:"radius_km" validate:"required,numeric"`
}

type locationFields struct {
	Keyword string `json:"keyword" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Country string `json:"country" validate:"required"`
	City    string `json:"city" validate:"required"`
	Radius  string `json:"radius_km" validate:"required,numeric"`
}

var fieldMessages = map[string]string{
	"required": "is required",
	"min":      "is required",
	"email":    "must be a valid email address",
	"numeric":  "must be a number",
}

// RequestBuilder turns raw form values into a validated submission. It never performs I/O.
type RequestBuilder struct {
	validate *validator.Validate
}

// NewRequestBuilder creates a RequestBuilder.
func NewRequestBuilder() *RequestBuilder {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &RequestBuilder{validate: v}
}

// Build validates form and returns the submission payload.
// Location-based searches also need the city list resolved for the selected country.
// Every invalid field is reported in a single *domain.ValidationError.
func (b *RequestBuilder) Build(form Form, resolved ResolvedCities) (domain.Submission, error) {
	if !form.Mode.Valid() {
		return domain.Submission{}, &domain.ValidationError{Fields: []domain.FieldError{
			{Field: "mode", Message: fmt.Sprintf("must be %q or %q", domain.ModeFileBased, domain.ModeLocationBased)},
		}}
	}
	if form.Mode == domain.ModeLocationBased {
		return b.buildLocation(form, resolved)
	}
	return b.buildFile(form)
}

func (b *RequestBuilder) buildFile(form Form) (domain.Submission, error) {
	fields := fileFields{
		Keyword: strings.TrimSpace(form.Keyword),
		Email:   strings.TrimSpace(form.Email),
		Radius:  strings.TrimSpace(form.Radius),
	}
	if form.Dataset != nil {
		fields.Dataset = form.Dataset.Content
	}

	verr := b.check(fields)
	radius := parseRadius(fields.Radius, verr)
	if len(verr.Fields) > 0 {
		return domain.Submission{}, verr
	}

	return domain.Submission{
		Mode:     domain.ModeFileBased,
		Keyword:  fields.Keyword,
		Email:    fields.Email,
		RadiusKM: radius,
		Location: strings.TrimSpace(form.Location),
		Dataset:  form.Dataset,
	}, nil
}

func (b *RequestBuilder) buildLocation(form Form, resolved ResolvedCities) (domain.Submission, error) {
	fields := locationFields{
		Keyword: strings.TrimSpace(form.Keyword),
		Email:   strings.TrimSpace(form.Email),
		Country: strings.TrimSpace(form.Country),
		City:    strings.TrimSpace(form.City),
		Radius:  strings.TrimSpace(form.Radius),
	}

	verr := b.check(fields)
	city := fields.City
	if fields.Country != "" && fields.City != "" {
		var ok bool
		city, ok = resolveCity(fields.Country, fields.City, resolved)
		if !ok {
			verr.Fields = append(verr.Fields, domain.FieldError{
				Field:   "city",
				Message: fmt.Sprintf("is not in the city list for %s", fields.Country),
			})
		}
	}
	radius := parseRadius(fields.Radius, verr)
	if len(verr.Fields) > 0 {
		return domain.Submission{}, verr
	}

	return domain.Submission{
		Mode:     domain.ModeLocationBased,
		Keyword:  fields.Keyword,
		Email:    fields.Email,
		RadiusKM: radius,
		Country:  fields.Country,
		City:     city,
	}, nil
}

// check runs the struct rules and collects failures in field order.
func (b *RequestBuilder) check(s any) *domain.ValidationError {
	verr := &domain.ValidationError{}
	err := b.validate.Struct(s)
	if err == nil {
		return verr
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "form", Message: err.Error()})
		return verr
	}
	for _, e := range errs {
		msg, ok := fieldMessages[e.Tag()]
		if !ok {
			msg = "is invalid: " + e.Tag()
		}
		verr.Fields = append(verr.Fields, domain.FieldError{Field: e.Field(), Message: msg})
	}
	return verr
}

// parseRadius returns the radius in km, adding a field error when it is not positive.
// Non-numeric input was already reported by the struct rules.
func parseRadius(raw string, verr *domain.ValidationError) float64 {
	if verr.Has("radius_km") {
		return 0
	}
	km, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "radius_km", Message: "must be a number"})
		return 0
	}
	if km <= 0 {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "radius_km", Message: "must be greater than zero"})
		return 0
	}
	return km
}

// resolveCity finds city in the list resolved for country and returns its canonical spelling.
func resolveCity(country, city string, resolved ResolvedCities) (string, bool) {
	if !strings.EqualFold(strings.TrimSpace(resolved.Country), country) {
		return "", false
	}
	for _, c := range resolved.Cities {
		if strings.EqualFold(strings.TrimSpace(c), city) {
			return c, true
		}
	}
	return "", false
}
