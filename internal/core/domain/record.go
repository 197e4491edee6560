package domain

import (
	"encoding/json"
	"strings"
)

// NotAvailable is the placeholder the backend puts in Website when a place has none.
const NotAvailable = "Not Available"

// placeholder is the backend's generic default for fields it could not extract.
const placeholder = "N/A"

// Record is one extracted place. Which fields are meaningful depends on the Schema.
type Record struct {
	PostalCode string `json:"Postal Code,omitempty"`
	Name       string `json:"Name"`
	Address    string `json:"Address"`
	Phone      string `json:"Phone"`
	Website    string `json:"Website"`
	MapsURL    string `json:"URL,omitempty"`
	City       string `json:"City,omitempty"`
	Country    string `json:"Country,omitempty"`
	Rating     string `json:"Rating,omitempty"`
	Reviews    string `json:"Reviews,omitempty"`
}

// WebsiteURL returns the website link, or false when the backend reported none.
func (r Record) WebsiteURL() (string, bool) {
	w := strings.TrimSpace(r.Website)
	if w == "" || strings.EqualFold(w, NotAvailable) || strings.EqualFold(w, placeholder) {
		return "", false
	}
	return w, true
}

// recordKeys lists the accepted wire keys per field, classic keys first.
var recordKeys = struct {
	postal, name, address, phone, website, maps, city, country, rating, reviews []string
}{
	postal:  []string{"Postal Code", "postal_code", "postalCode", "postcode"},
	name:    []string{"Name", "name"},
	address: []string{"Address", "address"},
	phone:   []string{"Phone", "phone"},
	website: []string{"Website", "website"},
	maps:    []string{"URL", "url", "maps_url", "mapsUrl", "google_maps_url"},
	city:    []string{"City", "city"},
	country: []string{"Country", "country"},
	rating:  []string{"Rating", "rating"},
	reviews: []string{"Reviews", "reviews", "Reviews_Count", "reviews_count"},
}

// UnmarshalJSON accepts both protocol shapes. Numeric and boolean values are kept in their textual form.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pick := func(keys []string) string {
		for _, k := range keys {
			v, ok := raw[k]
			if !ok {
				continue
			}
			return rawText(v)
		}
		return ""
	}

	*r = Record{
		PostalCode: pick(recordKeys.postal),
		Name:       pick(recordKeys.name),
		Address:    pick(recordKeys.address),
		Phone:      pick(recordKeys.phone),
		Website:    pick(recordKeys.website),
		MapsURL:    pick(recordKeys.maps),
		City:       pick(recordKeys.city),
		Country:    pick(recordKeys.country),
		Rating:     pick(recordKeys.rating),
		Reviews:    pick(recordKeys.reviews),
	}
	return nil
}

func rawText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	t := strings.TrimSpace(string(v))
	if t == "null" {
		return ""
	}
	return t
}

// Schema names a fixed column layout for a result set.
type Schema string

const (
	SchemaFile          Schema = "file"
	SchemaLocation      Schema = "location"
	SchemaLocationRated Schema = "location-rated"
)

// Column is one exported field.
type Column struct {
	Header string
	Value  func(Record) string
}

var (
	colPostal  = Column{"Postal Code", func(r Record) string { return r.PostalCode }}
	colName    = Column{"Name", func(r Record) string { return r.Name }}
	colAddress = Column{"Address", func(r Record) string { return r.Address }}
	colPhone   = Column{"Phone", func(r Record) string { return r.Phone }}
	colWebsite = Column{"Website", func(r Record) string { return r.Website }}
	colMaps    = Column{"Google Maps URL", func(r Record) string { return r.MapsURL }}
	colCity    = Column{"City", func(r Record) string { return r.City }}
	colCountry = Column{"Country", func(r Record) string { return r.Country }}
	colRating  = Column{"Rating", func(r Record) string { return r.Rating }}
	colReviews = Column{"Reviews", func(r Record) string { return r.Reviews }}
)

// Columns returns the stable column order for the schema.
func (s Schema) Columns() []Column {
	switch s {
	case SchemaFile:
		return []Column{colPostal, colName, colAddress, colPhone, colWebsite, colMaps, colCity, colCountry}
	case SchemaLocation:
		return []Column{colName, colAddress, colPhone, colWebsite, colMaps, colCity, colCountry}
	case SchemaLocationRated:
		return []Column{colName, colAddress, colPhone, colWebsite, colRating, colReviews, colPostal}
	default:
		return nil
	}
}

// Headers returns the header row for the schema.
func (s Schema) Headers() []string {
	cols := s.Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Header
	}
	return out
}

// Row projects a record onto the schema's columns.
func (s Schema) Row(r Record) []string {
	cols := s.Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Value(r)
	}
	return out
}
