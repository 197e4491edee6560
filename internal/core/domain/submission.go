package domain

import (
	"bytes"
	"io"
)

// Dataset is an uploaded file of postal codes for a file-based search.
type Dataset struct {
	Filename string
	Content  []byte
}

// Reader returns a fresh reader over the dataset bytes.
func (d *Dataset) Reader() io.Reader {
	return bytes.NewReader(d.Content)
}

// Submission is a validated search request, ready to be sent to the backend.
type Submission struct {
	Mode     Mode     `json:"mode"`
	Keyword  string   `json:"keyword"`
	Email    string   `json:"email"`
	RadiusKM float64  `json:"radius_km"`
	Location string   `json:"location,omitempty"`
	Country  string   `json:"country,omitempty"`
	City     string   `json:"city,omitempty"`
	Dataset  *Dataset `json:"-"`
}
