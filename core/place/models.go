package place

import (
	"time"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/grade"
)

// Establishment is a reviewed place.
// AverageGrade and ReviewCount are kept in sync with its reviews; AverageGrade is nil without reviews.
type Establishment struct {
	ID            string       `json:"id"`
	GooglePlaceID string       `json:"google_place_id,omitempty"`
	Name          string       `json:"name"`
	Address       string       `json:"address"`
	Lat           float64      `json:"lat"`
	Lng           float64      `json:"lng"`
	PhotoURL      string       `json:"photo_url,omitempty"`
	AverageGrade  *grade.Grade `json:"average_grade"`
	ReviewCount   int          `json:"review_count"`
	CreatedAt     time.Time    `json:"created_at"` // UTC
	UpdatedAt     time.Time    `json:"updated_at"` // UTC
}

// NewEstablishment describes a place to review.
// With a GooglePlaceID only, the other fields are fetched from the places Provider.
type NewEstablishment struct {
	GooglePlaceID string   `json:"google_place_id" validate:"omitempty,max=255"`
	Name          string   `json:"name" validate:"required_without=GooglePlaceID,max=255"`
	Address       string   `json:"address" validate:"required_without=GooglePlaceID,max=500"`
	Lat           *float64 `json:"lat" validate:"required_without=GooglePlaceID,omitempty,lat"`
	Lng           *float64 `json:"lng" validate:"required_without=GooglePlaceID,omitempty,lng"`
	PhotoURL      string   `json:"photo_url" validate:"omitempty,url"`
}

func (ne *NewEstablishment) Clean() {
	ne.GooglePlaceID = core.CleanString(ne.GooglePlaceID)
	ne.Name = core.CleanString(ne.Name)
	ne.Address = core.CleanString(ne.Address)
	ne.PhotoURL = core.CleanString(ne.PhotoURL)
}

func (ne NewEstablishment) complete() bool {
	return ne.Name != "" && ne.Address != "" && ne.Lat != nil && ne.Lng != nil
}

// fill sets the missing fields from a provider result.
func (ne *NewEstablishment) fill(pr PlaceResult) {
	if ne.Name == "" {
		ne.Name = pr.Name
	}
	if ne.Address == "" {
		ne.Address = pr.Address
	}
	if ne.Lat == nil || ne.Lng == nil {
		lat, lng := pr.Lat, pr.Lng
		ne.Lat, ne.Lng = &lat, &lng
	}
	if ne.PhotoURL == "" {
		ne.PhotoURL = pr.PhotoURL
	}
}

type LatLng struct {
	Lat float64 `json:"lat" validate:"lat"`
	Lng float64 `json:"lng" validate:"lng"`
}

// PlaceResult is a place found by the Provider.
// EstablishmentID is set when the place has already been reviewed.
type PlaceResult struct {
	PlaceID         string  `json:"place_id"`
	Name            string  `json:"name"`
	Address         string  `json:"address"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	PhotoURL        string  `json:"photo_url,omitempty"`
	EstablishmentID string  `json:"establishment_id,omitempty"`
}

// Marker is an establishment pin on the map, colored after its average grade.
type Marker struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Lat   float64     `json:"lat"`
	Lng   float64     `json:"lng"`
	Grade grade.Grade `json:"grade"`
	Color string      `json:"color"`
}

// GetFilter selects a single Establishment; the first non-empty field is used.
type GetFilter struct {
	ID            string
	GooglePlaceID string
	ForUpdate     bool // lock the row until the end of the transaction
}

type QueryFilter struct {
	Search   string       // name or address contains
	MinGrade *grade.Grade // average grade at least; excludes establishments without reviews
}

// AverageUpdate carries the recomputed aggregate of an Establishment's reviews.
type AverageUpdate struct {
	ID           string
	AverageGrade *grade.Grade
	ReviewCount  int
	UpdatedAt    time.Time
}
