package review

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/grade"
	"github.com/trezcool/placegrade/core/place"
)

type Review struct {
	ID              string      `json:"id"`
	EstablishmentID string      `json:"establishment_id"`
	UserID          string      `json:"user_id"`
	UserEmail       string      `json:"user_email,omitempty"` // read side only
	Grade           grade.Grade `json:"grade"`
	ReviewText      string      `json:"review_text,omitempty"`
	PhotoURL        string      `json:"photo_url,omitempty"`
	CreatedAt       time.Time   `json:"created_at"` // UTC
	UpdatedAt       time.Time   `json:"updated_at"` // UTC
}

// NewReview grades an existing establishment (EstablishmentID) or a place to create (Place).
type NewReview struct {
	EstablishmentID string                  `json:"establishment_id" validate:"omitempty,uuid"`
	Place           *place.NewEstablishment `json:"place"`
	Grade           grade.Grade             `json:"grade" validate:"required,grade"`
	ReviewText      string                  `json:"review_text" validate:"max=2000"`
	PhotoURL        string                  `json:"photo_url" validate:"omitempty,url,max=2048"`
}

func (nr *NewReview) Clean() {
	nr.EstablishmentID = core.CleanString(nr.EstablishmentID)
	nr.ReviewText = core.CleanString(nr.ReviewText)
	nr.PhotoURL = core.CleanString(nr.PhotoURL)
	if nr.Place != nil {
		nr.Place.Clean()
	}
}

// Validate cleans and validates the review, the Place to create included.
func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Clean()
	return validate.Struct(nr)
}

// EstablishmentWithReviews is the page of an establishment: its average grade and all its reviews.
type EstablishmentWithReviews struct {
	place.Establishment
	Reviews []Review `json:"reviews"`
}
