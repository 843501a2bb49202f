package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/placegrade/core"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
	LastLogin time.Time `json:"last_login"` // UTC
}

// GetFilter selects a single User; the first non-empty field is used.
type GetFilter struct {
	ID    string
	Email string
}

// SignInRequest starts the passwordless sign-in of a User.
type SignInRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Next  string `json:"next" validate:"omitempty,startswith=/"`
}

func (sr *SignInRequest) Clean() {
	sr.Email = core.CleanString(sr.Email, true /* lower */)
	sr.Next = core.CleanString(sr.Next)
}

func (sr *SignInRequest) Validate(validate *validator.Validate) error {
	sr.Clean()
	return validate.Struct(sr)
}

// SignInConfirmation completes a sign-in with the values of the emailed link.
type SignInConfirmation struct {
	UID   string `json:"uid" validate:"required"`
	Token string `json:"token" validate:"required"`
}

func (sc *SignInConfirmation) Clean() {
	sc.UID = core.CleanString(sc.UID)
	sc.Token = core.CleanString(sc.Token)
}

func (sc *SignInConfirmation) Validate(validate *validator.Validate) error {
	sc.Clean()
	return validate.Struct(sc)
}
