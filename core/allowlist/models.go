package allowlist

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/placegrade/core"
)

// AllowedEmail is an email address permitted to sign in.
// The earliest added one belongs to the admin.
type AllowedEmail struct {
	Email   string    `json:"email"`
	AddedBy string    `json:"added_by,omitempty"` // User ID; empty when unknown
	AddedAt time.Time `json:"added_at"`           // UTC
	IsAdmin bool      `json:"is_admin"`           // read side only
}

type NewAllowedEmail struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (ae *NewAllowedEmail) Clean() {
	ae.Email = core.CleanString(ae.Email, true /* lower */)
}

func (ae *NewAllowedEmail) Validate(validate *validator.Validate) error {
	ae.Clean()
	return validate.Struct(ae)
}
