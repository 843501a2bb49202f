package place

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/placegrade/core"
)

var (
	latTag  = "lat"
	latText = "must be a latitude between -90 and 90"

	lngTag  = "lng"
	lngText = "must be a longitude between -180 and 180"
)

// RegisterValidators registers the coordinates validators and their translations.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(latTag, inRange(90))
	core.RegisterCustomTranslation(validate, translator, latTag, latText)

	_ = validate.RegisterValidation(lngTag, inRange(180))
	core.RegisterCustomTranslation(validate, translator, lngTag, lngText)
}

func inRange(limit float64) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v, ok := fl.Field().Interface().(float64)
		return ok && v >= -limit && v <= limit
	}
}
