// Package validator wraps go-playground validation and registers the
// identifier formats the booking API accepts.
package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// Peruvian license plates: three alphanumerics, an optional dash, three
	// alphanumerics (ABC-123, W3J505).
	plateRE = regexp.MustCompile(`^[A-Z0-9]{3}-?[A-Z0-9]{3}$`)

	// Identity documents: 8-digit DNI, 11-digit RUC, or a 9 to 12 character
	// immigration card starting with its letter prefix.
	documentRE = regexp.MustCompile(`^(?:[0-9]{8}|[0-9]{11}|[A-Z][A-Z0-9]{8,11})$`)
)

// Validator validates transport DTOs against their struct tags plus the
// domain tags registered here: "plate" and "document".
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("plate", func(fl validator.FieldLevel) bool {
		return plateRE.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("document", func(fl validator.FieldLevel) bool {
		return documentRE.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates a struct based on its validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}
