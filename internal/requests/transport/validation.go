package transport

import (
	"servitec_backend/internal/requests/domain"
	"servitec_backend/platform/validator"

	playground "github.com/go-playground/validator/v10"
)

// RegisterValidations adds the urgency and mode tags used by the DTOs above.
func RegisterValidations(v *validator.Validator) error {
	if err := v.RegisterValidation("urgency", func(fl playground.FieldLevel) bool {
		switch domain.Urgency(fl.Field().String()) {
		case domain.UrgencyLow, domain.UrgencyMedium, domain.UrgencyHigh:
			return true
		}
		return false
	}); err != nil {
		return err
	}
	return v.RegisterValidation("mode", func(fl playground.FieldLevel) bool {
		switch domain.Mode(fl.Field().String()) {
		case domain.ModeMarketplace, domain.ModeDirect:
			return true
		}
		return false
	})
}
