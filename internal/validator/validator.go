package validator

import (
	"github.com/go-playground/validator/v10"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
)

var validate = validator.New()

// ValidateRequest runs struct tag validation and converts failures into a
// client facing validation error with per field details
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, verr := range validateErrs {
				details[verr.Field()] = verr.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
