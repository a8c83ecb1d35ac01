package codec

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with the custom OCPP rules the
// payload structs reference via struct tags. Grounded on the teacher's
// internal/domain/validation/validator.go.
type Validator struct {
	validate *validator.Validate
}

var chargePointIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]{1,20}$`)

var connectorStatuses = map[string]bool{
	"Available": true, "Preparing": true, "Charging": true, "SuspendedEVSE": true,
	"SuspendedEV": true, "Finishing": true, "Reserved": true, "Unavailable": true,
	"Faulted": true,
}

var authStatuses = map[string]bool{
	"Accepted": true, "Blocked": true, "Expired": true, "Invalid": true, "ConcurrentTx": true,
}

// NewValidator builds a Validator with the OCPP custom rules registered.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("ocpp_connector_status", func(fl validator.FieldLevel) bool {
		return connectorStatuses[fl.Field().String()]
	})
	_ = v.RegisterValidation("ocpp_auth_status", func(fl validator.FieldLevel) bool {
		return authStatuses[fl.Field().String()]
	})
	_ = v.RegisterValidation("ocpp_id_token", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) > 0 && len(s) <= 20
	})
	return &Validator{validate: v}
}

// ValidationError carries one struct-field failure.
type ValidationError struct {
	Field   string
	Tag     string
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// ValidationErrors is the aggregate returned by ValidateStruct.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Message
}

// ValidateStruct validates payload against its validator tags, returning
// ValidationErrors on failure. Callers map this to FormationViolation or
// PropertyConstraintViolation depending on the failing tag, per 4.A.
func (v *Validator) ValidateStruct(payload interface{}) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ValidationErrors{{Field: "", Tag: "", Message: err.Error()}}
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fmt.Sprintf("field %s failed validation %q", fe.Field(), fe.Tag()),
		})
	}
	return out
}

// IsPropertyConstraint reports whether a validation failure should be
// reported as PropertyConstraintViolation (out-of-range enum/oneof) rather
// than FormationViolation (missing/malformed required field).
func (e ValidationErrors) IsPropertyConstraint() bool {
	for _, fe := range e {
		switch fe.Tag {
		case "oneof", "ocpp_connector_status", "ocpp_auth_status", "gte", "lte", "max", "min":
			return true
		}
	}
	return false
}
