package validation

import (
	"errors"
	"fmt"

	"impex-service/internal/models"
	"impex-service/internal/schema"

	"github.com/go-playground/validator/v10"
)

// Violation is one failed constraint on one field
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s", v.Field, v.Reason)
}

// Validator checks parsed records against their schema. It is safe for
// concurrent use.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate returns every violation of the record, or nil when it is
// acceptable. Required fields must be present (see schema.IsPresent); field
// rules are checked only on present values and never short-circuit.
func (v *Validator) Validate(rec *models.Record, d *schema.Descriptor) []Violation {
	var violations []Violation

	for _, f := range d.Fields() {
		value := rec.Get(f.Name)
		present := schema.IsPresent(f.Kind, value)

		if f.Required && !present {
			violations = append(violations, Violation{Field: f.Name, Reason: "is required"})
			continue
		}
		if f.Rules == "" || !present {
			continue
		}

		if err := v.validate.Var(value, f.Rules); err != nil {
			var fieldErrs validator.ValidationErrors
			if !errors.As(err, &fieldErrs) {
				violations = append(violations, Violation{Field: f.Name, Reason: err.Error()})
				continue
			}
			for _, fe := range fieldErrs {
				violations = append(violations, Violation{Field: f.Name, Reason: describe(fe)})
			}
		}
	}
	return violations
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		if fe.Param() == "" {
			return "cannot be in the future"
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be %s characters long", fe.Param())
	case "alpha":
		return "must contain letters only"
	case "uppercase":
		return "must be upper case"
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}
