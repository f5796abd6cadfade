package ocpp

import (
	"encoding/json"
	"errors"
	"evsim/types"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validator returns the shared validator instance with json field naming.
func Validator() *validator.Validate {
	return validate
}

// ValidationError carries the failed constraint together with the mapped protocol error code.
type ValidationError struct {
	Code       ErrorCode
	Constraint string
	Field      string
	Err        error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field %s violates %s constraint", e.Field, e.Constraint)
	}
	return fmt.Sprintf("payload violates %s constraint: %v", e.Constraint, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidatePayload decodes raw into target and runs its validate tags. Only the first failing
// constraint is reported. An absent payload is treated as an empty object.
func ValidatePayload(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		constraint := decodeConstraint(err)
		return &ValidationError{
			Code:       MapConstraintToErrorCode(constraint),
			Constraint: constraint,
			Err:        err,
		}
	}
	err := validate.Struct(target)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]
		return &ValidationError{
			Code:       MapConstraintToErrorCode(first.Tag()),
			Constraint: first.Tag(),
			Field:      first.Namespace(),
			Err:        first,
		}
	}
	return &ValidationError{Code: GenericError, Err: err}
}

// ErrorCodeOf returns the protocol error code carried by err, GenericError if there is none.
func ErrorCodeOf(err error) ErrorCode {
	var validationError *ValidationError
	if errors.As(err, &validationError) {
		return validationError.Code
	}
	return GenericError
}

func decodeConstraint(err error) string {
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.Is(err, types.ErrInvalidDateTime):
		return ConstraintDateTime
	case errors.As(err, &typeError):
		return ConstraintType
	default:
		return ""
	}
}
