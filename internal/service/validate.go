package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/auth"
	"github.com/sakif/blood-connect/internal/model"
)

// validate is shared by every service. A *validator.Validate caches struct
// metadata and is safe for concurrent use, so one instance is enough.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name ("bloodType"), which is what API
	// clients see, instead of the Go field name ("BloodType").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Registering on a fresh validator only fails for an empty tag.
	_ = v.RegisterValidation("bloodtype", func(fl validator.FieldLevel) bool {
		return model.BloodType(fl.Field().String()).Valid()
	})

	// bcrypt only reads the first 72 bytes, and "max" counts runes, so a
	// password of 30 CJK characters would pass max=72 and still be too long.
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= auth.MaxPasswordBytes
	})

	return v
}

// validateStruct runs the struct tags of in and converts the first failure
// into an apperror.ValidationFailed naming the offending field.
func validateStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("service: validating input: %w", err)
	}

	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), fieldMessage(fe))
}

// fieldMessage turns a failed tag into a sentence a form can show next to the field.
func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "please provide a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "bloodtype":
		return "please select a valid blood type"
	case "bcryptlen":
		return fmt.Sprintf("%s must be at most %d bytes", field, auth.MaxPasswordBytes)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
