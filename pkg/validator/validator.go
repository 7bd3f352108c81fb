package validator

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/hmis-api/pkg/errors"
)

var once sync.Once

// RegisterJSONTagNames makes gin's validator report fields by their json name
func RegisterJSONTagNames() {
	once.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonName)
		}
	})
}

func jsonName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}

// FromBindError converts a gin binding failure into a Validation error
// listing each offending field.
func FromBindError(err error) *errors.AppError {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		fields := make([]errors.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, errors.FieldError{
				Field:   fe.Field(),
				Message: message(fe),
			})
		}
		return errors.Validation("validation failed", fields...)
	}

	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return errors.Validation("validation failed", errors.FieldError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be a %s", typeErr.Type),
		})
	}

	return errors.Validation("invalid request body: " + err.Error())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
