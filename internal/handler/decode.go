package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/fitting-room/internal/apperror"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name so clients can match them to inputs.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a single JSON object into dst and validates its struct
// tags. Failures come back as InvalidRequest naming the first bad field.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("", "request body is required")
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("", "request body is too large")
		default:
			return apperror.ValidationFailed("", "request body is not valid JSON")
		}
	}
	if dec.More() {
		return apperror.ValidationFailed("", "request body must contain a single JSON object")
	}

	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validating request: %w", err)
	}
	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), validationMessage(fe))
}

func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	collection := false
	switch fe.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		collection = true
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	case "min":
		if collection {
			return fmt.Sprintf("%s must have at least %s items or characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if collection {
			return fmt.Sprintf("%s must have at most %s items or characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
