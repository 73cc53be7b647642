package httpx

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func ValidationErr(err validator.ValidationErrors) []FieldError {
	var errors []FieldError
	for _, fieldErr := range err {
		errors = append(errors, FieldError{
			Field:   fieldErr.Field(),
			Tag:     fieldErr.ActualTag(),
			Message: fieldMessage(fieldErr),
		})
	}
	return errors
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "This field is required."
	case "email":
		return "Must be a valid email address."
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	default:
		return "Unknown validation error."
	}
}
