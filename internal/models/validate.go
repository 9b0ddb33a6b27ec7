package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,30}$`)

func validateAlias(fieldLevel validator.FieldLevel) bool {
	return aliasPattern.MatchString(fieldLevel.Field().String())
}

var theValidator *validator.Validate

func init() {
	theValidator = validator.New()
	if err := theValidator.RegisterValidation("alias", validateAlias); err != nil {
		panic(err)
	}
}

// fieldMessages maps a failed field/tag pair to the text shown next to
// the offending field. Unlisted pairs fall back to a generic message.
var fieldMessages = map[string]string{
	"Email/required":          "Email is required",
	"Email/email":             "Invalid email address",
	"Password/required":       "Password is required",
	"Password/min":            "Password must be at least 8 characters",
	"ConfirmPassword/eqfield": "Passwords do not match",
	"OriginalURL/required":    "A URL is required",
	"OriginalURL/url":         "Please enter a valid URL",
	"CustomAlias/alias":       "Alias may only contain letters, digits, dashes and underscores (3-30 characters)",
}

// ValidationError aggregates per-field validation messages for one
// request value. It is produced before any network call is made.
type ValidationError struct {
	// Fields maps the struct field name to its message.
	Fields map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, msg := range e.Fields {
		parts = append(parts, msg)
	}

	return strings.Join(parts, "; ")
}

// Validate checks a request value against its validation tags and
// returns a *ValidationError describing every offending field, or nil.
func Validate(value interface{}) error {
	err := theValidator.Struct(value)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	result := &ValidationError{Fields: map[string]string{}}
	for _, fieldError := range validationErrors {
		message, ok := fieldMessages[fieldError.Field()+"/"+fieldError.Tag()]
		if !ok {
			message = fmt.Sprintf("%s is invalid", fieldError.Field())
		}
		result.Fields[fieldError.Field()] = message
	}

	return result
}
