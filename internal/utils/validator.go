// internal/utils/validator.go
package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/saptechnologies/sap-backend/internal/models"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("not_blank", validateNotBlank)
	validate.RegisterValidation("nomination_status", validateNominationStatus)
	validate.RegisterValidation("contact_status", validateContactStatus)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidateVar validates a single value against a tag, e.g. ValidateVar(email, "required,email").
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateNominationStatus(fl validator.FieldLevel) bool {
	return models.NominationStatus(fl.Field().String()).Valid()
}

func validateContactStatus(fl validator.FieldLevel) bool {
	switch models.ContactStatus(fl.Field().String()) {
	case models.ContactStatusNew, models.ContactStatusRead, models.ContactStatusReplied, models.ContactStatusArchived:
		return true
	}
	return false
}

// NormalizeEmail lowercases and trims an address. Vote dedup and subscriber lookups rely on it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   lowerFirst(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func getValidationMessage(e validator.FieldError) string {
	field := lowerFirst(e.Field())
	switch e.Tag() {
	case "required", "not_blank":
		return field + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return field + " must be at least " + e.Param() + " characters"
	case "max":
		return field + " must be at most " + e.Param() + " characters"
	case "uuid", "uuid4":
		return field + " must be a valid id"
	case "url":
		return field + " must be a valid URL"
	case "nomination_status":
		return "status must be one of pending, approved, rejected, winner, finalist"
	case "contact_status":
		return "status must be one of new, read, replied, archived"
	default:
		return field + " is invalid"
	}
}
