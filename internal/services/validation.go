// internal/services/validation.go
package services

import (
	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

// validateRequest runs struct validation and reports the first failing field.
func validateRequest(req interface{}) error {
	err := utils.ValidateStruct(req)
	if err == nil {
		return nil
	}

	if fieldErrors := utils.GetValidationErrors(err); len(fieldErrors) > 0 {
		return apperr.Validation("%s", fieldErrors[0].Message)
	}
	return apperr.Validation("Invalid input")
}
