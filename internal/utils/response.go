// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/saptechnologies/sap-backend/internal/apperr"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// debugErrors adds raw error text to 5xx responses. Enabled outside production.
var debugErrors = false

func SetDebugErrors(enabled bool) {
	debugErrors = enabled
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	if message == "" {
		message = "Invalid request"
	}
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Access denied"
	}
	ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", message, nil)
}

func NotFoundResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", message, nil)
}

func StateConflictResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, "STATE_CONFLICT", message, nil)
}

func TooManyRequestsResponse(c *gin.Context) {
	ErrorResponse(c, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded. Please try again later.", nil)
}

func InternalErrorResponse(c *gin.Context, message string, err error) {
	if message == "" {
		message = "Internal server error"
	}
	var details interface{}
	if debugErrors && err != nil {
		details = gin.H{"debug": err.Error()}
	}
	ErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, details)
}

// HandleError maps a service error onto the response taxonomy.
func HandleError(c *gin.Context, err error) {
	message := apperr.Message(err)

	switch {
	case errors.Is(err, apperr.ErrValidation):
		ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
	case errors.Is(err, apperr.ErrNotFound):
		NotFoundResponse(c, message)
	case errors.Is(err, apperr.ErrStateConflict):
		StateConflictResponse(c, message)
	case errors.Is(err, apperr.ErrUnauthorized):
		UnauthorizedResponse(c, message)
	case errors.Is(err, apperr.ErrForbidden):
		ForbiddenResponse(c, message)
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		}).Error("Request failed")
		InternalErrorResponse(c, message, err)
	}
}

func PaginatedResponse(c *gin.Context, data interface{}, meta PageMeta) {
	SetPaginationHeaders(c, meta)
	SuccessResponseWithMeta(c, data, gin.H{
		"pagination": meta,
	})
}

func GetUserIDFromContext(c *gin.Context) (string, bool) {
	if userID, exists := c.Get("user_id"); exists {
		if userIDStr, ok := userID.(string); ok {
			return userIDStr, true
		}
	}
	return "", false
}

func GetUserRoleFromContext(c *gin.Context) (string, bool) {
	if role, exists := c.Get("user_role"); exists {
		if roleStr, ok := role.(string); ok {
			return roleStr, true
		}
	}
	return "", false
}
