package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rover-control/rover/internal/driver"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// API error codes for transport/security conditions
var (
	ErrBadRequest        = errors.New("BAD_REQUEST")
	ErrUnauthorizedError = errors.New("UNAUTHORIZED")
	ErrForbiddenError    = errors.New("FORBIDDEN")
)

// ToAPIError converts an error to an HTTP status code and JSON body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	var drvErr *driver.DriverError
	if errors.As(err, &drvErr) {
		code, statusCode := mapDriverError(drvErr.Code)
		return statusCode, marshalErrorResponse(code, getErrorMessage(drvErr.Code, drvErr.Original), nil)
	}

	// Driver error sentinels
	if errors.Is(err, driver.ErrInvalidRange) {
		return http.StatusBadRequest, marshalErrorResponse("INVALID_RANGE", getErrorMessage(driver.ErrInvalidRange, err), nil)
	}
	if errors.Is(err, driver.ErrBusy) {
		return http.StatusServiceUnavailable, marshalErrorResponse("BUSY", getErrorMessage(driver.ErrBusy, err), nil)
	}
	if errors.Is(err, driver.ErrUnavailable) {
		return http.StatusServiceUnavailable, marshalErrorResponse("UNAVAILABLE", getErrorMessage(driver.ErrUnavailable, err), nil)
	}
	if errors.Is(err, driver.ErrInternal) {
		return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", getErrorMessage(driver.ErrInternal, err), nil)
	}

	// Transport/security errors
	if errors.Is(err, ErrBadRequest) {
		return http.StatusBadRequest, marshalErrorResponse("BAD_REQUEST", "Malformed or missing required parameter", nil)
	}
	if errors.Is(err, ErrUnauthorizedError) {
		return http.StatusUnauthorized, marshalErrorResponse("UNAUTHORIZED", "Authentication required", nil)
	}
	if errors.Is(err, ErrForbiddenError) {
		return http.StatusForbidden, marshalErrorResponse("FORBIDDEN", "Insufficient permissions", nil)
	}

	// Default to internal server error for unknown errors
	return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", map[string]interface{}{
		"original": err.Error(),
	})
}

// mapDriverError maps driver error codes to API error codes and HTTP status codes.
func mapDriverError(code error) (string, int) {
	switch {
	case errors.Is(code, driver.ErrInvalidRange):
		return "INVALID_RANGE", http.StatusBadRequest
	case errors.Is(code, driver.ErrBusy):
		return "BUSY", http.StatusServiceUnavailable
	case errors.Is(code, driver.ErrUnavailable):
		return "UNAVAILABLE", http.StatusServiceUnavailable
	default:
		return "INTERNAL", http.StatusInternalServerError
	}
}

// getErrorMessage returns a user-friendly error message for the given error.
func getErrorMessage(code error, original error) string {
	switch {
	case errors.Is(code, driver.ErrInvalidRange):
		return "Parameter value is outside the allowed range"
	case errors.Is(code, driver.ErrBusy):
		return "Actuator is busy, please retry with backoff"
	case errors.Is(code, driver.ErrUnavailable):
		return "Actuator is temporarily unavailable"
	case errors.Is(code, driver.ErrInternal):
		return "Internal server error"
	default:
		if original != nil {
			return original.Error()
		}
		return "Unknown error"
	}
}

// marshalErrorResponse creates a JSON error response with correlation ID.
func marshalErrorResponse(code, message string, details interface{}) []byte {
	response := Response{
		Result:        "error",
		Code:          code,
		Message:       message,
		Details:       details,
		CorrelationID: generateCorrelationID(),
	}

	jsonBytes, err := json.Marshal(response)
	if err != nil {
		fallback := map[string]interface{}{
			"result":        "error",
			"code":          "INTERNAL",
			"message":       "Failed to marshal error response",
			"correlationId": generateCorrelationID(),
		}
		jsonBytes, _ := json.Marshal(fallback)
		return jsonBytes
	}

	return jsonBytes
}

// NewAPIError creates a new API error.
func NewAPIError(code string, message string, statusCode int, details interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
