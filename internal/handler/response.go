package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"payconfirm/internal/middleware"
	"payconfirm/internal/rail"
	"payconfirm/internal/repository"
	"payconfirm/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		middleware.NoticeError(c, err)
	} else {
		_ = c.Error(err)
	}
	c.JSON(code, ErrorResponse{Success: false, Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/rail/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Authentication errors
	case errors.Is(err, service.ErrSignatureInvalid):
		return http.StatusUnauthorized

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrUnsupportedCurrency),
		errors.Is(err, rail.ErrAmountMismatch),
		errors.Is(err, rail.ErrUnknownPayment),
		errors.Is(err, rail.ErrMalformedEvent):
		return http.StatusBadRequest

	// Rail unavailable is retryable; the ledger makes the retry safe.
	case errors.Is(err, service.ErrRailUnavailable):
		return http.StatusInternalServerError

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
