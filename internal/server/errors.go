package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/vetbilling/internal/audit/domain"
	"github.com/smallbiznis/vetbilling/internal/auth"
	"github.com/smallbiznis/vetbilling/internal/authorization"
	"github.com/smallbiznis/vetbilling/internal/invoice/document"
	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func validationPayload(errs ...ValidationError) errorPayload {
	return errorPayload{Type: "validation_error", Message: "validation error", Errors: errs}
}

// fieldErrors maps domain sentinels to the field they reject.
var fieldErrors = []struct {
	err     error
	field   string
	code    string
	message string
}{
	{ErrInvalidRequest, "request", "invalid_request", "invalid request"},
	{invoicedomain.ErrEmptyInvoice, "items", "empty_invoice", "at least one item is required"},
	{invoicedomain.ErrInvalidID, "id", "invalid_id", "invalid invoice id"},
	{invoicedomain.ErrInvalidPatientID, "patient_id", "invalid_patient_id", "patient id must be a uuid"},
	{invoicedomain.ErrInvalidStatus, "status", "invalid_status", "unknown invoice status"},
	{invoicedomain.ErrInvalidCurrency, "currency", "invalid_currency", "unknown currency code"},
	{invoicedomain.ErrInvalidDateRange, "date_range", "invalid_date_range", "start date must not be after end date"},
	{invoicedomain.ErrInvalidLimit, "limit", "invalid_limit", "limit must be between 1 and 100"},
	{invoicedomain.ErrInvalidOffset, "offset", "invalid_offset", "offset must not be negative"},
	{invoicedomain.ErrInvalidRecipient, "to", "invalid_recipient", "invalid recipient address"},
	{auditdomain.ErrInvalidMethod, "method", "invalid_method", "unsupported method"},
	{auditdomain.ErrInvalidTimeRange, "date_range", "invalid_date_range", "start date must not be after end date"},
	{auditdomain.ErrInvalidLimit, "limit", "invalid_limit", "limit must be between 1 and 100"},
	{auditdomain.ErrInvalidOffset, "offset", "invalid_offset", "offset must not be negative"},
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}

	var (
		vErr    *ValidationErrors
		lineErr *invoicedomain.LineItemError
		docErr  *invoicedomain.DocumentError
	)
	switch {
	case errors.As(err, &vErr) && vErr != nil:
		return http.StatusBadRequest, validationPayload(vErr.Errors...)
	case errors.As(err, &lineErr):
		return http.StatusBadRequest, validationPayload(ValidationError{
			Field:   fmt.Sprintf("items[%d].%s", lineErr.Index, lineErr.Field),
			Code:    "invalid_line_item",
			Message: "invalid " + lineErr.Field,
		})
	case errors.As(err, &docErr):
		return http.StatusBadRequest, validationPayload(ValidationError{
			Field:   "document",
			Code:    "invalid_document",
			Message: docErr.Reason,
		})
	case errors.Is(err, invoicedomain.ErrMixedCurrency):
		return http.StatusBadRequest, validationPayload(ValidationError{
			Field:   "items.currency",
			Code:    "mixed_currency",
			Message: "all items must share one currency",
		})
	}

	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			return http.StatusBadRequest, validationPayload(ValidationError{
				Field:   fe.field,
				Code:    fe.code,
				Message: fe.message,
			})
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, invoicedomain.ErrNumberConflict):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: "invoice number already taken, retry the request"}
	case errors.Is(err, document.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{Type: "document_too_large", Message: "document too large"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

// classifyErrorForLog reports the payload type and code without the message.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
