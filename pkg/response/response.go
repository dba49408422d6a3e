package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vroomshare/service-booking/pkg/domain"
)

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Meta carries pagination info.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes a 200 response with pagination metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    items,
		Meta:    &Meta{Total: total, Page: page, Limit: limit, TotalPages: pages},
	})
}

// BadRequest writes a 400 validation response.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{
		Error: &ErrorBody{Code: string(domain.CodeValidation), Message: msg},
	})
}

// Unauthorized writes a 401 response.
func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{
		Error: &ErrorBody{Code: string(domain.CodeUnauthorized), Message: msg},
	})
}

// Error maps err to a status code. Errors that are not DomainErrors become a 500 without
// leaking their text.
func Error(c *gin.Context, err error) {
	de, ok := domain.AsDomainError(err)
	if !ok {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, Envelope{
			Error: &ErrorBody{Code: "INTERNAL", Message: "internal server error"},
		})
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusFor(de.Code), Envelope{
		Error: &ErrorBody{
			Code:      string(de.Code),
			Message:   de.Message,
			Retryable: de.IsRetryable(),
			Details:   de.Details,
		},
	})
}

// StatusFor returns the HTTP status for an error code.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict, domain.CodeVehicleUnavailable, domain.CodeStaleState,
		domain.CodeInvalidTransition, domain.CodeInvalidState:
		return http.StatusConflict
	case domain.CodePaymentDeclined, domain.CodeCaptureFailed:
		return http.StatusPaymentRequired
	case domain.CodePaymentPending:
		return http.StatusAccepted
	case domain.CodeReleaseFailed, domain.CodeRefundFailed:
		return http.StatusBadGateway
	case domain.CodePersistence:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
