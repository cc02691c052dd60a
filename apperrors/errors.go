// Package apperrors defines the HTTP-facing error type and the gin middleware
// that renders it.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error represents an application error. Message and Detail are sent to the
// client; Err is only logged.
type Error struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	Detail  string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetail returns a copy of e carrying a client-visible detail message.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// Common error types
var (
	ErrBadRequest      = New(http.StatusBadRequest, "Bad request", nil)
	ErrNotFound        = New(http.StatusNotFound, "Not found", nil)
	ErrTooManyRequests = New(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
	ErrInternalServer  = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrTimeout         = New(http.StatusGatewayTimeout, "Request timed out", nil)
)

// Body is the JSON error envelope shared by every failure response.
func Body(e *Error) gin.H {
	h := gin.H{"success": false, "error": e.Message}
	if e.Detail != "" {
		h["message"] = e.Detail
	}
	return h
}

// Abort renders e immediately and stops the handler chain.
func Abort(c *gin.Context, e *Error) {
	_ = c.Error(e)
	c.AbortWithStatusJSON(e.Code, Body(e))
}

// ErrorMiddleware renders the last error pushed with c.Error when the handler
// has not written a response. Errors that are not *Error become a 500 and
// their text is logged, not returned.
func ErrorMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var appErr *Error
		if !errors.As(err, &appErr) {
			appErr = New(ErrInternalServer.Code, ErrInternalServer.Message, err)
		}
		if appErr.Code >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", appErr.Code),
				zap.Error(appErr),
			)
		}

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(appErr.Code, Body(appErr))
	}
}
