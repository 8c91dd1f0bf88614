package app

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/lifecycle"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// errorStatusMap maps errors to HTTP status codes
var errorStatusMap = map[error]int{
	// 400 Bad Request
	ErrBadRequest:              http.StatusBadRequest,
	lifecycle.ErrInvalidWindow: http.StatusBadRequest,
	engine.ErrInvalidRequest:   http.StatusBadRequest,

	// 401 Unauthorized
	ErrUnauthorized: http.StatusUnauthorized,

	// 403 Forbidden
	lifecycle.ErrForbidden: http.StatusForbidden,

	// 404 Not Found
	lifecycle.ErrNotFound: http.StatusNotFound,

	// 409 Conflict
	lifecycle.ErrTransitionRejected:   http.StatusConflict,
	lifecycle.ErrConflict:             http.StatusConflict,
	lifecycle.ErrEquipmentUnavailable: http.StatusConflict,
	engine.ErrDuplicate:               http.StatusConflict,

	// 422 Unprocessable Entity
	lifecycle.ErrNoEligibleMembers: http.StatusUnprocessableEntity,
}

// errorCodeMap gives clients a stable code per error kind
var errorCodeMap = map[error]string{
	ErrBadRequest:                     "BAD_REQUEST",
	lifecycle.ErrInvalidWindow:        "INVALID_WINDOW",
	engine.ErrInvalidRequest:          "INVALID_REQUEST",
	ErrUnauthorized:                   "AUTH_REQUIRED",
	lifecycle.ErrForbidden:            "FORBIDDEN",
	lifecycle.ErrNotFound:             "NOT_FOUND",
	lifecycle.ErrTransitionRejected:   "TRANSITION_REJECTED",
	lifecycle.ErrConflict:             "CONFLICT",
	lifecycle.ErrEquipmentUnavailable: "EQUIPMENT_UNAVAILABLE",
	engine.ErrDuplicate:               "DUPLICATE",
	lifecycle.ErrNoEligibleMembers:    "NO_ELIGIBLE_MEMBERS",
}

// errorPriority fixes the match order: map order is random and a chain may
// wrap several sentinels. Domain verdicts come first.
var errorPriority = []error{
	lifecycle.ErrTransitionRejected,
	lifecycle.ErrNoEligibleMembers,
	lifecycle.ErrEquipmentUnavailable,
	lifecycle.ErrInvalidWindow,
	lifecycle.ErrForbidden,
	lifecycle.ErrNotFound,
	lifecycle.ErrConflict,
	engine.ErrDuplicate,
	engine.ErrInvalidRequest,
	ErrUnauthorized,
	ErrBadRequest,
}

// knownError returns the first sentinel in errorPriority that err wraps.
func knownError(err error) (error, bool) {
	for _, known := range errorPriority {
		if errors.Is(err, known) {
			return known, true
		}
	}
	return nil, false
}

// ErrorStatus returns the HTTP status code for an error
func ErrorStatus(err error) int {
	if known, ok := knownError(err); ok {
		return errorStatusMap[known]
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	if known, ok := knownError(err); ok {
		return errorCodeMap[known]
	}
	return "INTERNAL"
}

// ErrorHandler renders the last error added to the context as
// {"error", "code"}. Server errors hide their message.
func ErrorHandler(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := ErrorStatus(err)

		attrs := []any{"error", err, "status", status, "path", c.Request.URL.Path, "method", c.Request.Method}
		if status >= 500 {
			log.ErrorContext(c.Request.Context(), "request failed with server error", attrs...)
		} else {
			log.WarnContext(c.Request.Context(), "request failed with client error", attrs...)
		}

		if c.Writer.Written() {
			return
		}
		body := H{"error": err.Error(), "code": errorCode(err)}
		if status >= 500 {
			body["error"] = "internal server error"
		}
		var te *lifecycle.TransitionError
		if errors.As(err, &te) {
			body["current"] = te.Current
			if te.Target != "" {
				body["target"] = te.Target
			}
		}
		c.AbortWithStatusJSON(status, body)
	}
}

// AbortWithError hands err to ErrorHandler and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
	c.Status(ErrorStatus(err))
}
