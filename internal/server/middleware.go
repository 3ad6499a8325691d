package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rezonia/invoice-engine/internal/logger"
	"github.com/rezonia/invoice-engine/internal/model"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxUserID       = "user_id"
)

// RequestID tags every request with an id, reusing the caller's if given
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ctxRequestID, requestID)
		c.Header(headerRequestID, requestID)
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(ctxRequestID),
		}
		if user := c.GetString(ctxUserID); user != "" {
			fields = append(fields, "user_id", user)
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Errorw("request failed", fields...)
		case status >= http.StatusBadRequest:
			log.Infow("request rejected", fields...)
		default:
			log.Debugw("request served", fields...)
		}
	}
}

// RequireUser rejects requests that do not name their caller
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if user == "" {
			_ = c.Error(errors.Mark(errors.Newf("%s header is required", HeaderUserID), model.ErrInvalidRequest))
			c.Abort()
			return
		}
		c.Set(ctxUserID, user)
		c.Next()
	}
}

// ErrorHandler renders the last handler error as an ErrorResponse
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := HTTPStatusFromErr(err)

		message := err.Error()
		if status == http.StatusInternalServerError {
			log.Errorw("unhandled error", "path", c.FullPath(), "request_id", c.GetString(ctxRequestID), "error", err)
			message = "An unexpected error occurred"
		}

		resp := ErrorResponse{Error: message}
		var unknown *model.UnknownRuleSetError
		if errors.As(err, &unknown) {
			resp.Available = unknown.Available
		}
		var encErr *model.EncodingError
		if errors.As(err, &encErr) {
			resp.Field = encErr.Field
		}

		c.JSON(status, resp)
	}
}

// HTTPStatusFromErr maps domain errors onto response codes
func HTTPStatusFromErr(err error) int {
	var (
		encErr     *model.EncodingError
		decErr     *model.DecodeError
		unknown    *model.UnknownRuleSetError
		bindingErr *bindError
	)

	switch {
	case errors.As(err, &encErr), errors.As(err, &decErr), errors.As(err, &unknown), errors.As(err, &bindingErr):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// bindError marks a malformed or invalid request body
type bindError struct {
	cause error
}

func (e *bindError) Error() string {
	return "invalid request: " + e.cause.Error()
}

func (e *bindError) Unwrap() error {
	return e.cause
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
