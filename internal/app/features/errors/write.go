// internal/app/features/errors/write.go
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"go.uber.org/zap"
)

type errorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorLogger writes service errors as JSON and logs the ones that are
// not the caller's fault.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// Write maps err to a status and a public message. Internal errors are
// logged with their cause and answered with a generic message.
func (l *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		l.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		l.log.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("code", string(code)),
			zap.Error(err))
	}
	JSON(w, status, errorBody{Error: errorDetail{Code: code, Message: apperr.PublicMessage(err)}})
}

// BadRequest answers a malformed request.
func (l *ErrorLogger) BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: apperr.InvalidArgument, Message: msg}})
}

// Unauthenticated answers a request without a signed-in user.
func (l *ErrorLogger) Unauthenticated(w http.ResponseWriter) {
	JSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Code: apperr.Unauthenticated, Message: "Please sign in to continue."}})
}
