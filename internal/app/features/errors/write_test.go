package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"go.uber.org/zap"
)

func TestErrorLogger_Write(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   apperr.Code
		wantMsg    string
	}{
		{"not found", apperr.New(apperr.NotFound, "No matching enquiry found."), http.StatusNotFound, apperr.NotFound, "No matching enquiry found."},
		{"conflict", apperr.Newf(apperr.AlreadyExists, "round %d", 2), http.StatusConflict, apperr.AlreadyExists, "round 2"},
		{"wrapped", fmt.Errorf("submit: %w", apperr.New(apperr.ResourceExhausted, "slow down")), http.StatusTooManyRequests, apperr.ResourceExhausted, "slow down"},
		{"plain error hides text", fmt.Errorf("mongo: socket closed"), http.StatusInternalServerError, apperr.Internal, "An internal error occurred."},
	}

	l := NewErrorLogger(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			l.Write(rec, httptest.NewRequest(http.MethodPost, "/api/posts", nil), tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.wantCode || body.Error.Message != tt.wantMsg {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestForbidden(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler().Forbidden(rec, httptest.NewRequest(http.MethodGet, "/forbidden", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
}
