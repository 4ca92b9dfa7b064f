package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"ledger-reconciliation-service/internal/api/dto"
	"ledger-reconciliation-service/pkg/errors"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"session not found", errors.SessionError(errors.CodeSessionNotFound, "abc", nil), http.StatusNotFound, "session_not_found"},
		{"session expired", errors.SessionError(errors.CodeSessionExpired, "abc", nil), http.StatusNotFound, "session_expired"},
		{"missing data", errors.ReconciliationError(errors.CodeMissingData, "reconcile", nil), http.StatusConflict, "missing_data"},
		{"too large", errors.FileError(errors.CodeFileTooLarge, "big.csv", nil), http.StatusRequestEntityTooLarge, "file_too_large"},
		{"unsupported", errors.ParseError(errors.CodeUnsupportedFormat, "a.pdf", ".pdf", nil), http.StatusUnsupportedMediaType, "unsupported_format"},
		{"malformed", errors.ParseError(errors.CodeMalformedInput, "a.csv", "bad quote", nil), http.StatusBadRequest, "malformed_input"},
		{"invalid export", errors.ValidationError(errors.CodeInvalidExport, "type", "pdf", nil), http.StatusBadRequest, "invalid_export"},
		{"storage failure", errors.SessionError(errors.CodeStorageFailure, "abc", fmt.Errorf("disk full")), http.StatusInternalServerError, dto.ErrCodeInternalError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, dto.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := toAPIError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestSessionID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, SessionID(req))

	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", SessionID(req))

	req.Header.Set(SessionHeader, "from-header")
	assert.Equal(t, "from-header", SessionID(req))
}
