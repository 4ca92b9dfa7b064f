package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"ledger-reconciliation-service/internal/api/dto"
	"ledger-reconciliation-service/internal/session"
	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// SessionCookie carries the session id between requests.
const SessionCookie = "reconciler_session"

// SessionHeader may be used instead of the cookie by API clients.
const SessionHeader = "X-Session-ID"

// Base provides shared functionality for all handlers.
type Base struct {
	manager *session.Manager
	ttl     time.Duration
	logger  logger.Logger
}

// NewBase creates a new base handler over the session manager.
func NewBase(manager *session.Manager, ttl time.Duration) *Base {
	return &Base{
		manager: manager,
		ttl:     ttl,
		logger:  logger.GetGlobalLogger().WithComponent("api"),
	}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteFailure maps err to a status code and error body.
func (b *Base) WriteFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, body := toAPIError(err)
	log := b.logger.WithError(err).WithFields(logger.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Debug("Request rejected")
	}
	b.WriteError(w, status, body)
}

func toAPIError(err error) (int, dto.APIError) {
	re, ok := errors.AsReconcilerError(err)
	if !ok {
		return http.StatusInternalServerError, dto.InternalError()
	}

	body := dto.APIError{Code: string(re.Code), Message: re.Message, Suggestion: re.Suggestion}
	switch re.Code {
	case errors.CodeSessionNotFound, errors.CodeSessionExpired:
		return http.StatusNotFound, body
	case errors.CodeMissingData:
		return http.StatusConflict, body
	case errors.CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge, body
	case errors.CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType, body
	}

	switch re.Category {
	case errors.CategoryParse, errors.CategoryValidation, errors.CategoryFile:
		return http.StatusBadRequest, body
	default:
		return http.StatusInternalServerError, dto.InternalError()
	}
}

// SessionID returns the session id sent with r, or "".
func SessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func (b *Base) setSession(w http.ResponseWriter, id string) {
	w.Header().Set(SessionHeader, id)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(b.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (b *Base) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
