package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/sessionguard"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
	Meta    meta      `json:"meta"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type meta struct {
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Meta: buildMeta(r)})
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &apiError{Code: code, Message: message, Details: details},
		Meta:    buildMeta(r),
	})
}

// writeError maps an engine error onto a status and a stable code. Messages
// of internal and dependency failures are replaced with generic text.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := sessionguard.StatusCode(err)

	var (
		locked  *sessionguard.LockedError
		invalid *sessionguard.InvalidCredentialsError
	)
	switch {
	case errors.As(err, &locked):
		secs := int(locked.RetryAfter.Round(time.Second) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeErrorBody(w, r, status, "ACCOUNT_LOCKED", "too many failed attempts", map[string]int{"retryAfterSeconds": secs})
		return
	case errors.As(err, &invalid):
		writeErrorBody(w, r, status, "INVALID_CREDENTIALS", "invalid email or password", map[string]int{"attemptsRemaining": invalid.AttemptsRemaining})
		return
	}

	switch status {
	case http.StatusServiceUnavailable:
		logger.Warn("dependency unavailable", "path", r.URL.Path, "error", err)
		writeErrorBody(w, r, status, "DEPENDENCY_UNAVAILABLE", "service temporarily unavailable", nil)
	case http.StatusInternalServerError:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeErrorBody(w, r, status, "INTERNAL", "internal error", nil)
	default:
		writeErrorBody(w, r, status, errorCode(err), err.Error(), nil)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, sessionguard.ErrInactiveAccount), errors.Is(err, sessionguard.ErrUserInactive):
		return "ACCOUNT_INACTIVE"
	case errors.Is(err, sessionguard.ErrRefreshExpired):
		return "REFRESH_EXPIRED"
	case errors.Is(err, sessionguard.ErrRefreshRevoked):
		return "REFRESH_REVOKED"
	case errors.Is(err, sessionguard.ErrSessionGone):
		return "SESSION_GONE"
	case errors.Is(err, sessionguard.ErrPasswordPolicy):
		return "PASSWORD_POLICY"
	case errors.Is(err, sessionguard.ErrPasswordResetInvalid):
		return "RESET_TOKEN_INVALID"
	case errors.Is(err, sessionguard.ErrTooManyRequests):
		return "RATE_LIMITED"
	case errors.Is(err, sessionguard.ErrAuthentication):
		return "UNAUTHORIZED"
	case errors.Is(err, sessionguard.ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, sessionguard.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, sessionguard.ErrConflict):
		return "CONFLICT"
	default:
		return "ERROR"
	}
}

func buildMeta(r *http.Request) meta {
	id := chimiddleware.GetReqID(r.Context())
	if id == "" {
		id = r.Header.Get("X-Request-Id")
	}
	if id == "" {
		id = "req-unknown"
	}
	return meta{RequestID: id, Timestamp: time.Now().UTC()}
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErrorBody(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body", nil)
		return false
	}
	return true
}
