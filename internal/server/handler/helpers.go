package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details []domain.FieldError `json:"details,omitempty"`
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServiceError maps a service error onto its HTTP status and body.
// Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "Validation failed",
			Code:    "VALIDATION_ERROR",
			Details: ve.Fields,
		})
		return
	}
	var te *domain.TransitionError
	if errors.As(err, &te) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: te.Error(), Code: "INVALID_CLOSING_ACTION"})
		return
	}

	status, code, msg := classify(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	var ue *domain.UserError
	if errors.As(err, &ue) {
		msg = ue.Message
		if ue.Code != "" {
			code = ue.Code
		}
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func classify(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest, "INVALID_STATE", "Invalid state"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", "Conflict"
	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, "CONFLICT", "Resource is busy"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded"
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE", "Service unavailable"
	}
	return http.StatusInternalServerError, "", "Internal server error"
}

// decodeBody reads a JSON request body into dst. It writes the 400 response
// itself and reports false when the body is missing or malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

// principal returns the caller placed in the context by the auth
// middleware. Routes are only mounted behind that middleware, so a missing
// principal is answered with 401.
func principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := domain.PrincipalFrom(r.Context())
	if !ok || p.UserID == "" {
		writeError(w, http.StatusUnauthorized, "Authorization token is required")
		return domain.Principal{}, false
	}
	return p, true
}

// listPage extracts optional limit and offset parameters. A missing limit
// returns every row; explicit limits are capped at 500.
func listPage(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 500)
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// queryBool reports whether the named query parameter is "true".
func queryBool(r *http.Request, name string) bool {
	return r.URL.Query().Get(name) == "true"
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
