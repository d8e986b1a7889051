package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/optionsdesk/internal/auth"
	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// AuthHandler serves session endpoints.
type AuthHandler struct {
	blacklist domain.TokenBlacklist
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(blacklist domain.TokenBlacklist, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{blacklist: blacklist, logger: logger}
}

// Logout revokes the presented bearer token until it expires.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	s, ok := auth.SessionFrom(r.Context())
	if !ok || s.Token == "" {
		writeError(w, http.StatusUnauthorized, "Authorization token is required")
		return
	}
	if err := h.blacklist.Revoke(r.Context(), s.Token, s.ExpiresAt); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "handler: session revoked", slog.String("user_id", p.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
