package middleware

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/optionsdesk/internal/auth"
	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// Verifier turns a raw bearer token into verified claims.
type Verifier interface {
	Verify(token string) (auth.Claims, error)
}

// Auth returns middleware that requires a valid, unrevoked bearer token and
// stores the caller's principal and session in the request context.
// blacklist may be nil. A failing blacklist lookup lets the request
// through and is logged.
func Auth(verifier Verifier, blacklist domain.TokenBlacklist, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r)
			if token == "" {
				writeUnauthorized(w, "Authorization token is required")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			if blacklist != nil {
				revoked, err := blacklist.IsRevoked(r.Context(), token)
				if err != nil {
					logger.WarnContext(r.Context(), "auth: blacklist lookup failed",
						slog.String("user_id", claims.UserID),
						slog.String("error", err.Error()),
					)
				} else if revoked {
					writeUnauthorized(w, "Token has been revoked")
					return
				}
			}

			noteUser(r.Context(), claims.UserID)
			ctx := domain.WithPrincipal(r.Context(), claims.Principal())
			s := auth.Session{Token: token}
			if claims.ExpiresAt != nil {
				s.ExpiresAt = claims.ExpiresAt.Time
			}
			ctx = auth.WithSession(ctx, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `","code":"UNAUTHORIZED"}`))
}
