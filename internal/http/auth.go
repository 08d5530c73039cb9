package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type contextKey string

const UserIDKey contextKey = "userId"

// ExtractUserMiddleware reads the user set by the fronting proxy. When
// allowDev is true a request without a user header runs as dev-user.
func ExtractUserMiddleware(log *zap.SugaredLogger, allowDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Traefik BasicAuth sets this header
			userID := r.Header.Get("X-Auth-User")

			if userID == "" {
				userID = r.Header.Get("X-Forwarded-User")
			}
			if userID == "" {
				userID = r.Header.Get("Remote-User")
			}

			if userID == "" && allowDev {
				userID = "dev-user"
				log.Debugw("no auth header, using dev-user", "path", r.URL.Path)
			}

			if userID == "" {
				log.Warnw("authentication failed: no user header found", "remote", r.RemoteAddr)
				respondError(w, "unauthorized", "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}
