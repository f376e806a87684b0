package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RequireAdminKey guards the moderation admin surface. The configured value
// is a bcrypt hash of the admin key; requests present the key itself as
// `Authorization: Bearer <key>`. An empty hash disables the check, which is
// only acceptable in development.
func RequireAdminKey(adminKeyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKeyHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Authorization header required")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Authorization header format must be Bearer {key}")
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(adminKeyHash), []byte(parts[1])); err != nil {
				WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
