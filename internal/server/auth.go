package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/jmswain/switchboard/internal/codec"
	"github.com/jmswain/switchboard/internal/domain"
)

// AuthMiddleware requires the configured bearer key on every request.
// The key is extracted from the Authorization header (Bearer token format).
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				codec.WriteError(w, domain.NewAPIError(domain.ErrorTypeAuthentication, "missing authorization header"))
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				codec.WriteError(w, domain.NewAPIError(domain.ErrorTypeAuthentication, "invalid api key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
