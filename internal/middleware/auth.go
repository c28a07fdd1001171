// Package middleware provides HTTP middleware for the extraction server.
package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/lumenstream/extractor/internal/config"
)

const bearerPrefix = "Bearer "

// BearerAuth returns middleware that validates the Authorization: Bearer <secret>
// header against the configured extraction secret.
//
// If the secret is unconfigured, every request fails with 500 rather than
// silently accepting unauthenticated requests. /health is always reachable
// so load balancer health checks keep working.
//
// Security: the secret is only accepted via the Authorization header. Query
// parameters appear in access logs, browser history, and referrer headers.
func BearerAuth(cfg *config.Config) func(http.Handler) http.Handler {
	expectedHash := sha256.Sum256([]byte(cfg.ExtractionSecret))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.ExtractionSecret == "" {
				writeErrorResponse(w, http.StatusInternalServerError, "extraction secret is not configured", time.Now())
				return
			}

			header := r.Header.Get("Authorization")
			token := ""
			if strings.HasPrefix(header, bearerPrefix) {
				token = strings.TrimPrefix(header, bearerPrefix)
			}

			providedHash := sha256.Sum256([]byte(token))
			if token == "" || subtle.ConstantTimeCompare(providedHash[:], expectedHash[:]) != 1 {
				writeErrorResponse(w, http.StatusUnauthorized, "missing or invalid bearer token", time.Now())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
