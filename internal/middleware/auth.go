package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"aspos-sync/pkg/apierror"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	APIKeys []string

	// AllowUnauthenticated lets every request through when no key is
	// configured. Only used in development.
	AllowUnauthenticated bool
}

// publicPaths skip authentication.
var publicPaths = map[string]bool{
	"/api/status":    true,
	"/api/v1/health": true,
}

// NewAuthMiddleware checks the X-API-Key header, or a bearer token, against
// the configured keys.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	open := len(keys) == 0 && cfg.AllowUnauthenticated

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if apiKey == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use the X-API-Key header."))
				return
			}
			if !isValidKey([]byte(apiKey), keys) {
				writeError(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

func isValidKey(key []byte, validKeys [][]byte) bool {
	ok := false
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare(key, valid) == 1 {
			ok = true
		}
	}
	return ok
}
