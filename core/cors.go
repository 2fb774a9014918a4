package core

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSMiddleware wraps next with CORS handling per the configuration.
// Preflight OPTIONS requests are answered directly with 204; other
// requests pass through with the response headers applied.
//
// Origin matching supports exact origins, "*", wildcard subdomains
// ("https://*.example.com"), and wildcard ports ("http://localhost:*").
func CORSMiddleware(config CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if isOriginAllowed(origin, config.AllowedOrigins) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				if config.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if len(config.AllowedMethods) > 0 {
					h.Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				}
				if len(config.AllowedHeaders) > 0 {
					h.Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
				}
				// Responses carry the request ID; let browsers read it.
				h.Set("Access-Control-Expose-Headers", "X-Request-ID")
				if config.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isOriginAllowed reports whether origin matches any allowed pattern.
// An empty origin (same-origin request) never matches.
func isOriginAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	for _, pattern := range allowed {
		switch {
		case pattern == "*" || pattern == origin:
			return true
		case strings.Contains(pattern, "*."):
			if matchWildcardHost(origin, pattern) {
				return true
			}
		case strings.Contains(pattern, ":*"):
			base := strings.Split(pattern, ":*")[0]
			if strings.HasPrefix(origin, base+":") {
				return true
			}
		}
	}
	return false
}

// matchWildcardHost matches patterns like "https://*.example.com"
// against a concrete origin. The wildcard must cover at least one
// full subdomain label; the bare apex does not match.
func matchWildcardHost(origin, pattern string) bool {
	idx := strings.Index(pattern, "*.")
	prefix, suffix := pattern[:idx], pattern[idx+2:]
	if !strings.HasPrefix(origin, prefix) || !strings.HasSuffix(origin, suffix) {
		return false
	}
	middle := strings.TrimSuffix(origin[len(prefix):], suffix)
	return len(middle) > 0 && strings.HasSuffix(middle, ".")
}
