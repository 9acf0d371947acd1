package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
)

// corsMaxAge is how long browsers may cache a preflight answer, in seconds.
// gorilla/handlers caps the header at 600.
const corsMaxAge = 600

// withCORS wraps h so that browsers on allowed origins may call the API.
// It wraps the whole router because preflight requests never match a
// route registered for GET or POST.
func (s *Server) withCORS(h http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOriginValidator(s.isOriginAllowed),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Accept", "Content-Type", "Authorization"}),
		handlers.MaxAge(corsMaxAge),
	)(h)
}

// isOriginAllowed checks if the given origin matches any allowed pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, pattern := range s.config.CORS.AllowedOrigins {
		if matchOrigin(origin, pattern) {
			return true
		}
	}
	return false
}

// matchOrigin checks if an origin matches a pattern. Patterns are exact
// origins or wildcards like "*.example.com", which match subdomains only.
func matchOrigin(origin, pattern string) bool {
	if origin == pattern {
		return true
	}
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}
	suffix := pattern[1:]
	host := extractHost(origin)
	return strings.HasSuffix(host, suffix) && len(host) > len(suffix)
}

// extractHost extracts the host from an origin URL, without scheme, port
// or path.
func extractHost(origin string) string {
	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, ":/"); idx != -1 {
		host = host[:idx]
	}
	return host
}
