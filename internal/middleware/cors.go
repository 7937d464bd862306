// Package middleware provides HTTP middleware for the notechat server.
package middleware

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// CORS returns middleware that handles CORS headers. Patterns are matched
// against the full origin or its host with path.Match, the same way the
// websocket upgrade checks origins; "*" allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				if wildcard, ok := matchOrigin(allowedOrigins, origin); ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
					w.Header().Add("Vary", "Origin")
					// Credentials only for explicitly listed origins.
					if !wildcard {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchOrigin reports whether origin is allowed and whether it matched only a pattern
// containing a wildcard.
func matchOrigin(patterns []string, origin string) (wildcard bool, ok bool) {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	matchedWildcard := false
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		for _, candidate := range []string{strings.ToLower(origin), strings.ToLower(host)} {
			if p == candidate {
				return false, true
			}
			if m, err := path.Match(p, candidate); err == nil && m {
				matchedWildcard = true
			}
		}
	}
	return matchedWildcard, matchedWildcard
}
