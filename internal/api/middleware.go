package api

import (
	"net/http"
	"net/url"
)

// RequireSameOrigin rejects browser requests issued from another origin.
// Requests without an Origin header (curl, the CLI) pass.
func RequireSameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != r.Host {
				http.Error(w, "Cross-origin request rejected", http.StatusForbidden)
				return
			}
		}
		next(w, r)
	}
}
