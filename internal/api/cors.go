package api

import (
	"net/http"
	"strings"
)

// CORS lets the browser frontend at origin call the API with credentials.
// An empty origin disables CORS headers. "*" allows any origin without
// credentials, which browsers refuse to combine with a wildcard.
func CORS(origin string) func(http.Handler) http.Handler {
	origin = strings.TrimRight(origin, "/")
	return func(next http.Handler) http.Handler {
		if origin == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := r.Header.Get("Origin")
			if req == "" || (origin != "*" && req != origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if origin == "*" {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", req)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				if hdrs := r.Header.Get("Access-Control-Request-Headers"); hdrs != "" {
					h.Set("Access-Control-Allow-Headers", hdrs)
				}
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h.Set("Access-Control-Expose-Headers", "X-Correlation-ID")
			next.ServeHTTP(w, r)
		})
	}
}
