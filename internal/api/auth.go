package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireToken checks the bearer token when one is configured. Browsers
// cannot set headers on websocket upgrades, so access_token is accepted
// as a query parameter too.
func (s *Server) requireToken(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	want := []byte(s.token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("access_token")
		if h := r.Header.Get("Authorization"); h != "" {
			var ok bool
			got, ok = strings.CutPrefix(h, "Bearer ")
			if !ok {
				got = ""
			}
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			s.errorHandler.Handle(w, r, http.StatusUnauthorized, ErrTypeUnauthorized, "missing or invalid bearer token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
