package auth

import (
	"net/http"
	"strings"
)

const tokenQueryParam = "token"

// BearerToken extracts the handshake token from the Authorization header,
// falling back to the token query parameter for browser clients that cannot set headers.
func BearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(tokenQueryParam))
}
