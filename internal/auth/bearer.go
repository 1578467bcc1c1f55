package auth

import (
	"net/http"
	"strings"
)

// BearerToken extracts the credential from the Authorization header. Both
// "Bearer <token>" and a bare token are accepted. It returns "" when absent.
func BearerToken(r *http.Request) string {
	return ParseAuthorization(r.Header.Get("Authorization"))
}

func ParseAuthorization(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found {
		return header
	}
	if !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(rest)
}
