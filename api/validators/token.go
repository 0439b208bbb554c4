package validators

import (
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

// BearerToken extracts the access token from the Authorization header. The
// "Bearer" scheme is optional; a scheme with no token is missing credentials.
func BearerToken(r *http.Request) (string, error) {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, rest, _ := strings.Cut(token, " ")
	if strings.EqualFold(scheme, "bearer") {
		token = strings.TrimSpace(rest)
	}
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}
