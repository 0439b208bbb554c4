package cart

import (
	"net/http"

	"github.com/angelmondragon/shopfront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/shopfront-backend/internal/cart"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
)

// Cookies reads and writes the guest cart cookie.
type Cookies struct {
	name   string
	path   string
	maxAge int
	secure bool
}

func NewCookies(cfg config.CartConfig) Cookies {
	path := cfg.CookiePath
	if path == "" {
		path = "/"
	}
	return Cookies{
		name:   cfg.CookieName,
		path:   path,
		maxAge: int(cfg.CookieTTL.Seconds()),
		secure: cfg.CookieSecure,
	}
}

func (c Cookies) Name() string {
	return c.name
}

// Token returns the raw guest token presented by the client, if any.
func (c Cookies) Token(r *http.Request) string {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Identity resolves who the request acts for. An authenticated user takes
// precedence over any guest cookie.
func (c Cookies) Identity(r *http.Request) cartsvc.Identity {
	return cartsvc.Resolve(middleware.UserUUIDFromContext(r.Context()), c.Token(r))
}

// Apply carries out a token directive on the response.
func (c Cookies) Apply(w http.ResponseWriter, directive cartsvc.TokenDirective) {
	switch directive.Action {
	case cartsvc.TokenSet:
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    directive.GuestCartID.String(),
			Path:     c.path,
			MaxAge:   c.maxAge,
			HttpOnly: true,
			Secure:   c.secure,
			SameSite: http.SameSiteLaxMode,
		})
	case cartsvc.TokenClear:
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
