package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopfront-backend/api/controllers"
	authcontrollers "github.com/angelmondragon/shopfront-backend/api/controllers/auth"
	cartcontrollers "github.com/angelmondragon/shopfront-backend/api/controllers/cart"
	"github.com/angelmondragon/shopfront-backend/api/middleware"
	"github.com/angelmondragon/shopfront-backend/internal/auth"
	"github.com/angelmondragon/shopfront-backend/internal/cart"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

// RedisStore is the slice of the redis client the HTTP layer relies on.
type RedisStore interface {
	middleware.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Auth   auth.Service
	Cart   cart.Service
	Merger cart.Merger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	sessions session.AccessSessionChecker,
	metricsHandler http.Handler,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	cookies := cartcontrollers.NewCookies(cfg.Cart)
	idempotency := middleware.Idempotency(redisStore, cookies.Name(), logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisStore,
		}, logg))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(idempotency)
		r.With(middleware.AuthRateLimit(registerPolicy, redisStore, logg)).Post("/register", authcontrollers.AuthRegister(svcs.Auth, cookies, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisStore, logg)).Post("/login", authcontrollers.AuthLogin(svcs.Auth, cookies, logg))
		r.Post("/refresh", authcontrollers.AuthRefresh(svcs.Auth, logg))
		r.Post("/logout", authcontrollers.AuthLogout(svcs.Auth, logg))
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, sessions, logg))
			r.Use(idempotency)

			r.Get("/", cartcontrollers.CartFetch(svcs.Cart, cookies, logg))
			r.Delete("/", cartcontrollers.CartClear(svcs.Cart, cookies, logg))
			r.Get("/count", cartcontrollers.CartCount(svcs.Cart, cookies, logg))
			r.Post("/items", cartcontrollers.CartAddItem(svcs.Cart, cookies, logg))
			r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(svcs.Cart, cookies, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(svcs.Cart, cookies, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Use(idempotency)

			r.Post("/merge", cartcontrollers.CartMerge(svcs.Merger, cookies, logg))
		})
	})

	return r
}
