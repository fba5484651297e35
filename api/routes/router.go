package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/microcommerce-backend/api/controllers"
	"github.com/angelmondragon/microcommerce-backend/api/middleware"
	"github.com/angelmondragon/microcommerce-backend/internal/auth"
	"github.com/angelmondragon/microcommerce-backend/internal/cart"
	"github.com/angelmondragon/microcommerce-backend/internal/catalog"
	"github.com/angelmondragon/microcommerce-backend/internal/checkout"
	"github.com/angelmondragon/microcommerce-backend/internal/orders"
	"github.com/angelmondragon/microcommerce-backend/pkg/auth/session"
	"github.com/angelmondragon/microcommerce-backend/pkg/config"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
	"github.com/angelmondragon/microcommerce-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/microcommerce-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer depends on.
type RedisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Pingers  map[string]controllers.Pinger
	Redis    RedisStore
	Sessions session.AccessSessionChecker
	Gatherer prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics

	Auth     auth.Service
	Register auth.RegisterService
	Catalog  catalog.Service
	Cart     cart.Service
	Checkout checkout.Service
	Orders   orders.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTP),
		middleware.CORS(cfg.App.CORSOrigins, cfg.Cart.SessionHeader),
		middleware.SessionKey(cfg.Cart, logg),
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

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Pingers))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg)).Post("/register", controllers.AuthRegister(d.Register, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, d.Sessions, logg)).Post("/logout", controllers.AuthLogout(d.Auth, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, d.Sessions, logg))

		// inline so the middleware sees the fully matched route pattern
		idempotent := middleware.Idempotency(d.Redis, cfg.Idempotency.TTL, logg)

		r.Get("/products", controllers.ProductsList(d.Catalog, logg))
		r.Get("/products/{productID}", controllers.ProductGet(d.Catalog, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(d.Cart, logg))
			r.With(idempotent).Post("/items", controllers.CartAddItem(d.Cart, logg))
			r.Patch("/items/{itemID}", controllers.CartUpdateItem(d.Cart, logg))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(d.Cart, logg))
			r.With(middleware.Auth(cfg.JWT, d.Sessions, logg)).Post("/merge", controllers.CartMerge(d.Cart, logg))
		})

		r.With(idempotent).Post("/orders/checkout", controllers.Checkout(d.Checkout, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
			r.Get("/me", controllers.Me(d.Auth, logg))
			r.Get("/orders", controllers.OrdersList(d.Orders, logg))
			r.Get("/orders/{orderID}", controllers.OrderGet(d.Orders, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Post("/products", controllers.AdminCreateProduct(d.Catalog, logg))
			r.Patch("/products/{productID}", controllers.AdminUpdateProduct(d.Catalog, logg))
			r.Delete("/products/{productID}", controllers.AdminDeleteProduct(d.Catalog, logg))
		})
	})

	return r
}
