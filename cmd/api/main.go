package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/microcommerce-backend/api/controllers"
	"github.com/angelmondragon/microcommerce-backend/api/routes"
	"github.com/angelmondragon/microcommerce-backend/internal/auth"
	"github.com/angelmondragon/microcommerce-backend/internal/cart"
	"github.com/angelmondragon/microcommerce-backend/internal/catalog"
	"github.com/angelmondragon/microcommerce-backend/internal/checkout"
	"github.com/angelmondragon/microcommerce-backend/internal/orders"
	"github.com/angelmondragon/microcommerce-backend/internal/stock"
	"github.com/angelmondragon/microcommerce-backend/internal/users"
	"github.com/angelmondragon/microcommerce-backend/pkg/auth/session"
	"github.com/angelmondragon/microcommerce-backend/pkg/bootstrap"
	"github.com/angelmondragon/microcommerce-backend/pkg/env"
	"github.com/angelmondragon/microcommerce-backend/pkg/metrics"
	"github.com/angelmondragon/microcommerce-backend/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rt, err := bootstrap.Start(context.Background(), "api", bootstrap.NeedDB|bootstrap.NeedRedis)
	if err == nil {
		err = serve(rt)
	}
	os.Exit(rt.Finish(err))
}

func serve(rt *bootstrap.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := buildRouter(rt, reg)
	if err != nil {
		return err
	}

	// PORT wins so the platform router can assign one
	addr := ":" + env.FirstOr(cfg.App.Port, "PORT")
	ctx, stop := rt.Context(map[string]any{"addr": addr, "price_lock": cfg.Cart.PriceLockPolicy()})
	defer stop()

	logg.Info(ctx, "api.starting")
	return bootstrap.Serve(ctx, logg, &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, shutdownTimeout)
}

func buildRouter(rt *bootstrap.Runtime, reg *prometheus.Registry) (http.Handler, error) {
	cfg, logg, conn := rt.Config, rt.Logger, rt.DB.DB()

	sessions, err := session.NewManager(rt.Redis, cfg.JWT)
	if err != nil {
		return nil, err
	}
	commerceMetrics := metrics.NewCommerceMetrics(reg)
	userRepo := users.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	ledger := stock.NewLedger(conn)
	priceLock := cfg.Cart.PriceLockPolicy()

	cartService, err := cart.NewService(cartRepo, ledger, rt.DB, commerceMetrics, logg, priceLock)
	if err != nil {
		return nil, err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		CartMerger:     cartService,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return nil, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{DB: rt.DB, PasswordConfig: cfg.Password})
	if err != nil {
		return nil, err
	}
	catalogService, err := catalog.NewService(catalog.NewRepository(conn), rt.DB)
	if err != nil {
		return nil, err
	}
	ordersService, err := orders.NewService(ordersRepo)
	if err != nil {
		return nil, err
	}
	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:        rt.DB,
		Carts:     cartService,
		CartRepo:  cartRepo,
		Ledger:    ledger,
		Orders:    ordersRepo,
		Users:     userRepo,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:   commerceMetrics,
		Logger:    logg,
		PriceLock: priceLock,
	})
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Pingers:  map[string]controllers.Pinger{"db": rt.DB, "redis": rt.Redis},
		Redis:    rt.Redis,
		Sessions: sessions,
		Gatherer: reg,
		HTTP:     metrics.NewHTTPMetrics(reg),
		Auth:     authService,
		Register: registerService,
		Catalog:  catalogService,
		Cart:     cartService,
		Checkout: checkoutService,
		Orders:   ordersService,
	}), nil
}
