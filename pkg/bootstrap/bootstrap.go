// Package bootstrap holds the process wiring shared by every binary under cmd/:
// env and config loading, the service logger, the db and redis clients, and shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/microcommerce-backend/pkg/config"
	"github.com/angelmondragon/microcommerce-backend/pkg/db"
	"github.com/angelmondragon/microcommerce-backend/pkg/instance"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
	"github.com/angelmondragon/microcommerce-backend/pkg/migrate"
	"github.com/angelmondragon/microcommerce-backend/pkg/redis"
)

// Needs selects which backing services Start opens.
type Needs uint8

const (
	NeedDB Needs = 1 << iota
	NeedRedis
	// SkipAutoMigrate keeps Start from applying dev migrations; cmd/migrate owns the schema itself.
	SkipAutoMigrate
)

type closer struct {
	name string
	fn   func() error
}

// Runtime is what a binary gets back from Start. Fields for services that were
// not requested stay nil.
type Runtime struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client

	closers []closer
}

// Start never returns a nil Runtime, so the caller can always hand a failure to Finish.
func Start(ctx context.Context, service string, needs Needs) (*Runtime, error) {
	rt := &Runtime{Service: service, Logger: logger.New(logger.Options{ServiceName: service})}

	if err := godotenv.Load(); err != nil {
		rt.Logger.Debug(ctx, "bootstrap.no_dotenv")
	}
	cfg, err := config.Load()
	if err != nil {
		return rt, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service
	rt.Config = cfg
	rt.Logger = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if needs&NeedDB != 0 {
		client, err := db.New(ctx, cfg.DB, rt.Logger)
		if err != nil {
			return rt, fmt.Errorf("connect database: %w", err)
		}
		rt.DB = client
		rt.OnClose("database", client.Close)

		if needs&SkipAutoMigrate == 0 {
			if err := migrate.MaybeRunDev(ctx, cfg, rt.Logger, client); err != nil {
				return rt, fmt.Errorf("dev migrations: %w", err)
			}
		}
	}
	if needs&NeedRedis != 0 {
		client, err := redis.New(ctx, cfg.Redis, rt.Logger)
		if err != nil {
			return rt, fmt.Errorf("connect redis: %w", err)
		}
		rt.Redis = client
		rt.OnClose("redis", client.Close)
	}
	return rt, nil
}

// OnClose registers fn to run at Finish. Closers run in reverse registration order.
func (r *Runtime) OnClose(name string, fn func() error) {
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

// Context is canceled on SIGINT or SIGTERM and carries the process-level log fields.
func (r *Runtime) Context(fields map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	base := map[string]any{"service_kind": r.Service, "instance": instance.GetID()}
	if r.Config != nil {
		base["env"] = r.Config.App.Env
	}
	for k, v := range fields {
		base[k] = v
	}
	return r.Logger.WithFields(ctx, base), stop
}

// Finish releases everything Start and OnClose acquired and returns the process exit code.
// Cancellation is a clean stop.
func (r *Runtime) Finish(err error) int {
	ctx := context.Background()
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if cerr := c.fn(); cerr != nil {
			r.Logger.Error(r.Logger.WithField(ctx, "resource", c.name), "shutdown.close_failed", cerr)
		}
	}
	r.closers = nil

	if err != nil && !errors.Is(err, context.Canceled) {
		r.Logger.Error(ctx, r.Service+".failed", err)
		return 1
	}
	r.Logger.Info(ctx, r.Service+".stopped")
	return 0
}

// Serve runs srv until ctx is done, then drains it for at most drain.
func Serve(ctx context.Context, logg *logger.Logger, srv *http.Server, drain time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(logg.WithField(ctx, "addr", srv.Addr), "http.listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
		defer cancel()
		logg.Info(ctx, "http.draining")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
