package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/microcommerce-backend/internal/cart"
	"github.com/angelmondragon/microcommerce-backend/internal/cron"
	"github.com/angelmondragon/microcommerce-backend/pkg/bootstrap"
	"github.com/angelmondragon/microcommerce-backend/pkg/metrics"
	"github.com/angelmondragon/microcommerce-backend/pkg/outbox"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	rt, err := bootstrap.Start(context.Background(), "cron-worker", bootstrap.NeedDB|bootstrap.NeedRedis)
	if err == nil {
		err = run(rt, *once)
	}
	os.Exit(rt.Finish(err))
}

func run(rt *bootstrap.Runtime, once bool) error {
	cfg, logg, conn := rt.Config, rt.Logger, rt.DB.DB()

	lock, err := cron.NewRedisLock(rt.Redis, rt.Redis.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	guestCarts, err := cron.NewGuestCartCleanupJob(cron.GuestCartCleanupJobParams{
		Logger:     logg,
		Repository: cart.NewRepository(conn),
		TTL:        cfg.Cart.GuestCartTTL(),
	})
	if err != nil {
		return err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		Repository:   outbox.NewRepository(conn),
		DLQ:          outbox.NewDLQRepository(conn),
		Retention:    cfg.Outbox.RetentionDays,
		DLQRetention: cfg.Outbox.DLQRetentionDays,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	scheduler, err := cron.NewScheduler(cron.SchedulerParams{
		Logger:   logg,
		Locker:   lock,
		Metrics:  metrics.NewJobMetrics(reg),
		Interval: cfg.Cron.Interval,
		Jobs:     []cron.Job{guestCarts, retention},
	})
	if err != nil {
		return err
	}

	ctx, stop := rt.Context(map[string]any{"interval": cfg.Cron.Interval.String()})
	defer stop()

	if once {
		logg.Info(ctx, "cron.single_cycle")
		return scheduler.RunOnce(ctx)
	}

	logg.Info(ctx, "cron.starting")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		return bootstrap.Serve(gctx, logg, &http.Server{
			Addr:              ":" + cfg.App.Port,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}, 5*time.Second)
	})
	return g.Wait()
}
