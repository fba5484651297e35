package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/microcommerce-backend/pkg/bootstrap"
	"github.com/angelmondragon/microcommerce-backend/pkg/metrics"
	"github.com/angelmondragon/microcommerce-backend/pkg/outbox"
	"github.com/angelmondragon/microcommerce-backend/pkg/outbox/registry"
	"github.com/angelmondragon/microcommerce-backend/pkg/pubsub"
)

func main() {
	rt, err := bootstrap.Start(context.Background(), "outbox-publisher", bootstrap.NeedDB)
	if err == nil {
		err = run(rt)
	}
	os.Exit(rt.Finish(err))
}

func run(rt *bootstrap.Runtime) error {
	cfg, logg, conn := rt.Config, rt.Logger, rt.DB.DB()

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	client, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	rt.OnClose("pubsub", client.Close)

	reg := prometheus.NewRegistry()
	dispatcher, err := NewDispatcher(DispatcherParams{
		Config:        cfg.Outbox,
		Logger:        logg,
		DB:            rt.DB,
		PubSub:        client,
		Repository:    outbox.NewRepository(conn),
		DLQRepository: outbox.NewDLQRepository(conn),
		Registry:      events,
		Metrics:       metrics.NewOutboxMetrics(reg),
	})
	if err != nil {
		return err
	}

	ctx, stop := rt.Context(map[string]any{"topics": events.Topics()})
	defer stop()
	logg.Info(ctx, "outbox.publisher_starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		return bootstrap.Serve(gctx, logg, &http.Server{
			Addr:              ":" + cfg.App.Port,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}, 5*time.Second)
	})
	return g.Wait()
}
