package main

import (
	"context"
	"os"

	"github.com/angelmondragon/microcommerce-backend/internal/auth"
	"github.com/angelmondragon/microcommerce-backend/internal/catalog"
	"github.com/angelmondragon/microcommerce-backend/pkg/bootstrap"
)

// seed loads the demo catalog and, when configured, an admin account. Safe to rerun.
func main() {
	rt, err := bootstrap.Start(context.Background(), "seed", bootstrap.NeedDB)
	if err == nil {
		err = seed(rt)
	}
	os.Exit(rt.Finish(err))
}

func seed(rt *bootstrap.Runtime) error {
	cfg, logg := rt.Config, rt.Logger
	ctx, stop := rt.Context(nil)
	defer stop()

	catalogService, err := catalog.NewService(catalog.NewRepository(rt.DB.DB()), rt.DB)
	if err != nil {
		return err
	}
	inserted, err := catalogService.SeedDemoCatalog(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "inserted", inserted), "seed.catalog_done")

	if cfg.Seed.AdminEmail == "" {
		return nil
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{DB: rt.DB, PasswordConfig: cfg.Password})
	if err != nil {
		return err
	}
	admin, created, err := registerService.EnsureAdmin(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword)
	if err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"admin_id": admin.ID.String(), "created": created}), "seed.admin_ready")
	return nil
}
