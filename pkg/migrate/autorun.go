package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/microcommerce-backend/pkg/config"
	"github.com/angelmondragon/microcommerce-backend/pkg/db"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot in local sqlite mode, or in dev when
// MICROCOMMERCE_AUTO_MIGRATE is set. Production schemas move only through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || client == nil {
		return nil
	}
	if !cfg.FeatureFlags.UseSQLite && !(cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	migrator, err := NewMigrator(sqlDB, client.Driver(), nil)
	if err != nil {
		return err
	}

	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"driver":  client.Driver(),
		"applied": applied,
	}), "migrations.auto_applied")
	return nil
}
