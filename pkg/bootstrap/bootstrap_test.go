package bootstrap

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
)

func quietRuntime() *Runtime {
	return &Runtime{Service: "test", Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard})}
}

func TestFinishClosesInReverseOrder(t *testing.T) {
	rt := quietRuntime()
	var order []string
	rt.OnClose("db", func() error { order = append(order, "db"); return nil })
	rt.OnClose("redis", func() error { order = append(order, "redis"); return errors.New("already closed") })

	require.Equal(t, 0, rt.Finish(nil))
	require.Equal(t, []string{"redis", "db"}, order)

	// closers run once
	require.Equal(t, 0, rt.Finish(nil))
	require.Len(t, order, 2)
}

func TestFinishExitCodes(t *testing.T) {
	require.Equal(t, 1, quietRuntime().Finish(errors.New("boom")))
	require.Equal(t, 0, quietRuntime().Finish(context.Canceled))
}

func TestStartOpensSQLiteAndMigrates(t *testing.T) {
	t.Setenv("MICROCOMMERCE_APP_ENV", "dev")
	t.Setenv("MICROCOMMERCE_APP_PORT", "0")
	t.Setenv("MICROCOMMERCE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("MICROCOMMERCE_JWT_SECRET", "secret")
	t.Setenv("MICROCOMMERCE_JWT_ISSUER", "test")
	t.Setenv("MICROCOMMERCE_JWT_EXPIRATION_MINUTES", "15")
	t.Setenv("MICROCOMMERCE_USE_SQLITE", "true")
	t.Setenv("MICROCOMMERCE_DB_DSN", "file:bootstrap_test?mode=memory&cache=shared&_foreign_keys=on")
	t.Setenv("MICROCOMMERCE_LOG_LEVEL", "error")

	rt, err := Start(context.Background(), "test", NeedDB)
	require.NoError(t, err)
	defer rt.Finish(nil)

	require.NotNil(t, rt.DB)
	require.Nil(t, rt.Redis)
	require.Equal(t, "test", rt.Config.Service.Kind)
	require.True(t, rt.DB.DB().Migrator().HasTable("products"))
}

func TestStartReportsConfigErrors(t *testing.T) {
	t.Setenv("MICROCOMMERCE_APP_ENV", "dev")
	require.NoError(t, os.Unsetenv("MICROCOMMERCE_APP_ENV"))
	rt, err := Start(context.Background(), "test", 0)
	require.Error(t, err)
	require.NotNil(t, rt)
	require.NotNil(t, rt.Logger)
}
