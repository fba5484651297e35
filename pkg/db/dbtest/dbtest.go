// Package dbtest provides databases for package tests: in-memory sqlite by default,
// and a throwaway postgres schema when PostgresDSNEnv is set.
package dbtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/microcommerce-backend/pkg/db"
	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	"github.com/angelmondragon/microcommerce-backend/pkg/migrate"
)

// PostgresDSNEnv names a postgres database the lock-sensitive tests may use.
const PostgresDSNEnv = "MICROCOMMERCE_TEST_POSTGRES_DSN"

// Open returns an isolated in-memory database with every model migrated.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:test_%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), quietConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

func quietConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
	}
}

// OpenPostgres migrates a fresh schema on the database named by PostgresDSNEnv and
// drops it on cleanup. The test is skipped when the variable is unset.
// sqlite serialises writers on one connection, so only this path exercises row locks.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv(PostgresDSNEnv))
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	admin, err := gorm.Open(postgres.Open(dsn), quietConfig())
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := admin.Exec("CREATE SCHEMA " + schema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}

	conn, err := gorm.Open(postgres.Open(withSearchPath(dsn, schema)), quietConfig())
	if err != nil {
		t.Fatalf("open postgres schema: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
		_ = admin.Exec("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Error
		if adminDB, err := admin.DB(); err == nil {
			_ = adminDB.Close()
		}
	})

	migrator, err := migrate.NewMigrator(sqlDB, "postgres", nil)
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	if _, err := migrator.Up(context.Background()); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return conn
}

func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

// NewPostgresClient wraps OpenPostgres in a db.Client.
func NewPostgresClient(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromGorm(OpenPostgres(t))
}

// NewClient wraps Open in a db.Client.
func NewClient(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromGorm(Open(t))
}

// SeedProduct inserts an active product.
func SeedProduct(t testing.TB, conn *gorm.DB, sku string, priceCents int64, stock int) models.Product {
	t.Helper()
	product := models.Product{
		Name:        "Product " + sku,
		Description: "test product",
		PriceCents:  priceCents,
		Currency:    enums.CurrencyNGN,
		SKU:         sku,
		Stock:       stock,
		IsActive:    true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product %s: %v", sku, err)
	}
	return product
}

// SeedUser inserts an active customer.
func SeedUser(t testing.TB, conn *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		PasswordHash: "not-a-real-hash",
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}
