package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/dbtest"
	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
)

func TestDecrementIsConditional(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "SKU-L1", 1000, 3)
	ledger := NewLedger(conn)
	ctx := context.Background()

	remaining, err := ledger.Decrement(ctx, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	_, err = ledger.Decrement(ctx, product.ID, 2)
	require.True(t, errors.Is(err, ErrInsufficientStock), "got %v", err)

	fresh, err := ledger.Get(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Stock, "failed decrement must not change stock")

	_, err = ledger.Decrement(ctx, product.ID, 0)
	require.Error(t, err)
}

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "SKU-L2", 1000, 5)
	ledger := NewLedger(conn)

	var g errgroup.Group
	results := make([]error, 12)
	for i := range results {
		i := i
		g.Go(func() error {
			results[i] = conn.Transaction(func(tx *gorm.DB) error {
				_, err := ledger.WithTx(tx).Decrement(context.Background(), product.ID, 1)
				return err
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrInsufficientStock)
	}
	assert.Equal(t, 5, succeeded)

	var final models.Product
	require.NoError(t, conn.First(&final, "id = ?", product.ID).Error)
	assert.Equal(t, 0, final.Stock)
}

func TestLockProductsReturnsRequestedRows(t *testing.T) {
	conn := dbtest.Open(t)
	a := dbtest.SeedProduct(t, conn, "SKU-A", 100, 1)
	b := dbtest.SeedProduct(t, conn, "SKU-B", 200, 2)

	var locked map[uuid.UUID]models.Product
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		locked, err = NewLedger(tx).LockProducts(context.Background(), []uuid.UUID{b.ID, a.ID, b.ID, uuid.New()})
		return err
	}))
	require.Len(t, locked, 2)
	assert.Equal(t, 2, locked[b.ID].Stock)
	assert.Equal(t, "SKU-A", locked[a.ID].SKU)
}

func TestSortedIDs(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	got := SortedIDs([]uuid.UUID{b, a, b})
	assert.Equal(t, []uuid.UUID{a, b}, got)
}
