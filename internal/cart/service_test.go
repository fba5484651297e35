package cart

import (
	"context"
	"io"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/microcommerce-backend/internal/stock"
	"github.com/angelmondragon/microcommerce-backend/pkg/db"
	"github.com/angelmondragon/microcommerce-backend/pkg/db/dbtest"
	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
)

type stubMetrics struct {
	mu        sync.Mutex
	merged    int
	conflicts map[string]int
}

func (m *stubMetrics) AddMergedItems(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merged += n
}

func (m *stubMetrics) IncStockConflict(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts == nil {
		m.conflicts = map[string]int{}
	}
	m.conflicts[operation]++
}

type fixture struct {
	svc     Service
	client  *db.Client
	conn    *gorm.DB
	metrics *stubMetrics
}

func newFixture(t *testing.T, policy enums.PriceLock) *fixture {
	t.Helper()
	return newFixtureOn(t, dbtest.NewClient(t), policy)
}

func newFixtureOn(t *testing.T, client *db.Client, policy enums.PriceLock) *fixture {
	t.Helper()
	metrics := &stubMetrics{}
	logg := logger.New(logger.Options{ServiceName: "cart-test", Output: io.Discard})
	svc, err := NewService(NewRepository(client.DB()), stock.NewLedger(client.DB()), client, metrics, logg, policy)
	require.NoError(t, err)
	return &fixture{svc: svc, client: client, conn: client.DB(), metrics: metrics}
}

func guest(key string) Identity {
	return Identity{SessionKey: key}
}

func user(id uuid.UUID, key string) Identity {
	return Identity{UserID: &id, SessionKey: key}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
	return typed
}

func quantities(t *testing.T, conn *gorm.DB, cartID uuid.UUID) map[uuid.UUID]int {
	t.Helper()
	var rows []models.CartItem
	require.NoError(t, conn.Where("cart_id = ?", cartID).Find(&rows).Error)
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Quantity
	}
	return out
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	client := dbtest.NewClient(t)
	logg := logger.New(logger.Options{ServiceName: "cart-test", Output: io.Discard})
	repo := NewRepository(client.DB())
	ledger := stock.NewLedger(client.DB())

	if _, err := NewService(nil, ledger, client, &stubMetrics{}, logg, enums.PriceLockCart); err == nil {
		t.Fatal("expected error for nil repository")
	}
	if _, err := NewService(repo, ledger, client, nil, logg, enums.PriceLockCart); err == nil {
		t.Fatal("expected error for nil metrics")
	}
	if _, err := NewService(repo, ledger, client, &stubMetrics{}, logg, enums.PriceLock("later")); err == nil {
		t.Fatal("expected error for unknown price lock")
	}
}

func TestResolveGuestRequiresSessionKey(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)

	_, err := f.svc.Resolve(context.Background(), Identity{SessionKey: "   "})
	requireCode(t, err, pkgerrors.CodeValidation)

	var count int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestResolveGetOrCreateIsStable(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()

	first, err := f.svc.Resolve(ctx, guest("guest-abc"))
	require.NoError(t, err)
	second, err := f.svc.Resolve(ctx, guest("guest-abc"))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.True(t, first.IsGuest())

	u := dbtest.SeedUser(t, f.conn, "stable@example.com")
	a, err := f.svc.Resolve(ctx, user(u.ID, ""))
	require.NoError(t, err)
	b, err := f.svc.Resolve(ctx, user(u.ID, ""))
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
	require.False(t, a.IsGuest())
}

func TestAddItemIsAdditiveAndCapturesPrice(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "ADD1", 1000, 10)

	first, err := f.svc.AddItem(ctx, guest("g1"), AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, 2, first.Quantity)

	second, err := f.svc.AddItem(ctx, guest("g1"), AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 3, second.Quantity)

	var item models.CartItem
	require.NoError(t, f.conn.Where("id = ?", first.ID).First(&item).Error)
	require.Equal(t, 3, item.Quantity)
	require.Equal(t, int64(1000), item.UnitPriceCents)

	var after models.Product
	require.NoError(t, f.conn.Where("id = ?", product.ID).First(&after).Error)
	require.Equal(t, 10, after.Stock, "adding to cart must not reserve stock")
}

func TestAddItemRejectsBadInput(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "BAD1", 1000, 10)

	_, err := f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: product.ID, Quantity: 0})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: uuid.New(), Quantity: 1})
	requireCode(t, err, pkgerrors.CodeProductNotFound)

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error)
	_, err = f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: product.ID, Quantity: 1})
	requireCode(t, err, pkgerrors.CodeProductNotFound)
}

func TestAddItemStockConflicts(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()
	empty := dbtest.SeedProduct(t, f.conn, "EMPTY", 500, 0)
	scarce := dbtest.SeedProduct(t, f.conn, "SCARCE", 500, 3)

	_, err := f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: empty.ID, Quantity: 1})
	typed := requireCode(t, err, pkgerrors.CodeOutOfStock)
	details := typed.Details().(StockConflict)
	require.Equal(t, 1, details.Requested)
	require.Equal(t, 0, details.Available)
	require.Equal(t, 0, *details.CanAddNow)

	_, err = f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: scarce.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: scarce.ID, Quantity: 2})
	typed = requireCode(t, err, pkgerrors.CodeInsufficientStock)
	details = typed.Details().(StockConflict)
	require.Equal(t, scarce.ID, details.ProductID)
	require.Equal(t, 4, details.Requested)
	require.Equal(t, 3, details.Available)
	require.Equal(t, 1, *details.CanAddNow)

	cart, err := f.svc.Resolve(ctx, guest("g"))
	require.NoError(t, err)
	require.Equal(t, 2, quantities(t, f.conn, cart.ID)[scarce.ID])
	require.Equal(t, 2, f.metrics.conflicts["add_item"])
}

func TestAddItemHugeQuantityIsInsufficientStock(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "HUGE", 500, 5)

	_, err := f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: product.ID, Quantity: math.MaxInt})
	typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
	details := typed.Details().(StockConflict)
	require.Equal(t, math.MaxInt, details.Requested)
	require.Equal(t, 5, details.Available)
	require.Equal(t, 4, *details.CanAddNow)

	cart, err := f.svc.Resolve(ctx, guest("g"))
	require.NoError(t, err)
	require.Equal(t, 1, quantities(t, f.conn, cart.ID)[product.ID])
}

func TestUpdateItemQuantityValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "UPD1", 700, 5)

	added, err := f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	err = f.svc.UpdateItemQuantity(ctx, guest("g"), added.ID, 6)
	typed := requireCode(t, err, pkgerrors.CodeOutOfStock)
	details := typed.Details().(StockConflict)
	require.Equal(t, 6, details.Requested)
	require.Equal(t, 5, details.Available)
	require.Nil(t, details.CanAddNow)

	var item models.CartItem
	require.NoError(t, f.conn.Where("id = ?", added.ID).First(&item).Error)
	require.Equal(t, 2, item.Quantity, "rejected update must leave the row unchanged")

	require.NoError(t, f.svc.UpdateItemQuantity(ctx, guest("g"), added.ID, 5))
	require.NoError(t, f.conn.Where("id = ?", added.ID).First(&item).Error)
	require.Equal(t, 5, item.Quantity)

	err = f.svc.UpdateItemQuantity(ctx, guest("g"), added.ID, 0)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateItemQuantityScopedToOwner(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "OWN1", 700, 5)

	added, err := f.svc.AddItem(ctx, guest("owner"), AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	err = f.svc.UpdateItemQuantity(ctx, guest("intruder"), added.ID, 2)
	requireCode(t, err, pkgerrors.CodeNotFound)

	require.NoError(t, f.svc.RemoveItem(ctx, guest("intruder"), added.ID))
	var count int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Where("id = ?", added.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "RM1", 700, 5)

	added, err := f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveItem(ctx, guest("g"), added.ID))
	require.NoError(t, f.svc.RemoveItem(ctx, guest("g"), added.ID))
	require.NoError(t, f.svc.RemoveItem(ctx, guest("g"), uuid.New()))

	var count int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestMergeIsUnionByMaxAndRetiresGuestCart(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()
	p1 := dbtest.SeedProduct(t, f.conn, "M1", 1000, 20)
	p2 := dbtest.SeedProduct(t, f.conn, "M2", 2000, 20)
	p3 := dbtest.SeedProduct(t, f.conn, "M3", 3000, 20)
	u := dbtest.SeedUser(t, f.conn, "merge@example.com")

	_, err := f.svc.AddItem(ctx, user(u.ID, ""), AddItemInput{ProductID: p1.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, user(u.ID, ""), AddItemInput{ProductID: p3.ID, Quantity: 5})
	require.NoError(t, err)

	guestCart, err := f.svc.Resolve(ctx, guest("sess-merge"))
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, guest("sess-merge"), AddItemInput{ProductID: p1.ID, Quantity: 3})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, guest("sess-merge"), AddItemInput{ProductID: p2.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, guest("sess-merge"), AddItemInput{ProductID: p3.ID, Quantity: 1})
	require.NoError(t, err)

	result, err := f.svc.MergeGuestCart(ctx, u.ID, "sess-merge")
	require.NoError(t, err)
	require.Equal(t, 3, result.MergedItems)
	require.Equal(t, 3, f.metrics.merged)

	got := quantities(t, f.conn, result.CartID)
	require.Equal(t, map[uuid.UUID]int{p1.ID: 3, p2.ID: 1, p3.ID: 5}, got)

	var guestCount int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Where("id = ?", guestCart.ID).Count(&guestCount).Error)
	require.Zero(t, guestCount)

	fresh, err := f.svc.GetCart(ctx, guest("sess-merge"))
	require.NoError(t, err)
	require.NotEqual(t, guestCart.ID, fresh.ID)
	require.Empty(t, fresh.Items)
}

func TestMergeGuestCartWithoutGuestIsNoop(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()
	u := dbtest.SeedUser(t, f.conn, "noop@example.com")

	result, err := f.svc.MergeGuestCart(ctx, u.ID, "never-used")
	require.NoError(t, err)
	require.Zero(t, result.MergedItems)
	require.NotEqual(t, uuid.Nil, result.CartID)

	_, err = f.svc.MergeGuestCart(ctx, uuid.Nil, "never-used")
	requireCode(t, err, pkgerrors.CodeAuthRequired)
}

func TestAuthenticatedResolveMergesOpportunistically(t *testing.T) {
	f := newFixture(t, enums.PriceLockCart)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "OPP", 1000, 20)
	u := dbtest.SeedUser(t, f.conn, "opp@example.com")

	_, err := f.svc.AddItem(ctx, guest("sess-opp"), AddItemInput{ProductID: product.ID, Quantity: 4})
	require.NoError(t, err)

	view, err := f.svc.GetCart(ctx, user(u.ID, "sess-opp"))
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, 4, view.Items[0].Quantity)

	var guests int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Where("session_key = ?", "sess-opp").Count(&guests).Error)
	require.Zero(t, guests)
}

func TestGetCartTotalsFollowPriceLock(t *testing.T) {
	for _, tc := range []struct {
		name   string
		policy enums.PriceLock
		unit   int64
	}{
		{name: "cart", policy: enums.PriceLockCart, unit: 1000},
		{name: "checkout", policy: enums.PriceLockCheckout, unit: 1500},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.policy)
			ctx := context.Background()
			product := dbtest.SeedProduct(t, f.conn, "PL1", 1000, 20)

			_, err := f.svc.AddItem(ctx, guest("g"), AddItemInput{ProductID: product.ID, Quantity: 3})
			require.NoError(t, err)
			require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("price_cents", 1500).Error)

			view, err := f.svc.GetCart(ctx, guest("g"))
			require.NoError(t, err)
			require.Len(t, view.Items, 1)
			require.Equal(t, tc.unit, view.Items[0].UnitPriceCents)
			require.Equal(t, tc.unit*3, view.TotalCents)
			require.Equal(t, 3, view.ItemCount)
			require.Equal(t, "NGN", view.Currency)
			require.Equal(t, int64(1500), view.Items[0].Product.PriceCents)
		})
	}
}

func TestConcurrentAddsToSameCartAccumulate(t *testing.T) {
	checkConcurrentAdds(t, newFixture(t, enums.PriceLockCart))
}

func TestConcurrentAddsToSameCartAccumulateOnPostgres(t *testing.T) {
	checkConcurrentAdds(t, newFixtureOn(t, dbtest.NewPostgresClient(t), enums.PriceLockCart))
}

func checkConcurrentAdds(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "CC1", 100, 50)

	_, err := f.svc.Resolve(ctx, guest("shared"))
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.svc.AddItem(ctx, guest("shared"), AddItemInput{ProductID: product.ID, Quantity: 2})
			return err
		})
	}
	require.NoError(t, g.Wait())

	cart, err := f.svc.Resolve(ctx, guest("shared"))
	require.NoError(t, err)
	require.Equal(t, 16, quantities(t, f.conn, cart.ID)[product.ID])
}
