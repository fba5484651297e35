package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/microcommerce-backend/internal/cart"
	"github.com/angelmondragon/microcommerce-backend/internal/orders"
	"github.com/angelmondragon/microcommerce-backend/internal/stock"
	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
	"github.com/angelmondragon/microcommerce-backend/pkg/metrics"
	"github.com/angelmondragon/microcommerce-backend/pkg/outbox"
	"github.com/angelmondragon/microcommerce-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/microcommerce-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartResolver interface {
	ResolveInTx(ctx context.Context, tx *gorm.DB, identity cart.Identity) (*models.Cart, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
	EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

type checkoutMetrics interface {
	ObserveCheckout(outcome string, duration time.Duration)
	IncStockConflict(operation string)
	AddUnitsSold(n int)
}

// Service converts the caller's cart into a paid order.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*orders.OrderDTO, error)
}

// CheckoutInput identifies the buyer. Email overrides the account address when set.
type CheckoutInput struct {
	Identity cart.Identity
	Email    string
}

// Deps wires the checkout service.
type Deps struct {
	Tx        txRunner
	Carts     cartResolver
	CartRepo  *cart.Repository
	Ledger    *stock.Ledger
	Orders    orders.Repository
	Users     userLoader
	Outbox    outboxPublisher
	Metrics   checkoutMetrics
	Logger    *logger.Logger
	PriceLock enums.PriceLock
}

type service struct {
	tx        txRunner
	carts     cartResolver
	cartRepo  *cart.Repository
	ledger    *stock.Ledger
	orders    orders.Repository
	users     userLoader
	outbox    outboxPublisher
	metrics   checkoutMetrics
	logg      *logger.Logger
	priceLock enums.PriceLock
	now       func() time.Time
}

// NewService validates deps and builds the checkout service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart resolver required")
	case deps.CartRepo == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("stock ledger required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Users == nil:
		return nil, fmt.Errorf("user loader required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Metrics == nil:
		return nil, fmt.Errorf("metrics required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case !deps.PriceLock.IsValid():
		return nil, fmt.Errorf("invalid price lock policy %q", deps.PriceLock)
	}
	return &service{
		tx:        deps.Tx,
		carts:     deps.Carts,
		cartRepo:  deps.CartRepo,
		ledger:    deps.Ledger,
		orders:    deps.Orders,
		users:     deps.Users,
		outbox:    deps.Outbox,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		priceLock: deps.PriceLock,
		now:       time.Now,
	}, nil
}

// Execute runs the whole checkout in one transaction. Any failure leaves
// stock, the cart, and orders as they were.
func (s *service) Execute(ctx context.Context, input CheckoutInput) (*orders.OrderDTO, error) {
	if !input.Identity.IsAuthenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeAuthRequired, "authentication required")
	}
	userID := *input.Identity.UserID

	email, err := s.resolveEmail(ctx, userID, input.Email)
	if err != nil {
		return nil, err
	}

	started := s.now()
	var order *models.Order
	var unitsSold int
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		placed, units, err := s.checkoutInTx(ctx, tx, input.Identity, email)
		if err != nil {
			return err
		}
		order = placed
		unitsSold = units
		return nil
	})
	elapsed := s.now().Sub(started)
	if err != nil {
		s.metrics.ObserveCheckout(outcomeFor(err), elapsed)
		if pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStockCheckout) {
			s.metrics.IncStockConflict("checkout")
			s.logg.Warn(s.logg.WithField(ctx, "user_id", userID.String()), "checkout.stock_conflict")
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout")
	}

	s.metrics.ObserveCheckout(metrics.OutcomeSuccess, elapsed)
	s.metrics.AddUnitsSold(unitsSold)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":    order.ID.String(),
		"user_id":     userID.String(),
		"total_cents": order.TotalCents,
		"units":       unitsSold,
	})
	s.logg.Info(logCtx, "checkout.completed")
	return orders.NewOrderDTO(order), nil
}

func (s *service) checkoutInTx(ctx context.Context, tx *gorm.DB, identity cart.Identity, email string) (*models.Order, int, error) {
	c, err := s.carts.ResolveInTx(ctx, tx, identity)
	if err != nil {
		return nil, 0, err
	}
	cartRepo := s.cartRepo.WithTx(tx)
	ledger := s.ledger.WithTx(tx)

	items, err := cartRepo.Items(ctx, c.ID)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart items")
	}
	if len(items) == 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := ledger.LockProducts(ctx, productIDs)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock products")
	}

	if conflicts := findConflicts(items, products); len(conflicts) > 0 {
		return nil, 0, insufficientStock(conflicts)
	}

	currency := enums.DefaultCurrency
	var total int64
	orderItems := make([]models.OrderItem, 0, len(items))
	units := 0
	for i, item := range items {
		product := products[item.ProductID]
		if i == 0 && product.Currency != "" {
			currency = product.Currency
		}
		unit := cart.UnitPrice(item, product, s.priceLock)
		line, err := types.MultiplyMinorUnits(unit, item.Quantity)
		if err == nil {
			total, err = types.AddMinorUnits(total, line)
		}
		if err != nil {
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "order total is too large")
		}
		units += item.Quantity
		orderItems = append(orderItems, models.OrderItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			SKU:            product.SKU,
			Quantity:       item.Quantity,
			UnitPriceCents: unit,
			LineTotalCents: line,
		})
	}

	order, err := s.orders.WithTx(tx).Create(ctx, &models.Order{
		UserID:     identity.UserID,
		Email:      email,
		Status:     enums.OrderStatusPaid,
		TotalCents: total,
		Currency:   currency,
	}, orderItems)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
	}

	var soldOut []models.Product
	for _, item := range items {
		remaining, err := ledger.Decrement(ctx, item.ProductID, item.Quantity)
		if err != nil {
			if errors.Is(err, stock.ErrInsufficientStock) {
				product := products[item.ProductID]
				available := 0
				if fresh, readErr := ledger.Get(ctx, item.ProductID); readErr == nil {
					available = fresh.Stock
				}
				return nil, 0, insufficientStock([]StockConflict{{
					ProductID: item.ProductID,
					SKU:       product.SKU,
					Name:      product.Name,
					Requested: item.Quantity,
					Available: available,
				}})
			}
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: decrement stock")
		}
		if remaining == 0 {
			soldOut = append(soldOut, products[item.ProductID])
		}
	}

	if _, err := cartRepo.DeleteItems(ctx, c.ID); err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart")
	}
	if err := cartRepo.Touch(ctx, c.ID); err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: touch cart")
	}

	if err := s.emitEvents(ctx, tx, order, soldOut); err != nil {
		return nil, 0, err
	}
	return order, units, nil
}

func (s *service) emitEvents(ctx context.Context, tx *gorm.DB, order *models.Order, soldOut []models.Product) error {
	paidAt := s.now().UTC()
	actor := &outbox.Actor{UserID: *order.UserID}

	eventItems := make([]payloads.OrderPaidItem, 0, len(order.Items))
	for _, item := range order.Items {
		eventItems = append(eventItems, payloads.OrderPaidItem{
			ProductID:      item.ProductID,
			SKU:            item.SKU,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	// an order is paid exactly once
	err := s.outbox.EmitOnce(ctx, tx, outbox.Event{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    paidAt,
		Data: payloads.OrderPaidEvent{
			OrderID:    order.ID,
			UserID:     order.UserID,
			Email:      order.Email,
			TotalCents: order.TotalCents,
			Currency:   order.Currency.String(),
			Items:      eventItems,
			PaidAt:     paidAt,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order_paid")
	}

	for _, product := range soldOut {
		err := s.outbox.Emit(ctx, tx, outbox.Event{
			EventType:     enums.EventProductSoldOut,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Actor:         actor,
			OccurredAt:    paidAt,
			Data: payloads.ProductSoldOutEvent{
				ProductID: product.ID,
				SKU:       product.SKU,
				OrderID:   order.ID,
				SoldOutAt: paidAt,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit product_sold_out")
		}
	}
	return nil
}

// resolveEmail prefers the override and falls back to the account email.
// Format validation happens at the request boundary.
func (s *service) resolveEmail(ctx context.Context, userID uuid.UUID, override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return strings.ToLower(override), nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeAuthRequired, "authentication required")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}
	if user.Email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	return user.Email, nil
}

func insufficientStock(conflicts []StockConflict) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStockCheckout, "insufficient stock at checkout").
		WithDetails(ConflictDetails{Items: conflicts})
}

func outcomeFor(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.OutcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeEmptyCart:
		return metrics.OutcomeEmpty
	case pkgerrors.CodeInsufficientStockCheckout:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
