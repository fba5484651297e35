package cart

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/microcommerce-backend/internal/stock"
	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartMetrics interface {
	AddMergedItems(n int)
	IncStockConflict(operation string)
}

// Service exposes cart resolution and item mutation.
type Service interface {
	Resolve(ctx context.Context, identity Identity) (*models.Cart, error)
	ResolveInTx(ctx context.Context, tx *gorm.DB, identity Identity) (*models.Cart, error)
	GetCart(ctx context.Context, identity Identity) (*CartView, error)
	AddItem(ctx context.Context, identity Identity, input AddItemInput) (*AddItemResult, error)
	UpdateItemQuantity(ctx context.Context, identity Identity, itemID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, identity Identity, itemID uuid.UUID) error
	MergeGuestCart(ctx context.Context, userID uuid.UUID, sessionKey string) (*MergeResult, error)
}

// StockConflict is the detail payload of OUT_OF_STOCK and INSUFFICIENT_STOCK errors.
type StockConflict struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
	CanAddNow *int      `json:"can_add_now,omitempty"`
}

type service struct {
	repo      *Repository
	ledger    *stock.Ledger
	tx        txRunner
	metrics   cartMetrics
	logg      *logger.Logger
	priceLock enums.PriceLock
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, ledger *stock.Ledger, tx txRunner, metrics cartMetrics, logg *logger.Logger, priceLock enums.PriceLock) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !priceLock.IsValid() {
		return nil, fmt.Errorf("invalid price lock policy %q", priceLock)
	}
	return &service{
		repo:      repo,
		ledger:    ledger,
		tx:        tx,
		metrics:   metrics,
		logg:      logg,
		priceLock: priceLock,
	}, nil
}

func (s *service) Resolve(ctx context.Context, identity Identity) (*models.Cart, error) {
	var cart *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		resolved, err := s.ResolveInTx(ctx, tx, identity)
		if err != nil {
			return err
		}
		cart = resolved
		return nil
	})
	if err != nil {
		return nil, asTyped(err, "resolve cart")
	}
	return cart, nil
}

// ResolveInTx returns the caller's cart locked for the rest of tx, merging the
// guest cart named by the session key when the caller is authenticated.
func (s *service) ResolveInTx(ctx context.Context, tx *gorm.DB, identity Identity) (*models.Cart, error) {
	cart, _, err := s.resolveInTx(ctx, tx, identity)
	return cart, err
}

func (s *service) resolveInTx(ctx context.Context, tx *gorm.DB, identity Identity) (*models.Cart, int, error) {
	repo := s.repo.WithTx(tx)
	key := identity.sessionKey()

	if !identity.IsAuthenticated() {
		if key == "" {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "session key required for guest cart").
				WithDetails(map[string]string{"session_key": "required"})
		}
		cart, err := repo.GetOrCreateForSession(ctx, key)
		if err != nil {
			return nil, 0, resolveError(err, "db: get or create guest cart")
		}
		return cart, 0, nil
	}

	cart, err := repo.GetOrCreateForUser(ctx, *identity.UserID)
	if err != nil {
		return nil, 0, resolveError(err, "db: get or create user cart")
	}
	if key == "" {
		return cart, 0, nil
	}

	guest, err := repo.FindBySessionLocked(ctx, key)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock guest cart")
	}
	if guest == nil || guest.ID == cart.ID {
		return cart, 0, nil
	}

	merged, err := mergeCarts(ctx, repo, cart, guest)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: merge guest cart")
	}
	s.metrics.AddMergedItems(merged)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"cart_id":       cart.ID.String(),
		"guest_cart_id": guest.ID.String(),
		"merged_items":  merged,
	})
	s.logg.Info(logCtx, "cart.merged")
	return cart, merged, nil
}

func (s *service) GetCart(ctx context.Context, identity Identity) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.ResolveInTx(ctx, tx, identity)
		if err != nil {
			return err
		}
		items, err := s.repo.WithTx(tx).Items(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart items")
		}
		view, err = newCartView(cart, items, s.priceLock)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cart total is too large")
		}
		return nil
	})
	if err != nil {
		return nil, asTyped(err, "get cart")
	}
	return view, nil
}

// AddItem adds quantity to the line for the product, creating it when absent.
// Stock is checked against the combined quantity but never reserved.
func (s *service) AddItem(ctx context.Context, identity Identity, input AddItemInput) (*AddItemResult, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]string{"quantity": "min=1"})
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}

	var result *AddItemResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.ResolveInTx(ctx, tx, identity)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)

		product, err := s.ledger.WithTx(tx).Get(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return productNotFound(input.ProductID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		if !product.IsActive {
			return productNotFound(input.ProductID)
		}

		existing, err := repo.FindItem(ctx, cart.ID, product.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart item")
		}
		already := 0
		if existing != nil {
			already = existing.Quantity
		}
		requested := addQuantity(already, input.Quantity)

		if product.Stock == 0 {
			canAdd := 0
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "product is out of stock").
				WithDetails(StockConflict{ProductID: product.ID, Requested: requested, Available: 0, CanAddNow: &canAdd})
		}
		if input.Quantity > product.Stock-already {
			canAdd := max(product.Stock-already, 0)
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock for requested quantity").
				WithDetails(StockConflict{ProductID: product.ID, Requested: requested, Available: product.Stock, CanAddNow: &canAdd})
		}

		if existing != nil {
			if err := repo.UpdateItemQuantity(ctx, existing.ID, requested); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart item")
			}
			result = &AddItemResult{ID: existing.ID, Quantity: requested}
		} else {
			item := &models.CartItem{
				CartID:         cart.ID,
				ProductID:      product.ID,
				Quantity:       requested,
				UnitPriceCents: product.PriceCents,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert cart item")
			}
			result = &AddItemResult{ID: item.ID, Quantity: requested}
		}

		if err := repo.Touch(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: touch cart")
		}
		return nil
	})
	if err != nil {
		s.countStockConflict(err, "add_item")
		return nil, asTyped(err, "add cart item")
	}
	return result, nil
}

// addQuantity saturates at math.MaxInt instead of wrapping.
func addQuantity(already, quantity int) int {
	if quantity > math.MaxInt-already {
		return math.MaxInt
	}
	return already + quantity
}

// UpdateItemQuantity sets an absolute quantity after checking it against stock.
// A rejected update leaves the line unchanged.
func (s *service) UpdateItemQuantity(ctx context.Context, identity Identity, itemID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]string{"quantity": "min=1"})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.ResolveInTx(ctx, tx, identity)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)

		item, err := repo.FindItemByID(ctx, cart.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart item")
		}
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}

		product, err := s.ledger.WithTx(tx).Get(ctx, item.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		if quantity > product.Stock {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "not enough stock for requested quantity").
				WithDetails(StockConflict{ProductID: product.ID, Requested: quantity, Available: product.Stock})
		}

		if err := repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart item")
		}
		if err := repo.Touch(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: touch cart")
		}
		return nil
	})
	if err != nil {
		s.countStockConflict(err, "update_item")
		return asTyped(err, "update cart item")
	}
	return nil
}

// RemoveItem deletes a line from the caller's cart. Unknown ids are ignored.
func (s *service) RemoveItem(ctx context.Context, identity Identity, itemID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.ResolveInTx(ctx, tx, identity)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		removed, err := repo.DeleteItem(ctx, cart.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete cart item")
		}
		if removed > 0 {
			if err := repo.Touch(ctx, cart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: touch cart")
			}
		}
		return nil
	})
	if err != nil {
		return asTyped(err, "remove cart item")
	}
	return nil
}

// MergeGuestCart folds the guest cart for sessionKey into the user's cart.
// A missing guest cart is not an error.
func (s *service) MergeGuestCart(ctx context.Context, userID uuid.UUID, sessionKey string) (*MergeResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeAuthRequired, "authentication required")
	}

	var result *MergeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, merged, err := s.resolveInTx(ctx, tx, Identity{UserID: &userID, SessionKey: sessionKey})
		if err != nil {
			return err
		}
		result = &MergeResult{CartID: cart.ID, MergedItems: merged}
		return nil
	})
	if err != nil {
		return nil, asTyped(err, "merge guest cart")
	}
	return result, nil
}

func (s *service) countStockConflict(err error, operation string) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return
	}
	switch typed.Code() {
	case pkgerrors.CodeOutOfStock, pkgerrors.CodeInsufficientStock:
		s.metrics.IncStockConflict(operation)
	}
}

func productNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
		WithDetails(map[string]string{"product_id": productID.String()})
}

// resolveError maps a cart that disappeared between insert and select, which
// happens when a concurrent merge retires the guest cart.
func resolveError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeConflict, "cart was merged; retry")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func asTyped(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
