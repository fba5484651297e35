package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	"github.com/angelmondragon/microcommerce-backend/pkg/types"
)

// CartProduct is the product summary embedded in a cart line.
type CartProduct struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	SKU        string      `json:"sku"`
	PriceCents int64       `json:"price_cents"`
	Price      types.Money `json:"price"`
	Stock      int         `json:"stock"`
	IsActive   bool        `json:"is_active"`
}

// CartItemView is one line of the cart view.
type CartItemView struct {
	ID             uuid.UUID   `json:"id"`
	Product        CartProduct `json:"product"`
	Quantity       int         `json:"quantity"`
	UnitPriceCents int64       `json:"unit_price_cents"`
	LineTotalCents int64       `json:"line_total_cents"`
	LineTotal      types.Money `json:"line_total"`
}

// CartView is the cart as returned to clients.
type CartView struct {
	ID         uuid.UUID      `json:"id"`
	Items      []CartItemView `json:"items"`
	TotalCents int64          `json:"total_cents"`
	Total      types.Money    `json:"total"`
	ItemCount  int            `json:"item_count"`
	Currency   string         `json:"currency"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// AddItemInput is the validated payload of an add-to-cart request.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// AddItemResult reports the line quantity after an add.
type AddItemResult struct {
	ID       uuid.UUID `json:"id"`
	Quantity int       `json:"quantity"`
}

// MergeResult reports the outcome of folding a guest cart into a user cart.
type MergeResult struct {
	CartID      uuid.UUID `json:"cart_id"`
	MergedItems int       `json:"merged_items"`
}

// UnitPrice returns the price a line is charged at under the given policy.
func UnitPrice(item models.CartItem, product models.Product, policy enums.PriceLock) int64 {
	if policy == enums.PriceLockCheckout {
		return product.PriceCents
	}
	return item.UnitPriceCents
}

func newCartView(cart *models.Cart, items []models.CartItem, policy enums.PriceLock) (*CartView, error) {
	view := &CartView{
		ID:        cart.ID,
		Items:     make([]CartItemView, 0, len(items)),
		Currency:  enums.DefaultCurrency.String(),
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range items {
		var product models.Product
		if item.Product != nil {
			product = *item.Product
		}
		currency := product.Currency.String()
		if currency != "" {
			view.Currency = currency
		}
		unit := UnitPrice(item, product, policy)
		line, err := types.MultiplyMinorUnits(unit, item.Quantity)
		if err != nil {
			return nil, err
		}
		view.Items = append(view.Items, CartItemView{
			ID: item.ID,
			Product: CartProduct{
				ID:         product.ID,
				Name:       product.Name,
				SKU:        product.SKU,
				PriceCents: product.PriceCents,
				Price:      types.NewMoney(product.PriceCents, currency),
				Stock:      product.Stock,
				IsActive:   product.IsActive,
			},
			Quantity:       item.Quantity,
			UnitPriceCents: unit,
			LineTotalCents: line,
			LineTotal:      types.NewMoney(line, currency),
		})
		if view.TotalCents, err = types.AddMinorUnits(view.TotalCents, line); err != nil {
			return nil, err
		}
		view.ItemCount += item.Quantity
	}
	view.Total = types.NewMoney(view.TotalCents, view.Currency)
	return view, nil
}
