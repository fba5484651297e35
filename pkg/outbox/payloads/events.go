package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderPaidItem is one snapshotted line of a paid order.
type OrderPaidItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	SKU            string    `json:"sku"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// OrderPaidEvent is emitted when checkout converts a cart into a paid order.
type OrderPaidEvent struct {
	OrderID    uuid.UUID       `json:"order_id"`
	UserID     *uuid.UUID      `json:"user_id,omitempty"`
	Email      string          `json:"email"`
	TotalCents int64           `json:"total_cents"`
	Currency   string          `json:"currency"`
	Items      []OrderPaidItem `json:"items"`
	PaidAt     time.Time       `json:"paid_at"`
}

// ProductSoldOutEvent is emitted when a checkout takes a product's stock to zero.
type ProductSoldOutEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	OrderID   uuid.UUID `json:"order_id"`
	SoldOutAt time.Time `json:"sold_out_at"`
}
