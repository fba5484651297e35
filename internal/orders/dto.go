package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/types"
)

// OrderItemDTO is a snapshotted order line.
type OrderItemDTO struct {
	ID             uuid.UUID   `json:"id"`
	ProductID      uuid.UUID   `json:"product_id"`
	ProductName    string      `json:"product_name"`
	SKU            string      `json:"sku"`
	Quantity       int         `json:"quantity"`
	UnitPriceCents int64       `json:"unit_price_cents"`
	LineTotalCents int64       `json:"line_total_cents"`
	LineTotal      types.Money `json:"line_total"`
}

// OrderDTO is the order payload returned by checkout and the order endpoints.
type OrderDTO struct {
	ID         uuid.UUID      `json:"id"`
	Status     string         `json:"status"`
	Email      string         `json:"email"`
	TotalCents int64          `json:"total_cents"`
	Total      types.Money    `json:"total"`
	Currency   string         `json:"currency"`
	Items      []OrderItemDTO `json:"items"`
	CreatedAt  time.Time      `json:"created_at"`
}

// OrderListResult is one page of the caller's orders.
type OrderListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// NewOrderDTO maps an order row and its loaded items.
func NewOrderDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	currency := order.Currency.String()
	dto := &OrderDTO{
		ID:         order.ID,
		Status:     order.Status.String(),
		Email:      order.Email,
		TotalCents: order.TotalCents,
		Total:      types.NewMoney(order.TotalCents, currency),
		Currency:   currency,
		Items:      make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:  order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			SKU:            item.SKU,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
			LineTotal:      types.NewMoney(item.LineTotalCents, currency),
		})
	}
	return dto
}
