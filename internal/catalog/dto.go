package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/types"
)

// ProductDTO is the public product payload.
type ProductDTO struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	SKU         string      `json:"sku"`
	PriceCents  int64       `json:"price_cents"`
	Currency    string      `json:"currency"`
	Price       types.Money `json:"price"`
	Stock       int         `json:"stock"`
	InStock     bool        `json:"in_stock"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewProductDTO maps a product row to its payload.
func NewProductDTO(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	return &ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		PriceCents:  p.PriceCents,
		Currency:    p.Currency.String(),
		Price:       types.NewMoney(p.PriceCents, p.Currency.String()),
		Stock:       p.Stock,
		InStock:     p.Stock > 0,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ProductListResult is one page of the product listing.
type ProductListResult struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
