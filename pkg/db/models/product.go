package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
)

// Product is a sellable catalog entry. Stock is the authoritative available quantity.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name        string         `gorm:"column:name;not null"`
	Description string         `gorm:"column:description;not null"`
	PriceCents  int64          `gorm:"column:price_cents;not null;check:chk_products_price_nonnegative,price_cents >= 0"`
	Currency    enums.Currency `gorm:"column:currency;type:text;not null"`
	SKU         string         `gorm:"column:sku;not null;uniqueIndex:ux_products_sku"`
	Stock       int            `gorm:"column:stock;not null;check:chk_products_stock_nonnegative,stock >= 0"`
	IsActive    bool           `gorm:"column:is_active;not null;index:idx_products_active_created,priority:1"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime;index:idx_products_active_created,priority:2"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Currency == "" {
		p.Currency = enums.DefaultCurrency
	}
	return nil
}
