package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
)

// StockConflict describes one cart line that stock can no longer cover.
type StockConflict struct {
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// ConflictDetails is the detail payload of INSUFFICIENT_STOCK_AT_CHECKOUT.
type ConflictDetails struct {
	Items []StockConflict `json:"items"`
}

// findConflicts checks every line against the locked product rows and returns
// the full list in cart order.
func findConflicts(items []models.CartItem, products map[uuid.UUID]models.Product) []StockConflict {
	var conflicts []StockConflict
	for _, item := range items {
		product, ok := products[item.ProductID]
		available := 0
		if ok {
			available = product.Stock
		}
		if item.Quantity > 0 && item.Quantity <= available {
			continue
		}
		conflicts = append(conflicts, StockConflict{
			ProductID: item.ProductID,
			SKU:       product.SKU,
			Name:      product.Name,
			Requested: item.Quantity,
			Available: available,
		})
	}
	return conflicts
}
