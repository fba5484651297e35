package catalog

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
)

// DemoProducts is the starter catalog loaded by the seed command.
func DemoProducts() []models.Product {
	return []models.Product{
		{SKU: "SKU001", Name: "Black Sneakers", Description: "Everyday black sneakers", PriceCents: 250000, Stock: 20},
		{SKU: "SKU002", Name: "Formal Shoe", Description: "Leather formal shoe", PriceCents: 450000, Stock: 10},
		{SKU: "SKU003", Name: "T-Shirt", Description: "Cotton crew-neck t-shirt", PriceCents: 80000, Stock: 50},
		{SKU: "SKU004", Name: "Jeans", Description: "Slim fit denim jeans", PriceCents: 200000, Stock: 35},
		{SKU: "SKU005", Name: "Cap", Description: "Adjustable baseball cap", PriceCents: 30000, Stock: 100},
	}
}

// SeedDemoCatalog inserts the demo products, skipping SKUs that already exist.
// It returns how many rows were inserted.
func (s *service) SeedDemoCatalog(ctx context.Context) (int, error) {
	inserted := 0
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		for _, product := range DemoProducts() {
			product.Currency = enums.CurrencyNGN
			product.IsActive = true
			res := tx.WithContext(ctx).
				Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sku"}}, DoNothing: true}).
				Create(&product)
			if res.Error != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "db: seed product "+product.SKU)
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return 0, err
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed catalog")
	}
	return inserted, nil
}
