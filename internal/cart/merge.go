package cart

import (
	"context"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
)

// mergeCarts folds source into target and deletes source. Lines present in both
// keep the larger quantity and the target's captured price; the rest move over.
// Both carts must already be locked by the caller's transaction.
func mergeCarts(ctx context.Context, repo *Repository, target, source *models.Cart) (int, error) {
	if source == nil || target == nil || source.ID == target.ID {
		return 0, nil
	}

	items, err := repo.Items(ctx, source.ID)
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, item := range items {
		existing, err := repo.FindItem(ctx, target.ID, item.ProductID)
		if err != nil {
			return merged, err
		}
		if existing == nil {
			if err := repo.MoveItem(ctx, item.ID, target.ID); err != nil {
				return merged, err
			}
			merged++
			continue
		}
		if item.Quantity > existing.Quantity {
			if err := repo.UpdateItemQuantity(ctx, existing.ID, item.Quantity); err != nil {
				return merged, err
			}
		}
		merged++
	}

	if err := repo.Delete(ctx, source.ID); err != nil {
		return merged, err
	}
	if merged > 0 {
		if err := repo.Touch(ctx, target.ID); err != nil {
			return merged, err
		}
	}
	return merged, nil
}
