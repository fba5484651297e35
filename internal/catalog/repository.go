package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/pagination"
)

// Repository persists catalog products.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a product regardless of its active flag.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveByID loads a product only when it is listed.
func (r *Repository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// LockByID loads the product with a row lock.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

type listQuery struct {
	Filters ProductListFilters
	Cursor  *pagination.Cursor
	Limit   int
}

// ListActive returns active products newest first. The caller passes a buffered limit.
func (r *Repository) ListActive(ctx context.Context, query listQuery) ([]models.Product, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_active = ?", true)

	filter := query.Filters
	if q := strings.TrimSpace(filter.Query); q != "" {
		qb = qb.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	if filter.MinPriceCents != nil {
		qb = qb.Where("price_cents >= ?", *filter.MinPriceCents)
	}
	if filter.MaxPriceCents != nil {
		qb = qb.Where("price_cents <= ?", *filter.MaxPriceCents)
	}

	qb = pagination.ApplyKeyset(qb, "", query.Cursor)

	var rows []models.Product
	if err := qb.Limit(query.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update applies column updates. Map values allow zeroing stock or is_active.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Delete removes the product row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

// ProductReferences counts rows that pin a product in place.
type ProductReferences struct {
	CartItems  int64 `json:"cart_items"`
	OrderItems int64 `json:"order_items"`
}

// Total sums all references.
func (p ProductReferences) Total() int64 {
	return p.CartItems + p.OrderItems
}

// CountReferences reports how many cart and order lines reference the product.
func (r *Repository) CountReferences(ctx context.Context, id uuid.UUID) (ProductReferences, error) {
	var refs ProductReferences
	if err := r.db.WithContext(ctx).Model(&models.CartItem{}).Where("product_id = ?", id).Count(&refs.CartItems).Error; err != nil {
		return refs, err
	}
	if err := r.db.WithContext(ctx).Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&refs.OrderItems).Error; err != nil {
		return refs, err
	}
	return refs, nil
}

// Count returns the number of products in the catalog.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}
