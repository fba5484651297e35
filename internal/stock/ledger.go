package stock

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
)

// ErrInsufficientStock is returned when a conditional decrement matches no row.
var ErrInsufficientStock = errors.New("insufficient stock")

// Ledger is the only writer of products.stock outside admin catalog maintenance.
type Ledger struct {
	db *gorm.DB
}

// NewLedger constructs a ledger bound to the provided DB.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx binds the ledger to a transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{db: tx}
}

// Get reads a product without locking. Missing rows return gorm.ErrRecordNotFound.
func (l *Ledger) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := l.db.WithContext(ctx).Where("id = ?", productID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// LockProducts takes row locks on the given products in ascending id order so
// concurrent checkouts over overlapping products cannot deadlock.
func (l *Ledger) LockProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	ids := SortedIDs(productIDs)
	locked := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return locked, nil
	}

	var rows []models.Product
	err := l.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		locked[row.ID] = row
	}
	return locked, nil
}

// Decrement subtracts qty when enough stock remains and returns the new level.
func (l *Ledger) Decrement(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, errors.New("decrement quantity must be positive")
	}
	res := l.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrInsufficientStock
	}

	var remaining int
	err := l.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Pluck("stock", &remaining).Error
	return remaining, err
}

// SortedIDs returns a de-duplicated copy of ids in ascending byte order, which
// matches how postgres orders uuid columns.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
