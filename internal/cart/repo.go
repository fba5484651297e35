package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
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

// GetOrCreateForUser inserts the user's cart when missing and returns it locked.
// A nil cart with gorm.ErrRecordNotFound means the row vanished between insert and select.
func (r *Repository) GetOrCreateForUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	seed := models.Cart{UserID: &userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&seed).Error
	if err != nil {
		return nil, err
	}
	return r.lockOne(ctx, "user_id = ?", userID)
}

// GetOrCreateForSession inserts the guest cart for sessionKey when missing and returns it locked.
func (r *Repository) GetOrCreateForSession(ctx context.Context, sessionKey string) (*models.Cart, error) {
	key := sessionKey
	seed := models.Cart{SessionKey: &key}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_key"}}, DoNothing: true}).
		Create(&seed).Error
	if err != nil {
		return nil, err
	}
	return r.lockOne(ctx, "session_key = ?", sessionKey)
}

// FindBySessionLocked returns the guest cart for sessionKey with a row lock, or nil when none exists.
func (r *Repository) FindBySessionLocked(ctx context.Context, sessionKey string) (*models.Cart, error) {
	cart, err := r.lockOne(ctx, "session_key = ?", sessionKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return cart, err
}

// LockByID re-reads a cart under a row lock.
func (r *Repository) LockByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return r.lockOne(ctx, "id = ?", cartID)
}

func (r *Repository) lockOne(ctx context.Context, where string, arg any) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(where, arg).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Items lists the cart's items with their products, oldest first.
func (r *Repository) Items(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindItem returns the line for productID in the cart, or nil.
func (r *Repository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	return r.findItem(ctx, "cart_id = ? AND product_id = ?", cartID, productID)
}

// FindItemByID returns the item only when it belongs to cartID, or nil.
func (r *Repository) FindItemByID(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	return r.findItem(ctx, "cart_id = ? AND id = ?", cartID, itemID)
}

func (r *Repository) findItem(ctx context.Context, where string, args ...any) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).Where(where, args...).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a cart line.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

// UpdateItemQuantity sets the absolute quantity of a line.
func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

// DeleteItem removes one line scoped to its cart and reports the rows removed.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND id = ?", cartID, itemID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// DeleteItems empties the cart.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// MoveItem re-parents a line to another cart.
func (r *Repository) MoveItem(ctx context.Context, itemID, targetCartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("cart_id", targetCartID).Error
}

// Delete removes a cart and its items.
func (r *Repository) Delete(ctx context.Context, cartID uuid.UUID) error {
	if _, err := r.DeleteItems(ctx, cartID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", cartID).Delete(&models.Cart{}).Error
}

// Touch bumps updated_at so retention jobs see the cart as active.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		UpdateColumn("updated_at", time.Now()).Error
}

// DeleteGuestCartsBefore removes guest carts untouched since cutoff and returns how many were removed.
// Their items go with them through the cart_id cascade.
func (r *Repository) DeleteGuestCartsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id IS NULL AND updated_at < ?", cutoff).
		Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}
