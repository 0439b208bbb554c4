package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

// Repository persists carts and their line items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser returns the cart owned by userID.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var row models.Cart
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindGuest returns an unowned cart with its items. Carts that were already
// claimed by a user are never returned, so a stale guest token cannot reach
// them.
func (r *Repository) FindGuest(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var row models.Cart
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ? AND user_id IS NULL", cartID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindWithItems loads a cart with its items and their products.
func (r *Repository) FindWithItems(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var row models.Cart
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Items.Product").
		Where("id = ?", cartID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts an empty cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// AssignUser hands an unowned cart to userID. It reports false when the cart
// no longer exists or was already claimed.
func (r *Repository) AssignUser(ctx context.Context, cartID, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND user_id IS NULL", cartID).
		Updates(map[string]any{"user_id": userID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Touch bumps updated_at so active guest carts survive the sweep.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", time.Now().UTC()).Error
}

// UpsertItem adds quantity to the line for productID, creating the line when
// the cart does not hold the product yet. The increment happens in a single
// statement so concurrent adds never lose an update, and saturates at
// MaxItemQuantity.
func (r *Repository) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	item := models.CartItem{CartID: cartID, ProductID: productID, Quantity: quantity}
	return r.db.WithContext(ctx).
		Omit("Product").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity": gorm.Expr(
					"CASE WHEN cart_items.quantity + excluded.quantity > ? THEN ? ELSE cart_items.quantity + excluded.quantity END",
					MaxItemQuantity, MaxItemQuantity,
				),
				"updated_at": gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&item).Error
}

// SetItemQuantity overwrites the quantity of an item inside cartID.
func (r *Repository) SetItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Updates(map[string]any{"quantity": quantity, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteItem removes an item inside cartID.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteItems empties the cart and keeps the cart row.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// DeleteGuestCart removes an unowned cart and its items. It reports false
// when the cart was already gone or claimed by a user, in which case nothing
// is deleted.
func (r *Repository) DeleteGuestCart(ctx context.Context, cartID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id IS NULL", cartID).
		Delete(&models.Cart{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	if _, err := r.DeleteItems(ctx, cartID); err != nil {
		return false, err
	}
	return true, nil
}

// SumQuantity returns the total quantity across the cart's items.
func (r *Repository) SumQuantity(ctx context.Context, cartID uuid.UUID) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

// DeleteStaleGuestCarts removes up to limit unowned carts untouched since
// before, together with their items. A cart touched after it was selected is
// kept.
func (r *Repository) DeleteStaleGuestCarts(ctx context.Context, before time.Time, limit int) (int64, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("user_id IS NULL AND updated_at < ?", before).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Where("id IN ? AND user_id IS NULL AND updated_at < ?", ids, before).
		Delete(&models.Cart{})
	if res.Error != nil {
		return 0, res.Error
	}
	if err := r.db.WithContext(ctx).
		Where("cart_id IN ? AND cart_id NOT IN (?)", ids, r.db.Model(&models.Cart{}).Select("id")).
		Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// SweepGuestCarts runs DeleteStaleGuestCarts on tx.
func (r *Repository) SweepGuestCarts(ctx context.Context, tx *gorm.DB, before time.Time, limit int) (int64, error) {
	return r.WithTx(tx).DeleteStaleGuestCarts(ctx, before, limit)
}
