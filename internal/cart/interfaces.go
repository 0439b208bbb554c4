package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service
// and the merge engine.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindGuest(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	FindWithItems(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	AssignUser(ctx context.Context, cartID, userID uuid.UUID) (bool, error)
	Touch(ctx context.Context, cartID uuid.UUID) error
	UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	SetItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (bool, error)
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error)
	DeleteItems(ctx context.Context, cartID uuid.UUID) (int64, error)
	DeleteGuestCart(ctx context.Context, cartID uuid.UUID) (bool, error)
	SumQuantity(ctx context.Context, cartID uuid.UUID) (int, error)
	DeleteStaleGuestCarts(ctx context.Context, before time.Time, limit int) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CountCache stores the cached item count per cart.
type CountCache interface {
	Get(ctx context.Context, cartID uuid.UUID) (int, bool, error)
	Set(ctx context.Context, cartID uuid.UUID, count int) error
	Invalidate(ctx context.Context, cartID uuid.UUID) error
}
