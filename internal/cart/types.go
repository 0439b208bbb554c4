package cart

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

// MaxItemQuantity caps a single cart line. Increments past it saturate.
const MaxItemQuantity = 999

// ErrProductUnavailable marks an add for a product the catalog does not hold.
var ErrProductUnavailable = errors.New("product unavailable")

// Cart is the cart header returned by every cart operation.
type Cart struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsGuest reports whether the cart is addressed by a guest token.
func (c Cart) IsGuest() bool {
	return c.UserID == nil
}

// CartItem is one product line with the catalog snapshot used for display.
type CartItem struct {
	ID        uuid.UUID       `json:"id"`
	CartID    uuid.UUID       `json:"cart_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Title     string          `json:"title,omitempty"`
	SKU       string          `json:"sku,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CartWithItems is a cart together with its lines and derived totals.
type CartWithItems struct {
	Cart
	Items     []CartItem      `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func cartFromModel(m *models.Cart) Cart {
	return Cart{
		ID:        m.ID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func itemFromModel(m models.CartItem) CartItem {
	item := CartItem{
		ID:        m.ID,
		CartID:    m.CartID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		UnitPrice: decimal.Zero,
		LineTotal: decimal.Zero,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Product != nil {
		item.Title = m.Product.Title
		item.SKU = m.Product.SKU
		item.UnitPrice = m.Product.Price
		item.LineTotal = m.Product.Price.Mul(decimal.NewFromInt(int64(m.Quantity)))
	}
	return item
}

func withItemsFromModel(m *models.Cart) *CartWithItems {
	out := &CartWithItems{
		Cart:     cartFromModel(m),
		Items:    make([]CartItem, 0, len(m.Items)),
		Subtotal: decimal.Zero,
	}
	for _, row := range m.Items {
		item := itemFromModel(row)
		out.Items = append(out.Items, item)
		out.ItemCount += item.Quantity
		out.Subtotal = out.Subtotal.Add(item.LineTotal)
	}
	return out
}
