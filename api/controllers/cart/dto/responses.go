package cartdto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfront-backend/internal/cart"
)

// CartView is the cart as the storefront renders it. ID is nil when the
// shopper has no cart yet.
type CartView struct {
	ID        *uuid.UUID      `json:"id"`
	Items     []cart.CartItem `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CountView backs the header badge.
type CountView struct {
	Count int `json:"count"`
}

// MergeView reports what a merge did.
type MergeView struct {
	Path        cart.MergePath `json:"path"`
	CartID      *uuid.UUID     `json:"cart_id,omitempty"`
	ItemsMerged int            `json:"items_merged"`
}

func NewCartView(c *cart.CartWithItems) CartView {
	if c == nil {
		return CartView{Items: []cart.CartItem{}, Subtotal: decimal.Zero}
	}
	id := c.ID
	items := c.Items
	if items == nil {
		items = []cart.CartItem{}
	}
	return CartView{
		ID:        &id,
		Items:     items,
		ItemCount: c.ItemCount,
		Subtotal:  c.Subtotal,
	}
}

func NewMergeView(result cart.MergeResult) MergeView {
	view := MergeView{Path: result.Path, ItemsMerged: result.ItemsMerged}
	if result.CartID != uuid.Nil {
		id := result.CartID
		view.CartID = &id
	}
	return view
}
