package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart belongs to a registered user when UserID is set, otherwise to the guest
// whose cookie carries the cart ID.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex:carts_user_id_key"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsGuest reports whether no user owns the cart.
func (c *Cart) IsGuest() bool {
	return c.UserID == nil
}
