package cartdto

import "github.com/google/uuid"

// AddItemRequest adds quantity units of a product. Quantity defaults to 1.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity,omitempty" validate:"omitempty,gt=0,lte=999"`
}

// UpdateItemRequest sets a line's quantity. Zero or less removes the line.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=999"`
}
