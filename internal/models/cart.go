package models

import "github.com/google/uuid"

// Cart holds the pending items of one account.
type Cart struct {
	BaseModel
	UserID     uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"userId"`
	TotalPrice float64    `gorm:"not null;default:0" json:"totalPrice"`
	Items      []CartItem `gorm:"constraint:OnDelete:CASCADE" json:"cartItems"`
}

// CartItem is one product line; Price is Quantity times the unit price at the last change.
type CartItem struct {
	BaseModel
	CartID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_product;not null" json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_product;not null" json:"productId"`
	Product   *Product  `json:"product,omitempty"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	Price     float64   `gorm:"not null" json:"price"`
}
