package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	OrderStatusNew       = "new"
	OrderStatusAccepted  = "accepted"
	OrderStatusDelivered = "delivered"
	OrderStatusCanceled  = "canceled"
)

// Payment methods.
const (
	PaymentCash = "cash"
	PaymentBank = "bank"
	PaymentQRIS = "qris"
)

// ValidPaymentMethod reports whether method is accepted at checkout.
func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentBank, PaymentQRIS:
		return true
	}
	return false
}

type Order struct {
	BaseModel
	UserID          uuid.UUID       `gorm:"type:uuid;index;not null" json:"userId"`
	User            *User           `json:"user,omitempty"`
	OrderNumber     string          `gorm:"uniqueIndex" json:"orderNumber"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"cartItems"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shippingAddress"`
	TotalPrice      float64         `json:"totalPrice"`
	PaymentMethod   string          `gorm:"not null;default:cash" json:"paymentMethod"`
	IsPaid          bool            `gorm:"not null;default:false" json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt"`
	IsDelivered     bool            `gorm:"not null;default:false" json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt"`
	Status          string          `gorm:"index;not null;default:new" json:"status"`
}

// ShippingAddress is a snapshot of the address chosen at checkout.
type ShippingAddress struct {
	Details string `json:"details"`
	Street  string `json:"street"`
	City    string `json:"city"`
	ZipCode string `json:"zipCode"`
}

// OrderItem snapshots a cart line at checkout time.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"-"`
	ProductID   *uuid.UUID `gorm:"type:uuid" json:"productId"`
	ProductName string     `json:"productName"`
	Quantity    int        `json:"quantity"`
	UnitPrice   float64    `json:"unitPrice"`
	Price       float64    `json:"price"`
}
