package models

import "github.com/google/uuid"

type Category struct {
	BaseModel
	Name     string    `gorm:"uniqueIndex;not null" json:"name"`
	Products []Product `json:"-"`
}

type Product struct {
	BaseModel
	CategoryID  uuid.UUID `gorm:"type:uuid;index;not null" json:"categoryId"`
	Category    *Category `json:"category,omitempty"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex" json:"slug"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null" json:"price"`
	Image       string    `json:"image"`
}
