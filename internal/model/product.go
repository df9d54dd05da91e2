package model

import (
	"time"

	"gorm.io/gorm"
)

// Product is a rentable costume. Quantity is the number of units currently
// available for new rentals; IsAvailable mirrors quantity > 0 but can also be
// switched off manually to pull a listing.
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string `gorm:"size:128;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	// Price is the rental price per order line, Deposit the refundable part.
	// Both are VND, which has no subunits.
	Price       int64  `gorm:"not null" json:"price"`
	Deposit     int64  `gorm:"not null;default:0" json:"deposit"`
	Quantity    int    `gorm:"not null;default:0" json:"quantity"`
	Size        string `gorm:"size:16" json:"size"`
	Color       string `gorm:"size:32" json:"color"`
	Brand       string `gorm:"size:64" json:"brand"`
	IsAvailable bool   `gorm:"not null;default:true" json:"is_available"`
}

func (Product) TableName() string { return "products" }
