package model

import "time"

// Comment is a rental review. At most one active comment exists per order;
// the product it references must be part of that order.
type Comment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Content string `gorm:"type:text;not null" json:"content"`
	Rating  int    `gorm:"not null;default:5" json:"rating"` // 1..5

	UserID    uint `gorm:"not null;index" json:"user_id"`
	ProductID uint `gorm:"not null;index" json:"product_id"`
	OrderID   uint `gorm:"not null;index" json:"order_id"`

	// ImageURLs is a JSON-encoded list of review photo URLs.
	ImageURLs string `gorm:"type:text" json:"-"`
	IsActive  bool   `gorm:"not null;default:true;index" json:"is_active"`
}

func (Comment) TableName() string { return "comments" }
