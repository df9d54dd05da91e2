package model

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus is the rental order lifecycle.
// pending -> confirmed -> rented -> returned; cancelled is reachable from
// pending, confirmed and rented. returned and cancelled are terminal.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderRented    OrderStatus = "rented"
	OrderReturned  OrderStatus = "returned"
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further lifecycle transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderReturned || s == OrderCancelled
}

// Order is one rental transaction: a set of line items, a rental window and a
// lifecycle status. Totals are frozen at creation time and never recomputed
// from live product prices.
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderNo       string      `gorm:"size:64;uniqueIndex;not null" json:"order_no"`
	UserID        uint        `gorm:"not null;index" json:"user_id"`
	Status        OrderStatus `gorm:"size:16;not null;default:'pending';index" json:"status"`
	TotalPrice    int64       `gorm:"not null" json:"total_price"`
	TotalDeposit  int64       `gorm:"not null;default:0" json:"total_deposit"`
	RentalStart   time.Time   `gorm:"not null" json:"rental_start"`
	RentalEnd     time.Time   `gorm:"not null" json:"rental_end"`
	RentalAddress string      `gorm:"size:255" json:"rental_address"`
	Notes         string      `gorm:"size:255" json:"notes"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is one product line within an order. Price and Deposit are
// snapshots of the product at purchase time; later product price changes must
// not alter historical orders.
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrderID   uint  `gorm:"not null;index" json:"order_id"`
	ProductID uint  `gorm:"not null;index" json:"product_id"`
	Quantity  int   `gorm:"not null;default:1" json:"quantity"`
	Price     int64 `gorm:"not null" json:"price"`
	Deposit   int64 `gorm:"not null;default:0" json:"deposit"`

	Product Product `gorm:"foreignKey:ProductID" json:"product"`
}

func (OrderItem) TableName() string { return "order_items" }
