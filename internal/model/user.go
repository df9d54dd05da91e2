package model

import "time"

// User carries the fields the order and comment paths need: ownership checks
// and author-name denormalization. Account management lives elsewhere.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FullName string `gorm:"size:128" json:"full_name"`
	Email    string `gorm:"size:128;uniqueIndex" json:"email"`
	Phone    string `gorm:"size:32" json:"phone"`
}

func (User) TableName() string { return "users" }
