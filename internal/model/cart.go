package model

import "time"

type CartItem struct {
	ID        uint64    `gorm:"primaryKey"`
	UserID    string    `gorm:"size:36;not null;index:idx_cart_user_product,unique"`
	ProductID string    `gorm:"size:36;not null;index:idx_cart_user_product,unique"`
	Quantity  int       `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_item" }
