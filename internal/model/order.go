package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates the order lifecycle. Transitions are one-directional:
// PENDING -> COMPLETED or PENDING -> CANCELLED, both terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

type Order struct {
	ID        string          `gorm:"primaryKey;size:36"`
	UserID    string          `gorm:"size:36;not null;index"`
	Total     decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Status    OrderStatus     `gorm:"size:16;not null;default:'PENDING'"`
	Items     []OrderItem     `gorm:"foreignKey:OrderID"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// OrderItem snapshots the product price at checkout time; later catalog
// price changes never affect it.
type OrderItem struct {
	ID        uint64          `gorm:"primaryKey"`
	OrderID   string          `gorm:"size:36;not null;index"`
	ProductID string          `gorm:"size:36;not null"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:numeric(20,8);not null"`
}

func (OrderItem) TableName() string { return "order_item" }
