package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `gorm:"primaryKey;size:36"`
	Name        string          `gorm:"size:255;not null"`
	Description string          `gorm:"type:text"`
	SKU         string          `gorm:"size:64;uniqueIndex"`
	Price       decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	ImageURL    string          `gorm:"size:512"`
	RatingRate  float64         `gorm:"not null;default:0"`
	RatingCount int             `gorm:"not null;default:0"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime"`
}

func (Product) TableName() string { return "product" }

// Inventory tracks on-hand stock per product. Quantity never goes negative;
// decrements are conditional updates checked inside the same transaction.
type Inventory struct {
	ProductID string    `gorm:"primaryKey;size:36"`
	Quantity  int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Inventory) TableName() string { return "inventory" }
