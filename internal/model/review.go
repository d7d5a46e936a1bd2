package model

import "time"

type Review struct {
	ID        uint64    `gorm:"primaryKey"`
	ProductID string    `gorm:"size:36;not null;index:idx_review_product_user,unique"`
	UserID    string    `gorm:"size:36;not null;index:idx_review_product_user,unique"`
	Rating    int       `gorm:"not null"`
	Comment   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Review) TableName() string { return "review" }
