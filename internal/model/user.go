package model

import "time"

type User struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Email     string    `gorm:"size:255;uniqueIndex;not null"`
	FirstName string    `gorm:"size:128"`
	LastName  string    `gorm:"size:128"`
	Role      string    `gorm:"size:32;not null;default:'CUSTOMER'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (User) TableName() string { return "app_user" }
