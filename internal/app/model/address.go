package model

import (
	"time"

	"gorm.io/gorm"
)

type Address struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Name      string         `gorm:"not null" json:"name"`
	Phone     string         `gorm:"not null" json:"phone"`
	Line1     string         `gorm:"not null" json:"line1"`
	Line2     string         `json:"line2"`
	City      string         `gorm:"not null" json:"city"`
	State     string         `gorm:"not null" json:"state"`
	Pincode   string         `gorm:"not null" json:"pincode"`
	IsDefault bool           `gorm:"default:false" json:"is_default"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Address) TableName() string {
	return "addresses"
}
