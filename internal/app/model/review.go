package model

import (
	"time"

	"gorm.io/gorm"
)

type Review struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	ProductID uint           `gorm:"not null;index" json:"product_id"`
	Rating    int            `gorm:"not null" json:"rating"` // 1-5
	Body      string         `gorm:"type:text" json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User    User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Product Product       `gorm:"foreignKey:ProductID" json:"-"`
	Images  []ReviewImage `gorm:"foreignKey:ReviewID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

func (Review) TableName() string {
	return "reviews"
}

type ReviewImage struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	ReviewID  uint           `gorm:"not null;index" json:"review_id"`
	URL       string         `gorm:"not null" json:"url"`
	Key       string         `json:"-"` // object storage key, used for deletion
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ReviewImage) TableName() string {
	return "review_images"
}
