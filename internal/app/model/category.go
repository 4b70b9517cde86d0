package model

import (
	"time"

	"gorm.io/gorm"
)

type Category struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Name      string         `gorm:"uniqueIndex;not null" json:"name"`
	ImageURL  string         `json:"image_url"`
	ImageKey  string         `json:"-"` // object storage key, used for deletion
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	SubCategories []SubCategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"sub_categories,omitempty"`
}

func (Category) TableName() string {
	return "categories"
}

type SubCategory struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	CategoryID uint           `gorm:"not null;index" json:"category_id"`
	Name       string         `gorm:"not null" json:"name"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Category Category `gorm:"foreignKey:CategoryID" json:"-"`
}

func (SubCategory) TableName() string {
	return "sub_categories"
}
