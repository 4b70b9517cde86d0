package model

import (
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	Name          string         `gorm:"not null" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Price         float64        `gorm:"not null" json:"price"`
	StockQuantity int            `gorm:"default:0" json:"stock_quantity"`
	CategoryID    uint           `gorm:"not null;index" json:"category_id"`
	SubCategoryID *uint          `gorm:"index" json:"sub_category_id,omitempty"`
	ThumbnailURL  string         `json:"thumbnail_url"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Category    Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	SubCategory *SubCategory   `gorm:"foreignKey:SubCategoryID" json:"sub_category,omitempty"`
	Images      []ProductImage `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	OrderItems  []OrderItem    `gorm:"foreignKey:ProductID" json:"-"`
	CartItems   []CartItem     `gorm:"foreignKey:ProductID" json:"-"`
	Reviews     []Review       `gorm:"foreignKey:ProductID" json:"-"`
}

func (Product) TableName() string {
	return "products"
}

type ProductImage struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	ProductID uint           `gorm:"not null;index" json:"product_id"`
	URL       string         `gorm:"not null" json:"url"`
	Key       string         `json:"-"` // object storage key, used for deletion
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ProductImage) TableName() string {
	return "product_images"
}
