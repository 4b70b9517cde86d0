package model

import (
	"time"

	"gorm.io/gorm"
)

// Cart is the server-persisted cart, one per user, created lazily on the
// first authenticated cart write or on merge after login.
type Cart struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User  User       `gorm:"foreignKey:UserID" json:"-"`
	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Cart) TableName() string {
	return "carts"
}

// CartItem is one product's presence in a cart. Identity is unique per
// (cart_id, product_id); a quantity that reaches zero deletes the row.
type CartItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CartID    uint           `gorm:"not null;index" json:"cart_id"`
	ProductID uint           `gorm:"not null;index" json:"product_id"`
	Quantity  int            `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Cart    Cart    `gorm:"foreignKey:CartID" json:"-"`
	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// GuestCartLine is one entry of a guest cart held outside the database.
type GuestCartLine struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// CartSummary is the snapshot handed to callers after every cart read or
// mutation: the full line list plus the derived badge count. TotalItems is
// always the sum of quantities, not the number of lines.
type CartSummary struct {
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"total_items"`
}

// NewCartSummary builds a summary with the derived count filled in.
func NewCartSummary(items []CartItem) *CartSummary {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	if items == nil {
		items = []CartItem{}
	}
	return &CartSummary{Items: items, TotalItems: total}
}
