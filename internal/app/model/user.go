package model

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Phone        string         `gorm:"uniqueIndex;not null" json:"phone"` // digits only, e.g. 9876543210
	Name         string         `json:"name"`
	Email        string         `gorm:"index" json:"email"`
	PasswordHash string         `json:"-"` // set for admin accounts only, customers sign in by OTP
	Role         UserRole       `gorm:"type:varchar(20);default:'user'" json:"role"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Cart      *Cart     `gorm:"foreignKey:UserID" json:"-"`
	Orders    []Order   `gorm:"foreignKey:UserID" json:"-"`
	Addresses []Address `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}
