package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Customer struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	SalonID uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_salon_phone,priority:1" json:"salonId"`

	Name     string `gorm:"not null" json:"name"`
	Phone    string `gorm:"not null;uniqueIndex:idx_salon_phone,priority:2" json:"phone"`
	Email    string `json:"email"`
	IsActive bool   `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
