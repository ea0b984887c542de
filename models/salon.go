package models

import (
	"github.com/google/uuid"
)

type Salon struct {
	ID                    uuid.UUID `gorm:"type:uuid;primary_key"`
	Name                  string    `gorm:"not null"`
	Address               string
	Phone                 string
	TransferNotifications bool `gorm:"default:true"`
	WhatsAppNotifications bool `gorm:"default:false"`

	Users    []User    `gorm:"foreignKey:SalonID"`
	Services []Service `gorm:"foreignKey:SalonID"`
	Stations []Station `gorm:"foreignKey:SalonID"`
}
