package models

import (
	"time"

	"github.com/google/uuid"
)

type Appointment struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	SalonID    uuid.UUID `gorm:"type:uuid;index;not null" json:"salonId"`
	CustomerID uuid.UUID `gorm:"type:uuid;index;not null" json:"customerId"`
	ServiceID  uuid.UUID `gorm:"type:uuid;index;not null" json:"serviceId"`
	StationID  uuid.UUID `gorm:"type:uuid;index;not null" json:"stationId"`
	StartsAt   time.Time `gorm:"not null" json:"startsAt"`
	Status     string    `gorm:"type:varchar(20);default:'booked'" json:"status"` // booked, completed, cancelled

	Customer Customer `gorm:"foreignKey:CustomerID" json:"customer"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
