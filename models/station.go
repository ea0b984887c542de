package models

import (
	"github.com/google/uuid"
)

// Station is a chair, room or bed a service can be performed at.
type Station struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	SalonID      uuid.UUID `gorm:"type:uuid;index;not null" json:"salonId"`
	Name         string    `gorm:"not null" json:"name"`
	IsActive     bool      `gorm:"not null" json:"isActive"`
	DisplayOrder int       `gorm:"index;default:0" json:"displayOrder"`

	Services     []ServiceStation     `gorm:"foreignKey:StationID;constraint:OnDelete:CASCADE" json:"-"`
	WorkingHours []StationWorkingHour `gorm:"foreignKey:StationID;constraint:OnDelete:CASCADE" json:"-"`
}

// StationOrder is one displayOrder update.
type StationOrder struct {
	StationID    uuid.UUID `json:"stationId"`
	DisplayOrder int       `json:"displayOrder"`
}
