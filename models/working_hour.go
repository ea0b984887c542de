package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StationWorkingHour struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	StationID  uuid.UUID `gorm:"type:uuid;index;not null" json:"stationId"`
	Weekday    int       `gorm:"not null" json:"weekday"` // 0 = Sunday
	ShiftOrder int       `gorm:"not null;default:0" json:"shiftOrder"`
	OpensAt    string    `gorm:"type:varchar(5);not null" json:"opensAt"`  // HH:MM
	ClosesAt   string    `gorm:"type:varchar(5);not null" json:"closesAt"` // HH:MM
}

func (w *StationWorkingHour) BeforeCreate(tx *gorm.DB) (err error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return
}
