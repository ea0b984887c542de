package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceStation is one cell of the service/station matrix.
type ServiceStation struct {
	ServiceID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"serviceId"`
	StationID            uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"stationId"`
	IsActive             bool      `gorm:"not null;default:false" json:"isActive"`
	BaseTimeMinutes      int       `gorm:"not null;default:60" json:"baseTimeMinutes"`
	RemoteBookingAllowed bool      `gorm:"not null;default:false" json:"remoteBookingAllowed"`
	RequiresApproval     bool      `gorm:"not null;default:false" json:"requiresApproval"`

	UpdatedAt time.Time `json:"updatedAt"`
}
