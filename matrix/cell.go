package matrix

import (
	"github.com/google/uuid"
)

// FallbackMinutes is used whenever no duration can be resolved for a service.
const FallbackMinutes = 60

// Key addresses one (service, station) pair.
type Key struct {
	ServiceID uuid.UUID `json:"serviceId"`
	StationID uuid.UUID `json:"stationId"`
}

// Cell is the in-memory state of one service/station pair.
// DefaultTime of 0 means the service default is unknown.
type Cell struct {
	Supported            bool `json:"supported"`
	DefaultTime          int  `json:"defaultTime,omitempty"`
	StationTime          *int `json:"stationTime,omitempty"`
	RemoteBookingAllowed bool `json:"remoteBookingAllowed"`
	ApprovalNeeded       bool `json:"approvalNeeded"`
}

// NormalizedCell is a Cell with the unsupported fields erased.
type NormalizedCell struct {
	Supported            bool
	StationTime          int // 0 when unsupported
	RemoteBookingAllowed bool
	ApprovalNeeded       bool
}

// Normalize applies the cell invariant: an unsupported cell carries no
// duration and no flags, whatever was stored.
func (c Cell) Normalize() NormalizedCell {
	if !c.Supported {
		return NormalizedCell{}
	}
	return NormalizedCell{
		Supported:            true,
		StationTime:          c.EffectiveMinutes(),
		RemoteBookingAllowed: c.RemoteBookingAllowed,
		ApprovalNeeded:       c.ApprovalNeeded,
	}
}

// EffectiveMinutes is the duration sent to the store for this cell.
func (c Cell) EffectiveMinutes() int {
	if !c.Supported {
		return FallbackMinutes
	}
	if c.StationTime != nil && *c.StationTime > 0 {
		return *c.StationTime
	}
	if c.DefaultTime > 0 {
		return c.DefaultTime
	}
	return FallbackMinutes
}

func (c Cell) clone() Cell {
	if c.StationTime != nil {
		v := *c.StationTime
		c.StationTime = &v
	}
	return c
}

func intPtr(v int) *int {
	return &v
}

// Record mirrors one persisted service_stations row.
type Record struct {
	ServiceID            uuid.UUID
	StationID            uuid.UUID
	IsActive             bool
	BaseTimeMinutes      int
	RemoteBookingAllowed bool
	RequiresApproval     bool
}

// ToRecord renders the normalized cell as a complete persisted record.
func (c Cell) ToRecord(k Key) Record {
	n := c.Normalize()
	return Record{
		ServiceID:            k.ServiceID,
		StationID:            k.StationID,
		IsActive:             n.Supported,
		BaseTimeMinutes:      c.EffectiveMinutes(),
		RemoteBookingAllowed: n.RemoteBookingAllowed,
		RequiresApproval:     n.ApprovalNeeded,
	}
}
