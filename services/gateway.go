package services

import (
	"context"

	"stationmatrix-backend/matrix"
	"stationmatrix-backend/models"

	"github.com/google/uuid"
)

// Gateway is everything the matrix needs from persistence. Each call is an
// independent request; nothing groups calls into a transaction.
type Gateway interface {
	ListServices(ctx context.Context) ([]models.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	CreateService(ctx context.Context, name string, basePrice float64) (*models.Service, error)
	UpdateService(ctx context.Context, service *models.Service) error
	DeleteService(ctx context.Context, id uuid.UUID) error
	ServiceHasAppointments(ctx context.Context, id uuid.UUID) (bool, error)

	ListStations(ctx context.Context, includeInactive bool) ([]models.Station, error)
	GetStation(ctx context.Context, id uuid.UUID) (*models.Station, error)
	CreateStation(ctx context.Context, name string, isActive bool) (*models.Station, error)
	UpdateStation(ctx context.Context, station *models.Station) error
	DeleteStation(ctx context.Context, id uuid.UUID) error
	ReorderStations(ctx context.Context, updates []models.StationOrder) error

	ListMatrixCells(ctx context.Context, serviceIDs, stationIDs []uuid.UUID) ([]models.ServiceStation, error)
	UpsertMatrixCells(ctx context.Context, records []models.ServiceStation) error

	ListWorkingHours(ctx context.Context, stationID uuid.UUID) ([]models.StationWorkingHour, error)
	ReplaceWorkingHours(ctx context.Context, stationID uuid.UUID, records []models.StationWorkingHour) error

	ListUpcomingAppointments(ctx context.Context, stationID uuid.UUID) ([]models.Appointment, error)
	TransferAppointments(ctx context.Context, fromStationID, toStationID uuid.UUID) (int64, error)
}

func toRecords(rows []models.ServiceStation) []matrix.Record {
	out := make([]matrix.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, matrix.Record{
			ServiceID:            r.ServiceID,
			StationID:            r.StationID,
			IsActive:             r.IsActive,
			BaseTimeMinutes:      r.BaseTimeMinutes,
			RemoteBookingAllowed: r.RemoteBookingAllowed,
			RequiresApproval:     r.RequiresApproval,
		})
	}
	return out
}

func fromRecords(records []matrix.Record) []models.ServiceStation {
	out := make([]models.ServiceStation, 0, len(records))
	for _, r := range records {
		out = append(out, models.ServiceStation{
			ServiceID:            r.ServiceID,
			StationID:            r.StationID,
			IsActive:             r.IsActive,
			BaseTimeMinutes:      r.BaseTimeMinutes,
			RemoteBookingAllowed: r.RemoteBookingAllowed,
			RequiresApproval:     r.RequiresApproval,
		})
	}
	return out
}

func serviceIDs(services []models.Service) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(services))
	for _, s := range services {
		out = append(out, s.ID)
	}
	return out
}

func stationIDs(stations []models.Station) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(stations))
	for _, s := range stations {
		out = append(out, s.ID)
	}
	return out
}

func stationRefs(stations []models.Station) []matrix.StationRef {
	out := make([]matrix.StationRef, 0, len(stations))
	for _, s := range stations {
		out = append(out, matrix.StationRef{ID: s.ID, Active: s.IsActive})
	}
	return out
}
