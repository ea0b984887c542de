package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stationmatrix-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormGateway implements Gateway on postgres through gorm, scoped to one salon.
type GormGateway struct {
	db      *gorm.DB
	salonID uuid.UUID
}

func NewGormGateway(db *gorm.DB, salonID uuid.UUID) *GormGateway {
	return &GormGateway{db: db, salonID: salonID}
}

// Migrate creates or updates every table the matrix touches.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Salon{},
		&models.User{},
		&models.Customer{},
		&models.Service{},
		&models.Station{},
		&models.ServiceStation{},
		&models.StationWorkingHour{},
		&models.Appointment{},
		&models.NotificationTemplate{},
		&models.NotificationLog{},
	)
}

func notFound(err error, what string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return err
}

func (g *GormGateway) ownedStations() *gorm.DB {
	return g.db.Model(&models.Station{}).Select("id").Where("salon_id = ?", g.salonID)
}

func (g *GormGateway) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	err := g.db.WithContext(ctx).
		Where("salon_id = ?", g.salonID).
		Order("name ASC").
		Find(&services).Error
	return services, err
}

func (g *GormGateway) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var service models.Service
	if err := g.db.WithContext(ctx).Where("salon_id = ? AND id = ?", g.salonID, id).
		First(&service).Error; err != nil {
		return nil, notFound(err, "service", id)
	}
	return &service, nil
}

func (g *GormGateway) CreateService(ctx context.Context, name string, basePrice float64) (*models.Service, error) {
	service := models.Service{
		ID:       uuid.New(),
		SalonID:  g.salonID,
		Name:     name,
		Price:    basePrice,
		Category: "General",
		IsActive: true,
	}
	if err := g.db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

func (g *GormGateway) UpdateService(ctx context.Context, service *models.Service) error {
	result := g.db.WithContext(ctx).Model(&models.Service{}).
		Where("salon_id = ? AND id = ?", g.salonID, service.ID).
		Select("name", "description", "price", "duration", "category", "is_active").
		Updates(service)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "service", service.ID)
	}
	return nil
}

func (g *GormGateway) DeleteService(ctx context.Context, id uuid.UUID) error {
	result := g.db.WithContext(ctx).Where("salon_id = ? AND id = ?", g.salonID, id).
		Delete(&models.Service{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "service", id)
	}
	return nil
}

func (g *GormGateway) ServiceHasAppointments(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("salon_id = ? AND service_id = ?", g.salonID, id).
		Count(&count).Error
	return count > 0, err
}

func (g *GormGateway) ListStations(ctx context.Context, includeInactive bool) ([]models.Station, error) {
	qb := g.db.WithContext(ctx).Where("salon_id = ?", g.salonID)
	if !includeInactive {
		qb = qb.Where("is_active = ?", true)
	}
	var stations []models.Station
	err := qb.Order("display_order ASC").Order("name ASC").Find(&stations).Error
	return stations, err
}

func (g *GormGateway) GetStation(ctx context.Context, id uuid.UUID) (*models.Station, error) {
	var station models.Station
	if err := g.db.WithContext(ctx).Where("salon_id = ? AND id = ?", g.salonID, id).
		First(&station).Error; err != nil {
		return nil, notFound(err, "station", id)
	}
	return &station, nil
}

// CreateStation appends the station after the current last one.
func (g *GormGateway) CreateStation(ctx context.Context, name string, isActive bool) (*models.Station, error) {
	var last int
	if err := g.db.WithContext(ctx).Model(&models.Station{}).
		Where("salon_id = ?", g.salonID).
		Select("COALESCE(MAX(display_order), -1)").
		Scan(&last).Error; err != nil {
		return nil, err
	}

	station := models.Station{
		ID:           uuid.New(),
		SalonID:      g.salonID,
		Name:         name,
		IsActive:     isActive,
		DisplayOrder: last + 1,
	}
	if err := g.db.WithContext(ctx).Create(&station).Error; err != nil {
		return nil, err
	}
	return &station, nil
}

func (g *GormGateway) UpdateStation(ctx context.Context, station *models.Station) error {
	result := g.db.WithContext(ctx).Model(&models.Station{}).
		Where("salon_id = ? AND id = ?", g.salonID, station.ID).
		Select("name", "is_active", "display_order").
		Updates(station)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "station", station.ID)
	}
	return nil
}

// DeleteStation removes the station row; the foreign keys cascade its
// matrix cells and working hours.
func (g *GormGateway) DeleteStation(ctx context.Context, id uuid.UUID) error {
	result := g.db.WithContext(ctx).Where("salon_id = ? AND id = ?", g.salonID, id).
		Delete(&models.Station{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "station", id)
	}
	return nil
}

// ReorderStations writes each displayOrder on its own; an error leaves the
// earlier writes in place.
func (g *GormGateway) ReorderStations(ctx context.Context, updates []models.StationOrder) error {
	for _, u := range updates {
		err := g.db.WithContext(ctx).Model(&models.Station{}).
			Where("salon_id = ? AND id = ?", g.salonID, u.StationID).
			Update("display_order", u.DisplayOrder).Error
		if err != nil {
			return fmt.Errorf("station %s: %w", u.StationID, err)
		}
	}
	return nil
}

func (g *GormGateway) ListMatrixCells(ctx context.Context, serviceIDs, stationIDs []uuid.UUID) ([]models.ServiceStation, error) {
	if len(serviceIDs) == 0 || len(stationIDs) == 0 {
		return nil, nil
	}
	var cells []models.ServiceStation
	err := g.db.WithContext(ctx).
		Where("service_id IN ? AND station_id IN ?", serviceIDs, stationIDs).
		Where("station_id IN (?)", g.ownedStations()).
		Find(&cells).Error
	return cells, err
}

// UpsertMatrixCells writes complete records keyed by (service_id, station_id).
func (g *GormGateway) UpsertMatrixCells(ctx context.Context, records []models.ServiceStation) error {
	if len(records) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "service_id"}, {Name: "station_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"is_active", "base_time_minutes", "remote_booking_allowed", "requires_approval", "updated_at",
			}),
		}).
		CreateInBatches(&records, 200).Error
}

func (g *GormGateway) ListWorkingHours(ctx context.Context, stationID uuid.UUID) ([]models.StationWorkingHour, error) {
	var hours []models.StationWorkingHour
	err := g.db.WithContext(ctx).
		Where("station_id = ? AND station_id IN (?)", stationID, g.ownedStations()).
		Order("weekday ASC").Order("shift_order ASC").
		Find(&hours).Error
	return hours, err
}

// ReplaceWorkingHours deletes the station's hours and inserts records in their place.
func (g *GormGateway) ReplaceWorkingHours(ctx context.Context, stationID uuid.UUID, records []models.StationWorkingHour) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var station models.Station
		if err := tx.Where("salon_id = ? AND id = ?", g.salonID, stationID).
			First(&station).Error; err != nil {
			return notFound(err, "station", stationID)
		}
		if err := tx.Where("station_id = ?", stationID).
			Delete(&models.StationWorkingHour{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		rows := make([]models.StationWorkingHour, len(records))
		for i, r := range records {
			r.ID = uuid.New()
			r.StationID = stationID
			rows[i] = r
		}
		return tx.Create(&rows).Error
	})
}

func (g *GormGateway) ListUpcomingAppointments(ctx context.Context, stationID uuid.UUID) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := g.db.WithContext(ctx).Preload("Customer").
		Where("salon_id = ? AND station_id = ?", g.salonID, stationID).
		Where("status = ? AND starts_at >= ?", "booked", time.Now()).
		Order("starts_at ASC").
		Find(&appointments).Error
	return appointments, err
}

// TransferAppointments points every appointment of one station at another.
func (g *GormGateway) TransferAppointments(ctx context.Context, fromStationID, toStationID uuid.UUID) (int64, error) {
	result := g.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("salon_id = ? AND station_id = ?", g.salonID, fromStationID).
		Update("station_id", toStationID)
	return result.RowsAffected, result.Error
}
