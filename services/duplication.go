package services

import (
	"context"
	"log"
	"sort"
	"time"

	"stationmatrix-backend/models"

	"github.com/google/uuid"
)

// StationCopyOptions selects what a station duplication carries over.
type StationCopyOptions struct {
	Name              string `json:"name"`
	CopyFields        bool   `json:"copyFields"`
	CopyWorkingHours  bool   `json:"copyWorkingHours"`
	CopyRelationships bool   `json:"copyRelationships"`
}

// ServiceCopyOptions selects what a service duplication carries over.
// BasePrice is used for a new service when fields are not copied.
type ServiceCopyOptions struct {
	Name              string   `json:"name"`
	BasePrice         *float64 `json:"basePrice"`
	CopyFields        bool     `json:"copyFields"`
	CopyRelationships bool     `json:"copyRelationships"`
}

// TargetResult reports one target of a copy to existing entities. Targets are
// processed independently; a failure leaves earlier targets updated.
type TargetResult struct {
	TargetID uuid.UUID `json:"targetId"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Err      error     `json:"-"`
}

func failedTarget(id uuid.UUID, err error) TargetResult {
	return TargetResult{TargetID: id, Error: err.Error(), Err: err}
}

// Duplicator copies stations and services through the gateway. Relationships
// are copied from persisted cells, so unsaved edits of the source are not
// carried over.
type Duplicator struct {
	gw Gateway
}

func NewDuplicator(gw Gateway) *Duplicator {
	return &Duplicator{gw: gw}
}

func validateTargets(sourceID uuid.UUID, targets []uuid.UUID) error {
	if len(targets) == 0 {
		return invalid("targetIds", "choose at least one target")
	}
	for _, id := range targets {
		if id == uuid.Nil {
			return invalid("targetIds", "target id is required")
		}
		if id == sourceID {
			return invalid("targetIds", "the source cannot be its own target")
		}
	}
	return nil
}

func sortWorkingHours(hours []models.StationWorkingHour) {
	sort.SliceStable(hours, func(i, j int) bool {
		if hours[i].Weekday != hours[j].Weekday {
			return hours[i].Weekday < hours[j].Weekday
		}
		return hours[i].ShiftOrder < hours[j].ShiftOrder
	})
}

// supportedOnly keeps supported cells and points them at a new station or
// service. Exactly one of stationID and serviceID is set.
func supportedOnly(cells []models.ServiceStation, serviceID, stationID uuid.UUID) []models.ServiceStation {
	var out []models.ServiceStation
	for _, c := range cells {
		if !c.IsActive {
			continue
		}
		if serviceID != uuid.Nil {
			c.ServiceID = serviceID
		}
		if stationID != uuid.Nil {
			c.StationID = stationID
		}
		c.UpdatedAt = time.Time{}
		out = append(out, c)
	}
	return out
}

func (d *Duplicator) stationSource(ctx context.Context, sourceID uuid.UUID, opts StationCopyOptions) ([]models.StationWorkingHour, []models.ServiceStation, error) {
	var hours []models.StationWorkingHour
	var cells []models.ServiceStation
	if opts.CopyWorkingHours {
		h, err := d.gw.ListWorkingHours(ctx, sourceID)
		if err != nil {
			return nil, nil, persistenceError("list working hours", err)
		}
		sortWorkingHours(h)
		hours = h
	}
	if opts.CopyRelationships {
		services, err := d.gw.ListServices(ctx)
		if err != nil {
			return nil, nil, persistenceError("list services", err)
		}
		c, err := d.gw.ListMatrixCells(ctx, serviceIDs(services), []uuid.UUID{sourceID})
		if err != nil {
			return nil, nil, persistenceError("list matrix cells", err)
		}
		cells = c
	}
	return hours, cells, nil
}

// DuplicateStation creates a new station from sourceID. When a later step
// fails the created station is still returned together with the error.
func (d *Duplicator) DuplicateStation(ctx context.Context, sourceID uuid.UUID, opts StationCopyOptions) (*models.Station, error) {
	name, err := validateName(opts.Name)
	if err != nil {
		return nil, err
	}
	source, err := d.gw.GetStation(ctx, sourceID)
	if err != nil {
		return nil, persistenceError("load station", err)
	}
	hours, cells, err := d.stationSource(ctx, sourceID, opts)
	if err != nil {
		return nil, err
	}

	isActive := true
	if opts.CopyFields {
		isActive = source.IsActive
	}
	created, err := d.gw.CreateStation(ctx, name, isActive)
	if err != nil {
		workflowRuns.WithLabelValues("duplicate_station", "failed").Inc()
		return nil, persistenceError("create station", err)
	}

	if opts.CopyWorkingHours && len(hours) > 0 {
		if err := d.gw.ReplaceWorkingHours(ctx, created.ID, hours); err != nil {
			workflowRuns.WithLabelValues("duplicate_station", "partial").Inc()
			return created, persistenceError("copy working hours", err)
		}
	}
	if opts.CopyRelationships {
		if err := d.gw.UpsertMatrixCells(ctx, supportedOnly(cells, uuid.Nil, created.ID)); err != nil {
			workflowRuns.WithLabelValues("duplicate_station", "partial").Inc()
			return created, persistenceError("copy relationships", err)
		}
	}

	workflowRuns.WithLabelValues("duplicate_station", "ok").Inc()
	log.Printf("[DUPLICATE] station %s copied to new station %s", sourceID, created.ID)
	return created, nil
}

// CopyStationToExisting applies the source station to each target in turn.
// Names are never copied.
func (d *Duplicator) CopyStationToExisting(ctx context.Context, sourceID uuid.UUID, targets []uuid.UUID, opts StationCopyOptions) ([]TargetResult, error) {
	if err := validateTargets(sourceID, targets); err != nil {
		return nil, err
	}
	source, err := d.gw.GetStation(ctx, sourceID)
	if err != nil {
		return nil, persistenceError("load station", err)
	}
	hours, cells, err := d.stationSource(ctx, sourceID, opts)
	if err != nil {
		return nil, err
	}

	results := make([]TargetResult, 0, len(targets))
	for _, id := range targets {
		if err := d.copyToStation(ctx, source, id, hours, cells, opts); err != nil {
			log.Printf("[DUPLICATE] station %s -> %s failed: %v", sourceID, id, err)
			workflowRuns.WithLabelValues("copy_station", "failed").Inc()
			results = append(results, failedTarget(id, err))
			continue
		}
		workflowRuns.WithLabelValues("copy_station", "ok").Inc()
		results = append(results, TargetResult{TargetID: id, OK: true})
	}
	return results, nil
}

func (d *Duplicator) copyToStation(ctx context.Context, source *models.Station, targetID uuid.UUID, hours []models.StationWorkingHour, cells []models.ServiceStation, opts StationCopyOptions) error {
	if opts.CopyFields {
		target, err := d.gw.GetStation(ctx, targetID)
		if err != nil {
			return persistenceError("load target station", err)
		}
		target.IsActive = source.IsActive
		if err := d.gw.UpdateStation(ctx, target); err != nil {
			return persistenceError("update target station", err)
		}
	}
	if opts.CopyWorkingHours {
		if err := d.gw.ReplaceWorkingHours(ctx, targetID, hours); err != nil {
			return persistenceError("replace working hours", err)
		}
	}
	if opts.CopyRelationships {
		if err := d.gw.UpsertMatrixCells(ctx, supportedOnly(cells, uuid.Nil, targetID)); err != nil {
			return persistenceError("copy relationships", err)
		}
	}
	return nil
}

func (d *Duplicator) serviceCells(ctx context.Context, sourceID uuid.UUID) ([]models.ServiceStation, error) {
	stations, err := d.gw.ListStations(ctx, true)
	if err != nil {
		return nil, persistenceError("list stations", err)
	}
	cells, err := d.gw.ListMatrixCells(ctx, []uuid.UUID{sourceID}, stationIDs(stations))
	if err != nil {
		return nil, persistenceError("list matrix cells", err)
	}
	return cells, nil
}

// DuplicateService creates a new service from sourceID. When a later step
// fails the created service is still returned together with the error.
func (d *Duplicator) DuplicateService(ctx context.Context, sourceID uuid.UUID, opts ServiceCopyOptions) (*models.Service, error) {
	name, err := validateName(opts.Name)
	if err != nil {
		return nil, err
	}
	if opts.BasePrice != nil && *opts.BasePrice < 0 {
		return nil, invalid("basePrice", "price cannot be negative")
	}
	source, err := d.gw.GetService(ctx, sourceID)
	if err != nil {
		return nil, persistenceError("load service", err)
	}
	var cells []models.ServiceStation
	if opts.CopyRelationships {
		if cells, err = d.serviceCells(ctx, sourceID); err != nil {
			return nil, err
		}
	}

	var price float64
	switch {
	case opts.CopyFields:
		price = source.Price
	case opts.BasePrice != nil:
		price = *opts.BasePrice
	}
	created, err := d.gw.CreateService(ctx, name, price)
	if err != nil {
		workflowRuns.WithLabelValues("duplicate_service", "failed").Inc()
		return nil, persistenceError("create service", err)
	}

	if opts.CopyFields {
		copyServiceFields(created, source)
		if err := d.gw.UpdateService(ctx, created); err != nil {
			workflowRuns.WithLabelValues("duplicate_service", "partial").Inc()
			return created, persistenceError("copy service fields", err)
		}
	}
	if opts.CopyRelationships {
		if err := d.gw.UpsertMatrixCells(ctx, supportedOnly(cells, created.ID, uuid.Nil)); err != nil {
			workflowRuns.WithLabelValues("duplicate_service", "partial").Inc()
			return created, persistenceError("copy relationships", err)
		}
	}

	workflowRuns.WithLabelValues("duplicate_service", "ok").Inc()
	log.Printf("[DUPLICATE] service %s copied to new service %s", sourceID, created.ID)
	return created, nil
}

func copyServiceFields(dst, src *models.Service) {
	dst.Price = src.Price
	dst.Description = src.Description
	dst.Category = src.Category
	dst.Duration = src.Duration
	dst.IsActive = src.IsActive
}

// CopyServiceToExisting applies the source service to each target in turn.
// Names are never copied.
func (d *Duplicator) CopyServiceToExisting(ctx context.Context, sourceID uuid.UUID, targets []uuid.UUID, opts ServiceCopyOptions) ([]TargetResult, error) {
	if err := validateTargets(sourceID, targets); err != nil {
		return nil, err
	}
	source, err := d.gw.GetService(ctx, sourceID)
	if err != nil {
		return nil, persistenceError("load service", err)
	}
	var cells []models.ServiceStation
	if opts.CopyRelationships {
		if cells, err = d.serviceCells(ctx, sourceID); err != nil {
			return nil, err
		}
	}

	results := make([]TargetResult, 0, len(targets))
	for _, id := range targets {
		if err := d.copyToService(ctx, source, id, cells, opts); err != nil {
			log.Printf("[DUPLICATE] service %s -> %s failed: %v", sourceID, id, err)
			workflowRuns.WithLabelValues("copy_service", "failed").Inc()
			results = append(results, failedTarget(id, err))
			continue
		}
		workflowRuns.WithLabelValues("copy_service", "ok").Inc()
		results = append(results, TargetResult{TargetID: id, OK: true})
	}
	return results, nil
}

func (d *Duplicator) copyToService(ctx context.Context, source *models.Service, targetID uuid.UUID, cells []models.ServiceStation, opts ServiceCopyOptions) error {
	if opts.CopyFields {
		target, err := d.gw.GetService(ctx, targetID)
		if err != nil {
			return persistenceError("load target service", err)
		}
		copyServiceFields(target, source)
		if err := d.gw.UpdateService(ctx, target); err != nil {
			return persistenceError("update target service", err)
		}
	}
	if opts.CopyRelationships {
		if err := d.gw.UpsertMatrixCells(ctx, supportedOnly(cells, targetID, uuid.Nil)); err != nil {
			return persistenceError("copy relationships", err)
		}
	}
	return nil
}
