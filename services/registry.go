package services

import (
	"context"
	"sort"
	"strings"

	"stationmatrix-backend/models"

	"github.com/google/uuid"
)

// ServiceInput carries the editable scalar fields of a service.
type ServiceInput struct {
	Name        string  `json:"name"`
	BasePrice   float64 `json:"basePrice"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Duration    int     `json:"duration"`
	IsActive    *bool   `json:"isActive"`
}

// StationInput carries the editable scalar fields of a station.
type StationInput struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"isActive"`
}

// Registry holds the service and station lists the matrix is drawn from.
// It is not safe for concurrent use.
type Registry struct {
	gw       Gateway
	services []models.Service
	stations []models.Station
}

func NewRegistry(gw Gateway) *Registry {
	return &Registry{gw: gw}
}

// Fetch reads both lists without installing them.
func (r *Registry) Fetch(ctx context.Context) ([]models.Service, []models.Station, error) {
	services, err := r.gw.ListServices(ctx)
	if err != nil {
		return nil, nil, persistenceError("list services", err)
	}
	stations, err := r.gw.ListStations(ctx, true)
	if err != nil {
		return nil, nil, persistenceError("list stations", err)
	}
	return services, stations, nil
}

// Install replaces both lists.
func (r *Registry) Install(services []models.Service, stations []models.Station) {
	r.services = append([]models.Service(nil), services...)
	r.SetStations(stations)
}

// SetStations replaces the station list, kept in display order.
func (r *Registry) SetStations(stations []models.Station) {
	r.stations = append([]models.Station(nil), stations...)
	sortStations(r.stations)
}

func sortStations(stations []models.Station) {
	sort.SliceStable(stations, func(i, j int) bool {
		return stations[i].DisplayOrder < stations[j].DisplayOrder
	})
}

func (r *Registry) Services() []models.Service {
	return append([]models.Service(nil), r.services...)
}

func (r *Registry) Stations() []models.Station {
	return append([]models.Station(nil), r.stations...)
}

// ActiveStations is the working set for bulk operations.
func (r *Registry) ActiveStations() []models.Station {
	var out []models.Station
	for _, s := range r.stations {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Service(id uuid.UUID) (models.Service, bool) {
	for _, s := range r.services {
		if s.ID == id {
			return s, true
		}
	}
	return models.Service{}, false
}

func (r *Registry) Station(id uuid.UUID) (models.Station, bool) {
	for _, s := range r.stations {
		if s.ID == id {
			return s, true
		}
	}
	return models.Station{}, false
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "name is required")
	}
	return name, nil
}

func (r *Registry) CreateService(ctx context.Context, in ServiceInput) (*models.Service, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.BasePrice < 0 {
		return nil, invalid("basePrice", "price cannot be negative")
	}

	service, err := r.gw.CreateService(ctx, name, in.BasePrice)
	if err != nil {
		return nil, persistenceError("create service", err)
	}
	if in.Description != "" || in.Category != "" || in.Duration > 0 {
		service.Description = in.Description
		if in.Category != "" {
			service.Category = in.Category
		}
		service.Duration = in.Duration
		if err := r.gw.UpdateService(ctx, service); err != nil {
			r.services = append(r.services, *service)
			return service, persistenceError("update service", err)
		}
	}
	r.services = append(r.services, *service)
	return service, nil
}

func (r *Registry) UpdateService(ctx context.Context, id uuid.UUID, in ServiceInput) (*models.Service, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.BasePrice < 0 {
		return nil, invalid("basePrice", "price cannot be negative")
	}
	if in.Duration < 0 {
		return nil, invalid("duration", "duration cannot be negative")
	}
	current, ok := r.Service(id)
	if !ok {
		return nil, ErrNotFound
	}

	current.Name = name
	current.Price = in.BasePrice
	current.Description = in.Description
	current.Duration = in.Duration
	if in.Category != "" {
		current.Category = in.Category
	}
	if in.IsActive != nil {
		current.IsActive = *in.IsActive
	}
	if err := r.gw.UpdateService(ctx, &current); err != nil {
		return nil, persistenceError("update service", err)
	}
	r.replaceService(current)
	return &current, nil
}

func (r *Registry) replaceService(service models.Service) {
	for i := range r.services {
		if r.services[i].ID == service.ID {
			r.services[i] = service
			return
		}
	}
	r.services = append(r.services, service)
}

// DeleteService refuses services with appointment history.
func (r *Registry) DeleteService(ctx context.Context, id uuid.UUID) error {
	used, err := r.gw.ServiceHasAppointments(ctx, id)
	if err != nil {
		return persistenceError("check appointment history", err)
	}
	if used {
		return ErrServiceInUse
	}
	if err := r.gw.DeleteService(ctx, id); err != nil {
		return persistenceError("delete service", err)
	}
	r.RemoveService(id)
	return nil
}

func (r *Registry) RemoveService(id uuid.UUID) {
	for i := range r.services {
		if r.services[i].ID == id {
			r.services = append(r.services[:i], r.services[i+1:]...)
			return
		}
	}
}

func (r *Registry) CreateStation(ctx context.Context, name string, isActive bool) (*models.Station, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	station, err := r.gw.CreateStation(ctx, name, isActive)
	if err != nil {
		return nil, persistenceError("create station", err)
	}
	r.AddStation(*station)
	return station, nil
}

func (r *Registry) UpdateStation(ctx context.Context, id uuid.UUID, in StationInput) (*models.Station, error) {
	current, ok := r.Station(id)
	if !ok {
		return nil, ErrNotFound
	}
	if in.Name != nil {
		name, err := validateName(*in.Name)
		if err != nil {
			return nil, err
		}
		current.Name = name
	}
	if in.IsActive != nil {
		current.IsActive = *in.IsActive
	}
	if err := r.gw.UpdateStation(ctx, &current); err != nil {
		return nil, persistenceError("update station", err)
	}
	r.AddStation(current)
	return &current, nil
}

// AddStation inserts or replaces a station in the list.
func (r *Registry) AddStation(station models.Station) {
	for i := range r.stations {
		if r.stations[i].ID == station.ID {
			r.stations[i] = station
			sortStations(r.stations)
			return
		}
	}
	r.stations = append(r.stations, station)
	sortStations(r.stations)
}

// AddService inserts or replaces a service in the list.
func (r *Registry) AddService(service models.Service) {
	r.replaceService(service)
}

func (r *Registry) RemoveStation(id uuid.UUID) {
	for i := range r.stations {
		if r.stations[i].ID == id {
			r.stations = append(r.stations[:i], r.stations[i+1:]...)
			return
		}
	}
}
