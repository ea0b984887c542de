package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"stationmatrix-backend/matrix"
	"stationmatrix-backend/models"

	"github.com/google/uuid"
)

var errBackend = errors.New("backend unavailable")

// fakeGateway is an in-memory Gateway that records the calls it receives.
type fakeGateway struct {
	mu           sync.Mutex
	services     map[uuid.UUID]models.Service
	stations     map[uuid.UUID]models.Station
	cells        map[matrix.Key]models.ServiceStation
	hours        map[uuid.UUID][]models.StationWorkingHour
	appointments []models.Appointment

	calls   []string
	upserts [][]models.ServiceStation
	failOps map[string]error
	failIDs map[uuid.UUID]error

	// afterUpsert runs once the records are stored, outside the lock.
	afterUpsert func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		services: map[uuid.UUID]models.Service{},
		stations: map[uuid.UUID]models.Station{},
		cells:    map[matrix.Key]models.ServiceStation{},
		hours:    map[uuid.UUID][]models.StationWorkingHour{},
		failOps:  map[string]error{},
		failIDs:  map[uuid.UUID]error{},
	}
}

func (g *fakeGateway) addService(name string) models.Service {
	s := models.Service{ID: uuid.New(), Name: name, Price: 10, IsActive: true}
	g.services[s.ID] = s
	return s
}

func (g *fakeGateway) addStation(name string, active bool) models.Station {
	st := models.Station{ID: uuid.New(), Name: name, IsActive: active, DisplayOrder: len(g.stations)}
	g.stations[st.ID] = st
	return st
}

func (g *fakeGateway) addCell(serviceID, stationID uuid.UUID, minutes int, remote, approval bool) {
	g.cells[matrix.Key{ServiceID: serviceID, StationID: stationID}] = models.ServiceStation{
		ServiceID:            serviceID,
		StationID:            stationID,
		IsActive:             true,
		BaseTimeMinutes:      minutes,
		RemoteBookingAllowed: remote,
		RequiresApproval:     approval,
	}
}

func (g *fakeGateway) cell(serviceID, stationID uuid.UUID) (models.ServiceStation, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.cells[matrix.Key{ServiceID: serviceID, StationID: stationID}]
	return c, ok
}

func (g *fakeGateway) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) setFail(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failOps, op)
		return
	}
	g.failOps[op] = err
}

// enter records op and returns the configured failure, if any.
func (g *fakeGateway) enter(op string, ids ...uuid.UUID) error {
	g.calls = append(g.calls, op)
	if err := g.failOps[op]; err != nil {
		return err
	}
	for _, id := range ids {
		if err := g.failIDs[id]; err != nil {
			return err
		}
	}
	return nil
}

func missing(what string, id uuid.UUID) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}

func (g *fakeGateway) ListServices(ctx context.Context) ([]models.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ListServices"); err != nil {
		return nil, err
	}
	out := make([]models.Service, 0, len(g.services))
	for _, s := range g.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *fakeGateway) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("GetService"); err != nil {
		return nil, err
	}
	s, ok := g.services[id]
	if !ok {
		return nil, missing("service", id)
	}
	return &s, nil
}

func (g *fakeGateway) CreateService(ctx context.Context, name string, basePrice float64) (*models.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("CreateService"); err != nil {
		return nil, err
	}
	s := models.Service{ID: uuid.New(), Name: name, Price: basePrice, Category: "General", IsActive: true}
	g.services[s.ID] = s
	return &s, nil
}

func (g *fakeGateway) UpdateService(ctx context.Context, service *models.Service) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("UpdateService", service.ID); err != nil {
		return err
	}
	if _, ok := g.services[service.ID]; !ok {
		return missing("service", service.ID)
	}
	g.services[service.ID] = *service
	return nil
}

func (g *fakeGateway) DeleteService(ctx context.Context, id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("DeleteService"); err != nil {
		return err
	}
	delete(g.services, id)
	for k := range g.cells {
		if k.ServiceID == id {
			delete(g.cells, k)
		}
	}
	return nil
}

func (g *fakeGateway) ServiceHasAppointments(ctx context.Context, id uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ServiceHasAppointments"); err != nil {
		return false, err
	}
	for _, a := range g.appointments {
		if a.ServiceID == id {
			return true, nil
		}
	}
	return false, nil
}

func (g *fakeGateway) ListStations(ctx context.Context, includeInactive bool) ([]models.Station, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ListStations"); err != nil {
		return nil, err
	}
	out := make([]models.Station, 0, len(g.stations))
	for _, s := range g.stations {
		if includeInactive || s.IsActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (g *fakeGateway) GetStation(ctx context.Context, id uuid.UUID) (*models.Station, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("GetStation"); err != nil {
		return nil, err
	}
	s, ok := g.stations[id]
	if !ok {
		return nil, missing("station", id)
	}
	return &s, nil
}

func (g *fakeGateway) CreateStation(ctx context.Context, name string, isActive bool) (*models.Station, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("CreateStation"); err != nil {
		return nil, err
	}
	last := -1
	for _, s := range g.stations {
		if s.DisplayOrder > last {
			last = s.DisplayOrder
		}
	}
	s := models.Station{ID: uuid.New(), Name: name, IsActive: isActive, DisplayOrder: last + 1}
	g.stations[s.ID] = s
	return &s, nil
}

func (g *fakeGateway) UpdateStation(ctx context.Context, station *models.Station) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("UpdateStation", station.ID); err != nil {
		return err
	}
	if _, ok := g.stations[station.ID]; !ok {
		return missing("station", station.ID)
	}
	g.stations[station.ID] = *station
	return nil
}

func (g *fakeGateway) DeleteStation(ctx context.Context, id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("DeleteStation"); err != nil {
		return err
	}
	if _, ok := g.stations[id]; !ok {
		return missing("station", id)
	}
	delete(g.stations, id)
	delete(g.hours, id)
	for k := range g.cells {
		if k.StationID == id {
			delete(g.cells, k)
		}
	}
	return nil
}

func (g *fakeGateway) ReorderStations(ctx context.Context, updates []models.StationOrder) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, u := range updates {
		if err := g.enter("ReorderStations", u.StationID); err != nil {
			return err
		}
		s := g.stations[u.StationID]
		s.DisplayOrder = u.DisplayOrder
		g.stations[u.StationID] = s
	}
	return nil
}

func (g *fakeGateway) ListMatrixCells(ctx context.Context, serviceIDs, stationIDs []uuid.UUID) ([]models.ServiceStation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ListMatrixCells"); err != nil {
		return nil, err
	}
	var out []models.ServiceStation
	for _, svc := range serviceIDs {
		for _, st := range stationIDs {
			if c, ok := g.cells[matrix.Key{ServiceID: svc, StationID: st}]; ok {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (g *fakeGateway) UpsertMatrixCells(ctx context.Context, records []models.ServiceStation) error {
	if err := g.upsert(records); err != nil {
		return err
	}
	if g.afterUpsert != nil {
		g.afterUpsert()
	}
	return nil
}

func (g *fakeGateway) upsert(records []models.ServiceStation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []uuid.UUID
	for _, r := range records {
		ids = append(ids, r.ServiceID, r.StationID)
	}
	if err := g.enter("UpsertMatrixCells", ids...); err != nil {
		return err
	}
	g.upserts = append(g.upserts, append([]models.ServiceStation(nil), records...))
	for _, r := range records {
		g.cells[matrix.Key{ServiceID: r.ServiceID, StationID: r.StationID}] = r
	}
	return nil
}

func (g *fakeGateway) ListWorkingHours(ctx context.Context, stationID uuid.UUID) ([]models.StationWorkingHour, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ListWorkingHours"); err != nil {
		return nil, err
	}
	return append([]models.StationWorkingHour(nil), g.hours[stationID]...), nil
}

func (g *fakeGateway) ReplaceWorkingHours(ctx context.Context, stationID uuid.UUID, records []models.StationWorkingHour) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ReplaceWorkingHours", stationID); err != nil {
		return err
	}
	rows := make([]models.StationWorkingHour, len(records))
	for i, r := range records {
		r.ID = uuid.New()
		r.StationID = stationID
		rows[i] = r
	}
	g.hours[stationID] = rows
	return nil
}

func (g *fakeGateway) ListUpcomingAppointments(ctx context.Context, stationID uuid.UUID) ([]models.Appointment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ListUpcomingAppointments"); err != nil {
		return nil, err
	}
	var out []models.Appointment
	for _, a := range g.appointments {
		if a.StationID == stationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (g *fakeGateway) TransferAppointments(ctx context.Context, fromStationID, toStationID uuid.UUID) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("TransferAppointments"); err != nil {
		return 0, err
	}
	var n int64
	for i := range g.appointments {
		if g.appointments[i].StationID == fromStationID {
			g.appointments[i].StationID = toStationID
			n++
		}
	}
	return n, nil
}

// recordingNotifier captures transfer notifications.
type recordingNotifier struct {
	mu    sync.Mutex
	calls [][]models.Appointment
	to    []models.Station
}

func (n *recordingNotifier) AppointmentsTransferred(ctx context.Context, appointments []models.Appointment, to models.Station) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, appointments)
	n.to = append(n.to, to)
}

func keyOf(serviceID, stationID uuid.UUID) matrix.Key {
	return matrix.Key{ServiceID: serviceID, StationID: stationID}
}
