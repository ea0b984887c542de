package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"stationmatrix-backend/matrix"
	"stationmatrix-backend/models"

	"github.com/google/uuid"
)

var ErrSessionNotLoaded = errors.New("matrix session is not loaded")

// Phase is where a session is between loads.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseRestoring
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseRestoring:
		return "restoring"
	default:
		return "idle"
	}
}

// SessionOptions sizes the two pagination windows.
type SessionOptions struct {
	ServicePageSize int
	StationPageSize int
}

// MatrixSession is one user's editing session over the matrix. Every method is
// safe for concurrent use. Cell saves and reloads call the gateway without
// holding the session lock; entity and workflow calls hold it throughout.
type MatrixSession struct {
	key        string
	gw         Gateway
	cache      SessionCache
	lifecycle  *StationLifecycle
	duplicator *Duplicator

	mu       sync.Mutex
	phase    Phase
	loaded   bool
	lastUsed time.Time
	registry *Registry
	store    *matrix.Store
	pager    *matrix.Paginator
	selected []uuid.UUID
	deletion StationDeletion
}

func NewMatrixSession(key string, gw Gateway, cache SessionCache, notifier TransferNotifier, opts SessionOptions) *MatrixSession {
	return &MatrixSession{
		key:        key,
		gw:         gw,
		cache:      cache,
		lifecycle:  NewStationLifecycle(gw, notifier),
		duplicator: NewDuplicator(gw),
		registry:   NewRegistry(gw),
		store:      matrix.NewStore(),
		pager:      matrix.NewPaginator(opts.ServicePageSize, opts.StationPageSize),
		lastUsed:   time.Now(),
	}
}

func (s *MatrixSession) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *MatrixSession) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// LastUsed is when the session was last touched.
func (s *MatrixSession) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *MatrixSession) lock() {
	s.mu.Lock()
	s.lastUsed = time.Now()
}

// Mount restores the session from a fresh cache slot, or reloads it from the
// gateway when the slot is missing or stale.
func (s *MatrixSession) Mount(ctx context.Context) (bool, error) {
	state, ok, err := s.cache.Get(ctx, s.key)
	if err != nil {
		log.Printf("[CACHE] session %s: read failed, reloading: %v", s.key, err)
		ok = false
	}
	if ok {
		s.lock()
		s.restoreLocked(state)
		s.mu.Unlock()
		sessionMounts.WithLabelValues("cache").Inc()
		return true, nil
	}
	sessionMounts.WithLabelValues("reload").Inc()
	return false, s.Reload(ctx)
}

// restoreLocked installs cached state. Settling is suppressed while
// restoring, so the slot keeps its original timestamp.
func (s *MatrixSession) restoreLocked(state *SessionState) {
	s.phase = PhaseRestoring
	s.registry.Install(state.Services, state.Stations)
	s.store.Restore(state.Store)
	s.pager.Restore(state.Paginator)
	s.selected = append([]uuid.UUID(nil), state.Selected...)
	s.loaded = true
	s.settleLocked(context.Background())
	s.phase = PhaseIdle
}

// Reload replaces everything with server data. Unsaved edits are lost; the
// selection keeps the stations that still exist and adds new ones.
func (s *MatrixSession) Reload(ctx context.Context) error {
	s.lock()
	s.phase = PhaseLoading
	s.mu.Unlock()

	services, stations, cells, err := s.fetch(ctx)

	s.lock()
	defer s.mu.Unlock()
	s.phase = PhaseIdle
	if err != nil {
		return err
	}
	s.installLocked(services, stations, cells)
	s.settleLocked(ctx)
	return nil
}

func (s *MatrixSession) fetch(ctx context.Context) ([]models.Service, []models.Station, []models.ServiceStation, error) {
	start := time.Now()
	services, stations, err := s.registry.Fetch(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	cells, err := s.gw.ListMatrixCells(ctx, serviceIDs(services), stationIDs(stations))
	if err != nil {
		return nil, nil, nil, persistenceError("list matrix cells", err)
	}
	log.Printf("[MATRIX] loaded %d services, %d stations, %d cells in %v",
		len(services), len(stations), len(cells), time.Since(start))
	return services, stations, cells, nil
}

func (s *MatrixSession) installLocked(services []models.Service, stations []models.Station, cells []models.ServiceStation) {
	known := map[uuid.UUID]bool{}
	for _, st := range s.registry.Stations() {
		known[st.ID] = true
	}
	picked := map[uuid.UUID]bool{}
	for _, id := range s.selected {
		picked[id] = true
	}

	s.registry.Install(services, stations)
	ordered := s.registry.Stations()
	s.store.Load(serviceIDs(services), stationRefs(ordered), toRecords(cells))

	selected := make([]uuid.UUID, 0, len(ordered))
	for _, st := range ordered {
		if !s.loaded || picked[st.ID] || !known[st.ID] {
			selected = append(selected, st.ID)
		}
	}
	s.selected = selected
	s.loaded = true
	s.clearMissingFilterLocked()
	s.refreshLocked()
}

// settleLocked writes the current state to the cache unless a load or a
// restore is in progress.
func (s *MatrixSession) settleLocked(ctx context.Context) {
	if !s.loaded || s.phase != PhaseIdle {
		return
	}
	if err := s.cache.Set(ctx, s.key, s.captureLocked()); err != nil {
		log.Printf("[CACHE] session %s: write failed: %v", s.key, err)
	}
}

func (s *MatrixSession) captureLocked() *SessionState {
	return &SessionState{
		Services:  s.registry.Services(),
		Stations:  s.registry.Stations(),
		Selected:  append([]uuid.UUID(nil), s.selected...),
		Store:     s.store.Capture(),
		Paginator: s.pager.Capture(),
	}
}

func (s *MatrixSession) rowsLocked() []matrix.Row {
	services := s.registry.Services()
	rows := make([]matrix.Row, 0, len(services))
	for _, svc := range services {
		rows = append(rows, matrix.Row{ID: svc.ID, Name: svc.Name})
	}
	return rows
}

func (s *MatrixSession) refreshLocked() {
	s.pager.Refresh(s.rowsLocked(), s.selected, s.store)
	s.pager.SetStationPage(s.pager.StationPage(), len(s.selected))
}

func (s *MatrixSession) clearMissingFilterLocked() {
	c := s.pager.Criteria()
	if c.StationFilter == uuid.Nil {
		return
	}
	if _, ok := s.registry.Station(c.StationFilter); !ok {
		c.StationFilter = uuid.Nil
		s.pager.Update(c, s.rowsLocked(), s.selected, s.store)
	}
}

// edit runs fn under the lock and settles afterwards. Workflows can fail
// after changing state, so the session settles on errors too.
func (s *MatrixSession) edit(ctx context.Context, fn func() error) error {
	s.lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrSessionNotLoaded
	}
	err := fn()
	s.refreshLocked()
	s.settleLocked(ctx)
	return err
}

func (s *MatrixSession) requireService(id uuid.UUID) error {
	if _, ok := s.registry.Service(id); !ok {
		return ErrNotFound
	}
	return nil
}

func (s *MatrixSession) requireCell(serviceID, stationID uuid.UUID) error {
	if err := s.requireService(serviceID); err != nil {
		return err
	}
	if _, ok := s.registry.Station(stationID); !ok {
		return ErrNotFound
	}
	return nil
}

func durationError(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

func (s *MatrixSession) SetSupported(ctx context.Context, serviceID, stationID uuid.UUID, value bool) error {
	return s.edit(ctx, func() error {
		if err := s.requireCell(serviceID, stationID); err != nil {
			return err
		}
		s.store.SetSupported(serviceID, stationID, value)
		return nil
	})
}

func (s *MatrixSession) SetStationTime(ctx context.Context, serviceID, stationID uuid.UUID, minutes int) error {
	return s.edit(ctx, func() error {
		if err := s.requireCell(serviceID, stationID); err != nil {
			return err
		}
		return durationError("stationTime", s.store.SetStationTime(serviceID, stationID, minutes))
	})
}

func (s *MatrixSession) SetRemoteBooking(ctx context.Context, serviceID, stationID uuid.UUID, value bool) error {
	return s.edit(ctx, func() error {
		if err := s.requireCell(serviceID, stationID); err != nil {
			return err
		}
		s.store.SetRemoteBooking(serviceID, stationID, value)
		return nil
	})
}

func (s *MatrixSession) SetApprovalNeeded(ctx context.Context, serviceID, stationID uuid.UUID, value bool) error {
	return s.edit(ctx, func() error {
		if err := s.requireCell(serviceID, stationID); err != nil {
			return err
		}
		s.store.SetApprovalNeeded(serviceID, stationID, value)
		return nil
	})
}

func (s *MatrixSession) SetDefaultTime(ctx context.Context, serviceID uuid.UUID, minutes int) error {
	return s.edit(ctx, func() error {
		if err := s.requireService(serviceID); err != nil {
			return err
		}
		return durationError("defaultTime", s.store.SetDefaultTime(serviceID, minutes))
	})
}

func (s *MatrixSession) ApplyDefaultToAll(ctx context.Context, serviceID uuid.UUID) error {
	return s.edit(ctx, func() error {
		if err := s.requireService(serviceID); err != nil {
			return err
		}
		return durationError("defaultTime", s.store.ApplyDefaultToAll(serviceID))
	})
}

// RowAction is a bulk operation over the active stations of one service.
type RowAction string

const (
	RowTurnOnAll   RowAction = "turn-on-all"
	RowTurnOffAll  RowAction = "turn-off-all"
	RowRemoteOn    RowAction = "remote-on"
	RowRemoteOff   RowAction = "remote-off"
	RowApprovalOn  RowAction = "approval-on"
	RowApprovalOff RowAction = "approval-off"
)

func (s *MatrixSession) ApplyRowAction(ctx context.Context, serviceID uuid.UUID, action RowAction) error {
	return s.edit(ctx, func() error {
		if err := s.requireService(serviceID); err != nil {
			return err
		}
		switch action {
		case RowTurnOnAll:
			s.store.TurnOnAll(serviceID)
		case RowTurnOffAll:
			s.store.TurnOffAll(serviceID)
		case RowRemoteOn, RowRemoteOff:
			s.store.MarkAllRemoteBooking(serviceID, action == RowRemoteOn)
		case RowApprovalOn, RowApprovalOff:
			s.store.MarkAllApprovalNeeded(serviceID, action == RowApprovalOn)
		default:
			return invalid("action", "unknown row action "+string(action))
		}
		return nil
	})
}

func (s *MatrixSession) RevertRow(ctx context.Context, serviceID uuid.UUID) error {
	return s.edit(ctx, func() error {
		if err := s.requireService(serviceID); err != nil {
			return err
		}
		s.store.RevertRow(serviceID)
		return nil
	})
}

func (s *MatrixSession) RevertAll(ctx context.Context) error {
	return s.edit(ctx, func() error {
		s.store.RevertAll()
		return nil
	})
}

// SaveRow persists one service row. The baseline advances to the row as it
// was when the save started, so edits made meanwhile stay dirty.
func (s *MatrixSession) SaveRow(ctx context.Context, serviceID uuid.UUID) error {
	s.lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrSessionNotLoaded
	}
	if err := s.requireService(serviceID); err != nil {
		s.mu.Unlock()
		return err
	}
	saved := s.store.WorkingRow(serviceID)
	records := fromRecords(s.store.SnapshotRecords(saved, []uuid.UUID{serviceID}))
	s.mu.Unlock()

	err := s.gw.UpsertMatrixCells(ctx, records)

	s.lock()
	defer s.mu.Unlock()
	if err != nil {
		matrixSaves.WithLabelValues("row", "failed").Inc()
		return persistenceError("save row", err)
	}
	s.store.CommitRow(serviceID, saved)
	matrixSaves.WithLabelValues("row", "ok").Inc()
	s.refreshLocked()
	s.settleLocked(ctx)
	return nil
}

// SaveAll persists every dirty row and advances the whole baseline.
func (s *MatrixSession) SaveAll(ctx context.Context) (int, error) {
	s.lock()
	if !s.loaded {
		s.mu.Unlock()
		return 0, ErrSessionNotLoaded
	}
	dirty := s.store.DirtyRows()
	saved := s.store.WorkingCopy()
	records := fromRecords(s.store.SnapshotRecords(saved, dirty))
	s.mu.Unlock()

	if len(dirty) == 0 {
		return 0, nil
	}
	err := s.gw.UpsertMatrixCells(ctx, records)

	s.lock()
	defer s.mu.Unlock()
	if err != nil {
		matrixSaves.WithLabelValues("all", "failed").Inc()
		return 0, persistenceError("save matrix", err)
	}
	for _, id := range dirty {
		s.store.CommitRow(id, saved.Row(id))
	}
	matrixSaves.WithLabelValues("all", "ok").Inc()
	log.Printf("[MATRIX] session %s: saved %d rows (%d cells)", s.key, len(dirty), len(records))
	s.refreshLocked()
	s.settleLocked(ctx)
	return len(dirty), nil
}

// SetCriteria changes the row filter. The row page resets when the criteria
// differ from the current ones.
func (s *MatrixSession) SetCriteria(ctx context.Context, c matrix.Criteria) error {
	return s.edit(ctx, func() error {
		if c.StationFilter != uuid.Nil {
			if _, ok := s.registry.Station(c.StationFilter); !ok {
				return invalid("stationFilter", "unknown station")
			}
		}
		s.pager.Update(c, s.rowsLocked(), s.selected, s.store)
		return nil
	})
}

func (s *MatrixSession) SetServicePage(ctx context.Context, page int) error {
	return s.edit(ctx, func() error {
		s.pager.SetServicePage(page)
		return nil
	})
}

func (s *MatrixSession) SetStationPage(ctx context.Context, page int) error {
	return s.edit(ctx, func() error {
		s.pager.SetStationPage(page, len(s.selected))
		return nil
	})
}

func (s *MatrixSession) ScrollStations(ctx context.Context, delta int) error {
	return s.edit(ctx, func() error {
		s.pager.ScrollStations(delta, len(s.selected))
		return nil
	})
}

// SelectStations sets the visible columns; they are kept in display order.
func (s *MatrixSession) SelectStations(ctx context.Context, ids []uuid.UUID) error {
	return s.edit(ctx, func() error {
		picked := map[uuid.UUID]bool{}
		for _, id := range ids {
			if _, ok := s.registry.Station(id); !ok {
				return invalid("stationIds", "unknown station "+id.String())
			}
			picked[id] = true
		}
		selected := make([]uuid.UUID, 0, len(picked))
		for _, st := range s.registry.Stations() {
			if picked[st.ID] {
				selected = append(selected, st.ID)
			}
		}
		s.selected = selected
		return nil
	})
}

// CellView is one visible cell. StationTime is set only for supported cells.
type CellView struct {
	StationID            uuid.UUID `json:"stationId"`
	Supported            bool      `json:"supported"`
	StationTime          *int      `json:"stationTime"`
	Override             bool      `json:"override"`
	RemoteBookingAllowed bool      `json:"remoteBookingAllowed"`
	ApprovalNeeded       bool      `json:"approvalNeeded"`
	Dirty                bool      `json:"dirty"`
}

type RowView struct {
	ServiceID   uuid.UUID  `json:"serviceId"`
	Name        string     `json:"name"`
	BasePrice   float64    `json:"basePrice"`
	DefaultTime int        `json:"defaultTime"`
	Dirty       bool       `json:"dirty"`
	Cells       []CellView `json:"cells"`
}

type DeletionView struct {
	State     DeletionState `json:"state"`
	StationID uuid.UUID     `json:"stationId,omitempty"`
}

// MatrixView is the visible state of a session.
type MatrixView struct {
	Phase     string           `json:"phase"`
	Criteria  matrix.Criteria  `json:"criteria"`
	Window    matrix.Window    `json:"window"`
	Stations  []models.Station `json:"stations"`
	Selected  []uuid.UUID      `json:"selected"`
	Rows      []RowView        `json:"rows"`
	DirtyRows []uuid.UUID      `json:"dirtyRows"`
	Deletion  DeletionView     `json:"deletion"`
}

func (s *MatrixSession) View() (*MatrixView, error) {
	s.lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrSessionNotLoaded
	}

	w := s.pager.Window(s.selected)
	view := &MatrixView{
		Phase:     s.phase.String(),
		Criteria:  s.pager.Criteria(),
		Window:    w,
		Selected:  append([]uuid.UUID(nil), s.selected...),
		DirtyRows: s.store.DirtyRows(),
		Deletion:  DeletionView{State: s.deletion.State(), StationID: s.deletion.StationID()},
	}
	for _, id := range w.StationIDs {
		if st, ok := s.registry.Station(id); ok {
			view.Stations = append(view.Stations, st)
		}
	}
	for _, id := range w.ServiceIDs {
		svc, ok := s.registry.Service(id)
		if !ok {
			continue
		}
		row := RowView{
			ServiceID:   id,
			Name:        svc.Name,
			BasePrice:   svc.Price,
			DefaultTime: s.store.DefaultTime(id),
			Dirty:       s.store.IsRowDirty(id),
		}
		for _, st := range w.StationIDs {
			row.Cells = append(row.Cells, s.cellViewLocked(id, st))
		}
		view.Rows = append(view.Rows, row)
	}
	return view, nil
}

func (s *MatrixSession) cellViewLocked(serviceID, stationID uuid.UUID) CellView {
	c := s.store.Cell(serviceID, stationID)
	base, _ := s.store.BaselineCell(serviceID, stationID)
	v := CellView{
		StationID:            stationID,
		Supported:            c.Supported,
		RemoteBookingAllowed: c.RemoteBookingAllowed,
		ApprovalNeeded:       c.ApprovalNeeded,
		Dirty:                c.Normalize() != base.Normalize(),
	}
	if c.Supported {
		minutes := c.EffectiveMinutes()
		v.StationTime = &minutes
		v.Override = c.StationTime != nil && *c.StationTime != c.DefaultTime
	}
	return v
}

// Registry access for read-only handlers.

func (s *MatrixSession) Services() []models.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Services()
}

func (s *MatrixSession) Stations() []models.Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Stations()
}

func (s *MatrixSession) CreateService(ctx context.Context, in ServiceInput) (*models.Service, error) {
	var created *models.Service
	err := s.edit(ctx, func() error {
		svc, err := s.registry.CreateService(ctx, in)
		if svc != nil {
			s.store.MergeRow(svc.ID, nil)
			created = svc
		}
		return err
	})
	return created, err
}

func (s *MatrixSession) UpdateService(ctx context.Context, id uuid.UUID, in ServiceInput) (*models.Service, error) {
	var updated *models.Service
	err := s.edit(ctx, func() error {
		svc, err := s.registry.UpdateService(ctx, id, in)
		updated = svc
		return err
	})
	return updated, err
}

func (s *MatrixSession) DeleteService(ctx context.Context, id uuid.UUID) error {
	return s.edit(ctx, func() error {
		if err := s.requireService(id); err != nil {
			return err
		}
		if err := s.registry.DeleteService(ctx, id); err != nil {
			return err
		}
		s.store.RemoveService(id)
		return nil
	})
}

func (s *MatrixSession) CreateStation(ctx context.Context, name string, isActive bool) (*models.Station, error) {
	var created *models.Station
	err := s.edit(ctx, func() error {
		st, err := s.registry.CreateStation(ctx, name, isActive)
		if err != nil {
			return err
		}
		s.store.MergeColumn(matrix.StationRef{ID: st.ID, Active: st.IsActive}, nil)
		s.store.SetStations(stationRefs(s.registry.Stations()))
		s.selected = append(s.selected, st.ID)
		created = st
		return nil
	})
	return created, err
}

// UpdateStation renames or (de)activates a station. Activation changes the
// working set of bulk row operations but not the resolved defaults.
func (s *MatrixSession) UpdateStation(ctx context.Context, id uuid.UUID, in StationInput) (*models.Station, error) {
	var updated *models.Station
	err := s.edit(ctx, func() error {
		st, err := s.registry.UpdateStation(ctx, id, in)
		if err != nil {
			return err
		}
		s.store.SetStations(stationRefs(s.registry.Stations()))
		updated = st
		return nil
	})
	return updated, err
}

// ReorderStations persists a new order of the selected stations. On failure
// the selection goes back to its previous order; written positions stay.
func (s *MatrixSession) ReorderStations(ctx context.Context, order []uuid.UUID) error {
	return s.edit(ctx, func() error {
		if len(order) != len(s.selected) {
			return invalid("order", "the new order must list every selected station")
		}
		current := map[uuid.UUID]bool{}
		for _, id := range s.selected {
			current[id] = true
		}
		for _, id := range order {
			if !current[id] {
				return invalid("order", "station is not selected "+id.String())
			}
		}

		previous := s.selected
		s.selected = append([]uuid.UUID(nil), order...)
		stations, selected, err := s.lifecycle.Reorder(ctx, s.registry.Stations(), order)
		if err != nil {
			s.selected = previous
			return err
		}
		s.registry.SetStations(stations)
		s.store.SetStations(stationRefs(s.registry.Stations()))
		s.selected = selected
		return nil
	})
}

func (s *MatrixSession) DeletionState() DeletionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DeletionView{State: s.deletion.State(), StationID: s.deletion.StationID()}
}

func (s *MatrixSession) BeginStationDeletion(ctx context.Context, stationID uuid.UUID) error {
	return s.edit(ctx, func() error {
		if _, ok := s.registry.Station(stationID); !ok {
			return ErrNotFound
		}
		return s.deletion.Begin(stationID)
	})
}

func (s *MatrixSession) ConfirmStationDeletion(ctx context.Context, stationID uuid.UUID) error {
	return s.edit(ctx, func() error {
		if err := s.checkDeleting(stationID); err != nil {
			return err
		}
		return s.deletion.Confirm()
	})
}

func (s *MatrixSession) CancelStationDeletion(ctx context.Context) error {
	return s.edit(ctx, func() error {
		s.deletion.Cancel()
		return nil
	})
}

func (s *MatrixSession) checkDeleting(stationID uuid.UUID) error {
	if s.deletion.State() == DeletionIdle || s.deletion.StationID() != stationID {
		return invalid("state", "no deletion in progress for this station")
	}
	return nil
}

// ExecuteStationDeletion transfers the appointments to targetID, deletes the
// station and drops its column.
func (s *MatrixSession) ExecuteStationDeletion(ctx context.Context, stationID, targetID uuid.UUID) (*DeletionResult, error) {
	var result *DeletionResult
	err := s.edit(ctx, func() error {
		if err := s.checkDeleting(stationID); err != nil {
			return err
		}
		res, err := s.lifecycle.ExecuteDeletion(ctx, &s.deletion, targetID)
		if err != nil {
			return err
		}
		s.dropStationLocked(res.StationID)
		result = res
		return nil
	})
	return result, err
}

func (s *MatrixSession) dropStationLocked(id uuid.UUID) {
	s.registry.RemoveStation(id)
	s.store.RemoveStation(id)
	for i, sel := range s.selected {
		if sel == id {
			s.selected = append(s.selected[:i], s.selected[i+1:]...)
			break
		}
	}
	s.clearMissingFilterLocked()
}

// mergeStationLocked pulls one station and its column from the gateway.
func (s *MatrixSession) mergeStationLocked(ctx context.Context, id uuid.UUID) error {
	st, err := s.gw.GetStation(ctx, id)
	if err != nil {
		return persistenceError("load station", err)
	}
	cells, err := s.gw.ListMatrixCells(ctx, s.store.Services(), []uuid.UUID{id})
	if err != nil {
		return persistenceError("list matrix cells", err)
	}
	_, known := s.registry.Station(id)
	s.registry.AddStation(*st)
	s.store.MergeColumn(matrix.StationRef{ID: st.ID, Active: st.IsActive}, toRecords(cells))
	s.store.SetStations(stationRefs(s.registry.Stations()))
	if !known {
		s.selected = append(s.selected, st.ID)
	}
	return nil
}

// mergeServiceLocked pulls one service and its row from the gateway.
func (s *MatrixSession) mergeServiceLocked(ctx context.Context, id uuid.UUID) error {
	svc, err := s.gw.GetService(ctx, id)
	if err != nil {
		return persistenceError("load service", err)
	}
	cells, err := s.gw.ListMatrixCells(ctx, []uuid.UUID{id}, stationIDs(s.registry.Stations()))
	if err != nil {
		return persistenceError("list matrix cells", err)
	}
	s.registry.AddService(*svc)
	s.store.MergeRow(svc.ID, toRecords(cells))
	return nil
}

// DuplicateStation creates a copy of a station and adds its column. A station
// created before a later step failed is still added.
func (s *MatrixSession) DuplicateStation(ctx context.Context, sourceID uuid.UUID, opts StationCopyOptions) (*models.Station, error) {
	var created *models.Station
	err := s.edit(ctx, func() error {
		if _, ok := s.registry.Station(sourceID); !ok {
			return ErrNotFound
		}
		st, err := s.duplicator.DuplicateStation(ctx, sourceID, opts)
		if st != nil {
			created = st
			if mergeErr := s.mergeStationLocked(ctx, st.ID); mergeErr != nil && err == nil {
				err = mergeErr
			}
		}
		return err
	})
	return created, err
}

// CopyStationToExisting applies a station to existing ones and refreshes the
// columns of every target that succeeded.
func (s *MatrixSession) CopyStationToExisting(ctx context.Context, sourceID uuid.UUID, targets []uuid.UUID, opts StationCopyOptions) ([]TargetResult, error) {
	var results []TargetResult
	err := s.edit(ctx, func() error {
		if _, ok := s.registry.Station(sourceID); !ok {
			return ErrNotFound
		}
		res, err := s.duplicator.CopyStationToExisting(ctx, sourceID, targets, opts)
		if err != nil {
			return err
		}
		for i, r := range res {
			if !r.OK {
				continue
			}
			if err := s.mergeStationLocked(ctx, r.TargetID); err != nil {
				log.Printf("[MATRIX] session %s: refresh of station %s failed: %v", s.key, r.TargetID, err)
				res[i] = failedTarget(r.TargetID, err)
			}
		}
		results = res
		return nil
	})
	return results, err
}

func (s *MatrixSession) DuplicateService(ctx context.Context, sourceID uuid.UUID, opts ServiceCopyOptions) (*models.Service, error) {
	var created *models.Service
	err := s.edit(ctx, func() error {
		if err := s.requireService(sourceID); err != nil {
			return err
		}
		svc, err := s.duplicator.DuplicateService(ctx, sourceID, opts)
		if svc != nil {
			created = svc
			if mergeErr := s.mergeServiceLocked(ctx, svc.ID); mergeErr != nil && err == nil {
				err = mergeErr
			}
		}
		return err
	})
	return created, err
}

func (s *MatrixSession) CopyServiceToExisting(ctx context.Context, sourceID uuid.UUID, targets []uuid.UUID, opts ServiceCopyOptions) ([]TargetResult, error) {
	var results []TargetResult
	err := s.edit(ctx, func() error {
		if err := s.requireService(sourceID); err != nil {
			return err
		}
		res, err := s.duplicator.CopyServiceToExisting(ctx, sourceID, targets, opts)
		if err != nil {
			return err
		}
		for i, r := range res {
			if !r.OK {
				continue
			}
			if err := s.mergeServiceLocked(ctx, r.TargetID); err != nil {
				log.Printf("[MATRIX] session %s: refresh of service %s failed: %v", s.key, r.TargetID, err)
				res[i] = failedTarget(r.TargetID, err)
			}
		}
		results = res
		return nil
	})
	return results, err
}

// Unmount writes the final state to the cache so a mount within the TTL
// restores it. Saves already in flight still complete.
func (s *MatrixSession) Unmount(ctx context.Context) {
	s.lock()
	defer s.mu.Unlock()
	s.settleLocked(ctx)
}

// Discard drops the cached slot, forcing the next mount to reload.
func (s *MatrixSession) Discard(ctx context.Context) error {
	return s.cache.Clear(ctx, s.key)
}
