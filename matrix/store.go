package matrix

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvalidDuration = errors.New("duration must be a positive number of minutes")
	ErrNoDefaultTime   = errors.New("no default time could be resolved for this service")
)

// StationRef is the part of a station the store needs: identity and whether it
// belongs to the active working set.
type StationRef struct {
	ID     uuid.UUID `json:"id"`
	Active bool      `json:"active"`
}

// Store holds the working copy and the baseline of the matrix.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	working  Snapshot
	baseline Snapshot
	defaults map[uuid.UUID]int
	services []uuid.UUID
	stations []StationRef
}

func NewStore() *Store {
	return &Store{
		working:  Snapshot{},
		baseline: Snapshot{},
		defaults: map[uuid.UUID]int{},
	}
}

// Load replaces both snapshots from persisted records. Every service/station
// pair gets a cell; pairs without a record start unsupported. A stored
// duration equal to the service default is loaded as "follows the default".
func (s *Store) Load(services []uuid.UUID, stations []StationRef, records []Record) {
	s.services = append([]uuid.UUID(nil), services...)
	s.stations = append([]StationRef(nil), stations...)
	s.defaults = map[uuid.UUID]int{}

	active := map[uuid.UUID]bool{}
	for _, st := range stations {
		active[st.ID] = st.Active
	}

	byService := map[uuid.UUID][]Record{}
	for _, r := range records {
		if active[r.StationID] {
			byService[r.ServiceID] = append(byService[r.ServiceID], r)
		}
	}
	for _, id := range services {
		s.defaults[id] = ResolveDefaultTime(byService[id])
	}

	working := Snapshot{}
	for _, svc := range services {
		for _, st := range stations {
			working[Key{svc, st.ID}] = Cell{DefaultTime: s.defaults[svc]}
		}
	}
	for _, r := range records {
		working[Key{r.ServiceID, r.StationID}] = cellFromRecord(r, s.defaults[r.ServiceID])
	}

	s.working = working
	s.baseline = working.Clone()
}

// Restore installs previously captured state verbatim.
func (s *Store) Restore(state StoreState) {
	s.services = append([]uuid.UUID(nil), state.Services...)
	s.stations = append([]StationRef(nil), state.Stations...)
	s.defaults = map[uuid.UUID]int{}
	for k, v := range state.Defaults {
		s.defaults[k] = v
	}
	s.working = state.Working.Clone()
	s.baseline = state.Baseline.Clone()
}

// Capture returns a deep copy of everything the store holds.
func (s *Store) Capture() StoreState {
	defaults := make(map[uuid.UUID]int, len(s.defaults))
	for k, v := range s.defaults {
		defaults[k] = v
	}
	return StoreState{
		Services: append([]uuid.UUID(nil), s.services...),
		Stations: append([]StationRef(nil), s.stations...),
		Defaults: defaults,
		Working:  s.working.Clone(),
		Baseline: s.baseline.Clone(),
	}
}

// StoreState is the serializable content of a Store.
type StoreState struct {
	Services []uuid.UUID       `json:"services"`
	Stations []StationRef      `json:"stations"`
	Defaults map[uuid.UUID]int `json:"defaults"`
	Working  Snapshot          `json:"working"`
	Baseline Snapshot          `json:"baseline"`
}

func (s *Store) Services() []uuid.UUID {
	return append([]uuid.UUID(nil), s.services...)
}

func (s *Store) Stations() []StationRef {
	return append([]StationRef(nil), s.stations...)
}

func (s *Store) activeStations() []uuid.UUID {
	var out []uuid.UUID
	for _, st := range s.stations {
		if st.Active {
			out = append(out, st.ID)
		}
	}
	return out
}

// Cell reads the working cell, normalized for unsupported pairs.
func (s *Store) Cell(serviceID, stationID uuid.UUID) Cell {
	c := s.cell(Key{serviceID, stationID})
	if !c.Supported {
		c.StationTime = nil
		c.RemoteBookingAllowed = false
		c.ApprovalNeeded = false
	}
	return c
}

// BaselineCell reads the confirmed cell.
func (s *Store) BaselineCell(serviceID, stationID uuid.UUID) (Cell, bool) {
	c, ok := s.baseline[Key{serviceID, stationID}]
	return c.clone(), ok
}

func (s *Store) cell(k Key) Cell {
	if c, ok := s.working[k]; ok {
		return c.clone()
	}
	return Cell{DefaultTime: s.defaults[k.ServiceID]}
}

// DefaultTime is the service default, falling back to cell values and then 0.
func (s *Store) DefaultTime(serviceID uuid.UUID) int {
	if d := s.defaults[serviceID]; d > 0 {
		return d
	}
	for k, c := range s.working {
		if k.ServiceID == serviceID && c.DefaultTime > 0 {
			return c.DefaultTime
		}
	}
	return 0
}

// SetSupported flips enablement. An enabled cell without its own duration
// follows the service default; disabling clears the auxiliary fields.
func (s *Store) SetSupported(serviceID, stationID uuid.UUID, value bool) {
	k := Key{serviceID, stationID}
	c := s.cell(k)
	if value {
		if c.Supported {
			return
		}
		if c.StationTime != nil && *c.StationTime <= 0 {
			c.StationTime = nil
		}
		c.DefaultTime = s.DefaultTime(serviceID)
		c.Supported = true
	} else {
		c.Supported = false
		c.StationTime = nil
		c.RemoteBookingAllowed = false
		c.ApprovalNeeded = false
	}
	s.working[k] = c
}

// SetStationTime overrides the duration of one cell.
func (s *Store) SetStationTime(serviceID, stationID uuid.UUID, minutes int) error {
	if minutes <= 0 {
		return ErrInvalidDuration
	}
	k := Key{serviceID, stationID}
	c := s.cell(k)
	c.StationTime = intPtr(minutes)
	s.working[k] = c
	return nil
}

// SetDefaultTime changes the service default. Cells without a StationTime
// follow it; overrides are kept.
func (s *Store) SetDefaultTime(serviceID uuid.UUID, minutes int) error {
	if minutes <= 0 {
		return ErrInvalidDuration
	}
	s.defaults[serviceID] = minutes
	for k, c := range s.working {
		if k.ServiceID != serviceID {
			continue
		}
		c.DefaultTime = minutes
		s.working[k] = c
	}
	return nil
}

// ApplyDefaultToAll drops every supported override so the row follows the
// default again.
func (s *Store) ApplyDefaultToAll(serviceID uuid.UUID) error {
	d := s.DefaultTime(serviceID)
	if d <= 0 {
		return ErrNoDefaultTime
	}
	for k, c := range s.working {
		if k.ServiceID != serviceID || !c.Supported {
			continue
		}
		c.DefaultTime = d
		c.StationTime = nil
		s.working[k] = c
	}
	return nil
}

// SetRemoteBooking toggles one cell's remote flag. Unsupported cells ignore it.
func (s *Store) SetRemoteBooking(serviceID, stationID uuid.UUID, value bool) {
	k := Key{serviceID, stationID}
	c := s.cell(k)
	if !c.Supported {
		return
	}
	c.RemoteBookingAllowed = value
	s.working[k] = c
}

// SetApprovalNeeded toggles one cell's approval flag. Unsupported cells ignore it.
func (s *Store) SetApprovalNeeded(serviceID, stationID uuid.UUID, value bool) {
	k := Key{serviceID, stationID}
	c := s.cell(k)
	if !c.Supported {
		return
	}
	c.ApprovalNeeded = value
	s.working[k] = c
}

func (s *Store) TurnOnAll(serviceID uuid.UUID) {
	for _, st := range s.activeStations() {
		s.SetSupported(serviceID, st, true)
	}
}

func (s *Store) TurnOffAll(serviceID uuid.UUID) {
	for _, st := range s.activeStations() {
		s.SetSupported(serviceID, st, false)
	}
}

func (s *Store) MarkAllRemoteBooking(serviceID uuid.UUID, value bool) {
	for _, st := range s.activeStations() {
		s.SetRemoteBooking(serviceID, st, value)
	}
}

func (s *Store) MarkAllApprovalNeeded(serviceID uuid.UUID, value bool) {
	for _, st := range s.activeStations() {
		s.SetApprovalNeeded(serviceID, st, value)
	}
}

// WorkingRow copies the working cells of a service, for a save in flight.
func (s *Store) WorkingRow(serviceID uuid.UUID) Snapshot {
	return s.working.Row(serviceID)
}

// WorkingCopy clones the whole working snapshot.
func (s *Store) WorkingCopy() Snapshot {
	return s.working.Clone()
}

// RowRecords renders complete records for every known station of a service.
func (s *Store) RowRecords(serviceID uuid.UUID) []Record {
	return rowRecords(s.working, serviceID, s.stations, s.defaults[serviceID])
}

// AllRecords renders complete records for the whole matrix.
func (s *Store) AllRecords() []Record {
	var out []Record
	for _, svc := range s.services {
		out = append(out, s.RowRecords(svc)...)
	}
	return out
}

// SnapshotRecords renders records for the rows of a captured snapshot.
func (s *Store) SnapshotRecords(snap Snapshot, serviceIDs []uuid.UUID) []Record {
	var out []Record
	for _, svc := range serviceIDs {
		out = append(out, rowRecords(snap, svc, s.stations, s.defaults[svc])...)
	}
	return out
}

func rowRecords(snap Snapshot, serviceID uuid.UUID, stations []StationRef, def int) []Record {
	out := make([]Record, 0, len(stations))
	for _, st := range stations {
		k := Key{serviceID, st.ID}
		c, ok := snap[k]
		if !ok {
			c = Cell{DefaultTime: def}
		}
		out = append(out, c.ToRecord(k))
	}
	return out
}

// CommitRow advances the baseline of one service to the row that was saved.
// Cells whose station or service was removed since the save started are
// skipped.
func (s *Store) CommitRow(serviceID uuid.UUID, saved Snapshot) {
	row := Snapshot{}
	for k, c := range saved {
		if _, ok := s.working[k]; ok {
			row[k] = c
		}
	}
	s.baseline.ReplaceRow(serviceID, row)
}

// CommitAll replaces the baseline with the snapshot that was saved.
func (s *Store) CommitAll(saved Snapshot) {
	s.baseline = saved.Clone()
}

// RevertRow discards the edits of one service.
func (s *Store) RevertRow(serviceID uuid.UUID) {
	s.working.ReplaceRow(serviceID, s.baseline.Row(serviceID))
}

// RevertAll discards every edit.
func (s *Store) RevertAll() {
	s.working = s.baseline.Clone()
}

// RemoveService drops the service row from both snapshots.
func (s *Store) RemoveService(serviceID uuid.UUID) {
	s.working.DropService(serviceID)
	s.baseline.DropService(serviceID)
	delete(s.defaults, serviceID)
	for i, id := range s.services {
		if id == serviceID {
			s.services = append(s.services[:i], s.services[i+1:]...)
			break
		}
	}
}

// RemoveStation drops the station column from both snapshots.
func (s *Store) RemoveStation(stationID uuid.UUID) {
	s.working.DropStation(stationID)
	s.baseline.DropStation(stationID)
	for i, st := range s.stations {
		if st.ID == stationID {
			s.stations = append(s.stations[:i], s.stations[i+1:]...)
			break
		}
	}
}

// SetStations replaces the station list, keeping every cell.
func (s *Store) SetStations(stations []StationRef) {
	s.stations = append([]StationRef(nil), stations...)
}

// MergeRow installs server records for one service into both snapshots,
// resolving its default again. Unsaved edits of that row are discarded.
func (s *Store) MergeRow(serviceID uuid.UUID, records []Record) {
	active := map[uuid.UUID]bool{}
	for _, st := range s.stations {
		active[st.ID] = st.Active
	}
	var forDefault []Record
	for _, r := range records {
		if r.ServiceID == serviceID && active[r.StationID] {
			forDefault = append(forDefault, r)
		}
	}
	def := ResolveDefaultTime(forDefault)
	s.defaults[serviceID] = def

	row := Snapshot{}
	for _, st := range s.stations {
		row[Key{serviceID, st.ID}] = Cell{DefaultTime: def}
	}
	for _, r := range records {
		if r.ServiceID == serviceID {
			row[Key{r.ServiceID, r.StationID}] = cellFromRecord(r, def)
		}
	}
	s.working.ReplaceRow(serviceID, row)
	s.baseline.ReplaceRow(serviceID, row)

	for _, id := range s.services {
		if id == serviceID {
			return
		}
	}
	s.services = append(s.services, serviceID)
}

// MergeColumn installs server records for one station into both snapshots.
// Unsaved edits in that column are discarded.
func (s *Store) MergeColumn(station StationRef, records []Record) {
	found := false
	for i := range s.stations {
		if s.stations[i].ID == station.ID {
			s.stations[i] = station
			found = true
		}
	}
	if !found {
		s.stations = append(s.stations, station)
	}

	byService := map[uuid.UUID]Record{}
	for _, r := range records {
		if r.StationID == station.ID {
			byService[r.ServiceID] = r
		}
	}
	for _, svc := range s.services {
		k := Key{svc, station.ID}
		c := Cell{DefaultTime: s.defaults[svc]}
		if r, ok := byService[svc]; ok {
			c = cellFromRecord(r, s.defaults[svc])
		}
		s.working[k] = c
		s.baseline[k] = c.clone()
	}
}

func cellFromRecord(r Record, def int) Cell {
	c := Cell{Supported: r.IsActive, DefaultTime: def}
	if r.IsActive {
		if r.BaseTimeMinutes != def {
			c.StationTime = intPtr(r.BaseTimeMinutes)
		}
		c.RemoteBookingAllowed = r.RemoteBookingAllowed
		c.ApprovalNeeded = r.RequiresApproval
	}
	return c
}
