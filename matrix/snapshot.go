package matrix

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Snapshot is a flat map of cells keyed by (service, station).
type Snapshot map[Key]Cell

// Clone returns a deep copy; the two snapshots share nothing.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, c := range s {
		out[k] = c.clone()
	}
	return out
}

// Row returns a copy of every cell belonging to serviceID.
func (s Snapshot) Row(serviceID uuid.UUID) Snapshot {
	out := Snapshot{}
	for k, c := range s {
		if k.ServiceID == serviceID {
			out[k] = c.clone()
		}
	}
	return out
}

// ReplaceRow drops every cell of serviceID and installs row in its place.
func (s Snapshot) ReplaceRow(serviceID uuid.UUID, row Snapshot) {
	s.DropService(serviceID)
	for k, c := range row {
		if k.ServiceID == serviceID {
			s[k] = c.clone()
		}
	}
}

// DropService removes the whole row of serviceID.
func (s Snapshot) DropService(serviceID uuid.UUID) {
	for k := range s {
		if k.ServiceID == serviceID {
			delete(s, k)
		}
	}
}

// DropStation removes the whole column of stationID.
func (s Snapshot) DropStation(stationID uuid.UUID) {
	for k := range s {
		if k.StationID == stationID {
			delete(s, k)
		}
	}
}

type snapshotEntry struct {
	Key
	Cell
}

// MarshalJSON encodes the snapshot as a list, since struct keys cannot be JSON object keys.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	entries := make([]snapshotEntry, 0, len(s))
	for k, c := range s {
		entries = append(entries, snapshotEntry{Key: k, Cell: c})
	}
	return json.Marshal(entries)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var entries []snapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(Snapshot, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Cell
	}
	*s = out
	return nil
}
