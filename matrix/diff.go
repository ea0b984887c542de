package matrix

import (
	"github.com/google/uuid"
)

// IsRowDirty reports whether any cell of the service differs from the
// baseline once both sides are normalized. A missing cell counts as an
// unsupported one.
func (s *Store) IsRowDirty(serviceID uuid.UUID) bool {
	stations := map[uuid.UUID]struct{}{}
	for k := range s.working {
		if k.ServiceID == serviceID {
			stations[k.StationID] = struct{}{}
		}
	}
	for k := range s.baseline {
		if k.ServiceID == serviceID {
			stations[k.StationID] = struct{}{}
		}
	}

	for st := range stations {
		k := Key{serviceID, st}
		if s.working[k].Normalize() != s.baseline[k].Normalize() {
			return true
		}
	}
	return false
}

// DirtyRows lists the dirty services in row order.
func (s *Store) DirtyRows() []uuid.UUID {
	var out []uuid.UUID
	for _, svc := range s.services {
		if s.IsRowDirty(svc) {
			out = append(out, svc)
		}
	}
	return out
}

// IsDirty reports whether any row is dirty.
func (s *Store) IsDirty() bool {
	return len(s.DirtyRows()) > 0
}
