package matrix

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Criteria is the row filter tuple. The zero value filters nothing.
type Criteria struct {
	Search        string    `json:"search"`
	StationFilter uuid.UUID `json:"stationFilter"`
	SupportedOnly bool      `json:"supportedOnly"`
	RemoteOnly    bool      `json:"remoteOnly"`
	ApprovalOnly  bool      `json:"approvalOnly"`
}

func (c Criteria) hasAttributeFilter() bool {
	return c.SupportedOnly || c.RemoteOnly || c.ApprovalOnly
}

// Row is what the paginator needs to know about a service.
type Row struct {
	ID   uuid.UUID
	Name string
}

// Window is the visible slice of the matrix.
type Window struct {
	ServiceIDs       []uuid.UUID `json:"serviceIds"`
	StationIDs       []uuid.UUID `json:"stationIds"`
	ServicePage      int         `json:"servicePage"`
	ServicePageCount int         `json:"servicePageCount"`
	StationPage      int         `json:"stationPage"`
	FilteredCount    int         `json:"filteredCount"`
}

// PaginatorState is the serializable position of a Paginator.
type PaginatorState struct {
	ServicePage int         `json:"servicePage"`
	StationPage int         `json:"stationPage"`
	Criteria    Criteria    `json:"criteria"`
	Filtered    []uuid.UUID `json:"filtered"`
}

// Paginator windows the service rows and the station columns independently.
// The row page only resets when the criteria change; new data alone keeps it.
type Paginator struct {
	servicePageSize int
	stationPageSize int

	servicePage int
	// stationPage is the index of the first visible selected station.
	stationPage int
	criteria    Criteria
	filtered    []uuid.UUID
}

func NewPaginator(servicePageSize, stationPageSize int) *Paginator {
	if servicePageSize <= 0 {
		servicePageSize = 20
	}
	if stationPageSize <= 0 {
		stationPageSize = 8
	}
	return &Paginator{
		servicePageSize: servicePageSize,
		stationPageSize: stationPageSize,
	}
}

func (p *Paginator) Criteria() Criteria {
	return p.criteria
}

func (p *Paginator) ServicePage() int {
	return p.servicePage
}

func (p *Paginator) StationPage() int {
	return p.stationPage
}

// Update recomputes the filtered rows for c. The row page goes back to 0
// only if c differs from the previous criteria.
func (p *Paginator) Update(c Criteria, rows []Row, selected []uuid.UUID, store *Store) {
	c.Search = strings.TrimSpace(c.Search)
	if c != p.criteria {
		p.servicePage = 0
		p.criteria = c
	}
	p.filtered = filterRows(c, rows, selected, store)
}

// Refresh recomputes the filtered rows after a data change.
func (p *Paginator) Refresh(rows []Row, selected []uuid.UUID, store *Store) {
	p.Update(p.criteria, rows, selected, store)
}

func filterRows(c Criteria, rows []Row, selected []uuid.UUID, store *Store) []uuid.UUID {
	fold := cases.Fold()
	key := func(s string) string { return fold.String(norm.NFC.String(s)) }
	term := key(c.Search)

	columns := selected
	if c.StationFilter != uuid.Nil {
		columns = []uuid.UUID{c.StationFilter}
	}

	out := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		if term != "" && !strings.Contains(key(r.Name), term) {
			continue
		}
		if c.hasAttributeFilter() && !rowMatches(c, r.ID, columns, store) {
			continue
		}
		out = append(out, r.ID)
	}
	return out
}

func rowMatches(c Criteria, serviceID uuid.UUID, columns []uuid.UUID, store *Store) bool {
	for _, st := range columns {
		n := store.Cell(serviceID, st).Normalize()
		if c.SupportedOnly && !n.Supported {
			continue
		}
		if c.RemoteOnly && !n.RemoteBookingAllowed {
			continue
		}
		if c.ApprovalOnly && !n.ApprovalNeeded {
			continue
		}
		return true
	}
	return false
}

func (p *Paginator) servicePageCount() int {
	n := (len(p.filtered) + p.servicePageSize - 1) / p.servicePageSize
	if n == 0 {
		return 1
	}
	return n
}

// SetServicePage moves the row window, clamped to existing pages.
func (p *Paginator) SetServicePage(page int) {
	if page >= p.servicePageCount() {
		page = p.servicePageCount() - 1
	}
	if page < 0 {
		page = 0
	}
	p.servicePage = page
}

// SetStationPage moves the column window without wrapping around.
func (p *Paginator) SetStationPage(page, selectedCount int) {
	limit := selectedCount - p.stationPageSize
	if limit < 0 {
		limit = 0
	}
	if page > limit {
		page = limit
	}
	if page < 0 {
		page = 0
	}
	p.stationPage = page
}

// ScrollStations shifts the column window by delta columns.
func (p *Paginator) ScrollStations(delta, selectedCount int) {
	p.SetStationPage(p.stationPage+delta, selectedCount)
}

// Window cuts the visible rows and columns.
func (p *Paginator) Window(selected []uuid.UUID) Window {
	// The stored page survives a shrinking result set; only the window clamps.
	servicePage := p.servicePage
	if last := p.servicePageCount() - 1; servicePage > last {
		servicePage = last
	}
	w := Window{
		ServicePage:      servicePage,
		ServicePageCount: p.servicePageCount(),
		StationPage:      p.stationPage,
		FilteredCount:    len(p.filtered),
	}

	start := servicePage * p.servicePageSize
	if start < len(p.filtered) {
		end := start + p.servicePageSize
		if end > len(p.filtered) {
			end = len(p.filtered)
		}
		w.ServiceIDs = append([]uuid.UUID(nil), p.filtered[start:end]...)
	}

	if p.criteria.StationFilter != uuid.Nil {
		w.StationIDs = []uuid.UUID{p.criteria.StationFilter}
		return w
	}
	stationPage := p.stationPage
	if limit := len(selected) - p.stationPageSize; stationPage > limit {
		stationPage = limit
	}
	if stationPage < 0 {
		stationPage = 0
	}
	w.StationPage = stationPage
	end := stationPage + p.stationPageSize
	if end > len(selected) {
		end = len(selected)
	}
	w.StationIDs = append([]uuid.UUID(nil), selected[stationPage:end]...)
	return w
}

// Capture returns the paginator position for the session cache.
func (p *Paginator) Capture() PaginatorState {
	return PaginatorState{
		ServicePage: p.servicePage,
		StationPage: p.stationPage,
		Criteria:    p.criteria,
		Filtered:    append([]uuid.UUID(nil), p.filtered...),
	}
}

// Restore puts the paginator back where Capture found it.
func (p *Paginator) Restore(state PaginatorState) {
	p.servicePage = state.ServicePage
	p.stationPage = state.StationPage
	p.criteria = state.Criteria
	p.filtered = append([]uuid.UUID(nil), state.Filtered...)
}
