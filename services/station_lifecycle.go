package services

import (
	"context"
	"errors"
	"log"

	"stationmatrix-backend/models"

	"github.com/google/uuid"
)

// DeletionState is a step of the station deletion flow.
type DeletionState string

const (
	DeletionIdle           DeletionState = "idle"
	DeletionConfirm        DeletionState = "confirmDelete"
	DeletionChooseTransfer DeletionState = "chooseTransferTarget"
)

// StationDeletion walks idle -> confirmDelete -> chooseTransferTarget and
// back to idle once the station is gone. The zero value is idle.
type StationDeletion struct {
	state     DeletionState
	stationID uuid.UUID
}

func (d *StationDeletion) State() DeletionState {
	if d.state == "" {
		return DeletionIdle
	}
	return d.state
}

func (d *StationDeletion) StationID() uuid.UUID {
	return d.stationID
}

// Begin starts deleting stationID, dropping any flow already in progress.
func (d *StationDeletion) Begin(stationID uuid.UUID) error {
	if stationID == uuid.Nil {
		return invalid("stationId", "station is required")
	}
	d.state = DeletionConfirm
	d.stationID = stationID
	return nil
}

// Confirm moves on to choosing the transfer target.
func (d *StationDeletion) Confirm() error {
	if d.State() != DeletionConfirm {
		return invalid("state", "deletion is not awaiting confirmation")
	}
	d.state = DeletionChooseTransfer
	return nil
}

func (d *StationDeletion) Cancel() {
	d.state = DeletionIdle
	d.stationID = uuid.Nil
}

// DeletionResult describes a finished deletion.
type DeletionResult struct {
	StationID   uuid.UUID `json:"stationId"`
	TargetID    uuid.UUID `json:"targetId"`
	Transferred int64     `json:"transferred"`
}

// TransferNotifier tells customers their appointments moved.
type TransferNotifier interface {
	AppointmentsTransferred(ctx context.Context, appointments []models.Appointment, to models.Station)
}

// StationLifecycle reorders and deletes stations.
type StationLifecycle struct {
	gw       Gateway
	notifier TransferNotifier
}

func NewStationLifecycle(gw Gateway, notifier TransferNotifier) *StationLifecycle {
	return &StationLifecycle{gw: gw, notifier: notifier}
}

// OrderUpdates assigns 0..k-1 to the selected stations in their new order and
// k.. to the rest, which keep their relative order. Only changed stations
// are returned.
func OrderUpdates(stations []models.Station, selected []uuid.UUID) ([]models.StationOrder, error) {
	byID := map[uuid.UUID]models.Station{}
	for _, s := range stations {
		byID[s.ID] = s
	}
	picked := map[uuid.UUID]bool{}
	for _, id := range selected {
		if _, ok := byID[id]; !ok {
			return nil, invalid("order", "unknown station "+id.String())
		}
		if picked[id] {
			return nil, invalid("order", "station listed twice "+id.String())
		}
		picked[id] = true
	}

	rest := make([]models.Station, 0, len(stations))
	for _, s := range stations {
		if !picked[s.ID] {
			rest = append(rest, s)
		}
	}
	sortStations(rest)

	var updates []models.StationOrder
	next := 0
	assign := func(s models.Station) {
		if s.DisplayOrder != next {
			updates = append(updates, models.StationOrder{StationID: s.ID, DisplayOrder: next})
		}
		next++
	}
	for _, id := range selected {
		assign(byID[id])
	}
	for _, s := range rest {
		assign(s)
	}
	return updates, nil
}

// Reorder persists the new order and rereads the stations, returning the
// reloaded list and the selected ids in their persisted order.
func (l *StationLifecycle) Reorder(ctx context.Context, stations []models.Station, selected []uuid.UUID) ([]models.Station, []uuid.UUID, error) {
	updates, err := OrderUpdates(stations, selected)
	if err != nil {
		return nil, nil, err
	}
	if err := l.gw.ReorderStations(ctx, updates); err != nil {
		workflowRuns.WithLabelValues("reorder", "failed").Inc()
		return nil, nil, persistenceError("reorder stations", err)
	}

	reloaded, err := l.gw.ListStations(ctx, true)
	if err != nil {
		workflowRuns.WithLabelValues("reorder", "failed").Inc()
		return nil, nil, persistenceError("list stations", err)
	}
	sortStations(reloaded)

	workflowRuns.WithLabelValues("reorder", "ok").Inc()
	return reloaded, orderedSelection(reloaded, selected), nil
}

// orderedSelection lists the ids of stations that are in selected, in the
// order the stations are given.
func orderedSelection(stations []models.Station, selected []uuid.UUID) []uuid.UUID {
	keep := map[uuid.UUID]bool{}
	for _, id := range selected {
		keep[id] = true
	}
	out := make([]uuid.UUID, 0, len(selected))
	for _, s := range stations {
		if keep[s.ID] {
			out = append(out, s.ID)
		}
	}
	return out
}

// ExecuteDeletion moves every appointment of the station being deleted to
// targetID and then deletes the station. Nothing remote happens unless the
// flow is at chooseTransferTarget with a valid target.
func (l *StationLifecycle) ExecuteDeletion(ctx context.Context, d *StationDeletion, targetID uuid.UUID) (*DeletionResult, error) {
	if d.State() != DeletionChooseTransfer {
		return nil, invalid("state", "deletion must be confirmed before choosing a transfer target")
	}
	if targetID == uuid.Nil {
		return nil, invalid("targetId", "choose a station to transfer appointments to")
	}
	if targetID == d.stationID {
		return nil, invalid("targetId", "appointments cannot be transferred to the station being deleted")
	}

	target, err := l.gw.GetStation(ctx, targetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("targetId", "transfer station does not exist")
		}
		return nil, persistenceError("load transfer station", err)
	}

	var upcoming []models.Appointment
	if l.notifier != nil {
		upcoming, err = l.gw.ListUpcomingAppointments(ctx, d.stationID)
		if err != nil {
			log.Printf("[LIFECYCLE] could not list appointments of station %s: %v", d.stationID, err)
		}
	}

	moved, err := l.gw.TransferAppointments(ctx, d.stationID, targetID)
	if err != nil {
		workflowRuns.WithLabelValues("delete_station", "failed").Inc()
		return nil, persistenceError("transfer appointments", err)
	}
	if err := l.gw.DeleteStation(ctx, d.stationID); err != nil {
		workflowRuns.WithLabelValues("delete_station", "failed").Inc()
		return nil, persistenceError("delete station", err)
	}

	result := &DeletionResult{StationID: d.stationID, TargetID: targetID, Transferred: moved}
	d.Cancel()
	workflowRuns.WithLabelValues("delete_station", "ok").Inc()
	log.Printf("[LIFECYCLE] station %s deleted, %d appointments moved to %s", result.StationID, moved, targetID)

	if l.notifier != nil && len(upcoming) > 0 {
		for i := range upcoming {
			upcoming[i].StationID = targetID
		}
		l.notifier.AppointmentsTransferred(ctx, upcoming, *target)
	}
	return result, nil
}
