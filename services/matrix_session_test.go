package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"stationmatrix-backend/matrix"
	"stationmatrix-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	gw       *fakeGateway
	cache    *MemoryCache
	now      *time.Time
	notifier *recordingNotifier
	session  *MatrixSession
	service  models.Service
	stationA models.Station
	stationB models.Station
	inactive models.Station
}

// newSessionFixture mounts a session over one service that is supported at
// chair A for 30 minutes, unsupported at chair B and at an inactive station.
func newSessionFixture(t *testing.T) sessionFixture {
	t.Helper()

	gw := newFakeGateway()
	f := sessionFixture{
		gw:       gw,
		notifier: &recordingNotifier{},
		service:  gw.addService("Haircut"),
		stationA: gw.addStation("Chair A", true),
		stationB: gw.addStation("Chair B", true),
		inactive: gw.addStation("Back room", false),
	}
	gw.addCell(f.service.ID, f.stationA.ID, 30, false, false)

	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f.now = &clock
	now := f.now
	f.cache = NewMemoryCacheWithClock(DefaultSessionTTL, func() time.Time { return *now })
	f.session = f.newSession()

	restored, err := f.session.Mount(context.Background())
	require.NoError(t, err)
	require.False(t, restored)
	return f
}

func (f sessionFixture) newSession() *MatrixSession {
	return NewMatrixSession("user-1", f.gw, f.cache, f.notifier, SessionOptions{})
}

func (f sessionFixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func rowOf(t *testing.T, v *MatrixView, serviceID uuid.UUID) RowView {
	t.Helper()
	for _, r := range v.Rows {
		if r.ServiceID == serviceID {
			return r
		}
	}
	t.Fatalf("service %s not visible", serviceID)
	return RowView{}
}

func cellOf(t *testing.T, r RowView, stationID uuid.UUID) CellView {
	t.Helper()
	for _, c := range r.Cells {
		if c.StationID == stationID {
			return c
		}
	}
	t.Fatalf("station %s not visible", stationID)
	return CellView{}
}

func countCalls(calls []string, op string) int {
	n := 0
	for _, c := range calls {
		if c == op {
			n++
		}
	}
	return n
}

func indexOf(calls []string, op string) int {
	for i, c := range calls {
		if c == op {
			return i
		}
	}
	return -1
}

func TestMount_LoadsAndSelectsEveryStation(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)

	v, err := f.session.View()
	require.NoError(t, err)
	assert.Equal(t, "idle", v.Phase)
	assert.Equal(t, []uuid.UUID{f.stationA.ID, f.stationB.ID, f.inactive.ID}, v.Selected)

	row := rowOf(t, v, f.service.ID)
	assert.Equal(t, 30, row.DefaultTime)
	assert.False(t, row.Dirty)

	a := cellOf(t, row, f.stationA.ID)
	require.NotNil(t, a.StationTime)
	assert.Equal(t, 30, *a.StationTime)
	assert.False(t, a.Override)
	assert.Nil(t, cellOf(t, row, f.stationB.ID).StationTime)
}

func TestMount_RestoresFreshSlotWithoutReloading(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.SetSupported(ctx, f.service.ID, f.stationB.ID, true))
	require.NoError(t, f.session.SetCriteria(ctx, matrix.Criteria{Search: "hair"}))
	editedAt := *f.now
	want, err := f.session.View()
	require.NoError(t, err)

	f.advance(2 * time.Minute)
	before := len(f.gw.callLog())

	other := f.newSession()
	restored, err := other.Mount(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Len(t, f.gw.callLog(), before, "a restore must not reach the gateway")
	assert.Equal(t, PhaseIdle, other.Phase())

	got, err := other.View()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	slot, ok, err := f.cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, editedAt, slot.SavedAt, "restoring must not re-timestamp the slot")
}

func TestMount_ReloadsAfterTTL(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.SetSupported(ctx, f.service.ID, f.stationB.ID, true))
	f.advance(DefaultSessionTTL + time.Second)
	before := countCalls(f.gw.callLog(), "ListServices")

	other := f.newSession()
	restored, err := other.Mount(ctx)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, before+1, countCalls(f.gw.callLog(), "ListServices"))

	v, err := other.View()
	require.NoError(t, err)
	assert.False(t, cellOf(t, rowOf(t, v, f.service.ID), f.stationB.ID).Supported)
}

func TestMutation_SettlesIntoCache(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	f.advance(time.Minute)
	require.NoError(t, f.session.SetSupported(ctx, f.service.ID, f.stationB.ID, true))

	slot, ok, err := f.cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *f.now, slot.SavedAt)
	assert.True(t, slot.Store.Working[matrix.Key{ServiceID: f.service.ID, StationID: f.stationB.ID}].Supported)
}

func TestSaveRow_AdvancesBaselineAndSendsCompleteRecords(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.SetSupported(ctx, f.service.ID, f.stationB.ID, true))
	v, err := f.session.View()
	require.NoError(t, err)
	require.True(t, rowOf(t, v, f.service.ID).Dirty)

	require.NoError(t, f.session.SaveRow(ctx, f.service.ID))

	v, err = f.session.View()
	require.NoError(t, err)
	assert.False(t, rowOf(t, v, f.service.ID).Dirty)
	assert.Empty(t, v.DirtyRows)

	require.Len(t, f.gw.upserts, 1)
	assert.Len(t, f.gw.upserts[0], 3)

	b, ok := f.gw.cell(f.service.ID, f.stationB.ID)
	require.True(t, ok)
	assert.True(t, b.IsActive)
	assert.Equal(t, 30, b.BaseTimeMinutes)

	back, ok := f.gw.cell(f.service.ID, f.inactive.ID)
	require.True(t, ok)
	assert.False(t, back.IsActive)
	assert.Equal(t, 60, back.BaseTimeMinutes)
}

func TestSaveRow_FailureKeepsRowDirty(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.SetSupported(ctx, f.service.ID, f.stationB.ID, true))
	f.gw.setFail("UpsertMatrixCells", errBackend)

	err := f.session.SaveRow(ctx, f.service.ID)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, errBackend)

	v, err := f.session.View()
	require.NoError(t, err)
	assert.True(t, rowOf(t, v, f.service.ID).Dirty)

	f.gw.setFail("UpsertMatrixCells", nil)
	require.NoError(t, f.session.SaveRow(ctx, f.service.ID))
}

func TestSaveRow_StationDeletedMidSaveLeavesRowClean(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.SetSupported(ctx, f.service.ID, f.stationB.ID, true))
	require.NoError(t, f.session.BeginStationDeletion(ctx, f.stationB.ID))
	require.NoError(t, f.session.ConfirmStationDeletion(ctx, f.stationB.ID))

	var deleteErr error
	f.gw.afterUpsert = func() {
		f.gw.afterUpsert = nil
		_, deleteErr = f.session.ExecuteStationDeletion(ctx, f.stationB.ID, f.stationA.ID)
	}
	require.NoError(t, f.session.SaveRow(ctx, f.service.ID))
	require.NoError(t, deleteErr)

	v, err := f.session.View()
	require.NoError(t, err)
	row := rowOf(t, v, f.service.ID)
	assert.False(t, row.Dirty)
	assert.Empty(t, v.DirtyRows)
	for _, c := range row.Cells {
		assert.NotEqual(t, f.stationB.ID, c.StationID)
	}
}

func TestSaveAll_SendsOnlyDirtyRows(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	other, err := f.session.CreateService(ctx, ServiceInput{Name: "Shave", BasePrice: 5})
	require.NoError(t, err)
	require.NoError(t, f.session.SetSupported(ctx, f.service.ID, f.stationB.ID, true))

	n, err := f.session.SaveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.gw.upserts, 1)
	for _, r := range f.gw.upserts[0] {
		assert.Equal(t, f.service.ID, r.ServiceID)
		assert.NotEqual(t, other.ID, r.ServiceID)
	}

	n, err = f.session.SaveAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.gw.upserts, 1)
}

func TestSetStationTime_ZeroIsRejected(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	err := f.session.SetStationTime(ctx, f.service.ID, f.stationA.ID, 0)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, matrix.ErrInvalidDuration)

	v, err := f.session.View()
	require.NoError(t, err)
	a := cellOf(t, rowOf(t, v, f.service.ID), f.stationA.ID)
	assert.Equal(t, 30, *a.StationTime)
	assert.False(t, rowOf(t, v, f.service.ID).Dirty)
}

func TestCellOps_UnknownIDsAreNotFound(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.session.SetSupported(ctx, uuid.New(), f.stationA.ID, true), ErrNotFound)
	assert.ErrorIs(t, f.session.SetSupported(ctx, f.service.ID, uuid.New(), true), ErrNotFound)
	assert.ErrorIs(t, f.session.ApplyRowAction(ctx, uuid.New(), RowTurnOnAll), ErrNotFound)
}

func TestApplyRowAction_TurnOnAllThenDefault(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.ApplyRowAction(ctx, f.service.ID, RowTurnOnAll))
	require.NoError(t, f.session.SetDefaultTime(ctx, f.service.ID, 45))
	require.NoError(t, f.session.ApplyDefaultToAll(ctx, f.service.ID))

	v, err := f.session.View()
	require.NoError(t, err)
	row := rowOf(t, v, f.service.ID)
	for _, id := range []uuid.UUID{f.stationA.ID, f.stationB.ID} {
		c := cellOf(t, row, id)
		assert.True(t, c.Supported)
		assert.Equal(t, 45, *c.StationTime)
	}
	assert.False(t, cellOf(t, row, f.inactive.ID).Supported)
	assert.Equal(t, 45, row.DefaultTime)

	var ve *ValidationError
	assert.ErrorAs(t, f.session.ApplyRowAction(ctx, f.service.ID, RowAction("sideways")), &ve)
}

func TestRevertAll_DiscardsEdits(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.ApplyRowAction(ctx, f.service.ID, RowTurnOffAll))
	require.NoError(t, f.session.RevertAll(ctx))

	v, err := f.session.View()
	require.NoError(t, err)
	assert.Empty(t, v.DirtyRows)
	assert.True(t, cellOf(t, rowOf(t, v, f.service.ID), f.stationA.ID).Supported)
}

func TestSetCriteria_ColumnFilterCollapsesWindow(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.SetCriteria(ctx, matrix.Criteria{StationFilter: f.stationB.ID, SupportedOnly: true}))
	v, err := f.session.View()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.stationB.ID}, v.Window.StationIDs)
	assert.Empty(t, v.Rows)

	var ve *ValidationError
	assert.ErrorAs(t, f.session.SetCriteria(ctx, matrix.Criteria{StationFilter: uuid.New()}), &ve)
}

func TestSelectStations_KeepsDisplayOrder(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.SelectStations(ctx, []uuid.UUID{f.inactive.ID, f.stationA.ID}))
	v, err := f.session.View()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.stationA.ID, f.inactive.ID}, v.Selected)
}

func TestCreateStation_AddsSelectedColumn(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	st, err := f.session.CreateStation(ctx, "  Chair D ", true)
	require.NoError(t, err)
	assert.Equal(t, "Chair D", st.Name)

	v, err := f.session.View()
	require.NoError(t, err)
	assert.Contains(t, v.Selected, st.ID)
	assert.False(t, cellOf(t, rowOf(t, v, f.service.ID), st.ID).Supported)
	assert.Empty(t, v.DirtyRows)

	_, err = f.session.CreateStation(ctx, " ", true)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDeleteService_BlockedByHistory(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()
	f.gw.appointments = append(f.gw.appointments, models.Appointment{ID: uuid.New(), ServiceID: f.service.ID, StationID: f.stationA.ID})

	err := f.session.DeleteService(ctx, f.service.ID)
	assert.ErrorIs(t, err, ErrServiceInUse)
	assert.Equal(t, 0, countCalls(f.gw.callLog(), "DeleteService"))
	assert.Len(t, f.session.Services(), 1)
}

func TestDeleteService_DropsRow(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.DeleteService(ctx, f.service.ID))
	v, err := f.session.View()
	require.NoError(t, err)
	assert.Empty(t, v.Rows)
	assert.Empty(t, f.session.Services())
}

func TestReorderStations_PersistsDenseOrder(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	order := []uuid.UUID{f.stationB.ID, f.stationA.ID, f.inactive.ID}
	require.NoError(t, f.session.ReorderStations(ctx, order))

	v, err := f.session.View()
	require.NoError(t, err)
	assert.Equal(t, order, v.Selected)
	assert.Equal(t, 0, f.gw.stations[f.stationB.ID].DisplayOrder)
	assert.Equal(t, 1, f.gw.stations[f.stationA.ID].DisplayOrder)
	assert.Equal(t, 2, f.gw.stations[f.inactive.ID].DisplayOrder)
}

func TestReorderStations_FailureRollsBackSelection(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()
	f.gw.failIDs[f.stationA.ID] = errBackend

	err := f.session.ReorderStations(ctx, []uuid.UUID{f.stationB.ID, f.stationA.ID, f.inactive.ID})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)

	v, err := f.session.View()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.stationA.ID, f.stationB.ID, f.inactive.ID}, v.Selected)
	assert.Equal(t, 0, f.gw.stations[f.stationB.ID].DisplayOrder, "earlier writes are not undone")
}

func TestReorderStations_RejectsForeignIDs(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)

	err := f.session.ReorderStations(context.Background(), []uuid.UUID{f.stationB.ID, f.stationA.ID, uuid.New()})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, countCalls(f.gw.callLog(), "ReorderStations"))
}

func TestStationDeletion_RequiresValidTarget(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.session.ExecuteStationDeletion(ctx, f.stationB.ID, f.stationA.ID)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve, "nothing was started")

	require.NoError(t, f.session.BeginStationDeletion(ctx, f.stationB.ID))
	_, err = f.session.ExecuteStationDeletion(ctx, f.stationB.ID, f.stationA.ID)
	require.ErrorAs(t, err, &ve, "not confirmed yet")

	require.NoError(t, f.session.ConfirmStationDeletion(ctx, f.stationB.ID))
	assert.Equal(t, DeletionChooseTransfer, f.session.DeletionState().State)

	_, err = f.session.ExecuteStationDeletion(ctx, f.stationB.ID, uuid.Nil)
	require.ErrorAs(t, err, &ve)
	_, err = f.session.ExecuteStationDeletion(ctx, f.stationB.ID, f.stationB.ID)
	require.ErrorAs(t, err, &ve)
	_, err = f.session.ExecuteStationDeletion(ctx, f.stationB.ID, uuid.New())
	require.ErrorAs(t, err, &ve)

	calls := f.gw.callLog()
	assert.Equal(t, -1, indexOf(calls, "TransferAppointments"))
	assert.Equal(t, -1, indexOf(calls, "DeleteStation"))
	assert.Equal(t, DeletionChooseTransfer, f.session.DeletionState().State)
}

func TestStationDeletion_TransfersBeforeDeleting(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()
	appt := models.Appointment{ID: uuid.New(), ServiceID: f.service.ID, StationID: f.stationB.ID, StartsAt: *f.now}
	f.gw.appointments = append(f.gw.appointments, appt)

	require.NoError(t, f.session.BeginStationDeletion(ctx, f.stationB.ID))
	require.NoError(t, f.session.ConfirmStationDeletion(ctx, f.stationB.ID))
	res, err := f.session.ExecuteStationDeletion(ctx, f.stationB.ID, f.stationA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Transferred)

	calls := f.gw.callLog()
	transfer, del := indexOf(calls, "TransferAppointments"), indexOf(calls, "DeleteStation")
	require.NotEqual(t, -1, transfer)
	require.NotEqual(t, -1, del)
	assert.Less(t, transfer, del)

	assert.Equal(t, f.stationA.ID, f.gw.appointments[0].StationID)
	assert.Equal(t, DeletionIdle, f.session.DeletionState().State)

	v, err := f.session.View()
	require.NoError(t, err)
	assert.NotContains(t, v.Selected, f.stationB.ID)
	for _, st := range f.session.Stations() {
		assert.NotEqual(t, f.stationB.ID, st.ID)
	}

	require.Len(t, f.notifier.calls, 1)
	assert.Equal(t, f.stationA.ID, f.notifier.to[0].ID)
	assert.Equal(t, f.stationA.ID, f.notifier.calls[0][0].StationID)
}

func TestStationDeletion_TransferFailureKeepsStation(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()
	f.gw.setFail("TransferAppointments", errBackend)

	require.NoError(t, f.session.BeginStationDeletion(ctx, f.stationB.ID))
	require.NoError(t, f.session.ConfirmStationDeletion(ctx, f.stationB.ID))
	_, err := f.session.ExecuteStationDeletion(ctx, f.stationB.ID, f.stationA.ID)
	require.Error(t, err)

	assert.Equal(t, -1, indexOf(f.gw.callLog(), "DeleteStation"))
	assert.Len(t, f.session.Stations(), 3)
	assert.Equal(t, DeletionChooseTransfer, f.session.DeletionState().State)

	require.NoError(t, f.session.CancelStationDeletion(ctx))
	assert.Equal(t, DeletionIdle, f.session.DeletionState().State)
}

func TestDuplicateStation_AddsColumnWithCopiedCells(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	st, err := f.session.DuplicateStation(ctx, f.stationA.ID, StationCopyOptions{Name: "Chair A2", CopyRelationships: true})
	require.NoError(t, err)

	v, err := f.session.View()
	require.NoError(t, err)
	assert.Contains(t, v.Selected, st.ID)
	c := cellOf(t, rowOf(t, v, f.service.ID), st.ID)
	assert.True(t, c.Supported)
	assert.Equal(t, 30, *c.StationTime)
	assert.Empty(t, v.DirtyRows)
}

func TestCopyServiceToExisting_ReportsEachTarget(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	good, err := f.session.CreateService(ctx, ServiceInput{Name: "Beard"})
	require.NoError(t, err)
	bad, err := f.session.CreateService(ctx, ServiceInput{Name: "Color"})
	require.NoError(t, err)
	f.gw.failIDs[bad.ID] = errBackend

	results, err := f.session.CopyServiceToExisting(ctx, f.service.ID, []uuid.UUID{good.ID, bad.ID}, ServiceCopyOptions{CopyRelationships: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.ErrorIs(t, results[1].Err, errBackend)

	v, err := f.session.View()
	require.NoError(t, err)
	assert.True(t, cellOf(t, rowOf(t, v, good.ID), f.stationA.ID).Supported)
	assert.False(t, cellOf(t, rowOf(t, v, bad.ID), f.stationA.ID).Supported)
}

func TestSessionNotLoaded(t *testing.T) {
	t.Parallel()
	gw := newFakeGateway()
	gw.setFail("ListServices", errBackend)
	s := NewMatrixSession("user-2", gw, NewMemoryCache(time.Minute), nil, SessionOptions{})

	_, err := s.Mount(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBackend))
	assert.ErrorIs(t, s.SetSupported(context.Background(), uuid.New(), uuid.New(), true), ErrSessionNotLoaded)
	_, err = s.View()
	assert.ErrorIs(t, err, ErrSessionNotLoaded)
}
