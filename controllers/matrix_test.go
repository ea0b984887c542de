package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"stationmatrix-backend/models"
	"stationmatrix-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway serves one salon from memory. Methods the handlers under test
// never reach are left to the embedded nil interface.
type stubGateway struct {
	services.Gateway

	mu        sync.Mutex
	svcs      []models.Service
	stations  []models.Station
	cells     []models.ServiceStation
	upserts   [][]models.ServiceStation
	upsertErr error
	inUse     map[uuid.UUID]bool
}

func (g *stubGateway) ListServices(ctx context.Context) ([]models.Service, error) {
	return append([]models.Service(nil), g.svcs...), nil
}

func (g *stubGateway) ListStations(ctx context.Context, includeInactive bool) ([]models.Station, error) {
	return append([]models.Station(nil), g.stations...), nil
}

func (g *stubGateway) ListMatrixCells(ctx context.Context, serviceIDs, stationIDs []uuid.UUID) ([]models.ServiceStation, error) {
	return append([]models.ServiceStation(nil), g.cells...), nil
}

func (g *stubGateway) UpsertMatrixCells(ctx context.Context, records []models.ServiceStation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.upsertErr != nil {
		return g.upsertErr
	}
	g.upserts = append(g.upserts, records)
	return nil
}

func (g *stubGateway) ServiceHasAppointments(ctx context.Context, id uuid.UUID) (bool, error) {
	return g.inUse[id], nil
}

type matrixFixture struct {
	gw      *stubGateway
	router  *gin.Engine
	service models.Service
	station models.Station
}

func newMatrixFixture(t *testing.T) *matrixFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := models.Service{ID: uuid.New(), Name: "Cut", Price: 25, IsActive: true}
	st := models.Station{ID: uuid.New(), Name: "Chair 1", IsActive: true}
	gw := &stubGateway{
		svcs:     []models.Service{svc},
		stations: []models.Station{st},
		inUse:    map[uuid.UUID]bool{},
	}
	sessions := services.NewSessionManager(
		func(uuid.UUID) services.Gateway { return gw },
		services.NewMemoryCache(time.Minute),
		nil,
		services.SessionOptions{},
	)
	m := &MatrixController{Sessions: sessions}

	userID, salonID := uuid.NewString(), uuid.NewString()
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		if c.GetHeader("X-Anonymous") == "" {
			c.Set("userId", userID)
			c.Set("salonId", salonID)
		}
		c.Next()
	})
	api.GET("/matrix", m.GetMatrix)
	api.POST("/matrix/session", m.Mount)
	api.PUT("/matrix/cells/:serviceId/:stationId", m.UpdateCell)
	api.POST("/matrix/rows/:serviceId/:action", m.RowAction)
	api.DELETE("/services/:id", m.DeleteService)
	api.POST("/stations/:id/delete/:step", m.StationDeletion)

	return &matrixFixture{gw: gw, router: r, service: svc, station: st}
}

func (f *matrixFixture) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *matrixFixture) cellPath() string {
	return "/api/matrix/cells/" + f.service.ID.String() + "/" + f.station.ID.String()
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) services.MatrixView {
	t.Helper()
	var v services.MatrixView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestMount_ReturnsMatrix(t *testing.T) {
	t.Parallel()
	f := newMatrixFixture(t)

	w := f.do(http.MethodPost, "/api/matrix/session", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Restored bool                `json:"restored"`
		Matrix   services.MatrixView `json:"matrix"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Restored)
	require.Len(t, body.Matrix.Rows, 1)
	assert.Equal(t, f.service.ID, body.Matrix.Rows[0].ServiceID)
	assert.Equal(t, []uuid.UUID{f.station.ID}, body.Matrix.Selected)
}

func TestUpdateCell_EnablesAndSetsTime(t *testing.T) {
	t.Parallel()
	f := newMatrixFixture(t)

	w := f.do(http.MethodPut, f.cellPath(), gin.H{"supported": true, "stationTime": "45"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	v := decodeView(t, w)
	require.Len(t, v.Rows, 1)
	cell := v.Rows[0].Cells[0]
	assert.True(t, cell.Supported)
	require.NotNil(t, cell.StationTime)
	assert.Equal(t, 45, *cell.StationTime)
	assert.Equal(t, []uuid.UUID{f.service.ID}, v.DirtyRows)
}

func TestUpdateCell_RejectsBadDuration(t *testing.T) {
	t.Parallel()
	f := newMatrixFixture(t)

	for _, raw := range []string{"", "0", "-5", "ten"} {
		w := f.do(http.MethodPut, f.cellPath(), gin.H{"supported": true, "stationTime": raw})
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}

	v := decodeView(t, f.do(http.MethodGet, "/api/matrix", nil))
	assert.Empty(t, v.DirtyRows, "a rejected edit changes nothing")
}

func TestUpdateCell_UnknownStation(t *testing.T) {
	t.Parallel()
	f := newMatrixFixture(t)

	w := f.do(http.MethodPut, "/api/matrix/cells/"+f.service.ID.String()+"/"+uuid.NewString(), gin.H{"supported": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPut, "/api/matrix/cells/not-a-uuid/"+f.station.ID.String(), gin.H{"supported": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRowSave_PersistsAndCleansRow(t *testing.T) {
	t.Parallel()
	f := newMatrixFixture(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, f.cellPath(), gin.H{"supported": true, "stationTime": "30"}).Code)

	w := f.do(http.MethodPost, "/api/matrix/rows/"+f.service.ID.String()+"/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decodeView(t, w).DirtyRows)

	require.Len(t, f.gw.upserts, 1)
	require.Len(t, f.gw.upserts[0], 1)
	saved := f.gw.upserts[0][0]
	assert.True(t, saved.IsActive)
	assert.Equal(t, 30, saved.BaseTimeMinutes)
}

func TestRowSave_FailureIsBadGatewayAndKeepsEdits(t *testing.T) {
	t.Parallel()
	f := newMatrixFixture(t)
	f.gw.upsertErr = errors.New("connection reset")
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/matrix/rows/"+f.service.ID.String()+"/turn-on-all", nil).Code)

	w := f.do(http.MethodPost, "/api/matrix/rows/"+f.service.ID.String()+"/save", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	v := decodeView(t, f.do(http.MethodGet, "/api/matrix", nil))
	assert.Equal(t, []uuid.UUID{f.service.ID}, v.DirtyRows)
}

func TestRowAction_Unknown(t *testing.T) {
	t.Parallel()
	f := newMatrixFixture(t)
	w := f.do(http.MethodPost, "/api/matrix/rows/"+f.service.ID.String()+"/explode", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteService_InUseConflicts(t *testing.T) {
	t.Parallel()
	f := newMatrixFixture(t)
	f.gw.inUse[f.service.ID] = true

	w := f.do(http.MethodDelete, "/api/services/"+f.service.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStationDeletion_ExecuteBeforeConfirmIsRejected(t *testing.T) {
	t.Parallel()
	f := newMatrixFixture(t)
	base := "/api/stations/" + f.station.ID.String() + "/delete/"

	w := f.do(http.MethodPost, base+"begin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deletion":{"state":"confirmDelete","stationId":"`+f.station.ID.String()+`"}}`, w.Body.String())

	w = f.do(http.MethodPost, base+"execute", gin.H{"targetId": uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, base+"cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"idle"`)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, base+"later", nil).Code)
}

func TestMatrix_RequiresIdentity(t *testing.T) {
	t.Parallel()
	f := newMatrixFixture(t)
	w := f.do(http.MethodGet, "/api/matrix", nil, "X-Anonymous", "1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
