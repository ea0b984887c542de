package controllers

import (
	"net/http"

	"stationmatrix-backend/matrix"
	"stationmatrix-backend/services"
	"stationmatrix-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MatrixController serves the matrix, service and station endpoints through
// the caller's editing session.
type MatrixController struct {
	Sessions *services.SessionManager
}

// session returns the caller's mounted session, mounting it when needed.
func (m *MatrixController) session(c *gin.Context) (*services.MatrixSession, bool) {
	userID, salonID, ok := utils.Identity(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return nil, false
	}
	s, err := m.Sessions.Session(c.Request.Context(), userID, salonID)
	if err != nil {
		respondWithServiceError(c, err)
		return nil, false
	}
	return s, true
}

func (m *MatrixController) respondWithView(c *gin.Context, s *services.MatrixSession, status int) {
	view, err := s.View()
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(status, view)
}

// Mount opens the caller's session, restoring a fresh cached one if present.
func (m *MatrixController) Mount(c *gin.Context) {
	userID, salonID, ok := utils.Identity(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return
	}
	s, restored, err := m.Sessions.Open(c.Request.Context(), userID, salonID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	view, err := s.View()
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": restored, "matrix": view})
}

// Unmount closes the caller's session. ?discard=true also drops the cached
// slot so the next mount reloads.
func (m *MatrixController) Unmount(c *gin.Context) {
	userID, _, ok := utils.Identity(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return
	}
	if c.Query("discard") == "true" {
		if err := m.Sessions.Discard(c.Request.Context(), userID); err != nil {
			respondWithServiceError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}
	m.Sessions.Close(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

func (m *MatrixController) GetMatrix(c *gin.Context) {
	s, ok := m.session(c)
	if !ok {
		return
	}
	m.respondWithView(c, s, http.StatusOK)
}

// Reload discards unsaved edits and rereads everything.
func (m *MatrixController) Reload(c *gin.Context) {
	s, ok := m.session(c)
	if !ok {
		return
	}
	if err := s.Reload(c.Request.Context()); err != nil {
		respondWithServiceError(c, err)
		return
	}
	m.respondWithView(c, s, http.StatusOK)
}

// CellInput changes any subset of a cell. StationTime is the text typed into
// the cell.
type CellInput struct {
	Supported            *bool   `json:"supported"`
	StationTime          *string `json:"stationTime"`
	RemoteBookingAllowed *bool   `json:"remoteBookingAllowed"`
	ApprovalNeeded       *bool   `json:"approvalNeeded"`
}

func (m *MatrixController) UpdateCell(c *gin.Context) {
	serviceID, ok := paramID(c, "serviceId")
	if !ok {
		return
	}
	stationID, ok := paramID(c, "stationId")
	if !ok {
		return
	}
	var input CellInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	var minutes int
	if input.StationTime != nil {
		n, err := utils.ParseMinutes(*input.StationTime)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "stationTime: "+err.Error())
			return
		}
		minutes = n
	}

	s, ok := m.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	steps := []func() error{}
	if input.Supported != nil {
		steps = append(steps, func() error { return s.SetSupported(ctx, serviceID, stationID, *input.Supported) })
	}
	if input.StationTime != nil {
		steps = append(steps, func() error { return s.SetStationTime(ctx, serviceID, stationID, minutes) })
	}
	if input.RemoteBookingAllowed != nil {
		steps = append(steps, func() error { return s.SetRemoteBooking(ctx, serviceID, stationID, *input.RemoteBookingAllowed) })
	}
	if input.ApprovalNeeded != nil {
		steps = append(steps, func() error { return s.SetApprovalNeeded(ctx, serviceID, stationID, *input.ApprovalNeeded) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			respondWithServiceError(c, err)
			return
		}
	}
	m.respondWithView(c, s, http.StatusOK)
}

type DefaultTimeInput struct {
	DefaultTime string `json:"defaultTime" binding:"required"`
}

func (m *MatrixController) SetDefaultTime(c *gin.Context) {
	serviceID, ok := paramID(c, "serviceId")
	if !ok {
		return
	}
	var input DefaultTimeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	minutes, err := utils.ParseMinutes(input.DefaultTime)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "defaultTime: "+err.Error())
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	if err := s.SetDefaultTime(c.Request.Context(), serviceID, minutes); err != nil {
		respondWithServiceError(c, err)
		return
	}
	m.respondWithView(c, s, http.StatusOK)
}

// RowAction runs one of the row operations named by the :action segment.
func (m *MatrixController) RowAction(c *gin.Context) {
	serviceID, ok := paramID(c, "serviceId")
	if !ok {
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var err error
	switch action := c.Param("action"); action {
	case "apply-default":
		err = s.ApplyDefaultToAll(ctx, serviceID)
	case "save":
		err = s.SaveRow(ctx, serviceID)
	case "revert":
		err = s.RevertRow(ctx, serviceID)
	default:
		err = s.ApplyRowAction(ctx, serviceID, services.RowAction(action))
	}
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	m.respondWithView(c, s, http.StatusOK)
}

func (m *MatrixController) SaveAll(c *gin.Context) {
	s, ok := m.session(c)
	if !ok {
		return
	}
	saved, err := s.SaveAll(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	view, err := s.View()
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"savedRows": saved, "matrix": view})
}

func (m *MatrixController) RevertAll(c *gin.Context) {
	s, ok := m.session(c)
	if !ok {
		return
	}
	if err := s.RevertAll(c.Request.Context()); err != nil {
		respondWithServiceError(c, err)
		return
	}
	m.respondWithView(c, s, http.StatusOK)
}

func (m *MatrixController) SetFilter(c *gin.Context) {
	var input matrix.Criteria
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	if err := s.SetCriteria(c.Request.Context(), input); err != nil {
		respondWithServiceError(c, err)
		return
	}
	m.respondWithView(c, s, http.StatusOK)
}

type SelectionInput struct {
	StationIDs []uuid.UUID `json:"stationIds"`
}

func (m *MatrixController) SetSelection(c *gin.Context) {
	var input SelectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	if err := s.SelectStations(c.Request.Context(), input.StationIDs); err != nil {
		respondWithServiceError(c, err)
		return
	}
	m.respondWithView(c, s, http.StatusOK)
}

// PageInput moves either window. StationDelta scrolls the station window
// relative to where it is.
type PageInput struct {
	ServicePage  *int `json:"servicePage"`
	StationPage  *int `json:"stationPage"`
	StationDelta *int `json:"stationDelta"`
}

func (m *MatrixController) SetPage(c *gin.Context) {
	var input PageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var err error
	if input.ServicePage != nil {
		err = s.SetServicePage(ctx, *input.ServicePage)
	}
	if err == nil && input.StationPage != nil {
		err = s.SetStationPage(ctx, *input.StationPage)
	}
	if err == nil && input.StationDelta != nil {
		err = s.ScrollStations(ctx, *input.StationDelta)
	}
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	m.respondWithView(c, s, http.StatusOK)
}
