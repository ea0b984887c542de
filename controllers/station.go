package controllers

import (
	"net/http"

	"stationmatrix-backend/services"
	"stationmatrix-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CreateStationInput struct {
	Name     string `json:"name" binding:"required"`
	IsActive *bool  `json:"isActive"`
}

// GetStations lists every station, inactive ones included, in display order.
func (m *MatrixController) GetStations(c *gin.Context) {
	s, ok := m.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Stations())
}

func (m *MatrixController) CreateStation(c *gin.Context) {
	var input CreateStationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	station, err := s.CreateStation(c.Request.Context(), input.Name, isActive)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, station)
}

func (m *MatrixController) UpdateStation(c *gin.Context) {
	stationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.StationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	station, err := s.UpdateStation(c.Request.Context(), stationID, input)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, station)
}

type StationOrderInput struct {
	Order []uuid.UUID `json:"order" binding:"required"`
}

// ReorderStations takes the selected stations in their new order.
func (m *MatrixController) ReorderStations(c *gin.Context) {
	var input StationOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	if err := s.ReorderStations(c.Request.Context(), input.Order); err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Stations())
}

// DuplicateStationInput copies into a new station, or into existing ones
// when TargetIDs is set.
type DuplicateStationInput struct {
	services.StationCopyOptions
	TargetIDs []uuid.UUID `json:"targetIds"`
}

func (m *MatrixController) DuplicateStation(c *gin.Context) {
	sourceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input DuplicateStationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if len(input.TargetIDs) > 0 {
		results, err := s.CopyStationToExisting(ctx, sourceID, input.TargetIDs, input.StationCopyOptions)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
		return
	}

	created, err := s.DuplicateStation(ctx, sourceID, input.StationCopyOptions)
	if err != nil {
		if created != nil {
			c.JSON(http.StatusCreated, gin.H{"station": created, "error": err.Error()})
			return
		}
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"station": created})
}

func (m *MatrixController) GetWorkingHours(c *gin.Context) {
	stationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	hours, err := s.StationWorkingHours(c.Request.Context(), stationID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, hours)
}

type WorkingHoursInput struct {
	Hours []services.WorkingHourInput `json:"hours"`
}

func (m *MatrixController) UpdateWorkingHours(c *gin.Context) {
	stationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input WorkingHoursInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	hours, err := s.SetStationWorkingHours(c.Request.Context(), stationID, input.Hours)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, hours)
}

type TransferInput struct {
	TargetID uuid.UUID `json:"targetId"`
}

// StationDeletion drives the delete flow through the :step segment:
// begin, confirm, execute (with a transfer target) or cancel.
func (m *MatrixController) StationDeletion(c *gin.Context) {
	stationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var err error
	switch c.Param("step") {
	case "begin":
		err = s.BeginStationDeletion(ctx, stationID)
	case "confirm":
		err = s.ConfirmStationDeletion(ctx, stationID)
	case "cancel":
		err = s.CancelStationDeletion(ctx)
	case "execute":
		var input TransferInput
		if bindErr := c.ShouldBindJSON(&input); bindErr != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+bindErr.Error())
			return
		}
		result, execErr := s.ExecuteStationDeletion(ctx, stationID, input.TargetID)
		if execErr != nil {
			respondWithServiceError(c, execErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": result, "deletion": s.DeletionState()})
		return
	default:
		utils.RespondWithError(c, http.StatusNotFound, "Unknown deletion step")
		return
	}
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletion": s.DeletionState()})
}
