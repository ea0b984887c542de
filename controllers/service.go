package controllers

import (
	"net/http"

	"stationmatrix-backend/services"
	"stationmatrix-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetServices lists the salon's services as the session sees them.
func (m *MatrixController) GetServices(c *gin.Context) {
	s, ok := m.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Services())
}

func (m *MatrixController) GetService(c *gin.Context) {
	serviceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	for _, svc := range s.Services() {
		if svc.ID == serviceID {
			c.JSON(http.StatusOK, svc)
			return
		}
	}
	utils.RespondWithError(c, http.StatusNotFound, "Service not found")
}

func (m *MatrixController) CreateService(c *gin.Context) {
	var input services.ServiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	service, err := s.CreateService(c.Request.Context(), input)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service)
}

func (m *MatrixController) UpdateService(c *gin.Context) {
	serviceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.ServiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	service, err := s.UpdateService(c.Request.Context(), serviceID, input)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service)
}

// DeleteService answers 409 when the service has appointment history.
func (m *MatrixController) DeleteService(c *gin.Context) {
	serviceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	s, ok := m.session(c)
	if !ok {
		return
	}
	if err := s.DeleteService(c.Request.Context(), serviceID); err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Service deleted successfully"})
}

// DuplicateServiceInput copies into a new service, or into existing ones
// when TargetIDs is set. A new service that was created before a later step
// failed is still returned, next to the error.
type DuplicateServiceInput struct {
	services.ServiceCopyOptions
	TargetIDs []uuid.UUID `json:"targetIds"`
}

func (m *MatrixController) DuplicateService(c *gin.Context) {
	sourceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input DuplicateServiceInput
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
		results, err := s.CopyServiceToExisting(ctx, sourceID, input.TargetIDs, input.ServiceCopyOptions)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
		return
	}

	created, err := s.DuplicateService(ctx, sourceID, input.ServiceCopyOptions)
	if err != nil {
		if created != nil {
			c.JSON(http.StatusCreated, gin.H{"service": created, "error": err.Error()})
			return
		}
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"service": created})
}
