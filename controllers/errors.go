package controllers

import (
	"errors"
	"log"
	"net/http"

	"stationmatrix-backend/services"
	"stationmatrix-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// respondWithServiceError maps a services error to its HTTP status.
func respondWithServiceError(c *gin.Context, err error) {
	var ve *services.ValidationError
	var pe *services.PersistenceError
	switch {
	case errors.As(err, &ve):
		utils.RespondWithError(c, http.StatusBadRequest, ve.Error())
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondWithError(c, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrServiceInUse):
		utils.RespondWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrSessionNotLoaded):
		utils.RespondWithError(c, http.StatusConflict, "Matrix session is not mounted")
	case errors.As(err, &pe):
		log.Printf("[MATRIX] %s %s: %v", c.Request.Method, c.FullPath(), err)
		utils.RespondWithError(c, http.StatusBadGateway, pe.Error())
	default:
		log.Printf("[MATRIX] %s %s: %v", c.Request.Method, c.FullPath(), err)
		utils.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// paramID parses a uuid path parameter, answering 400 when it is malformed.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}
