package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/repository"
)

const defaultListLimit = 50

type Handler struct {
	repo repository.VehicleRepository
}

func NewHandler(repo repository.VehicleRepository) *Handler {
	return &Handler{repo: repo}
}

var validStatuses = map[models.VehicleStatus]bool{
	models.StatusNew:           true,
	models.StatusToContact:     true,
	models.StatusContacted:     true,
	models.StatusToVisit:       true,
	models.StatusVisited:       true,
	models.StatusNotInterested: true,
	models.StatusDeleted:       true,
}

func (h *Handler) ListVehicles(c *gin.Context) {
	filters := repository.VehicleFilters{Limit: defaultListLimit}

	if status := c.Query("status"); status != "" {
		s := models.VehicleStatus(status)
		if !validStatuses[s] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + status})
			return
		}
		filters.Status = &s
	}
	if source := c.Query("source"); source != "" {
		s := models.Source(source)
		filters.Source = &s
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + limitStr})
			return
		}
		filters.Limit = limit
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset: " + offsetStr})
			return
		}
		filters.Offset = offset
	}

	vehicles, err := h.repo.ListVehicles(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles, "count": len(vehicles)})
}

func (h *Handler) GetVehicle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle id"})
		return
	}

	vehicle, err := h.repo.FindVehicleByID(c.Request.Context(), id)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func (h *Handler) UpdateVehicle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle id"})
		return
	}

	var update models.VehicleUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if update.Status == nil && update.PersonalNotes == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	if update.Status != nil && !validStatuses[*update.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + string(*update.Status)})
		return
	}

	if err := h.repo.UpdateVehicle(c.Request.Context(), id, update); err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	vehicle, err := h.repo.FindVehicleByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, vehicle)
}
