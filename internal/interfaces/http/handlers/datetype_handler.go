package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	appschedule "github.com/civicplan/planschedule/internal/application/schedule"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
	"github.com/civicplan/planschedule/pkg/errors"
)

// DateTypeHandler serves calendar date pool lookups.
type DateTypeHandler struct {
	service appschedule.Service
	logger  logging.Logger
}

func NewDateTypeHandler(service appschedule.Service, logger logging.Logger) *DateTypeHandler {
	return &DateTypeHandler{service: service, logger: logger.Named("datetype-handler")}
}

// ListDates handles GET /datetypes/:id/dates?year=YYYY.
func (h *DateTypeHandler) ListDates(c *gin.Context) {
	identifier := c.Param("id")

	yearParam := c.Query("year")
	if yearParam == "" {
		respondError(c, errors.InvalidParam("year query parameter is required"))
		return
	}
	year, err := strconv.Atoi(yearParam)
	if err != nil || year < 1 {
		respondError(c, errors.InvalidParam("year must be a positive integer"))
		return
	}

	dates, err := h.service.DateTypeDates(c.Request.Context(), identifier, year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, gin.H{
		"identifier": identifier,
		"year":       year,
		"dates":      dates,
	})
}
