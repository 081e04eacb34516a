package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	appschedule "github.com/civicplan/planschedule/internal/application/schedule"
	domain "github.com/civicplan/planschedule/internal/domain/schedule"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
	"github.com/civicplan/planschedule/internal/interfaces/http/middleware"
	"github.com/civicplan/planschedule/pkg/errors"
)

// ScheduleHandler serves the project schedule endpoints.
type ScheduleHandler struct {
	service appschedule.Service
	logger  logging.Logger
}

func NewScheduleHandler(service appschedule.Service, logger logging.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, logger: logger.Named("schedule-handler")}
}

// GetSchedule handles GET /projects/:id/schedule.
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	projectID := c.Param("id")
	privilege := middleware.ContextPrivilege(c)

	views, err := h.service.ProjectSchedule(c.Request.Context(), projectID, privilege)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, gin.H{
		"project_id": projectID,
		"deadlines":  views,
	})
}

// RecalculateRequest selects between an initial generation and an update run.
type RecalculateRequest struct {
	Initial bool `json:"initial"`
}

// Recalculate handles POST /projects/:id/recalculate.
func (h *ScheduleHandler) Recalculate(c *gin.Context) {
	projectID := c.Param("id")

	req := RecalculateRequest{}
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	}

	result, err := h.service.RecalculateProject(c.Request.Context(), projectID, req.Initial)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, result)
}

// RecalculateAll handles POST /projects/recalculate.
func (h *ScheduleHandler) RecalculateAll(c *gin.Context) {
	results, err := h.service.RecalculateAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, gin.H{
		"projects": len(results),
		"results":  results,
	})
}

// PreviewRequest carries hypothetical attribute values for a dry scheduling run.
type PreviewRequest struct {
	Attributes      map[string]interface{} `json:"attributes"`
	ConfirmedFields []string               `json:"confirmed_fields,omitempty"`
}

// Preview handles POST /projects/:id/schedule/preview.
func (h *ScheduleHandler) Preview(c *gin.Context) {
	projectID := c.Param("id")

	var req PreviewRequest
	if !bindJSON(c, &req) {
		return
	}

	dates, err := h.service.PreviewSchedule(c.Request.Context(), projectID, req.Attributes, req.ConfirmedFields)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, gin.H{
		"project_id": projectID,
		"dates":      dates,
	})
}

// ValidateRequest carries a candidate date for one deadline.
type ValidateRequest struct {
	Date string `json:"date" binding:"required"`
}

// Validate handles POST /projects/:id/deadlines/:deadline/validate.
func (h *ScheduleHandler) Validate(c *gin.Context) {
	projectID := c.Param("id")
	deadlineID := c.Param("deadline")

	var req ValidateRequest
	if !bindJSON(c, &req) {
		return
	}
	date, err := time.Parse(domain.DateFormat, req.Date)
	if err != nil {
		respondError(c, errors.InvalidParam("date must be formatted as YYYY-MM-DD"))
		return
	}

	result, err := h.service.ValidateUserEdit(c.Request.Context(), projectID, deadlineID, date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, result)
}

// SetDateRequest carries the new date for one deadline.  A null date clears
// the stored value.
type SetDateRequest struct {
	Date *string `json:"date"`
}

// SetDate handles PUT /projects/:id/deadlines/:deadline.
func (h *ScheduleHandler) SetDate(c *gin.Context) {
	projectID := c.Param("id")
	deadlineID := c.Param("deadline")

	var req SetDateRequest
	if !bindJSON(c, &req) {
		return
	}
	var date *time.Time
	if req.Date != nil {
		parsed, err := time.Parse(domain.DateFormat, *req.Date)
		if err != nil {
			respondError(c, errors.InvalidParam("date must be formatted as YYYY-MM-DD"))
			return
		}
		date = &parsed
	}

	actor := middleware.ContextUserID(c)
	privilege := middleware.ContextPrivilege(c)

	view, err := h.service.SetDeadlineDate(c.Request.Context(), projectID, deadlineID, date, actor, privilege)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, view)
}

// BranchTraceView is the serialized form of one branch evaluation step.
type BranchTraceView struct {
	Index       int     `json:"index"`
	Description string  `json:"description"`
	Skipped     bool    `json:"skipped"`
	Satisfied   bool    `json:"satisfied"`
	Date        *string `json:"date"`
}

// Explain handles GET /projects/:id/deadlines/:deadline/explain.
func (h *ScheduleHandler) Explain(c *gin.Context) {
	projectID := c.Param("id")
	deadlineID := c.Param("deadline")

	traces, err := h.service.ExplainDeadline(c.Request.Context(), projectID, deadlineID)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]BranchTraceView, 0, len(traces))
	for _, t := range traces {
		view := BranchTraceView{
			Index:       t.Index,
			Description: t.Description,
			Skipped:     t.Skipped,
			Satisfied:   t.Satisfied,
		}
		if t.Date != nil {
			s := t.Date.Format(domain.DateFormat)
			view.Date = &s
		}
		views = append(views, view)
	}
	c.JSON(200, gin.H{
		"project_id":  projectID,
		"deadline_id": deadlineID,
		"branches":    views,
	})
}
