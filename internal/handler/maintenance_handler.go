package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	"github.com/hostelhub/residence-api/internal/service"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/response"
)

// MaintenanceHandler exposes maintenance request endpoints.
type MaintenanceHandler struct {
	maintenance *service.MaintenanceService
}

// NewMaintenanceHandler constructs MaintenanceHandler.
func NewMaintenanceHandler(maintenance *service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

// Create godoc
// @Summary Report a maintenance issue
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param payload body dto.CreateMaintenanceRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /maintenance [post]
func (h *MaintenanceHandler) Create(c *gin.Context) {
	var req dto.CreateMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid maintenance payload"))
		return
	}

	request, err := h.maintenance.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List maintenance requests
// @Tags Maintenance
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param category query string false "Category"
// @Param room query string false "Room ID"
// @Param assignedTo query string false "Assignee"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /maintenance [get]
func (h *MaintenanceHandler) List(c *gin.Context) {
	var filter models.MaintenanceFilter
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Status = append(filter.Status, models.MaintenanceStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	filter.Category = models.MaintenanceCategory(strings.ToUpper(c.Query("category")))
	filter.RoomID = c.Query("room")
	filter.AssignedTo = c.Query("assignedTo")
	filter.Page, filter.PageSize = pageParams(c)

	requests, pagination, err := h.maintenance.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get maintenance request detail
// @Tags Maintenance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id} [get]
func (h *MaintenanceHandler) Get(c *gin.Context) {
	request, err := h.maintenance.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Update godoc
// @Summary Edit a pending request
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.UpdateMaintenanceRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id} [put]
func (h *MaintenanceHandler) Update(c *gin.Context) {
	var req dto.UpdateMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	request, err := h.maintenance.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Decide godoc
// @Summary Approve or reject a pending request
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecideMaintenanceRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id}/decision [post]
func (h *MaintenanceHandler) Decide(c *gin.Context) {
	var req dto.DecideMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	request, err := h.maintenance.Decide(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Assign godoc
// @Summary Assign an approved request to a worker
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.AssignMaintenanceRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id}/assign [post]
func (h *MaintenanceHandler) Assign(c *gin.Context) {
	var req dto.AssignMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	request, err := h.maintenance.Assign(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Complete godoc
// @Summary Close an in-progress request
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.CompleteMaintenanceRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id}/complete [post]
func (h *MaintenanceHandler) Complete(c *gin.Context) {
	var req dto.CompleteMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion payload"))
		return
	}

	request, err := h.maintenance.Complete(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Cancel godoc
// @Summary Cancel a request
// @Tags Maintenance
// @Produce json
// @Param id path string true "Request ID"
// @Success 204 {object} response.Envelope
// @Router /maintenance/{id} [delete]
func (h *MaintenanceHandler) Cancel(c *gin.Context) {
	if err := h.maintenance.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CostSummary godoc
// @Summary Maintenance cost summary per category
// @Tags Maintenance
// @Produce json
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Success 200 {object} response.Envelope
// @Router /maintenance/costs [get]
func (h *MaintenanceHandler) CostSummary(c *gin.Context) {
	var from, to time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
		to = t
	}

	summary, err := h.maintenance.CostSummary(c.Request.Context(), from, to, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// CreatePreventive godoc
// @Summary Create a recurring preventive maintenance schedule
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param payload body dto.CreatePreventiveRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /maintenance/preventive [post]
func (h *MaintenanceHandler) CreatePreventive(c *gin.Context) {
	var req dto.CreatePreventiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preventive payload"))
		return
	}

	schedule, err := h.maintenance.CreatePreventive(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// ListPreventive godoc
// @Summary List preventive maintenance schedules
// @Tags Maintenance
// @Produce json
// @Param active query bool false "Active only"
// @Success 200 {object} response.Envelope
// @Router /maintenance/preventive [get]
func (h *MaintenanceHandler) ListPreventive(c *gin.Context) {
	schedules, err := h.maintenance.ListPreventive(c.Request.Context(), c.Query("active") == "true", claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// SetPreventiveActive godoc
// @Summary Enable or disable a preventive schedule
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body map[string]bool true "Active flag"
// @Success 204 {object} response.Envelope
// @Router /maintenance/preventive/{id}/active [put]
func (h *MaintenanceHandler) SetPreventiveActive(c *gin.Context) {
	var payload struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "active flag required"))
		return
	}

	if err := h.maintenance.SetPreventiveActive(c.Request.Context(), c.Param("id"), *payload.Active, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
