package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/service"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/response"
)

// SupervisorHandler exposes supervisor administration endpoints.
type SupervisorHandler struct {
	supervisors *service.SupervisorService
}

// NewSupervisorHandler constructs SupervisorHandler.
func NewSupervisorHandler(supervisors *service.SupervisorService) *SupervisorHandler {
	return &SupervisorHandler{supervisors: supervisors}
}

// Create godoc
// @Summary Promote a user to supervisor
// @Tags Supervisors
// @Accept json
// @Produce json
// @Param payload body dto.CreateSupervisorRequest true "Supervisor payload"
// @Success 201 {object} response.Envelope
// @Router /supervisors [post]
func (h *SupervisorHandler) Create(c *gin.Context) {
	var req dto.CreateSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid supervisor payload"))
		return
	}

	supervisor, err := h.supervisors.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, supervisor)
}

// List godoc
// @Summary List supervisors in the hostel
// @Tags Supervisors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /supervisors [get]
func (h *SupervisorHandler) List(c *gin.Context) {
	supervisors, err := h.supervisors.List(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, supervisors, nil)
}

// Get godoc
// @Summary Get supervisor detail
// @Tags Supervisors
// @Produce json
// @Param id path string true "Supervisor ID"
// @Success 200 {object} response.Envelope
// @Router /supervisors/{id} [get]
func (h *SupervisorHandler) Get(c *gin.Context) {
	supervisor, err := h.supervisors.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, supervisor, nil)
}

// UpdatePermissions godoc
// @Summary Replace a supervisor's permission set
// @Tags Supervisors
// @Accept json
// @Produce json
// @Param id path string true "Supervisor ID"
// @Param payload body dto.UpdatePermissionsRequest true "Template name or explicit permissions"
// @Success 200 {object} response.Envelope
// @Router /supervisors/{id}/permissions [put]
func (h *SupervisorHandler) UpdatePermissions(c *gin.Context) {
	var req dto.UpdatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid permissions payload"))
		return
	}

	supervisor, err := h.supervisors.UpdatePermissions(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, supervisor, nil)
}

// UpdateFloors godoc
// @Summary Replace a supervisor's floor assignment
// @Tags Supervisors
// @Accept json
// @Produce json
// @Param id path string true "Supervisor ID"
// @Param payload body dto.UpdateFloorsRequest true "Floor list"
// @Success 200 {object} response.Envelope
// @Router /supervisors/{id}/floors [put]
func (h *SupervisorHandler) UpdateFloors(c *gin.Context) {
	var req dto.UpdateFloorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid floors payload"))
		return
	}

	supervisor, err := h.supervisors.UpdateFloors(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, supervisor, nil)
}

// SetActive godoc
// @Summary Activate or deactivate a supervisor
// @Tags Supervisors
// @Accept json
// @Produce json
// @Param id path string true "Supervisor ID"
// @Param payload body map[string]bool true "Active flag"
// @Success 204 {object} response.Envelope
// @Router /supervisors/{id}/active [put]
func (h *SupervisorHandler) SetActive(c *gin.Context) {
	var payload struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "active flag required"))
		return
	}

	if err := h.supervisors.SetActive(c.Request.Context(), c.Param("id"), *payload.Active, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Performance godoc
// @Summary Supervisor activity summary
// @Tags Supervisors
// @Produce json
// @Param id path string true "Supervisor ID"
// @Param days query int false "Window in days"
// @Success 200 {object} response.Envelope
// @Router /supervisors/{id}/performance [get]
func (h *SupervisorHandler) Performance(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

	performance, err := h.supervisors.Performance(c.Request.Context(), c.Param("id"), days, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, performance, nil)
}

// Dashboard godoc
// @Summary Dashboard for the current supervisor
// @Tags Supervisors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /supervisors/me/dashboard [get]
func (h *SupervisorHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.supervisors.Dashboard(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
