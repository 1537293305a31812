package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/service"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/response"
)

// TargetingHandler exposes audience targeting endpoints.
type TargetingHandler struct {
	targeting *service.TargetingService
}

// NewTargetingHandler constructs TargetingHandler.
func NewTargetingHandler(targeting *service.TargetingService) *TargetingHandler {
	return &TargetingHandler{targeting: targeting}
}

// Apply godoc
// @Summary Replace targeting rules on an announcement
// @Tags Targeting
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.ApplyTargetingRequest true "Targeting rules"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/targeting [put]
func (h *TargetingHandler) Apply(c *gin.Context) {
	var req dto.ApplyTargetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid targeting payload"))
		return
	}

	summary, err := h.targeting.Apply(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Preview godoc
// @Summary Preview the audience a rule set would reach
// @Tags Targeting
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.PreviewTargetingRequest true "Candidate rules"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/targeting/preview [post]
func (h *TargetingHandler) Preview(c *gin.Context) {
	var req dto.PreviewTargetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preview payload"))
		return
	}

	preview, err := h.targeting.Preview(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Summary godoc
// @Summary Current targeting summary for an announcement
// @Tags Targeting
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/targeting [get]
func (h *TargetingHandler) Summary(c *gin.Context) {
	summary, err := h.targeting.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Clear godoc
// @Summary Remove all targeting rules from an announcement
// @Tags Targeting
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 204 {object} response.Envelope
// @Router /announcements/{id}/targeting [delete]
func (h *TargetingHandler) Clear(c *gin.Context) {
	if err := h.targeting.Clear(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkApply godoc
// @Summary Apply the same rules to several announcements
// @Tags Targeting
// @Accept json
// @Produce json
// @Param payload body dto.BulkTargetingRequest true "Bulk targeting payload"
// @Success 200 {object} response.Envelope
// @Router /announcements/targeting/bulk [post]
func (h *TargetingHandler) BulkApply(c *gin.Context) {
	var req dto.BulkTargetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk targeting payload"))
		return
	}

	summary, err := h.targeting.BulkApply(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
