package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/service"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/response"
)

// EngagementHandler exposes read receipt and acknowledgment endpoints.
type EngagementHandler struct {
	engagement *service.EngagementService
}

// NewEngagementHandler constructs EngagementHandler.
func NewEngagementHandler(engagement *service.EngagementService) *EngagementHandler {
	return &EngagementHandler{engagement: engagement}
}

// MarkRead godoc
// @Summary Record a read receipt for the current student
// @Tags Engagement
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.MarkReadRequest true "Read telemetry"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Router /announcements/{id}/read [post]
func (h *EngagementHandler) MarkRead(c *gin.Context) {
	var req dto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid read payload"))
		return
	}

	receipt, created, err := h.engagement.MarkRead(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, receipt)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// Acknowledge godoc
// @Summary Record an explicit acknowledgment
// @Tags Engagement
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.AcknowledgeRequest true "Acknowledgment payload"
// @Success 201 {object} response.Envelope
// @Router /announcements/{id}/acknowledge [post]
func (h *EngagementHandler) Acknowledge(c *gin.Context) {
	var req dto.AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid acknowledgment payload"))
		return
	}

	ack, err := h.engagement.Acknowledge(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ack)
}

// Metrics godoc
// @Summary Engagement metrics for an announcement
// @Tags Engagement
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/engagement [get]
func (h *EngagementHandler) Metrics(c *gin.Context) {
	metrics, err := h.engagement.Metrics(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, metrics, nil)
}

// Trend godoc
// @Summary Daily engagement trend for an announcement
// @Tags Engagement
// @Produce json
// @Param id path string true "Announcement ID"
// @Param days query int false "Window in days"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/engagement/trend [get]
func (h *EngagementHandler) Trend(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

	trend, err := h.engagement.Trend(c.Request.Context(), c.Param("id"), days, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trend, nil)
}

// Unacknowledged godoc
// @Summary Students who have not acknowledged yet
// @Tags Engagement
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/engagement/unacknowledged [get]
func (h *EngagementHandler) Unacknowledged(c *gin.Context) {
	students, err := h.engagement.Unacknowledged(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// StudentSummary godoc
// @Summary Engagement summary for the current student
// @Tags Engagement
// @Produce json
// @Param days query int false "Window in days"
// @Success 200 {object} response.Envelope
// @Router /engagement/me [get]
func (h *EngagementHandler) StudentSummary(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

	summary, err := h.engagement.StudentSummary(c.Request.Context(), days, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// HostelAnalytics godoc
// @Summary Hostel-wide engagement analytics
// @Tags Engagement
// @Produce json
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Success 200 {object} response.Envelope
// @Router /engagement/analytics [get]
func (h *EngagementHandler) HostelAnalytics(c *gin.Context) {
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

	analytics, err := h.engagement.HostelAnalytics(c.Request.Context(), from, to, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}
