package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/service"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/response"
)

// DeliveryHandler exposes multi-channel delivery control endpoints.
type DeliveryHandler struct {
	delivery *service.DeliveryService
}

// NewDeliveryHandler constructs DeliveryHandler.
func NewDeliveryHandler(delivery *service.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{delivery: delivery}
}

// Start godoc
// @Summary Start delivery for a published announcement
// @Tags Delivery
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.StartDeliveryRequest true "Delivery options"
// @Success 201 {object} response.Envelope
// @Router /announcements/{id}/delivery [post]
func (h *DeliveryHandler) Start(c *gin.Context) {
	var req dto.StartDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delivery payload"))
		return
	}

	status, err := h.delivery.StartManual(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, status)
}

// Pause godoc
// @Summary Pause an in-flight delivery
// @Tags Delivery
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.PauseDeliveryRequest true "Pause payload"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/delivery/pause [post]
func (h *DeliveryHandler) Pause(c *gin.Context) {
	var req dto.PauseDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "pause reason required"))
		return
	}

	status, err := h.delivery.Pause(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Resume godoc
// @Summary Resume a paused delivery
// @Tags Delivery
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.ResumeDeliveryRequest true "Resume payload"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/delivery/resume [post]
func (h *DeliveryHandler) Resume(c *gin.Context) {
	var req dto.ResumeDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resume payload"))
		return
	}

	status, err := h.delivery.Resume(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Cancel godoc
// @Summary Cancel a delivery
// @Tags Delivery
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 204 {object} response.Envelope
// @Router /announcements/{id}/delivery [delete]
func (h *DeliveryHandler) Cancel(c *gin.Context) {
	if err := h.delivery.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Report godoc
// @Summary Delivery progress and failure report
// @Tags Delivery
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/delivery [get]
func (h *DeliveryHandler) Report(c *gin.Context) {
	report, err := h.delivery.Report(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// RetryFailed godoc
// @Summary Retry failed sends for an announcement
// @Tags Delivery
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.RetryFailedRequest true "Retry narrowing"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/delivery/retry [post]
func (h *DeliveryHandler) RetryFailed(c *gin.Context) {
	var req dto.RetryFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid retry payload"))
		return
	}

	summary, err := h.delivery.RetryFailed(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
