package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	"github.com/hostelhub/residence-api/internal/service"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/response"
)

// ApprovalHandler exposes the announcement approval workflow.
type ApprovalHandler struct {
	approvals *service.ApprovalService
}

// NewApprovalHandler constructs ApprovalHandler.
func NewApprovalHandler(approvals *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

// Submit godoc
// @Summary Submit an announcement for approval
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.SubmitApprovalRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /announcements/{id}/approval [post]
func (h *ApprovalHandler) Submit(c *gin.Context) {
	var req dto.SubmitApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}

	request, err := h.approvals.Submit(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Decide godoc
// @Summary Approve or reject a pending request
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Approval request ID"
// @Param payload body dto.DecideApprovalRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /approvals/{id}/decision [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	var req dto.DecideApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	request, err := h.approvals.Decide(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Withdraw godoc
// @Summary Withdraw a pending approval request
// @Tags Approvals
// @Produce json
// @Param id path string true "Approval request ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/{id}/withdraw [post]
func (h *ApprovalHandler) Withdraw(c *gin.Context) {
	request, err := h.approvals.Withdraw(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// BulkDecide godoc
// @Summary Decide several pending requests at once
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.BulkDecideRequest true "Bulk decision payload"
// @Success 200 {object} response.Envelope
// @Router /approvals/bulk-decision [post]
func (h *ApprovalHandler) BulkDecide(c *gin.Context) {
	var req dto.BulkDecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk decision payload"))
		return
	}

	summary, err := h.approvals.BulkDecide(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Queue godoc
// @Summary List approval requests for the hostel
// @Tags Approvals
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param requestedBy query string false "Filter by requester"
// @Param urgent query bool false "Urgent only"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /approvals [get]
func (h *ApprovalHandler) Queue(c *gin.Context) {
	var query dto.ApprovalQuery
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			query.Status = append(query.Status, models.ApprovalStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	query.RequestedBy = c.Query("requestedBy")
	query.UrgentOnly = c.Query("urgent") == "true"
	query.Page, query.PageSize = pageParams(c)

	requests, pagination, err := h.approvals.Queue(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// History godoc
// @Summary Approval history for an announcement
// @Tags Approvals
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/approval/history [get]
func (h *ApprovalHandler) History(c *gin.Context) {
	history, err := h.approvals.History(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
