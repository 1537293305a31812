package handler

import (
	"fmt"
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

// AnnouncementHandler exposes announcement lifecycle endpoints.
type AnnouncementHandler struct {
	announcements *service.AnnouncementService
	exports       *service.ExportService
}

// NewAnnouncementHandler constructs AnnouncementHandler. The export service
// is optional; without it exports are served inline only.
func NewAnnouncementHandler(announcements *service.AnnouncementService, exports *service.ExportService) *AnnouncementHandler {
	return &AnnouncementHandler{announcements: announcements, exports: exports}
}

// Create godoc
// @Summary Create announcement draft
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body dto.CreateAnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req dto.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}

	announcement, err := h.announcements.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, announcement)
}

// List godoc
// @Summary List announcements
// @Tags Announcements
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param category query string false "Category"
// @Param priority query string false "Priority"
// @Param search query string false "Full text search"
// @Param pinned query bool false "Pinned only"
// @Param urgent query bool false "Urgent only"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	var query dto.AnnouncementQuery
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			query.Status = append(query.Status, models.AnnouncementStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	query.Category = models.AnnouncementCategory(strings.ToUpper(c.Query("category")))
	query.Priority = models.AnnouncementPriority(strings.ToUpper(c.Query("priority")))
	query.AuthorID = c.Query("author")
	query.Search = strings.TrimSpace(c.Query("search"))
	query.Pinned = boolQuery(c, "pinned")
	query.Urgent = boolQuery(c, "urgent")
	query.Page, query.PageSize = pageParams(c)

	announcements, pagination, err := h.announcements.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, pagination)
}

// Get godoc
// @Summary Get announcement detail
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	announcement, err := h.announcements.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Update godoc
// @Summary Update announcement draft
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.UpdateAnnouncementRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	var req dto.UpdateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	announcement, err := h.announcements.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Publish godoc
// @Summary Publish announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/publish [post]
func (h *AnnouncementHandler) Publish(c *gin.Context) {
	announcement, err := h.announcements.Publish(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Unpublish godoc
// @Summary Pull a published announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.UnpublishRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/unpublish [post]
func (h *AnnouncementHandler) Unpublish(c *gin.Context) {
	var req dto.UnpublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unpublish reason required"))
		return
	}

	announcement, err := h.announcements.Unpublish(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Archive godoc
// @Summary Archive announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 204 {object} response.Envelope
// @Router /announcements/{id}/archive [post]
func (h *AnnouncementHandler) Archive(c *gin.Context) {
	if err := h.announcements.Archive(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unarchive godoc
// @Summary Restore archived announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 204 {object} response.Envelope
// @Router /announcements/{id}/unarchive [post]
func (h *AnnouncementHandler) Unarchive(c *gin.Context) {
	if err := h.announcements.Unarchive(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkDelete godoc
// @Summary Delete drafts or archived announcements in bulk
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body dto.BulkDeleteRequest true "IDs to delete"
// @Success 200 {object} response.Envelope
// @Router /announcements/bulk-delete [post]
func (h *AnnouncementHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk delete payload"))
		return
	}

	summary, err := h.announcements.BulkDelete(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Stats godoc
// @Summary Announcement statistics for the hostel
// @Tags Announcements
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /announcements/stats [get]
func (h *AnnouncementHandler) Stats(c *gin.Context) {
	stats, err := h.announcements.Stats(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export announcements as CSV or PDF
// @Tags Announcements
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "csv or pdf"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Success 200 {file} binary
// @Router /announcements/export [get]
func (h *AnnouncementHandler) Export(c *gin.Context) {
	query := dto.ExportQuery{Format: strings.ToLower(c.DefaultQuery("format", "csv"))}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		query.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
		query.To = &t
	}

	payload, contentType, err := h.announcements.Export(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.exports != nil {
		if token, _, err := h.exports.Store("announcements", query.Format, payload); err == nil {
			c.Header("X-Export-Token", token)
		}
	}

	filename := fmt.Sprintf("announcements-%s.%s", time.Now().Format("2006-01-02"), query.Format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
