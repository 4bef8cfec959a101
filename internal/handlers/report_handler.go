package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"
	"github.com/outreachlab/telegram-mailer-backend/internal/services"
)

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// GetSummaryReport godoc
// @Summary Daily summary report
// @Description Render the summary digest for one calendar day
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/reports/summary [get]
func (h *ReportHandler) GetSummaryReport(c *gin.Context) {
	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	text, err := h.reportService.GenerateSummaryReport(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate report", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":   date.Format("2006-01-02"),
		"report": text,
	})
}

// SendSummaryReport godoc
// @Summary Send summary digest
// @Description Deliver today's summary digest to every active receiver now
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/reports/summary/send [post]
func (h *ReportHandler) SendSummaryReport(c *gin.Context) {
	if err := h.reportService.SendSummaryReports(c.Request.Context(), time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send digest", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Digest delivered"})
}

// CreateReceiverList godoc
// @Summary Create receiver list
// @Description Create a named list of digest receivers
// @Tags reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateReceiverListRequest true "List fields"
// @Success 201 {object} models.ReportReceiverList
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/reports/receivers [post]
func (h *ReportHandler) CreateReceiverList(c *gin.Context) {
	var req models.CreateReceiverListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	list, err := h.reportService.CreateReceiverList(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, list)
}

// GetReceiverLists godoc
// @Summary List receiver lists
// @Description List all active digest receiver lists
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ReportReceiverList
// @Router /api/v1/reports/receivers [get]
func (h *ReportHandler) GetReceiverLists(c *gin.Context) {
	lists, err := h.reportService.GetReceiverLists()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list receivers", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lists)
}

// GetReceiverList godoc
// @Summary Get receiver list
// @Description Get one receiver list with its active receivers
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param id path int true "List ID"
// @Success 200 {object} models.ReportReceiverList
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/reports/receivers/{id} [get]
func (h *ReportHandler) GetReceiverList(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid list id"})
		return
	}

	list, err := h.reportService.GetReceiverList(id)
	if err != nil {
		if errors.Is(err, services.ErrReceiverListNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Receiver list not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get receiver list", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

// AddReceivers godoc
// @Summary Add receivers
// @Description Add identifiers to a receiver list, skipping duplicates
// @Tags reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "List ID"
// @Param request body models.AddReceiversRequest true "Identifiers to add"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/reports/receivers/{id} [post]
func (h *ReportHandler) AddReceivers(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid list id"})
		return
	}

	var req models.AddReceiversRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	added, err := h.reportService.AddReceivers(id, &req)
	if err != nil {
		if errors.Is(err, services.ErrReceiverListNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Receiver list not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add receivers", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// DeleteReceiverList godoc
// @Summary Delete receiver list
// @Description Deactivate a receiver list
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param id path int true "List ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/reports/receivers/{id} [delete]
func (h *ReportHandler) DeleteReceiverList(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid list id"})
		return
	}

	if err := h.reportService.DeleteReceiverList(id); err != nil {
		if errors.Is(err, services.ErrReceiverListNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Receiver list not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete receiver list", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Receiver list deactivated"})
}
