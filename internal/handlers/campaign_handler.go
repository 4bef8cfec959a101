package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/outreachlab/telegram-mailer-backend/internal/middleware"
	"github.com/outreachlab/telegram-mailer-backend/internal/models"
	"github.com/outreachlab/telegram-mailer-backend/internal/services"
	"github.com/outreachlab/telegram-mailer-backend/internal/services/excel"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	excelService    *excel.Service
}

func NewCampaignHandler(campaignService *services.CampaignService, excelService *excel.Service) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		excelService:    excelService,
	}
}

// CreateCampaign godoc
// @Summary Create campaign
// @Description Create a pending campaign from a template and a recipient list or a group identifier
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateCampaignRequest true "Campaign fields"
// @Success 201 {object} models.CampaignResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req models.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	campaign, err := h.campaignService.CreateCampaign(c.Request.Context(), user.TelegramID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTemplateNotFound),
			errors.Is(err, services.ErrNoRecipientsSource),
			errors.Is(err, services.ErrEmptyRecipientList),
			errors.Is(err, services.ErrTooManyRecipients):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create campaign", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, campaign.ToResponse())
}

// GetCampaigns godoc
// @Summary List campaigns
// @Description List the authenticated operator's campaigns, newest first
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of campaigns" default(50)
// @Success 200 {array} models.CampaignResponse
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	campaigns, err := h.campaignService.GetByOwner(user.TelegramID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list campaigns", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, campaignResponses(campaigns))
}

func campaignResponses(campaigns []*models.Campaign) []models.CampaignResponse {
	responses := make([]models.CampaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		responses = append(responses, *campaign.ToResponse())
	}
	return responses
}

// GetCampaign godoc
// @Summary Get campaign
// @Description Get one campaign with its per-recipient delivery history, addressed by numeric id or by code
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID or code"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var (
		campaign *models.Campaign
		history  []*models.SendingHistory
		err      error
	)
	if id, idErr := parseUintParam(c, "id"); idErr == nil {
		campaign, history, err = h.campaignService.GetByID(user.TelegramID, id)
	} else {
		campaign, history, err = h.campaignService.GetByCode(user.TelegramID, c.Param("id"))
	}
	if err != nil {
		h.respondCampaignError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign": campaign.ToResponse(),
		"history":  history,
	})
}

// LaunchCampaign godoc
// @Summary Launch campaign
// @Description Queue a pending campaign for asynchronous execution
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 202 {object} models.CampaignResponse
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/launch [post]
func (h *CampaignHandler) LaunchCampaign(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign id"})
		return
	}

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	campaign, err := h.campaignService.Launch(user.TelegramID, id)
	if err != nil {
		if errors.Is(err, services.ErrCampaignNotPending) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.respondCampaignError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, campaign.ToResponse())
}

// ResendDuplicates godoc
// @Summary Resend to duplicates
// @Description Always rejected: a recipient receives a given template at most once
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/resend-duplicates [post]
func (h *CampaignHandler) ResendDuplicates(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign id"})
		return
	}

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	if err := h.campaignService.ResendDuplicates(user.TelegramID, id); err != nil {
		if errors.Is(err, services.ErrResendDuplicatesDenied) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.respondCampaignError(c, err)
		return
	}
}

// ExportCampaign godoc
// @Summary Export campaign
// @Description Export a campaign's delivery history to an Excel file
// @Tags campaigns
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/export [get]
func (h *CampaignHandler) ExportCampaign(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign id"})
		return
	}

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	// Ownership check before exporting
	campaign, _, err := h.campaignService.GetByID(user.TelegramID, id)
	if err != nil {
		h.respondCampaignError(c, err)
		return
	}
	if !campaign.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "Campaign has not finished yet, export is available once it reaches a terminal state"})
		return
	}

	result, err := h.excelService.ExportCampaignToExcel(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export campaign", "details": err.Error()})
		return
	}

	c.FileAttachment(result.FilePath, result.Filename)
}

func (h *CampaignHandler) respondCampaignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCampaignNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
	case errors.Is(err, services.ErrCampaignNotOwned):
		c.JSON(http.StatusForbidden, gin.H{"error": "Campaign belongs to another user"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Campaign operation failed", "details": err.Error()})
	}
}
