package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/outreachlab/telegram-mailer-backend/internal/middleware"
	"github.com/outreachlab/telegram-mailer-backend/internal/models"
	"github.com/outreachlab/telegram-mailer-backend/internal/services"
)

type TemplateHandler struct {
	templateService *services.TemplateService
}

func NewTemplateHandler(templateService *services.TemplateService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
	}
}

// CreateTemplate godoc
// @Summary Create template
// @Description Create a new message template with optional media attachment
// @Tags templates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateTemplateRequest true "Template fields"
// @Success 201 {object} models.Template
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/templates [post]
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req models.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	template, err := h.templateService.Create(user.TelegramID, &req)
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create template", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, template)
}

// GetTemplates godoc
// @Summary List templates
// @Description List all active templates
// @Tags templates
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Template
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/templates [get]
func (h *TemplateHandler) GetTemplates(c *gin.Context) {
	templates, err := h.templateService.GetAllActive()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list templates", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, templates)
}

// GetTemplate godoc
// @Summary Get template
// @Description Get one template by id
// @Tags templates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Template ID"
// @Success 200 {object} models.Template
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/templates/{id} [get]
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template id"})
		return
	}

	template, err := h.templateService.GetByID(id)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get template", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, template)
}

// UpdateTemplate godoc
// @Summary Update template
// @Description Update an active template's fields
// @Tags templates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Template ID"
// @Param request body models.UpdateTemplateRequest true "Fields to update"
// @Success 200 {object} models.Template
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/templates/{id} [put]
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template id"})
		return
	}

	var req models.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	template, err := h.templateService.Update(id, &req)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update template", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, template)
}

// DeleteTemplate godoc
// @Summary Delete template
// @Description Deactivate a template. Historical campaigns keep their reference.
// @Tags templates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Template ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/templates/{id} [delete]
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template id"})
		return
	}

	if err := h.templateService.Delete(id); err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete template", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deactivated"})
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, services.ErrTemplateNameRequired),
		errors.Is(err, services.ErrTemplateNameTooLong),
		errors.Is(err, services.ErrTemplateTextRequired),
		errors.Is(err, services.ErrTemplateTextTooLong),
		errors.Is(err, services.ErrInvalidMediaType):
		return true
	}
	return false
}
