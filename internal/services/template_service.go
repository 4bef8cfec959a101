package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/outreachlab/telegram-mailer-backend/internal/database/repository"
	"github.com/outreachlab/telegram-mailer-backend/internal/models"
)

const (
	maxTemplateNameLength = 255
	// Telegram caps a single text message at 4096 characters.
	maxTemplateTextLength = 4096
)

var (
	ErrTemplateNameRequired = errors.New("template name is required")
	ErrTemplateNameTooLong  = errors.New("template name exceeds 255 characters")
	ErrTemplateTextRequired = errors.New("template text is required")
	ErrTemplateTextTooLong  = errors.New("template text exceeds 4096 characters")
	ErrInvalidMediaType     = errors.New("unsupported media type")
)

var validMediaTypes = map[string]bool{
	models.MediaTypePhoto:     true,
	models.MediaTypeVideo:     true,
	models.MediaTypeDocument:  true,
	models.MediaTypeAudio:     true,
	models.MediaTypeVoice:     true,
	models.MediaTypeVideoNote: true,
	models.MediaTypeAnimation: true,
}

type TemplateService struct {
	templates *repository.TemplateRepository
}

func NewTemplateService(templates *repository.TemplateRepository) *TemplateService {
	return &TemplateService{templates: templates}
}

func (s *TemplateService) Create(createdBy int64, req *models.CreateTemplateRequest) (*models.Template, error) {
	if err := validateTemplateFields(req.Name, req.Text, req.MediaType); err != nil {
		return nil, err
	}
	template := &models.Template{
		Name:        strings.TrimSpace(req.Name),
		Text:        req.Text,
		CreatedBy:   createdBy,
		IsActive:    true,
		MediaType:   req.MediaType,
		MediaFileID: req.MediaFileID,
	}
	if err := s.templates.Create(template); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return template, nil
}

func (s *TemplateService) GetAllActive() ([]*models.Template, error) {
	return s.templates.GetAllActive()
}

func (s *TemplateService) GetByID(id uint) (*models.Template, error) {
	template, err := s.templates.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return template, nil
}

func (s *TemplateService) Update(id uint, req *models.UpdateTemplateRequest) (*models.Template, error) {
	template, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !template.IsActive {
		return nil, ErrTemplateNotFound
	}

	if req.Name != nil {
		template.Name = strings.TrimSpace(*req.Name)
	}
	if req.Text != nil {
		template.Text = *req.Text
	}
	if req.MediaType != nil {
		template.MediaType = *req.MediaType
	}
	if req.MediaFileID != nil {
		template.MediaFileID = *req.MediaFileID
	}
	if err := validateTemplateFields(template.Name, template.Text, template.MediaType); err != nil {
		return nil, err
	}
	if err := s.templates.Update(template); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return template, nil
}

// Delete deactivates the template. History rows keep referencing it, so the
// row itself is never removed.
func (s *TemplateService) Delete(id uint) error {
	if err := s.templates.SoftDelete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTemplateNotFound
		}
		return err
	}
	return nil
}

func validateTemplateFields(name, text, mediaType string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrTemplateNameRequired
	}
	if len(name) > maxTemplateNameLength {
		return ErrTemplateNameTooLong
	}
	if strings.TrimSpace(text) == "" {
		return ErrTemplateTextRequired
	}
	if len([]rune(text)) > maxTemplateTextLength {
		return ErrTemplateTextTooLong
	}
	if mediaType != "" && !validMediaTypes[mediaType] {
		return ErrInvalidMediaType
	}
	return nil
}
