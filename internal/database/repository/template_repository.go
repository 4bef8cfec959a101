package repository

import (
	"github.com/outreachlab/telegram-mailer-backend/internal/models"

	"gorm.io/gorm"
)

type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create creates a new template
func (r *TemplateRepository) Create(template *models.Template) error {
	return r.db.Create(template).Error
}

// GetByID retrieves a template by ID, soft-deleted ones included so that
// historical campaigns keep resolving their reference
func (r *TemplateRepository) GetByID(id uint) (*models.Template, error) {
	var template models.Template
	if err := r.db.First(&template, id).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

// GetAllActive retrieves all templates available for selection
func (r *TemplateRepository) GetAllActive() ([]*models.Template, error) {
	var templates []*models.Template
	err := r.db.Where("is_active = ?", true).Order("created_at DESC").Find(&templates).Error
	return templates, err
}

// Update updates a template
func (r *TemplateRepository) Update(template *models.Template) error {
	return r.db.Save(template).Error
}

// SoftDelete hides a template from selection without breaking references
func (r *TemplateRepository) SoftDelete(id uint) error {
	result := r.db.Model(&models.Template{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
