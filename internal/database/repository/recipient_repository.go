package repository

import (
	"github.com/outreachlab/telegram-mailer-backend/internal/models"

	"gorm.io/gorm"
)

type RecipientRepository struct {
	db *gorm.DB
}

func NewRecipientRepository(db *gorm.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// CreateBatch inserts a campaign's recipient rows in one statement
func (r *RecipientRepository) CreateBatch(recipients []*models.Recipient) error {
	if len(recipients) == 0 {
		return nil
	}
	return r.db.Create(recipients).Error
}

// GetByCampaign retrieves a campaign's recipients in insertion order
func (r *RecipientRepository) GetByCampaign(campaignID uint) ([]*models.Recipient, error) {
	var recipients []*models.Recipient
	err := r.db.Where("campaign_id = ?", campaignID).Order("id").Find(&recipients).Error
	return recipients, err
}

// GetDuplicatesByCampaign retrieves the recipients flagged as duplicates
func (r *RecipientRepository) GetDuplicatesByCampaign(campaignID uint) ([]*models.Recipient, error) {
	var recipients []*models.Recipient
	err := r.db.Where("campaign_id = ? AND is_duplicate = ?", campaignID, true).
		Order("id").
		Find(&recipients).Error
	return recipients, err
}

// MarkDuplicate flags a recipient with a back-reference to the campaign that
// already reached it
func (r *RecipientRepository) MarkDuplicate(id uint, previousCampaignID uint) error {
	return r.db.Model(&models.Recipient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_duplicate":         true,
			"previous_campaign_id": previousCampaignID,
		}).Error
}
