package repository

import (
	"time"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"

	"gorm.io/gorm"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign
func (r *CampaignRepository) Create(campaign *models.Campaign) error {
	return r.db.Create(campaign).Error
}

// GetByID retrieves a campaign by ID
func (r *CampaignRepository) GetByID(id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.First(&campaign, id).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetByCode retrieves a campaign by its human-readable code
func (r *CampaignRepository) GetByCode(code string) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.Where("code = ?", code).First(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetByOwner retrieves the owner's most recent campaigns
func (r *CampaignRepository) GetByOwner(ownerID int64, limit int) ([]*models.Campaign, error) {
	var campaigns []*models.Campaign
	err := r.db.Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, err
}

// MarkProcessing transitions pending -> processing and stamps started_at.
// The status guard makes the transition one-directional.
func (r *CampaignRepository) MarkProcessing(id uint, startedAt time.Time) error {
	return r.db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, models.CampaignStatusPending).
		Updates(map[string]interface{}{
			"status":     models.CampaignStatusProcessing,
			"started_at": startedAt,
		}).Error
}

// MarkTerminal transitions to completed or failed and persists the final
// counters as a single update
func (r *CampaignRepository) MarkTerminal(id uint, status string, completedAt time.Time, total, sent, failed, duplicates int) error {
	return r.db.Model(&models.Campaign{}).
		Where("id = ? AND status NOT IN ?", id, []string{models.CampaignStatusCompleted, models.CampaignStatusFailed}).
		Updates(map[string]interface{}{
			"status":            status,
			"completed_at":      completedAt,
			"total_recipients":  total,
			"sent_successfully": sent,
			"sent_failed":       failed,
			"duplicates_count":  duplicates,
		}).Error
}

// UpdateCounters persists the running counters mid-flight
func (r *CampaignRepository) UpdateCounters(id uint, total, sent, failed, duplicates int) error {
	return r.db.Model(&models.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_recipients":  total,
			"sent_successfully": sent,
			"sent_failed":       failed,
			"duplicates_count":  duplicates,
		}).Error
}

// FailOrphaned marks every campaign stuck in processing as failed and
// returns how many were affected. Used at startup: a campaign found in
// processing after a restart has no durable resumption point.
func (r *CampaignRepository) FailOrphaned(completedAt time.Time) (int64, error) {
	result := r.db.Model(&models.Campaign{}).
		Where("status = ?", models.CampaignStatusProcessing).
		Updates(map[string]interface{}{
			"status":       models.CampaignStatusFailed,
			"completed_at": completedAt,
		})
	return result.RowsAffected, result.Error
}

// GetDaily retrieves all campaigns created on the given day
func (r *CampaignRepository) GetDaily(date time.Time) ([]*models.Campaign, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.Add(24 * time.Hour)

	var campaigns []*models.Campaign
	err := r.db.Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at DESC").
		Find(&campaigns).Error
	return campaigns, err
}
