package repository

import (
	"errors"
	"time"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"

	"gorm.io/gorm"
)

type SendingHistoryRepository struct {
	db *gorm.DB
}

func NewSendingHistoryRepository(db *gorm.DB) *SendingHistoryRepository {
	return &SendingHistoryRepository{db: db}
}

// Append adds one ledger entry; history rows are never updated
func (r *SendingHistoryRepository) Append(entry *models.SendingHistory) error {
	return r.db.Create(entry).Error
}

// GetByCampaign retrieves a campaign's history in send order
func (r *SendingHistoryRepository) GetByCampaign(campaignID uint) ([]*models.SendingHistory, error) {
	var history []*models.SendingHistory
	err := r.db.Where("campaign_id = ?", campaignID).Order("sent_at").Find(&history).Error
	return history, err
}

// FindLastSuccessfulSend returns the most recent successful delivery of the
// given template to the normalized identifier across all campaigns, or
// (0, zero time, nil) when there is none.
func (r *SendingHistoryRepository) FindLastSuccessfulSend(templateID uint, normalizedIdentifier string) (uint, time.Time, error) {
	var row struct {
		CampaignID uint
		SentAt     time.Time
	}
	err := r.db.Model(&models.SendingHistory{}).
		Select("sending_history.campaign_id, sending_history.sent_at").
		Joins("JOIN campaigns ON campaigns.id = sending_history.campaign_id").
		Where("campaigns.template_id = ? AND sending_history.normalized_identifier = ? AND sending_history.success = ?",
			templateID, normalizedIdentifier, true).
		Order("sending_history.sent_at DESC").
		Limit(1).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, time.Time{}, nil
		}
		return 0, time.Time{}, err
	}
	return row.CampaignID, row.SentAt, nil
}

// ErrorStatistics counts failed attempts per error kind inside the window
func (r *SendingHistoryRepository) ErrorStatistics(start, end time.Time) (map[string]int, error) {
	var rows []struct {
		ErrorType string
		Count     int
	}
	err := r.db.Model(&models.SendingHistory{}).
		Select("sending_history.error_type, COUNT(sending_history.id) AS count").
		Joins("JOIN campaigns ON campaigns.id = sending_history.campaign_id").
		Where("sending_history.success = ? AND campaigns.created_at >= ? AND campaigns.created_at < ?",
			false, start, end).
		Group("sending_history.error_type").
		Order("count DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int, len(rows))
	for _, row := range rows {
		kind := row.ErrorType
		if kind == "" {
			kind = models.ErrorTypeUnknown
		}
		stats[kind] = row.Count
	}
	return stats, nil
}
