package repository

import (
	"github.com/outreachlab/telegram-mailer-backend/internal/models"

	"gorm.io/gorm"
)

type ReportReceiverRepository struct {
	db *gorm.DB
}

func NewReportReceiverRepository(db *gorm.DB) *ReportReceiverRepository {
	return &ReportReceiverRepository{db: db}
}

// CreateList creates a new receiver list
func (r *ReportReceiverRepository) CreateList(list *models.ReportReceiverList) error {
	return r.db.Create(list).Error
}

// GetList retrieves a receiver list with its active receivers
func (r *ReportReceiverRepository) GetList(id uint) (*models.ReportReceiverList, error) {
	var list models.ReportReceiverList
	err := r.db.Preload("Receivers", "is_active = ?", true).First(&list, id).Error
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// GetActiveLists retrieves all active receiver lists
func (r *ReportReceiverRepository) GetActiveLists() ([]*models.ReportReceiverList, error) {
	var lists []*models.ReportReceiverList
	err := r.db.Where("is_active = ?", true).Order("created_at DESC").Find(&lists).Error
	return lists, err
}

// SoftDeleteList deactivates a receiver list
func (r *ReportReceiverRepository) SoftDeleteList(id uint) error {
	result := r.db.Model(&models.ReportReceiverList{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddReceiver adds one receiver to a list unless the identifier is already
// present
func (r *ReportReceiverRepository) AddReceiver(receiver *models.ReportReceiver) (bool, error) {
	var count int64
	err := r.db.Model(&models.ReportReceiver{}).
		Where("list_id = ? AND identifier = ?", receiver.ListID, receiver.Identifier).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	return true, r.db.Create(receiver).Error
}

// SoftDeleteReceiver deactivates one receiver
func (r *ReportReceiverRepository) SoftDeleteReceiver(id uint) error {
	result := r.db.Model(&models.ReportReceiver{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetAllActiveReceivers retrieves every active receiver across all lists
func (r *ReportReceiverRepository) GetAllActiveReceivers() ([]*models.ReportReceiver, error) {
	var receivers []*models.ReportReceiver
	err := r.db.Where("is_active = ?", true).Find(&receivers).Error
	return receivers, err
}
