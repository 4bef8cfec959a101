package models

import (
	"time"
)

// ReportReceiverList is a named set of external addresses that receive
// periodic summary digests
type ReportReceiverList struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"type:varchar(255);not null"`
	IsActive bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Receivers []ReportReceiver `json:"receivers,omitempty" gorm:"foreignKey:ListID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the ReportReceiverList model
func (ReportReceiverList) TableName() string {
	return "report_receiver_lists"
}

// ReportReceiver is one digest recipient inside a list. TelegramID is filled
// in lazily once the address has been seen by the bot.
type ReportReceiver struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	ListID         uint   `json:"list_id" gorm:"not null;index"`
	Identifier     string `json:"identifier" gorm:"type:varchar(255);not null"`
	IdentifierType string `json:"identifier_type" gorm:"type:varchar(20);not null"`
	TelegramID     *int64 `json:"telegram_id"`
	IsActive       bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`

	// Relationships
	List ReportReceiverList `json:"-" gorm:"foreignKey:ListID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the ReportReceiver model
func (ReportReceiver) TableName() string {
	return "report_receivers"
}

// CreateReceiverListRequest represents the request to create a receiver list
type CreateReceiverListRequest struct {
	Name string `json:"name" binding:"required" example:"Daily digest"`
}

// AddReceiversRequest represents the request to add receivers to a list
type AddReceiversRequest struct {
	Identifiers []string `json:"identifiers" binding:"required" example:"@manager,123456789"`
}
