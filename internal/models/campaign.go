package models

import (
	"time"
)

// Campaign lifecycle states. Transitions are one-directional:
// pending -> processing -> completed | failed.
const (
	CampaignStatusPending    = "pending"
	CampaignStatusProcessing = "processing"
	CampaignStatusCompleted  = "completed"
	CampaignStatusFailed     = "failed"
)

// Campaign represents one mailing run of a template against a recipient set
type Campaign struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	Code       string `json:"code" gorm:"type:varchar(50);uniqueIndex;not null"`
	OwnerID    int64  `json:"owner_id" gorm:"not null;index"`
	TemplateID uint   `json:"template_id" gorm:"not null;index"`
	Status     string `json:"status" gorm:"type:varchar(50);default:'pending'"`

	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Running counters. Invariant: SentSuccessfully + SentFailed +
	// DuplicatesCount <= TotalRecipients; equality once status is terminal.
	TotalRecipients  int `json:"total_recipients" gorm:"default:0"`
	SentSuccessfully int `json:"sent_successfully" gorm:"default:0"`
	SentFailed       int `json:"sent_failed" gorm:"default:0"`
	DuplicatesCount  int `json:"duplicates_count" gorm:"default:0"`

	DelaySeconds  int  `json:"delay_seconds" gorm:"default:5"`
	MaxRecipients *int `json:"max_recipients"`

	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Template   Template         `json:"template,omitempty" gorm:"foreignKey:TemplateID;references:ID"`
	Recipients []Recipient      `json:"recipients,omitempty" gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE"`
	History    []SendingHistory `json:"-" gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Campaign model
func (Campaign) TableName() string {
	return "campaigns"
}

// IsTerminal reports whether the campaign reached a terminal state
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusFailed
}

// CreateCampaignRequest represents the request to create a new campaign.
// Exactly one of Recipients (raw delimited text) or GroupIdentifier (a group
// whose members become the recipient list) must be supplied.
type CreateCampaignRequest struct {
	TemplateID      uint   `json:"template_id" binding:"required" example:"3"`
	Recipients      string `json:"recipients" example:"@alice, bob 123456, t.me/somechannel"`
	GroupIdentifier string `json:"group_identifier" example:"-1001234567890"`
	DelaySeconds    int    `json:"delay_seconds" binding:"min=0" example:"20"`
	MaxRecipients   *int   `json:"max_recipients" example:"100"`
}

// CampaignResponse represents the response for campaign operations
type CampaignResponse struct {
	ID               uint       `json:"id" example:"12"`
	Code             string     `json:"code" example:"MAIL-3F2A9C1B"`
	OwnerID          int64      `json:"owner_id" example:"123456789"`
	TemplateID       uint       `json:"template_id" example:"3"`
	Status           string     `json:"status" example:"pending"`
	StartedAt        *time.Time `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	TotalRecipients  int        `json:"total_recipients" example:"250"`
	SentSuccessfully int        `json:"sent_successfully" example:"240"`
	SentFailed       int        `json:"sent_failed" example:"7"`
	DuplicatesCount  int        `json:"duplicates_count" example:"3"`
	DelaySeconds     int        `json:"delay_seconds" example:"20"`
	MaxRecipients    *int       `json:"max_recipients" example:"100"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ToResponse converts a Campaign to its API representation
func (c *Campaign) ToResponse() *CampaignResponse {
	return &CampaignResponse{
		ID:               c.ID,
		Code:             c.Code,
		OwnerID:          c.OwnerID,
		TemplateID:       c.TemplateID,
		Status:           c.Status,
		StartedAt:        c.StartedAt,
		CompletedAt:      c.CompletedAt,
		TotalRecipients:  c.TotalRecipients,
		SentSuccessfully: c.SentSuccessfully,
		SentFailed:       c.SentFailed,
		DuplicatesCount:  c.DuplicatesCount,
		DelaySeconds:     c.DelaySeconds,
		MaxRecipients:    c.MaxRecipients,
		CreatedAt:        c.CreatedAt,
	}
}
