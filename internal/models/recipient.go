package models

import (
	"time"
)

// Recipient identifier classifications produced by the normalizer
const (
	IdentifierTypeChatID     = "chat_id"
	IdentifierTypeUsername   = "username"
	IdentifierTypeLink       = "link"
	IdentifierTypeInviteLink = "invite_link"
)

// Recipient represents one addressable target attached to a campaign.
// IsDuplicate and PreviousCampaignID are set once by the duplicate detector
// during execution; everything else is immutable after creation.
type Recipient struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	CampaignID uint `json:"campaign_id" gorm:"not null;index"`

	Identifier           string `json:"identifier" gorm:"column:recipient_identifier;type:varchar(255);not null"`
	NormalizedIdentifier string `json:"normalized_identifier" gorm:"type:varchar(255);not null;index"`
	IdentifierType       string `json:"identifier_type" gorm:"type:varchar(20);not null"`

	IsDuplicate        bool  `json:"is_duplicate" gorm:"default:false"`
	PreviousCampaignID *uint `json:"previous_campaign_id"`

	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Campaign Campaign `json:"-" gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Recipient model
func (Recipient) TableName() string {
	return "recipients"
}
