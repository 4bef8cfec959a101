package models

import (
	"time"
)

// Error kinds recorded on failed (or skipped) delivery attempts. Every
// transport failure maps to exactly one of these; "duplicate" is the
// synthetic kind for detector-skipped sends and is not a delivery failure.
const (
	ErrorTypeBlocked        = "blocked"
	ErrorTypeInvalidUser    = "invalid_user"
	ErrorTypeNotFound       = "not_found"
	ErrorTypeDeleted        = "deleted"
	ErrorTypePrivacy        = "privacy"
	ErrorTypeNotParticipant = "not_participant"
	ErrorTypeAdminRequired  = "admin_required"
	ErrorTypePrivateChat    = "private_chat"
	ErrorTypeInvalidInvite  = "invalid_invite"
	ErrorTypeJoinFailed     = "join_failed"
	ErrorTypeRateLimit      = "rate_limit"
	ErrorTypePeerFlood      = "peer_flood"
	ErrorTypeTechnical      = "technical"
	ErrorTypeUnknown        = "unknown"
	ErrorTypeDuplicate      = "duplicate"
)

// ErrorTypeDescriptions maps error kinds to the human-readable reasons used
// in reports
var ErrorTypeDescriptions = map[string]string{
	ErrorTypeBlocked:        "recipient blocked the sender",
	ErrorTypeInvalidUser:    "recipient not found",
	ErrorTypeNotFound:       "chat not found",
	ErrorTypeDeleted:        "account deleted",
	ErrorTypePrivacy:        "privacy settings reject the message",
	ErrorTypeNotParticipant: "sender is not a member of the group",
	ErrorTypeAdminRequired:  "admin rights required",
	ErrorTypePrivateChat:    "private chat, join required",
	ErrorTypeInvalidInvite:  "invite link invalid or expired",
	ErrorTypeJoinFailed:     "could not join by invite link",
	ErrorTypeRateLimit:      "message limit exceeded",
	ErrorTypePeerFlood:      "account restricted by Telegram",
	ErrorTypeTechnical:      "technical error",
	ErrorTypeUnknown:        "unknown error",
	ErrorTypeDuplicate:      "duplicate, skipped",
}

// SendingHistory is the append-only ledger of delivery attempts, including
// duplicate skips. Rows are never mutated after insertion; the duplicate
// detector and the report renderer both consult it.
type SendingHistory struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	CampaignID uint `json:"campaign_id" gorm:"not null;index"`

	RecipientIdentifier  string `json:"recipient_identifier" gorm:"type:varchar(255);not null"`
	NormalizedIdentifier string `json:"normalized_identifier" gorm:"type:varchar(255);not null;index"`

	Success           bool   `json:"success" gorm:"not null"`
	ErrorType         string `json:"error_type,omitempty" gorm:"type:varchar(100)"`
	ErrorDetails      string `json:"error_details,omitempty" gorm:"type:text"`
	TelegramMessageID *int64 `json:"telegram_message_id"`

	SentAt time.Time `json:"sent_at" gorm:"autoCreateTime;index"`

	// Relationships
	Campaign Campaign `json:"-" gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the SendingHistory model
func (SendingHistory) TableName() string {
	return "sending_history"
}
