package models

import (
	"time"
)

// Media attachment types a template may carry
const (
	MediaTypePhoto     = "photo"
	MediaTypeVideo     = "video"
	MediaTypeDocument  = "document"
	MediaTypeAudio     = "audio"
	MediaTypeVoice     = "voice"
	MediaTypeVideoNote = "video_note"
	MediaTypeAnimation = "animation"
)

// Template represents a reusable message body with an optional media attachment.
// Templates are soft-deleted: IsActive=false hides them from selection while
// historical campaigns keep a valid reference.
type Template struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Name      string `json:"name" gorm:"type:varchar(255);not null"`
	Text      string `json:"text" gorm:"type:text;not null"`
	CreatedBy int64  `json:"created_by" gorm:"not null;index"`
	IsActive  bool   `json:"is_active" gorm:"default:true"`

	MediaType         string `json:"media_type,omitempty" gorm:"type:varchar(50)"`
	MediaFileID       string `json:"media_file_id,omitempty" gorm:"type:varchar(255)"`
	MediaFileUniqueID string `json:"media_file_unique_id,omitempty" gorm:"type:varchar(255)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Campaigns []Campaign `json:"campaigns,omitempty" gorm:"foreignKey:TemplateID;references:ID"`
}

// TableName specifies the table name for the Template model
func (Template) TableName() string {
	return "templates"
}

// HasMedia reports whether the template carries a media attachment
func (t *Template) HasMedia() bool {
	return t.MediaType != "" && t.MediaFileID != ""
}

// CreateTemplateRequest represents the request to create a new template
type CreateTemplateRequest struct {
	Name        string `json:"name" binding:"required" example:"October promo"`
	Text        string `json:"text" binding:"required" example:"Hello! We have news for you."`
	MediaType   string `json:"media_type" example:"photo"`
	MediaFileID string `json:"media_file_id" example:"AgACAgIAAxkBAxk..."`
}

// UpdateTemplateRequest represents the request to update a template
type UpdateTemplateRequest struct {
	Name        *string `json:"name" example:"October promo v2"`
	Text        *string `json:"text" example:"Hello again!"`
	MediaType   *string `json:"media_type" example:"photo"`
	MediaFileID *string `json:"media_file_id" example:"AgACAgIAAxkBAxk..."`
}

// TemplateResponse represents the response for template operations
type TemplateResponse struct {
	ID        uint      `json:"id" example:"3"`
	Name      string    `json:"name" example:"October promo"`
	Text      string    `json:"text" example:"Hello! We have news for you."`
	MediaType string    `json:"media_type,omitempty" example:"photo"`
	IsActive  bool      `json:"is_active" example:"true"`
	CreatedAt time.Time `json:"created_at"`
}
