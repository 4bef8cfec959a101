package models

import (
	"time"
)

// User represents an operator account that owns templates and campaigns
type User struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Username     string `json:"username" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"type:varchar(255);not null"`
	FirstName    string `json:"first_name" gorm:"type:varchar(255)"`
	LastName     string `json:"last_name" gorm:"type:varchar(255)"`

	// TelegramID is the operator's own Telegram account, used as the campaign
	// owner key and as the address for personal reports and alerts.
	TelegramID int64 `json:"telegram_id" gorm:"uniqueIndex;not null"`

	IsActive bool `json:"is_active" gorm:"default:true"`
	IsAdmin  bool `json:"is_admin" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Campaigns []Campaign `json:"campaigns,omitempty" gorm:"foreignKey:OwnerID;references:TelegramID"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// UserResponse represents the public view of a user
type UserResponse struct {
	ID         uint   `json:"id" example:"1"`
	Username   string `json:"username" example:"operator"`
	FirstName  string `json:"first_name" example:"Jane"`
	LastName   string `json:"last_name" example:"Doe"`
	TelegramID int64  `json:"telegram_id" example:"123456789"`
	IsAdmin    bool   `json:"is_admin" example:"false"`
}

// ToResponse converts a User to its public representation
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		TelegramID: u.TelegramID,
		IsAdmin:    u.IsAdmin,
	}
}
