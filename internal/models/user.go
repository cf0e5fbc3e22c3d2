package models

import "time"

// User is the profile row mirrored from the identity provider. The engine
// reads it for display names and email addresses; account management lives
// in another service.
type User struct {
	UID         string    `gorm:"primaryKey;size:128" json:"uid"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	Email       string    `gorm:"size:255;index" json:"email"`
	AvatarURL   string    `gorm:"size:512" json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
