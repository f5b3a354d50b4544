package model

import "time"

// User is a dashboard operator allowed to sign in.
type User struct {
	ID           int64  `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;size:256;not null"`
	PasswordHash string `gorm:"size:128;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Associations
	Sessions      []Session          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Subscriptions []PushSubscription `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}
