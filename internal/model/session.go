package model

import "time"

// Session is one signed-in browser. Tokens carry the session ID so a session can be
// revoked before its token expires.
type Session struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    int64     `gorm:"index;not null"`
	IssuedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	WarnAt    time.Time `gorm:"not null;index"`
	WarnedAt  *time.Time
	RevokedAt *time.Time
}
