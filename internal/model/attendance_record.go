package model

import "time"

// AttendanceRecord is the local copy of one upstream check-in row.
type AttendanceRecord struct {
	ID       int64     `gorm:"primaryKey;autoIncrement:false"` // Upstream ID
	EmpID    string    `gorm:"size:64;index"`
	EmpName  string    `gorm:"size:256"`
	Date     string    `gorm:"size:10;not null;index"` // YYYY-MM-DD
	Time     string    `gorm:"size:8;not null"`        // HH:MM:SS
	SyncedAt time.Time `gorm:"not null"`
}
