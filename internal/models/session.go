package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session represents one timed interval of activity for a user
type Session struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// At most one open session per user; the partial index backs the lifecycle check.
	UserID          string     `gorm:"not null;index;uniqueIndex:idx_sessions_open,where:end_time IS NULL" json:"user_id"`
	StartTime       time.Time  `gorm:"not null" json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds int64      `gorm:"not null;default:0" json:"duration_seconds"` // set once on close
}

// BeforeCreate assigns a generated id when none is set
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Open reports whether the session has no recorded end time
func (s Session) Open() bool {
	return s.EndTime == nil
}

// Elapsed returns how long the session has been running at now, or its
// recorded duration once closed.
func (s Session) Elapsed(now time.Time) time.Duration {
	if !s.Open() {
		return time.Duration(s.DurationSeconds) * time.Second
	}
	if now.Before(s.StartTime) {
		return 0
	}
	return now.Sub(s.StartTime)
}
