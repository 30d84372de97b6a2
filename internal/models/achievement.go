package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Achievement is a catalog entry. The catalog is fixed configuration; rows
// are seeded from it on startup and never written at runtime.
type Achievement struct {
	ID          string `gorm:"primarykey" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
	Kind        string `gorm:"not null" json:"kind"`
	Threshold   int64  `gorm:"not null" json:"threshold"`
}

// AchievementState records that a user unlocked an achievement. Absence of a
// row means locked; rows are write-once.
type AchievementState struct {
	ID            string    `gorm:"primarykey" json:"id"`
	UserID        string    `gorm:"not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID string    `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"not null" json:"unlocked_at"`
}

// TableName keeps the row name used by the change feed
func (AchievementState) TableName() string {
	return "user_achievements"
}

// BeforeCreate assigns a generated id when none is set
func (a *AchievementState) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
