package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a roster member whose sessions are tracked
type User struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `gorm:"unique;not null" json:"name"`
	Avatar      string `json:"avatar"`
	WeeklyTotal int64  `gorm:"not null;default:0" json:"weekly_total"` // seconds
}

// BeforeCreate assigns a generated id when none is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
