package db

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/balkashynov/champ/internal/models"
)

// SeedAchievements writes the catalog into the achievements table,
// overwriting entries with the same id
func (s *Store) SeedAchievements(ctx context.Context, entries []models.Achievement) error {
	if len(entries) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "emoji", "description", "kind", "threshold"}),
	}).Create(&entries).Error
	if err != nil {
		return storeErr("seed achievements", err)
	}
	return nil
}

// ListAchievements returns the full catalog ordered by id
func (s *Store) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	var achievements []models.Achievement

	if err := s.db.WithContext(ctx).Order("id ASC").Find(&achievements).Error; err != nil {
		return nil, storeErr("list achievements", err)
	}
	return achievements, nil
}

// ListAchievementStates returns the achievements a user has unlocked
func (s *Store) ListAchievementStates(ctx context.Context, userID string) ([]models.AchievementState, error) {
	var states []models.AchievementState

	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at ASC").
		Find(&states).Error
	if err != nil {
		return nil, storeErr("list achievement states", err)
	}
	return states, nil
}

// UnlockAchievement marks an achievement unlocked for a user. Unlocking is
// write-once: if the pair is already unlocked the existing row is returned
// with created=false and nothing is published.
func (s *Store) UnlockAchievement(ctx context.Context, userID, achievementID string, at time.Time) (models.AchievementState, bool, error) {
	var (
		state   models.AchievementState
		created bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := models.AchievementState{
			UserID:        userID,
			AchievementID: achievementID,
			UnlockedAt:    at.UTC(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		return tx.Where("user_id = ? AND achievement_id = ?", userID, achievementID).First(&state).Error
	})
	if err != nil {
		return models.AchievementState{}, false, storeErr("unlock achievement", err)
	}

	if created {
		if change, err := models.AchievementStateChange(models.OpInsert, &state, nil); err == nil {
			s.publish(change)
		} else {
			s.log.Error("Failed to encode achievement change",
				slog.String("user_id", userID),
				slog.String("achievement_id", achievementID),
				slog.Any("error", err))
		}
	}
	return state, created, nil
}

// Snapshot reads everything an observer needs to establish a baseline
func (s *Store) Snapshot(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot

	// One read transaction so the baseline is internally consistent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id ASC").Find(&snap.Users).Error; err != nil {
			return err
		}
		if err := tx.Order("start_time DESC").Order("id DESC").Find(&snap.Sessions).Error; err != nil {
			return err
		}
		if err := tx.Order("unlocked_at ASC").Find(&snap.States).Error; err != nil {
			return err
		}
		return tx.Order("id ASC").Find(&snap.Achievements).Error
	})
	if err != nil {
		return models.Snapshot{}, storeErr("snapshot", err)
	}
	return snap, nil
}
