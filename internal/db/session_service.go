package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/models"
)

// OpenSession creates an open session for a user starting at start.
// Timestamps are stored in UTC so that range queries compare correctly.
func (s *Store) OpenSession(ctx context.Context, userID string, start time.Time) (models.Session, error) {
	var session models.Session

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}

		// Check if there's already an active session
		var active models.Session
		err := tx.Where("user_id = ? AND end_time IS NULL", userID).First(&active).Error
		if err == nil {
			return apperrors.New(apperrors.CodeAlreadyActive,
				fmt.Sprintf("user %s already has an open session started at %s", userID, active.StartTime.Format("15:04:05")))
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		session = models.Session{
			UserID:    userID,
			StartTime: start.UTC(),
		}
		if err := tx.Create(&session).Error; err != nil {
			if isUniqueViolation(err) {
				return apperrors.Wrap(apperrors.CodeAlreadyActive, "session already active", err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.Session{}, storeErr("open session", err)
	}

	change, err := models.SessionChange(models.OpInsert, &session, nil)
	if err != nil {
		s.log.Error("Failed to encode session change", slog.String("session_id", session.ID), slog.Any("error", err))
		return session, nil
	}
	s.publish(change)
	return session, nil
}

// ActiveSession returns the user's open session, if any
func (s *Store) ActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	var session models.Session

	err := s.db.WithContext(ctx).Where("user_id = ? AND end_time IS NULL", userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // No active session is not an error
	}
	if err != nil {
		return nil, storeErr("get active session", err)
	}
	return &session, nil
}

// CloseSession records the end time and duration of an open session and adds
// the duration to the owner's weekly total in the same transaction. Both
// changes are published as one commit.
func (s *Store) CloseSession(ctx context.Context, sessionID string, end time.Time, duration int64) (models.ClosedSession, error) {
	var out models.ClosedSession

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out.PrevSession, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNoActiveSession, fmt.Sprintf("session %s not found", sessionID))
			}
			return err
		}
		if !out.PrevSession.Open() {
			return apperrors.New(apperrors.CodeNoActiveSession, fmt.Sprintf("session %s is already closed", sessionID))
		}
		if err := tx.First(&out.PrevUser, "id = ?", out.PrevSession.UserID).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Session{}).
			Where("id = ? AND end_time IS NULL", sessionID).
			Updates(map[string]any{"end_time": end.UTC(), "duration_seconds": duration})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.New(apperrors.CodeNoActiveSession, fmt.Sprintf("session %s is already closed", sessionID))
		}

		err := tx.Model(&models.User{}).
			Where("id = ?", out.PrevUser.ID).
			UpdateColumn("weekly_total", gorm.Expr("weekly_total + ?", duration)).Error
		if err != nil {
			return err
		}

		if err := tx.First(&out.Session, "id = ?", sessionID).Error; err != nil {
			return err
		}
		return tx.First(&out.User, "id = ?", out.PrevUser.ID).Error
	})
	if err != nil {
		return models.ClosedSession{}, storeErr("close session", err)
	}

	sessionChange, err := models.SessionChange(models.OpUpdate, &out.Session, &out.PrevSession)
	if err != nil {
		s.log.Error("Failed to encode session change", slog.String("session_id", sessionID), slog.Any("error", err))
		return out, nil
	}
	userChange, err := models.UserChange(models.OpUpdate, &out.User, &out.PrevUser)
	if err != nil {
		s.log.Error("Failed to encode user change", slog.String("user_id", out.User.ID), slog.Any("error", err))
		return out, nil
	}
	s.publish(sessionChange, userChange)
	return out, nil
}

// ListSessions returns a user's sessions, most recent first
func (s *Store) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session

	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time DESC").
		Order("id DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	return sessions, nil
}

// GetSessionsInRange returns closed sessions that ended within [startTime, endTime)
func (s *Store) GetSessionsInRange(ctx context.Context, startTime, endTime time.Time) ([]models.Session, error) {
	var sessions []models.Session

	err := s.db.WithContext(ctx).
		Where("end_time >= ? AND end_time < ? AND end_time IS NOT NULL", startTime.UTC(), endTime.UTC()).
		Order("end_time ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, storeErr("list sessions in range", err)
	}
	return sessions, nil
}

func requireUser(tx *gorm.DB, userID string) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperrors.Wrap(apperrors.CodeUserNotFound, "user not found", fmt.Errorf("id %s", userID))
	}
	return nil
}
