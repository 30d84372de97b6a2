package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/models"
)

// CreateUser registers a user with a unique display name
func (s *Store) CreateUser(ctx context.Context, name, avatar string) (models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.User{}, apperrors.New(apperrors.CodeUserNameEmpty, "user name cannot be empty")
	}

	user := models.User{Name: name, Avatar: avatar}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.User{}, apperrors.Wrap(apperrors.CodeUserNameTaken,
				fmt.Sprintf("name %q is already taken", name), err)
		}
		return models.User{}, storeErr("create user", err)
	}

	if change, err := models.UserChange(models.OpInsert, &user, nil); err == nil {
		s.publish(change)
	} else {
		s.log.Error("Failed to encode user change", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return user, nil
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User

	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, apperrors.Wrap(apperrors.CodeUserNotFound, "user not found", fmt.Errorf("id %s", id))
	}
	if err != nil {
		return models.User{}, storeErr("get user", err)
	}
	return user, nil
}

// ListUsers returns every user ordered by name
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User

	if err := s.db.WithContext(ctx).Order("name ASC").Find(&users).Error; err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}

// SetWeeklyTotal overwrites a user's weekly total, used to repair a counter
// that drifted from its session history
func (s *Store) SetWeeklyTotal(ctx context.Context, userID string, total int64) (models.User, error) {
	var before, after models.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.Wrap(apperrors.CodeUserNotFound, "user not found", fmt.Errorf("id %s", userID))
			}
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("weekly_total", total).Error; err != nil {
			return err
		}
		return tx.First(&after, "id = ?", userID).Error
	})
	if err != nil {
		return models.User{}, storeErr("set weekly total", err)
	}

	if change, err := models.UserChange(models.OpUpdate, &after, &before); err == nil {
		s.publish(change)
	} else {
		s.log.Error("Failed to encode user change", slog.String("user_id", userID), slog.Any("error", err))
	}
	return after, nil
}
