package db

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/balkashynov/champ/internal/models"
)

// Publisher receives the changes of every committed write
type Publisher interface {
	Publish(changes ...models.Change) models.Commit
}

// Store is the durable record of users, sessions and achievements
type Store struct {
	db  *gorm.DB
	pub Publisher
	log *slog.Logger
}

// Options configure Open
type Options struct {
	Publisher Publisher    // optional; commits are dropped when nil
	Logger    *slog.Logger // optional; defaults to slog.Default()
}

// Open sets up the database connection and runs migrations
func Open(dbPath string, opts Options) (*Store, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // Quiet by default
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite allows one writer; a single connection keeps transactions serialized
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Store{db: db, pub: opts.Publisher, log: log}
	if err := s.runMigrations(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// DefaultPath returns the path to the SQLite database file
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".champ", "champ.db"), nil
}

// runMigrations creates/updates the database schema
func (s *Store) runMigrations() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Achievement{},
		&models.AchievementState{},
	)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// publish hands committed changes to the feed. It must only be called after
// the transaction that produced them has committed.
func (s *Store) publish(changes ...models.Change) {
	if s.pub == nil || len(changes) == 0 {
		return
	}
	commit := s.pub.Publish(changes...)
	s.log.Debug("Published commit",
		slog.Uint64("seq", commit.Seq),
		slog.Int("changes", len(changes)))
}
