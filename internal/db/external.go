package db

import (
	"context"
	"log/slog"
	"time"
)

// DataVersion returns sqlite's data_version for the store's connection. The
// value changes whenever another connection, usually another champ process,
// commits to the same file. Commits made through this store leave it as is.
func (s *Store) DataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.WithContext(ctx).Raw("PRAGMA data_version").Scan(&v).Error; err != nil {
		return 0, storeErr("read data version", err)
	}
	return v, nil
}

// WatchExternal polls DataVersion every interval and calls onChange after
// another process has committed. It returns when ctx is cancelled.
func (s *Store) WatchExternal(ctx context.Context, interval time.Duration, onChange func()) error {
	last, err := s.DataVersion(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v, err := s.DataVersion(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Warn("Failed to poll for external writes", slog.Any("error", err))
				continue
			}
			if v == last {
				continue
			}
			s.log.Debug("External write detected", slog.Int64("data_version", v))
			last = v
			onChange()
		}
	}
}
