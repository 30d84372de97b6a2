// Package session owns the start/stop state machine of a user's session.
//
// A user is Idle (no open session) or Active (exactly one open session).
// Start moves Idle to Active, Stop moves Active back to Idle, closes the
// session, adds its duration to the weekly total and unlocks whatever
// achievements the closed session qualifies for.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/balkashynov/champ/internal/achievements"
	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/models"
)

// Store is the persistence the Manager writes through
type Store interface {
	OpenSession(ctx context.Context, userID string, start time.Time) (models.Session, error)
	ActiveSession(ctx context.Context, userID string) (*models.Session, error)
	CloseSession(ctx context.Context, sessionID string, end time.Time, duration int64) (models.ClosedSession, error)
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	ListAchievementStates(ctx context.Context, userID string) ([]models.AchievementState, error)
	UnlockAchievement(ctx context.Context, userID, achievementID string, at time.Time) (models.AchievementState, bool, error)
}

// LocalApplier receives the rows of writes the store has acknowledged, so
// the owning client's view updates before the feed echo arrives
type LocalApplier interface {
	ApplyLocal(changes ...models.Change)
}

// Options configure a Manager. Zero values get sensible defaults.
type Options struct {
	Catalog  *achievements.Catalog
	Local    LocalApplier
	Owner    string // when set, only this user's sessions may be started or stopped
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// Manager runs start and stop for users
type Manager struct {
	store   Store
	catalog *achievements.Catalog
	local   LocalApplier
	owner   string
	loc     *time.Location
	now     func() time.Time
	log     *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// StopResult describes a completed stop
type StopResult struct {
	Session  models.Session // the closed session
	User     models.User    // owner with the updated weekly total
	Unlocked []string       // achievement ids unlocked by this stop

	// EvaluationErr is set when achievements could not be evaluated or
	// recorded. The close itself has already been committed.
	EvaluationErr error
}

// New creates a Manager writing through store
func New(store Store, opts Options) *Manager {
	m := &Manager{
		store:    store,
		catalog:  opts.Catalog,
		local:    opts.Local,
		owner:    opts.Owner,
		loc:      opts.Location,
		now:      opts.Now,
		log:      opts.Logger,
		inFlight: make(map[string]struct{}),
	}
	if m.catalog == nil {
		m.catalog = achievements.DefaultCatalog()
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Start opens a session for userID beginning now
func (m *Manager) Start(ctx context.Context, userID string) (models.Session, error) {
	release, err := m.acquire(userID)
	if err != nil {
		return models.Session{}, err
	}
	defer release()

	active, err := m.store.ActiveSession(ctx, userID)
	if err != nil {
		return models.Session{}, err
	}
	if active != nil {
		return models.Session{}, apperrors.New(apperrors.CodeAlreadyActive,
			fmt.Sprintf("a session is already running since %s", active.StartTime.In(m.loc).Format("15:04:05")))
	}

	start := m.now().Truncate(time.Second)
	session, err := m.store.OpenSession(ctx, userID, start)
	if err != nil {
		return models.Session{}, err
	}

	m.log.Info("Session started",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID))

	if change, err := models.SessionChange(models.OpInsert, &session, nil); err == nil {
		m.applyLocal(change)
	}
	return session, nil
}

// Stop closes userID's open session, adds its duration to the weekly total
// and unlocks newly earned achievements
func (m *Manager) Stop(ctx context.Context, userID string) (StopResult, error) {
	release, err := m.acquire(userID)
	if err != nil {
		return StopResult{}, err
	}
	defer release()

	active, err := m.store.ActiveSession(ctx, userID)
	if err != nil {
		return StopResult{}, err
	}
	if active == nil {
		return StopResult{}, apperrors.New(apperrors.CodeNoActiveSession, "no session is running")
	}

	end, duration, clamped := closeTimes(active.StartTime, m.now())
	if clamped {
		m.log.Warn("Clock behind session start, clamping duration to zero",
			slog.String("session_id", active.ID),
			slog.Time("start", active.StartTime))
	}

	closed, err := m.store.CloseSession(ctx, active.ID, end, duration)
	if err != nil {
		return StopResult{}, err
	}

	m.log.Info("Session stopped",
		slog.String("user_id", userID),
		slog.String("session_id", closed.Session.ID),
		slog.Int64("duration_seconds", closed.Session.DurationSeconds),
		slog.Int64("weekly_total", closed.User.WeeklyTotal))

	sessionChange, err := models.SessionChange(models.OpUpdate, &closed.Session, &closed.PrevSession)
	if err == nil {
		if userChange, err := models.UserChange(models.OpUpdate, &closed.User, &closed.PrevUser); err == nil {
			m.applyLocal(sessionChange, userChange)
		}
	}

	result := StopResult{Session: closed.Session, User: closed.User}

	// The close is committed; an abandoned caller must not cut the unlock step short
	unlocked, evalErr := m.unlock(context.WithoutCancel(ctx), closed)
	result.Unlocked = unlocked
	if evalErr != nil {
		m.log.Error("Achievement evaluation failed",
			slog.String("user_id", userID),
			slog.String("session_id", closed.Session.ID),
			slog.Any("error", evalErr))
		result.EvaluationErr = evalErr
	}
	return result, nil
}

// Current returns userID's open session, or nil when idle
func (m *Manager) Current(ctx context.Context, userID string) (*models.Session, error) {
	return m.store.ActiveSession(ctx, userID)
}

// unlock evaluates the catalog against the closed session and records every
// newly qualifying achievement. Ids recorded before a failure stay recorded.
func (m *Manager) unlock(ctx context.Context, closed models.ClosedSession) ([]string, error) {
	userID := closed.User.ID

	history, err := m.store.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	states, err := m.store.ListAchievementStates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load achievement states: %w", err)
	}
	held := make(map[string]bool, len(states))
	for _, st := range states {
		held[st.AchievementID] = true
	}

	ids, err := m.catalog.Evaluate(achievements.Input{
		User:     closed.User,
		Closed:   closed.Session,
		History:  history,
		Unlocked: held,
		Now:      *closed.Session.EndTime,
		Location: m.loc,
	})
	if err != nil {
		return nil, err
	}

	var unlocked []string
	for _, id := range ids {
		state, created, err := m.store.UnlockAchievement(ctx, userID, id, *closed.Session.EndTime)
		if err != nil {
			return unlocked, fmt.Errorf("unlock %s: %w", id, err)
		}
		if !created {
			continue
		}
		unlocked = append(unlocked, id)
		m.log.Info("Achievement unlocked",
			slog.String("user_id", userID),
			slog.String("achievement_id", id))
		if change, err := models.AchievementStateChange(models.OpInsert, &state, nil); err == nil {
			m.applyLocal(change)
		}
	}
	return unlocked, nil
}

// acquire enters the per-user critical section or refuses immediately
func (m *Manager) acquire(userID string) (func(), error) {
	if userID == "" {
		return nil, apperrors.New(apperrors.CodeUserUnspecified, "no user given")
	}
	if m.owner != "" && userID != m.owner {
		return nil, apperrors.ErrNotOwner
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inFlight[userID]; busy {
		return nil, apperrors.ErrOperationInFlight
	}
	m.inFlight[userID] = struct{}{}

	return func() {
		m.mu.Lock()
		delete(m.inFlight, userID)
		m.mu.Unlock()
	}, nil
}

func (m *Manager) applyLocal(changes ...models.Change) {
	if m.local == nil {
		return
	}
	m.local.ApplyLocal(changes...)
}

// closeTimes returns the end time and whole-second duration for a session
// started at start and stopped at now. A clock behind start clamps to
// end = start and a zero duration.
func closeTimes(start, now time.Time) (end time.Time, duration int64, clamped bool) {
	start = start.Truncate(time.Second)
	end = now.Truncate(time.Second)
	if end.Before(start) {
		return start, 0, true
	}
	return end, int64(end.Sub(start) / time.Second), false
}
