package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/balkashynov/champ/internal/db"
	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/feed"
	"github.com/balkashynov/champ/internal/models"
	"github.com/balkashynov/champ/internal/session"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// Wednesday 2026-10-14 09:00 UTC
var baseTime = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// fakeSource serves a mutable snapshot and can fail a number of fetches
type fakeSource struct {
	mu       sync.Mutex
	snap     models.Snapshot
	calls    int
	failures int
}

func (s *fakeSource) Snapshot(ctx context.Context) (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return models.Snapshot{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "snapshot", errors.New("connection refused"))
	}
	snap := models.Snapshot{
		Users:    append([]models.User(nil), s.snap.Users...),
		Sessions: append([]models.Session(nil), s.snap.Sessions...),
		States:   append([]models.AchievementState(nil), s.snap.States...),
	}
	return snap, nil
}

func (s *fakeSource) addUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Users = append(s.snap.Users, u)
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestReconciler(src Source, f Feed, self string) *Reconciler {
	return New(src, f, Options{
		Self:       self,
		Location:   time.UTC,
		Now:        func() time.Time { return baseTime },
		Logger:     quiet,
		NewBackOff: func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) },
		MaxElapsed: time.Second,
	})
}

// start runs r in the background and waits for its first snapshot
func start(t *testing.T, r *Reconciler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(cancel)

	waitFor(t, r, func(v View) bool { return v.Ready })
	return cancel, done
}

func waitFor(t *testing.T, r *Reconciler, pred func(View) bool) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := r.WaitFor(ctx, pred)
	if err != nil {
		t.Fatalf("condition not reached: %v (view version %d)", err, r.View().Version)
	}
	return v
}

func mustChange(t *testing.T) func(models.Change, error) models.Change {
	return func(c models.Change, err error) models.Change {
		t.Helper()
		if err != nil {
			t.Fatalf("build change: %v", err)
		}
		return c
	}
}

func TestTwoObserversSeeNewActiveUser(t *testing.T) {
	broker := feed.NewBroker(16)
	store, err := db.Open(filepath.Join(t.TempDir(), "champ.db"), db.Options{Publisher: broker, Logger: quiet})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	dana, err := store.CreateUser(context.Background(), "dana", "🐙")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	own := newTestReconciler(store, broker, dana.ID)
	other := newTestReconciler(store, broker, "")
	start(t, own)
	start(t, other)

	mgr := session.New(store, session.Options{Local: own, Location: time.UTC, Logger: quiet})
	if _, err := mgr.Start(context.Background(), dana.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	for name, r := range map[string]*Reconciler{"own": own, "other": other} {
		v := waitFor(t, r, func(v View) bool { return v.IsActive(dana.ID) })
		if len(v.Active) != 1 {
			t.Fatalf("%s: expected one active session, got %d", name, len(v.Active))
		}
	}
	if own.View().CurrentSession == nil {
		t.Fatal("expected owning observer to see its current session")
	}
	if other.View().CurrentSession != nil {
		t.Fatal("expected observer without an owner to have no current session")
	}

	if _, err := mgr.Stop(context.Background(), dana.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	v := waitFor(t, other, func(v View) bool { return !v.IsActive(dana.ID) })
	u, _ := v.User(dana.ID)
	stored, err := store.GetUser(context.Background(), dana.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.WeeklyTotal != stored.WeeklyTotal {
		t.Fatalf("expected observed total %d to match store, got %d", stored.WeeklyTotal, u.WeeklyTotal)
	}
}

func TestEchoOfLocalWriteIsNoOp(t *testing.T) {
	broker := feed.NewBroker(16)
	open := models.Session{ID: "s1", UserID: "u1", StartTime: baseTime}
	before := models.User{ID: "u1", Name: "ada"}
	src := &fakeSource{snap: models.Snapshot{Users: []models.User{before}, Sessions: []models.Session{open}}}

	r := newTestReconciler(src, broker, "u1")
	start(t, r)

	end := baseTime.Add(45 * time.Second)
	closed := open
	closed.EndTime = &end
	closed.DurationSeconds = 45
	after := before
	after.WeeklyTotal = 45

	sc := mustChange(t)(models.SessionChange(models.OpUpdate, &closed, &open))
	uc := mustChange(t)(models.UserChange(models.OpUpdate, &after, &before))

	r.ApplyLocal(sc, uc)
	applied := r.View()
	if u, _ := applied.User("u1"); u.WeeklyTotal != 45 {
		t.Fatalf("expected local total 45, got %d", u.WeeklyTotal)
	}

	// Echo, then a marker commit so we know the echo has been consumed
	broker.Publish(sc, uc)
	broker.Publish(mustChange(t)(models.UserChange(models.OpInsert, &models.User{ID: "u2", Name: "bo"}, nil)))

	v := waitFor(t, r, func(v View) bool {
		_, ok := v.User("u2")
		return ok
	})
	if v.Version != applied.Version+1 {
		t.Fatalf("expected only the marker to rebuild the view, versions %d -> %d", applied.Version, v.Version)
	}
	if u, _ := v.User("u1"); u.WeeklyTotal != 45 {
		t.Fatalf("expected total to stay 45 after echo, got %d", u.WeeklyTotal)
	}
}

func TestDifferingEchoOverwrites(t *testing.T) {
	broker := feed.NewBroker(16)
	before := models.User{ID: "u1", Name: "ada"}
	src := &fakeSource{snap: models.Snapshot{Users: []models.User{before}}}

	r := newTestReconciler(src, broker, "u1")
	start(t, r)

	local := before
	local.WeeklyTotal = 45
	r.ApplyLocal(mustChange(t)(models.UserChange(models.OpUpdate, &local, &before)))

	authoritative := before
	authoritative.WeeklyTotal = 50
	broker.Publish(mustChange(t)(models.UserChange(models.OpUpdate, &authoritative, &before)))

	v := waitFor(t, r, func(v View) bool {
		u, _ := v.User("u1")
		return u.WeeklyTotal != 45
	})
	if u, _ := v.User("u1"); u.WeeklyTotal != 50 {
		t.Fatalf("expected authoritative value 50, got %d", u.WeeklyTotal)
	}
}

func TestGapForcesSnapshotRefetch(t *testing.T) {
	broker := feed.NewBroker(16)
	src := &fakeSource{snap: models.Snapshot{Users: []models.User{{ID: "u1", Name: "ada"}}}}

	r := newTestReconciler(src, broker, "")
	start(t, r)

	// A write the dropped feed never delivered
	src.addUser(models.User{ID: "u2", Name: "bo", WeeklyTotal: 600})
	broker.Drop()

	v := waitFor(t, r, func(v View) bool {
		_, ok := v.User("u2")
		return ok
	})
	if src.callCount() < 2 {
		t.Fatalf("expected a second snapshot fetch, got %d", src.callCount())
	}
	if v.Champion == nil || v.Champion.UserID != "u2" {
		t.Fatalf("expected u2 to be champion after re-sync, got %+v", v.Champion)
	}

	// Still live on the new subscription
	broker.Publish(mustChange(t)(models.SessionChange(models.OpInsert,
		&models.Session{ID: "s9", UserID: "u1", StartTime: baseTime}, nil)))
	waitFor(t, r, func(v View) bool { return v.IsActive("u1") })
}

func TestSnapshotFailuresAreRetried(t *testing.T) {
	broker := feed.NewBroker(16)
	src := &fakeSource{
		snap:     models.Snapshot{Users: []models.User{{ID: "u1", Name: "ada"}}},
		failures: 2,
	}

	r := newTestReconciler(src, broker, "")
	start(t, r)

	if n := src.callCount(); n != 3 {
		t.Fatalf("expected 3 snapshot attempts, got %d", n)
	}
	// Failed attempts must not leak subscriptions
	if n := broker.Subscribers(); n != 1 {
		t.Fatalf("expected exactly one live subscription, got %d", n)
	}
}

func TestRunReleasesSubscriptionOnExit(t *testing.T) {
	broker := feed.NewBroker(16)
	src := &fakeSource{}
	r := newTestReconciler(src, broker, "")

	cancel, done := start(t, r)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := broker.Subscribers(); n != 0 {
		t.Fatalf("expected no live subscriptions, got %d", n)
	}
}

func TestRunStopsWhenFeedCloses(t *testing.T) {
	broker := feed.NewBroker(16)
	r := newTestReconciler(&fakeSource{}, broker, "")

	_, done := start(t, r)
	broker.Close()

	select {
	case err := <-done:
		if !errors.Is(err, apperrors.ErrFeedClosed) {
			t.Fatalf("expected feed closed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after feed close")
	}
}

func TestCommitIsAppliedAtomically(t *testing.T) {
	broker := feed.NewBroker(16)
	open := models.Session{ID: "s1", UserID: "u1", StartTime: baseTime}
	before := models.User{ID: "u1", Name: "ada"}
	src := &fakeSource{snap: models.Snapshot{Users: []models.User{before}, Sessions: []models.Session{open}}}

	r := newTestReconciler(src, broker, "u1")
	start(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	views := r.Watch(ctx)

	end := baseTime.Add(time.Minute)
	closed := open
	closed.EndTime = &end
	closed.DurationSeconds = 60
	after := before
	after.WeeklyTotal = 60
	broker.Publish(
		mustChange(t)(models.SessionChange(models.OpUpdate, &closed, &open)),
		mustChange(t)(models.UserChange(models.OpUpdate, &after, &before)),
	)

	for v := range views {
		u, _ := v.User("u1")
		sessionClosed := !v.IsActive("u1")
		if sessionClosed != (u.WeeklyTotal == 60) {
			t.Fatalf("observed partial commit: closed=%v total=%d", sessionClosed, u.WeeklyTotal)
		}
		if sessionClosed {
			return
		}
	}
	t.Fatal("never observed the commit")
}

func TestDuplicateSnapshotIsHarmless(t *testing.T) {
	snap := models.Snapshot{
		Users:    []models.User{{ID: "u1", Name: "ada", WeeklyTotal: 120}, {ID: "u2", Name: "bo", WeeklyTotal: 300}},
		Sessions: []models.Session{{ID: "s1", UserID: "u2", StartTime: baseTime}},
	}
	r := newTestReconciler(&fakeSource{}, feed.NewBroker(1), "u1")

	if err := r.replace(snap); err != nil {
		t.Fatalf("replace: %v", err)
	}
	first := r.View()
	if err := r.replace(snap); err != nil {
		t.Fatalf("replace: %v", err)
	}
	second := r.View()

	if len(first.Users) != len(second.Users) || len(first.Active) != len(second.Active) {
		t.Fatalf("views differ after duplicate snapshot")
	}
	for i := range first.Leaderboard {
		if first.Leaderboard[i] != second.Leaderboard[i] {
			t.Fatalf("leaderboard differs at %d: %+v vs %+v", i, first.Leaderboard[i], second.Leaderboard[i])
		}
	}
	if second.Champion == nil || second.Champion.UserID != "u2" {
		t.Fatalf("expected u2 champion, got %+v", second.Champion)
	}
	if second.DaysUntilReset != 5 {
		t.Fatalf("expected 5 days until reset on a Wednesday, got %d", second.DaysUntilReset)
	}
}

func TestStateApplyIsIdempotent(t *testing.T) {
	s := newState()
	u := models.User{ID: "u1", Name: "ada", WeeklyTotal: 10}
	c := mustChange(t)(models.UserChange(models.OpInsert, &u, nil))

	changed, err := s.apply(c)
	if err != nil || !changed {
		t.Fatalf("expected first apply to change state, got %v, %v", changed, err)
	}
	changed, err = s.apply(c)
	if err != nil || changed {
		t.Fatalf("expected repeat apply to be a no-op, got %v, %v", changed, err)
	}

	del := mustChange(t)(models.UserChange(models.OpDelete, nil, &u))
	if changed, _ := s.apply(del); !changed {
		t.Fatal("expected delete to change state")
	}
	if _, ok := s.users["u1"]; ok {
		t.Fatal("expected user to be removed")
	}
	if changed, _ := s.apply(del); changed {
		t.Fatal("expected repeated delete to be a no-op")
	}

	if _, err := s.apply(models.Change{Entity: "reactions", Op: models.OpInsert, ID: "x", New: []byte(`{}`)}); err == nil {
		t.Fatal("expected unknown entity to be rejected")
	}
}
