package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/feed"
	"github.com/balkashynov/champ/internal/models"
)

func openTestStore(t *testing.T) (*Store, *feed.Broker) {
	t.Helper()
	broker := feed.NewBroker(16)
	store, err := Open(filepath.Join(t.TempDir(), "champ.db"), Options{Publisher: broker})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, broker
}

func nextCommit(t *testing.T, sub *feed.Subscription) models.Commit {
	t.Helper()
	select {
	case c, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription ended: %v", sub.Err())
		}
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for commit")
	}
	return models.Commit{}
}

func TestCreateUserValidatesName(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, "   ", ""); apperrors.CodeOf(err) != apperrors.CodeUserNameEmpty {
		t.Fatalf("expected empty-name error, got %v", err)
	}

	alice, err := store.CreateUser(ctx, " alice ", "🦊")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if alice.ID == "" || alice.Name != "alice" {
		t.Fatalf("unexpected user %+v", alice)
	}

	if _, err := store.CreateUser(ctx, "alice", ""); apperrors.CodeOf(err) != apperrors.CodeUserNameTaken {
		t.Fatalf("expected name-taken error, got %v", err)
	}

	got, err := store.GetUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Avatar != "🦊" {
		t.Fatalf("expected avatar to round-trip, got %q", got.Avatar)
	}

	if _, err := store.GetUser(ctx, "nobody"); apperrors.CodeOf(err) != apperrors.CodeUserNotFound {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestOpenSessionRejectsSecondOpenSession(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "bob", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	if _, err := store.OpenSession(ctx, user.ID, start); err != nil {
		t.Fatalf("open session: %v", err)
	}
	_, err = store.OpenSession(ctx, user.ID, start.Add(time.Minute))
	if apperrors.CodeOf(err) != apperrors.CodeAlreadyActive {
		t.Fatalf("expected already active, got %v", err)
	}

	if _, err := store.OpenSession(ctx, "ghost", start); apperrors.CodeOf(err) != apperrors.CodeUserNotFound {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestCloseSessionUpdatesTotalInOneCommit(t *testing.T) {
	store, broker := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	user, err := store.CreateUser(ctx, "carol", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	session, err := store.OpenSession(ctx, user.ID, start)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	sub, err := broker.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	closed, err := store.CloseSession(ctx, session.ID, start.Add(45*time.Second), 45)
	if err != nil {
		t.Fatalf("close session: %v", err)
	}
	if closed.Session.Open() || closed.Session.DurationSeconds != 45 {
		t.Fatalf("unexpected closed session %+v", closed.Session)
	}
	if closed.User.WeeklyTotal != 45 || closed.PrevUser.WeeklyTotal != 0 {
		t.Fatalf("expected total 0 -> 45, got %d -> %d", closed.PrevUser.WeeklyTotal, closed.User.WeeklyTotal)
	}

	commit := nextCommit(t, sub)
	if len(commit.Changes) != 2 {
		t.Fatalf("expected session and user change in one commit, got %d changes", len(commit.Changes))
	}
	if commit.Changes[0].Entity != models.EntitySessions || commit.Changes[1].Entity != models.EntityUsers {
		t.Fatalf("unexpected entities %s, %s", commit.Changes[0].Entity, commit.Changes[1].Entity)
	}
	var published models.User
	if err := json.Unmarshal(commit.Changes[1].New, &published); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if published.WeeklyTotal != 45 {
		t.Fatalf("expected published total 45, got %d", published.WeeklyTotal)
	}

	// Closing twice is refused and leaves the total alone
	if _, err := store.CloseSession(ctx, session.ID, start.Add(time.Hour), 3600); apperrors.CodeOf(err) != apperrors.CodeNoActiveSession {
		t.Fatalf("expected no active session, got %v", err)
	}
	after, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if after.WeeklyTotal != 45 {
		t.Fatalf("expected total to stay 45, got %d", after.WeeklyTotal)
	}

	active, err := store.ActiveSession(ctx, user.ID)
	if err != nil {
		t.Fatalf("active session: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active session, got %+v", active)
	}
}

func TestUnlockAchievementIsWriteOnce(t *testing.T) {
	store, broker := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	user, err := store.CreateUser(ctx, "dave", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	catalog := []models.Achievement{{ID: "fast", Name: "Speedrun", Kind: "duration_lt", Threshold: 60}}
	if err := store.SeedAchievements(ctx, catalog); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Seeding again is an upsert
	catalog[0].Name = "Speedrunner"
	if err := store.SeedAchievements(ctx, catalog); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	achievements, err := store.ListAchievements(ctx)
	if err != nil {
		t.Fatalf("list achievements: %v", err)
	}
	if len(achievements) != 1 || achievements[0].Name != "Speedrunner" {
		t.Fatalf("unexpected catalog %+v", achievements)
	}

	sub, err := broker.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	at := time.Date(2026, 10, 14, 9, 0, 45, 0, time.UTC)
	first, created, err := store.UnlockAchievement(ctx, user.ID, "fast", at)
	if err != nil || !created {
		t.Fatalf("expected first unlock to create, got created=%v err=%v", created, err)
	}
	second, created, err := store.UnlockAchievement(ctx, user.ID, "fast", at.Add(time.Hour))
	if err != nil || created {
		t.Fatalf("expected second unlock to be a no-op, got created=%v err=%v", created, err)
	}
	if first.ID != second.ID || !second.UnlockedAt.Equal(at) {
		t.Fatalf("expected original unlock to be kept, got %+v", second)
	}

	commit := nextCommit(t, sub)
	if commit.Changes[0].Entity != models.EntityUserAchievements {
		t.Fatalf("unexpected entity %s", commit.Changes[0].Entity)
	}
	select {
	case extra := <-sub.C():
		t.Fatalf("expected no commit for repeated unlock, got seq %d", extra.Seq)
	default:
	}

	states, err := store.ListAchievementStates(ctx, user.ID)
	if err != nil {
		t.Fatalf("list states: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("expected 1 state, got %d", len(states))
	}
}

func TestSnapshotAndRangeQueries(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "erin", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	monday := time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)
	for i, d := range []time.Duration{-48 * time.Hour, 0, 24 * time.Hour} {
		start := monday.Add(d)
		s, err := store.OpenSession(ctx, user.ID, start)
		if err != nil {
			t.Fatalf("open session %d: %v", i, err)
		}
		if _, err := store.CloseSession(ctx, s.ID, start.Add(10*time.Minute), 600); err != nil {
			t.Fatalf("close session %d: %v", i, err)
		}
	}
	if _, err := store.OpenSession(ctx, user.ID, monday.Add(48*time.Hour)); err != nil {
		t.Fatalf("open trailing session: %v", err)
	}

	inWeek, err := store.GetSessionsInRange(ctx, monday.Add(-10*time.Hour), monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(inWeek) != 2 {
		t.Fatalf("expected 2 closed sessions this week, got %d", len(inWeek))
	}

	snap, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Users) != 1 || len(snap.Sessions) != 4 {
		t.Fatalf("expected 1 user and 4 sessions, got %d and %d", len(snap.Users), len(snap.Sessions))
	}
	if snap.Users[0].WeeklyTotal != 1800 {
		t.Fatalf("expected stored total 1800, got %d", snap.Users[0].WeeklyTotal)
	}
	if !snap.Sessions[0].Open() {
		t.Fatal("expected most recent session first and open")
	}

	fixed, err := store.SetWeeklyTotal(ctx, user.ID, 1200)
	if err != nil {
		t.Fatalf("set weekly total: %v", err)
	}
	if fixed.WeeklyTotal != 1200 {
		t.Fatalf("expected 1200, got %d", fixed.WeeklyTotal)
	}
}
