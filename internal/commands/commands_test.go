package commands

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/balkashynov/champ/internal/achievements"
	"github.com/balkashynov/champ/internal/db"
	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/models"
)

// Wednesday
var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func closed(userID string, end time.Time, seconds int64) models.Session {
	e := end
	return models.Session{
		ID:              userID + end.String(),
		UserID:          userID,
		StartTime:       end.Add(-time.Duration(seconds) * time.Second),
		EndTime:         &e,
		DurationSeconds: seconds,
	}
}

func TestBuildTimesheet(t *testing.T) {
	users := []models.User{{ID: "u1", Name: "ada"}, {ID: "u2", Name: "bo"}}
	monday := time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)
	sessions := []models.Session{
		closed("u1", monday, 45*60),
		closed("u1", monday.Add(2*time.Hour), 61), // rounds up to 2 minutes
		closed("u2", monday.AddDate(0, 0, 1), 30*60),
		closed("u2", monday.AddDate(0, 0, 5), 60*60), // Saturday
		{ID: "open", UserID: "u1", StartTime: monday},
	}

	ts := buildTimesheet(users, sessions, time.UTC)

	if len(ts.Rows) != 2 || ts.Rows[0].Name != "bo" || ts.Rows[1].Name != "ada" {
		t.Fatalf("expected bo then ada, got %+v", ts.Rows)
	}
	if ts.Rows[1].Minutes[0] != 47 || ts.Rows[1].Total != 47 {
		t.Fatalf("expected ada 47 minutes on Monday, got %+v", ts.Rows[1])
	}
	if ts.Rows[0].Minutes[1] != 30 || ts.Rows[0].Minutes[5] != 60 || ts.Rows[0].Total != 90 {
		t.Fatalf("unexpected bo row %+v", ts.Rows[0])
	}
	if ts.Total != 137 || ts.Totals[0] != 47 {
		t.Fatalf("unexpected totals %d %v", ts.Total, ts.Totals)
	}
	want := []int{0, 1, 2, 3, 4, 5}
	if len(ts.Days) != len(want) {
		t.Fatalf("expected days %v, got %v", want, ts.Days)
	}
	for i := range want {
		if ts.Days[i] != want[i] {
			t.Fatalf("expected days %v, got %v", want, ts.Days)
		}
	}
}

func TestBuildBoard(t *testing.T) {
	snap := models.Snapshot{
		Users: []models.User{
			{ID: "u1", Name: "ada", WeeklyTotal: 100},
			{ID: "u2", Name: "bo", WeeklyTotal: 300},
			{ID: "u3", Name: "cy"},
		},
		Sessions: []models.Session{
			{ID: "s1", UserID: "u3", StartTime: now.Add(-time.Minute)},
			closed("u1", now.Add(-time.Hour), 100),
		},
	}

	report := buildBoard(snap, now, time.UTC)

	if report.Champion == nil || report.Champion.UserID != "u2" {
		t.Fatalf("expected bo as champion, got %+v", report.Champion)
	}
	if report.DaysUntilReset != 5 {
		t.Fatalf("expected 5 days until reset on a Wednesday, got %d", report.DaysUntilReset)
	}
	if !report.WeekStart.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected week start %s", report.WeekStart)
	}
	if len(report.Active) != 1 || report.Active[0] != "u3" {
		t.Fatalf("expected u3 active, got %v", report.Active)
	}
	if gap := behind(report.Champion, report.Entries[1]); gap != 200*time.Second {
		t.Fatalf("expected ada 200s behind, got %s", gap)
	}
	if gap := behind(report.Champion, report.Entries[0]); gap != 0 {
		t.Fatalf("expected champion not behind, got %s", gap)
	}

	empty := buildBoard(models.Snapshot{Users: []models.User{{ID: "u1"}}}, now, time.UTC)
	if empty.Champion != nil {
		t.Fatalf("expected no champion at zero totals, got %+v", empty.Champion)
	}
}

func TestAchievementLinesListUnlockedFirst(t *testing.T) {
	cat := achievements.DefaultCatalog()
	states := []models.AchievementState{
		{UserID: "u1", AchievementID: "fast", UnlockedAt: now},
	}

	lines := achievementLines(cat, states, time.UTC)

	if len(lines) != len(cat.Entries()) {
		t.Fatalf("expected one line per catalog entry, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "Lightning Round") || !strings.Contains(lines[0], "Oct 14 12:00") {
		t.Fatalf("expected unlocked fast first, got %q", lines[0])
	}
	for _, line := range lines[1:] {
		if !strings.Contains(line, "🔒") {
			t.Fatalf("expected the rest locked, got %q", line)
		}
	}
}

// run executes the command tree against the environment set up by the test
func run(t *testing.T, args ...string) error {
	t.Helper()
	configPath, userRef = "", ""
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestCommandsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "champ.db")
	t.Setenv("HOME", dir)
	t.Setenv("CHAMP_DB_PATH", dbPath)
	t.Setenv("CHAMP_TIMEZONE", "UTC")
	t.Setenv("CHAMP_LOG_LEVEL", "error")
	t.Setenv("CHAMP_USER", "")
	t.Setenv("CHAMP_CATALOG", "")

	if err := run(t, "join", "ada", "--avatar", "🦊"); err != nil {
		t.Fatalf("join ada: %v", err)
	}
	if err := run(t, "join", "bo", "--avatar", ""); err != nil {
		t.Fatalf("join bo: %v", err)
	}
	if err := run(t, "join", "ada"); apperrors.CodeOf(err) != apperrors.CodeUserNameTaken {
		t.Fatalf("expected name taken, got %v", err)
	}

	if err := run(t, "start", "--no-ui"); apperrors.CodeOf(err) != apperrors.CodeUserUnspecified {
		t.Fatalf("expected unspecified user, got %v", err)
	}
	if err := run(t, "start", "--no-ui", "-u", "ada"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := run(t, "start", "--no-ui", "-u", "ada"); !errors.Is(err, apperrors.ErrAlreadyActive) {
		t.Fatalf("expected already active, got %v", err)
	}
	if err := run(t, "status", "-u", "ada"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := run(t, "stop", "-u", "ad"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := run(t, "stop", "-u", "bo"); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}

	for _, args := range [][]string{
		{"users"},
		{"board", "--json"},
		{"week"},
		{"achievements", "-u", "ada"},
		{"audit", "--fix"},
	} {
		if err := run(t, args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	store, err := db.Open(dbPath, db.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	users, err := store.ListUsers(ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("expected two users, got %v (%v)", users, err)
	}
	ada := users[0]
	sessions, err := store.ListSessions(ctx, ada.ID)
	if err != nil || len(sessions) != 1 || sessions[0].Open() {
		t.Fatalf("expected one closed session, got %+v (%v)", sessions, err)
	}
	states, err := store.ListAchievementStates(ctx, ada.ID)
	if err != nil {
		t.Fatalf("list achievement states: %v", err)
	}
	unlocked := make(map[string]bool)
	for _, st := range states {
		unlocked[st.AchievementID] = true
	}
	if !unlocked["first-session"] || !unlocked["fast"] {
		t.Fatalf("expected first-session and fast, got %v", unlocked)
	}
}
