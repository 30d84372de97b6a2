// Package leaderboard derives weekly totals, rankings and the current
// champion from users and their sessions. Everything here is a pure
// function of its arguments.
package leaderboard

import (
	"sort"
	"time"

	"github.com/balkashynov/champ/internal/models"
)

// Entry is one ranked row of the leaderboard
type Entry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	WeeklyTotal int64  `json:"weekly_total"`
}

// Rank orders users by weekly total descending, ties broken by id ascending.
// The result is a total order, so re-ranking the same users is stable.
func Rank(users []models.User) []Entry {
	sorted := make([]models.User, len(users))
	copy(sorted, users)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].WeeklyTotal != sorted[j].WeeklyTotal {
			return sorted[i].WeeklyTotal > sorted[j].WeeklyTotal
		}
		return sorted[i].ID < sorted[j].ID
	})

	entries := make([]Entry, len(sorted))
	for i, u := range sorted {
		entries[i] = Entry{
			Rank:        i + 1,
			UserID:      u.ID,
			Name:        u.Name,
			Avatar:      u.Avatar,
			WeeklyTotal: u.WeeklyTotal,
		}
	}
	return entries
}

// Champion returns the head of a ranked leaderboard. There is no champion
// while nobody has tracked any time this week.
func Champion(entries []Entry) (Entry, bool) {
	if len(entries) == 0 || entries[0].WeeklyTotal <= 0 {
		return Entry{}, false
	}
	return entries[0], true
}

// WeekStart returns Monday 00:00 of the week containing t, in loc
func WeekStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	daysFromMonday := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -daysFromMonday)
}

// DaysUntilReset returns the number of days left until the next Monday
// 00:00 in loc. Monday itself counts as a full week, so the range is [1, 7].
func DaysUntilReset(now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	daysFromMonday := (int(now.In(loc).Weekday()) + 6) % 7
	return 7 - daysFromMonday
}

// WeeklyTotal sums the durations of closed sessions that ended inside the
// week starting at weekStart
func WeeklyTotal(sessions []models.Session, weekStart time.Time) int64 {
	weekEnd := weekStart.AddDate(0, 0, 7)
	var total int64
	for _, s := range sessions {
		if s.Open() {
			continue
		}
		if s.EndTime.Before(weekStart) || !s.EndTime.Before(weekEnd) {
			continue
		}
		total += s.DurationSeconds
	}
	return total
}

// Mismatch is a user whose stored weekly total disagrees with the total
// recomputed from session history
type Mismatch struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Stored     int64  `json:"stored"`
	Recomputed int64  `json:"recomputed"`
}

// Audit recomputes every user's weekly total from sessions and reports the
// users whose stored counter differs. Results are ordered by user id.
func Audit(users []models.User, sessions []models.Session, weekStart time.Time) []Mismatch {
	byUser := make(map[string][]models.Session)
	for _, s := range sessions {
		byUser[s.UserID] = append(byUser[s.UserID], s)
	}

	var out []Mismatch
	for _, u := range users {
		total := WeeklyTotal(byUser[u.ID], weekStart)
		if total != u.WeeklyTotal {
			out = append(out, Mismatch{
				UserID:     u.ID,
				Name:       u.Name,
				Stored:     u.WeeklyTotal,
				Recomputed: total,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
