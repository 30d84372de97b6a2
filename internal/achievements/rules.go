package achievements

import (
	"fmt"
	"time"

	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/leaderboard"
	"github.com/balkashynov/champ/internal/models"
)

// Input is everything one evaluation pass looks at
type Input struct {
	User     models.User
	Closed   models.Session   // the session that just closed
	History  []models.Session // the user's sessions; may or may not include Closed
	Unlocked map[string]bool  // achievement ids the user already holds
	Now      time.Time
	Location *time.Location // reference timezone for hours, weekdays and week bounds
}

// facts are the quantities the predicates compare against
type facts struct {
	duration        int64
	sessions        int64
	weeklyTotal     int64
	endHour         int64
	weekendSessions int64
}

// Evaluate returns the ids of achievements that the closed session newly
// qualifies for, in catalog order. Ids already in Unlocked are never
// returned. Evaluate has no side effects; calling it again with the same
// input returns the same ids.
//
// Any malformed catalog entry fails the whole pass and no ids are returned.
func (c *Catalog) Evaluate(in Input) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if in.Closed.Open() {
		return nil, apperrors.Wrap(apperrors.CodeMalformedRule, "evaluate achievements",
			fmt.Errorf("session %s is still open", in.Closed.ID))
	}

	f := collectFacts(in)

	var unlocked []string
	for _, e := range c.entries {
		if in.Unlocked[e.ID] {
			continue
		}
		if satisfied(Kind(e.Kind), e.Threshold, f) {
			unlocked = append(unlocked, e.ID)
		}
	}
	return unlocked, nil
}

func collectFacts(in Input) facts {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	now := in.Now
	if now.IsZero() {
		now = *in.Closed.EndTime
	}

	weekStart := leaderboard.WeekStart(now, loc)
	weekEnd := weekStart.AddDate(0, 0, 7)
	end := in.Closed.EndTime.In(loc)

	f := facts{
		duration: in.Closed.DurationSeconds,
		endHour:  int64(end.Hour()),
	}

	for _, s := range closedHistory(in) {
		f.sessions++
		ended := s.EndTime.In(loc)
		if !ended.Before(weekStart) && ended.Before(weekEnd) {
			f.weeklyTotal += s.DurationSeconds
		}
		if wd := ended.Weekday(); wd == time.Saturday || wd == time.Sunday {
			f.weekendSessions++
		}
	}
	return f
}

// closedHistory merges Closed into the user's closed sessions, counting each
// session id once. The Closed value wins over a stale copy in History.
func closedHistory(in Input) []models.Session {
	out := []models.Session{in.Closed}
	for _, s := range in.History {
		if s.ID == in.Closed.ID || s.Open() {
			continue
		}
		if in.User.ID != "" && s.UserID != "" && s.UserID != in.User.ID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// satisfied applies one predicate. Comparison strictness is part of the
// rule: duration_lt and duration_gt are strict, the _gte kinds are not.
// A zero-length session never counts as a duration record.
func satisfied(kind Kind, threshold int64, f facts) bool {
	switch kind {
	case KindSessionCountEq:
		return f.sessions == threshold
	case KindSessionCountGTE:
		return f.sessions >= threshold
	case KindDurationLT:
		return f.duration > 0 && f.duration < threshold
	case KindDurationGT:
		return f.duration > threshold
	case KindWeeklyTotalGTE:
		return f.weeklyTotal >= threshold
	case KindEndHourLT:
		return f.endHour < threshold
	case KindEndHourGTE:
		return f.endHour >= threshold
	case KindWeekendSessionsGTE:
		return f.weekendSessions >= threshold
	}
	return false
}
