package reconcile

import (
	"sort"
	"time"

	"github.com/balkashynov/champ/internal/leaderboard"
	"github.com/balkashynov/champ/internal/models"
)

// View is a read-only picture of the shared state. Each View owns its
// slices; nothing in it aliases the Reconciler's cache.
type View struct {
	Ready   bool   // false until the first snapshot has been loaded
	Version uint64 // increases every time the view is rebuilt

	Users          []models.User    // by name
	Active         []models.Session // open sessions, oldest first
	CurrentSession *models.Session  // the owning user's open session, if any
	Leaderboard    []leaderboard.Entry
	Champion       *leaderboard.Entry // nil when nobody has time this week
	DaysUntilReset int

	Achievements []models.Achievement      // the catalog
	Unlocked     []models.AchievementState // the owning user's unlocks, oldest first
}

// IsActive reports whether userID has an open session
func (v View) IsActive(userID string) bool {
	for _, s := range v.Active {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// User looks up a user by id
func (v View) User(id string) (models.User, bool) {
	for _, u := range v.Users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

// HasUnlocked reports whether the owning user holds achievementID
func (v View) HasUnlocked(achievementID string) bool {
	for _, st := range v.Unlocked {
		if st.AchievementID == achievementID {
			return true
		}
	}
	return false
}

// buildView derives a View from the cache. Derived values are always
// recomputed from current cache contents, never from event history.
func buildView(s *state, self string, now time.Time, loc *time.Location) View {
	v := View{
		Ready:          true,
		DaysUntilReset: leaderboard.DaysUntilReset(now, loc),
		Achievements:   append([]models.Achievement(nil), s.achievements...),
	}

	v.Users = make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		v.Users = append(v.Users, u)
	}
	sort.Slice(v.Users, func(i, j int) bool {
		if v.Users[i].Name != v.Users[j].Name {
			return v.Users[i].Name < v.Users[j].Name
		}
		return v.Users[i].ID < v.Users[j].ID
	})

	v.Leaderboard = leaderboard.Rank(v.Users)
	if champ, ok := leaderboard.Champion(v.Leaderboard); ok {
		v.Champion = &champ
	}

	for _, sess := range s.sessions {
		if !sess.Open() {
			continue
		}
		v.Active = append(v.Active, sess)
		if self != "" && sess.UserID == self {
			cur := sess
			v.CurrentSession = &cur
		}
	}
	sort.Slice(v.Active, func(i, j int) bool {
		if !v.Active[i].StartTime.Equal(v.Active[j].StartTime) {
			return v.Active[i].StartTime.Before(v.Active[j].StartTime)
		}
		return v.Active[i].ID < v.Active[j].ID
	})

	if self != "" {
		for _, st := range s.unlocks {
			if st.UserID == self {
				v.Unlocked = append(v.Unlocked, st)
			}
		}
		sort.Slice(v.Unlocked, func(i, j int) bool {
			if !v.Unlocked[i].UnlockedAt.Equal(v.Unlocked[j].UnlockedAt) {
				return v.Unlocked[i].UnlockedAt.Before(v.Unlocked[j].UnlockedAt)
			}
			return v.Unlocked[i].AchievementID < v.Unlocked[j].AchievementID
		})
	}
	return v
}
