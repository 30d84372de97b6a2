package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/champ/internal/achievements"
	"github.com/balkashynov/champ/internal/leaderboard"
	"github.com/balkashynov/champ/internal/models"
	"github.com/balkashynov/champ/internal/parser"
)

// boardReport is the leaderboard as printed by 'champ board --json'
type boardReport struct {
	WeekStart      time.Time           `json:"week_start"`
	DaysUntilReset int                 `json:"days_until_reset"`
	Champion       *leaderboard.Entry  `json:"champion"`
	Entries        []leaderboard.Entry `json:"entries"`
	Active         []string            `json:"active_user_ids"`
}

func buildBoard(snap models.Snapshot, now time.Time, loc *time.Location) boardReport {
	entries := leaderboard.Rank(snap.Users)
	report := boardReport{
		WeekStart:      leaderboard.WeekStart(now, loc),
		DaysUntilReset: leaderboard.DaysUntilReset(now, loc),
		Entries:        entries,
		Active:         []string{},
	}
	if champ, ok := leaderboard.Champion(entries); ok {
		report.Champion = &champ
	}
	for _, s := range snap.Sessions {
		if s.Open() {
			report.Active = append(report.Active, s.UserID)
		}
	}
	return report
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show this week's leaderboard",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		snap, err := a.store.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		report := buildBoard(snap, time.Now(), a.loc)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		if report.Champion != nil {
			fmt.Printf("👑 Champion: %s with %s\n",
				displayName(report.Champion.Name, report.Champion.Avatar),
				parser.FormatSeconds(report.Champion.WeeklyTotal))
		} else {
			fmt.Println("👑 No champion yet this week")
		}
		fmt.Printf("🗓️  Week of %s, %s\n\n", report.WeekStart.Format("Jan 2"), parser.FormatResetIn(report.DaysUntilReset))

		if len(report.Entries) == 0 {
			fmt.Println("Nobody has joined yet. Try 'champ join <name>'.")
			return nil
		}

		active := make(map[string]bool, len(report.Active))
		for _, id := range report.Active {
			active[id] = true
		}
		for _, e := range report.Entries {
			extra := ""
			if gap := behind(report.Champion, e); gap > 0 {
				extra = fmt.Sprintf("  -%s", parser.FormatDuration(gap))
			}
			if active[e.UserID] {
				extra += "  ⏱️  live"
			}
			fmt.Printf("%3d. %-*s  %9s%s\n", e.Rank, parser.MaxNameLength, displayName(e.Name, e.Avatar),
				parser.FormatSeconds(e.WeeklyTotal), extra)
		}
		return nil
	}),
}

// behind returns how far e trails the champion
func behind(champ *leaderboard.Entry, e leaderboard.Entry) time.Duration {
	if champ == nil || champ.UserID == e.UserID {
		return 0
	}
	return time.Duration(champ.WeeklyTotal-e.WeeklyTotal) * time.Second
}

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "Show unlocked and locked achievements",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		self, err := a.self(cmd.Context())
		if err != nil {
			return err
		}
		states, err := a.store.ListAchievementStates(cmd.Context(), self.ID)
		if err != nil {
			return err
		}

		fmt.Printf("🏅 Achievements for %s\n\n", displayName(self.Name, self.Avatar))
		for _, line := range achievementLines(a.catalog, states, a.loc) {
			fmt.Println(line)
		}
		return nil
	}),
}

// achievementLines lists unlocked achievements first, in unlock order, then
// the locked remainder of the catalog
func achievementLines(cat *achievements.Catalog, states []models.AchievementState, loc *time.Location) []string {
	var lines []string
	unlocked := make(map[string]bool, len(states))

	for _, st := range states {
		unlocked[st.AchievementID] = true
		a, ok := cat.Lookup(st.AchievementID)
		if !ok {
			a = models.Achievement{ID: st.AchievementID, Name: st.AchievementID}
		}
		lines = append(lines, fmt.Sprintf("  %s %-16s %s  (%s)", emojiOr(a.Emoji, "✅"), a.Name, a.Description,
			st.UnlockedAt.In(loc).Format("Jan 2 15:04")))
	}
	for _, a := range cat.Entries() {
		if unlocked[a.ID] {
			continue
		}
		lines = append(lines, fmt.Sprintf("  🔒 %-16s %s", a.Name, a.Description))
	}
	return lines
}

func emojiOr(emoji, fallback string) string {
	if emoji == "" {
		return fallback
	}
	return emoji
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check stored weekly totals against session history",
	Long: `Recompute every user's weekly total from the sessions that ended this week and
report users whose stored total differs. With --fix the stored totals are
overwritten with the recomputed values, which also performs the weekly reset
once a new week has begun.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		weekStart := leaderboard.WeekStart(time.Now(), a.loc)

		users, err := a.store.ListUsers(ctx)
		if err != nil {
			return err
		}
		sessions, err := a.store.GetSessionsInRange(ctx, weekStart, weekStart.AddDate(0, 0, 7))
		if err != nil {
			return err
		}

		mismatches := leaderboard.Audit(users, sessions, weekStart)
		if len(mismatches) == 0 {
			fmt.Println("✅ All weekly totals match session history")
			return nil
		}

		fix, _ := cmd.Flags().GetBool("fix")
		for _, m := range mismatches {
			fmt.Printf("⚠️  %s: stored %s, sessions add up to %s\n", m.Name,
				parser.FormatSeconds(m.Stored), parser.FormatSeconds(m.Recomputed))
			if !fix {
				continue
			}
			if _, err := a.store.SetWeeklyTotal(ctx, m.UserID, m.Recomputed); err != nil {
				return err
			}
			fmt.Printf("   fixed\n")
		}
		if !fix {
			fmt.Println("\n💡 Run 'champ audit --fix' to overwrite the stored totals.")
		}
		return nil
	}),
}

func init() {
	boardCmd.Flags().Bool("json", false, "JSON output")
	auditCmd.Flags().Bool("fix", false, "overwrite mismatched totals")
}
