package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/champ/internal/leaderboard"
	"github.com/balkashynov/champ/internal/models"
)

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show this week's time per user and day",
	Long: `Show a timesheet of this calendar week's closed sessions, grouped by user and
by the day each session ended. Values are minutes rounded up.

Example output:
  User                   Mon  Tue  Wed  Thu  Fri  Total
  ada                     45   30    -    -    -     75
  bo                       -   12   60    -    -     72
  Total                   45   42   60    0    0    147`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		weekStart := leaderboard.WeekStart(time.Now(), a.loc)

		users, err := a.store.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		sessions, err := a.store.GetSessionsInRange(cmd.Context(), weekStart, weekStart.AddDate(0, 0, 7))
		if err != nil {
			return fmt.Errorf("failed to get sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println("No time tracked this week.")
			return nil
		}
		displayTimesheet(buildTimesheet(users, sessions, a.loc), weekStart)
		return nil
	}),
}

// timesheetRow is one user's minutes per weekday, Monday first
type timesheetRow struct {
	Name    string
	Minutes [7]int
	Total   int
}

type timesheet struct {
	Rows   []timesheetRow
	Totals [7]int
	Total  int
	Days   []int // weekday columns to show, 0 = Monday
}

// buildTimesheet groups closed sessions by user and by the weekday they
// ended on in loc. Users without sessions are left out.
func buildTimesheet(users []models.User, sessions []models.Session, loc *time.Location) timesheet {
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	byUser := make(map[string]*timesheetRow)
	seconds := make(map[string]*[7]int64)
	for _, s := range sessions {
		if s.Open() {
			continue
		}
		row, ok := byUser[s.UserID]
		if !ok {
			name := names[s.UserID]
			if name == "" {
				name = s.UserID
			}
			row = &timesheetRow{Name: name}
			byUser[s.UserID] = row
			seconds[s.UserID] = &[7]int64{}
		}
		day := (int(s.EndTime.In(loc).Weekday()) + 6) % 7
		seconds[s.UserID][day] += s.DurationSeconds
	}

	var ts timesheet
	active := make(map[int]bool)
	for id, row := range byUser {
		for day, secs := range seconds[id] {
			if secs <= 0 {
				continue
			}
			minutes := int((secs + 59) / 60)
			row.Minutes[day] = minutes
			row.Total += minutes
			ts.Totals[day] += minutes
			ts.Total += minutes
			active[day] = true
		}
		ts.Rows = append(ts.Rows, *row)
	}
	sort.Slice(ts.Rows, func(i, j int) bool {
		if ts.Rows[i].Total != ts.Rows[j].Total {
			return ts.Rows[i].Total > ts.Rows[j].Total
		}
		return ts.Rows[i].Name < ts.Rows[j].Name
	})

	// Weekdays always show, weekend days only when worked
	for day := 0; day < 7; day++ {
		if day < 5 || active[day] {
			ts.Days = append(ts.Days, day)
		}
	}
	return ts
}

// displayTimesheet outputs the formatted timesheet table
func displayTimesheet(ts timesheet, weekStart time.Time) {
	dayNames := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

	nameWidth := 20
	for _, row := range ts.Rows {
		if len(row.Name) > nameWidth {
			nameWidth = len(row.Name)
		}
	}

	dayColumnWidth := 5
	totalColumnWidth := 7

	fmt.Printf("%-*s", nameWidth, "User")
	for _, day := range ts.Days {
		fmt.Printf("  %*s", dayColumnWidth-2, dayNames[day])
	}
	fmt.Printf("  %*s\n", totalColumnWidth-2, "Total")
	printSeparator(nameWidth, len(ts.Days), dayColumnWidth, totalColumnWidth)

	for _, row := range ts.Rows {
		fmt.Printf("%-*s", nameWidth, row.Name)
		for _, day := range ts.Days {
			if row.Minutes[day] > 0 {
				fmt.Printf("  %*d", dayColumnWidth-2, row.Minutes[day])
			} else {
				fmt.Printf("  %*s", dayColumnWidth-2, "-")
			}
		}
		fmt.Printf("  %*d\n", totalColumnWidth-2, row.Total)
	}
	printSeparator(nameWidth, len(ts.Days), dayColumnWidth, totalColumnWidth)

	fmt.Printf("%-*s", nameWidth, "Total")
	for _, day := range ts.Days {
		fmt.Printf("  %*d", dayColumnWidth-2, ts.Totals[day])
	}
	fmt.Printf("  %*d\n", totalColumnWidth-2, ts.Total)

	fmt.Printf("\nWeek of %s to %s\n",
		weekStart.Format("Jan 2"),
		weekStart.AddDate(0, 0, 6).Format("Jan 2, 2006"))
}

func printSeparator(nameWidth, days, dayColumnWidth, totalColumnWidth int) {
	fmt.Print(strings.Repeat("-", nameWidth))
	for i := 0; i < days; i++ {
		fmt.Print("  " + strings.Repeat("-", dayColumnWidth-2))
	}
	fmt.Print("  " + strings.Repeat("-", totalColumnWidth-2))
	fmt.Println()
}
