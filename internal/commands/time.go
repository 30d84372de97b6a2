package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/champ/internal/parser"
	"github.com/balkashynov/champ/internal/tui"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session",
	Long: `Start a session for the current user. Opens the interactive timer by default,
use --no-ui for a simple start.

Examples:
  champ start            # Start with the interactive timer
  champ start --no-ui    # Start and return immediately`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		self, err := a.self(cmd.Context())
		if err != nil {
			return err
		}
		mgr := a.manager(self, nil)

		sess, err := mgr.Start(cmd.Context(), self.ID)
		if err != nil {
			return err
		}

		noUI, _ := cmd.Flags().GetBool("no-ui")
		if noUI {
			fmt.Printf("⏱️  Started session for %s\n", displayName(self.Name, self.Avatar))
			fmt.Printf("Started at: %s\n", sess.StartTime.In(a.loc).Format("15:04:05"))
			return nil
		}
		return tui.RunTimerTUI(cmd.Context(), mgr, sess, self, a.catalog)
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		self, err := a.self(cmd.Context())
		if err != nil {
			return err
		}

		res, err := a.manager(self, nil).Stop(cmd.Context(), self.ID)
		if err != nil {
			return err
		}
		tui.PrintStopResult(res, a.catalog)
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		self, err := a.self(cmd.Context())
		if err != nil {
			return err
		}

		sess, err := a.manager(self, nil).Current(cmd.Context(), self.ID)
		if err != nil {
			return err
		}

		if sess == nil {
			fmt.Printf("No active session for %s\n", displayName(self.Name, self.Avatar))
		} else {
			fmt.Printf("⏱️  Session running for %s\n", displayName(self.Name, self.Avatar))
			fmt.Printf("Started at: %s\n", sess.StartTime.In(a.loc).Format("15:04:05"))
			fmt.Printf("Elapsed time: %s\n", parser.FormatClock(sess.Elapsed(time.Now())))
		}
		fmt.Printf("🗓️  This week: %s\n", parser.FormatSeconds(self.WeeklyTotal))
		return nil
	}),
}

func init() {
	startCmd.Flags().Bool("no-ui", false, "Start without the interactive timer")
}
