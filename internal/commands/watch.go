package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/balkashynov/champ/internal/reconcile"
	"github.com/balkashynov/champ/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live leaderboard",
	Long: `Open the live leaderboard. Totals, the champion and who is currently running a
session update as soon as anyone starts or stops, including from other
terminals. Press s to start or stop your own session.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		self, err := a.self(cmd.Context())
		if err != nil {
			return err
		}

		rec := reconcile.New(a.store, a.broker, reconcile.Options{
			Self:     self.ID,
			Location: a.loc,
			Logger:   a.log,
		})
		mgr := a.manager(self, rec)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Writes from other processes never reach the in-process feed, so a
		// detected external commit forces the reconciler to re-sync
		if interval := a.cfg.Feed.PollInterval(); interval > 0 {
			go func() {
				if err := a.store.WatchExternal(ctx, interval, a.broker.Drop); err != nil {
					a.log.Warn("External write polling stopped", slog.Any("error", err))
				}
			}()
		}

		return tui.RunWatchTUI(ctx, rec, mgr, self, a.catalog)
	}),
}
