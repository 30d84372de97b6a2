package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/balkashynov/champ/internal/achievements"
	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/models"
	"github.com/balkashynov/champ/internal/parser"
	"github.com/balkashynov/champ/internal/reconcile"
	"github.com/balkashynov/champ/internal/session"
)

// RunTimerTUI shows the big clock for a running session and stops it
// through ctrl when the user presses s
func RunTimerTUI(ctx context.Context, ctrl Controller, sess models.Session, user models.User, catalog *achievements.Catalog) error {
	p := tea.NewProgram(NewTimerModel(sess, user), tea.WithAltScreen(), tea.WithContext(ctx))

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	timerModel := finalModel.(TimerModel)
	if !timerModel.Stopping() {
		fmt.Printf("\n💡 Session is still running for %s\n", displayName(user))
		fmt.Printf("   Use 'champ status' to check it or 'champ stop' to stop it.\n")
		return nil
	}

	res, err := ctrl.Stop(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	PrintStopResult(res, catalog)
	return nil
}

// PrintStopResult reports a completed stop on stdout
func PrintStopResult(res session.StopResult, catalog *achievements.Catalog) {
	duration := time.Duration(res.Session.DurationSeconds) * time.Second
	fmt.Printf("⏹️  Stopped session for %s\n", displayName(res.User))
	fmt.Printf("📊 Session duration: %s\n", parser.FormatClock(duration))
	fmt.Printf("🗓️  This week: %s\n", parser.FormatSeconds(res.User.WeeklyTotal))

	for _, name := range achievementNames(catalog, res.Unlocked) {
		fmt.Printf("🏅 Achievement unlocked: %s\n", name)
	}
	if res.EvaluationErr != nil {
		fmt.Printf("⚠️  Achievements could not be checked: %v\n", res.EvaluationErr)
	}
}

// RunWatchTUI runs the live board. The reconciler, the view forwarder and
// the program share one lifetime: when any of them ends, all of them do.
func RunWatchTUI(ctx context.Context, rec *reconcile.Reconciler, ctrl Controller, self models.User, catalog *achievements.Catalog) error {
	g, gctx := errgroup.WithContext(ctx)

	p := tea.NewProgram(NewBoardModel(ctrl, self, catalog), tea.WithAltScreen(), tea.WithContext(gctx))

	g.Go(func() error {
		return rec.Run(gctx)
	})

	g.Go(func() error {
		refresh := time.NewTicker(time.Minute)
		defer refresh.Stop()

		views := rec.Watch(gctx)
		for {
			select {
			case v, ok := <-views:
				if !ok {
					return nil
				}
				p.Send(viewMsg(v))
			case <-refresh.C:
				// Keeps the reset countdown current across midnight
				rec.Refresh()
			}
		}
	})

	g.Go(func() error {
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		// Quitting the board ends the other goroutines
		return errQuit
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		if errors.Is(err, apperrors.ErrFeedClosed) {
			return fmt.Errorf("live updates stopped: %w", err)
		}
		return err
	}
	return nil
}

var errQuit = errors.New("board closed")
