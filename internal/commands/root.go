package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/champ/internal/achievements"
	"github.com/balkashynov/champ/internal/config"
	"github.com/balkashynov/champ/internal/db"
	"github.com/balkashynov/champ/internal/feed"
	"github.com/balkashynov/champ/internal/logger"
	"github.com/balkashynov/champ/internal/models"
	"github.com/balkashynov/champ/internal/parser"
	"github.com/balkashynov/champ/internal/session"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	userRef    string
)

var rootCmd = &cobra.Command{
	Use:   "champ",
	Short: "Weekly session tracker with a live leaderboard",
	Long: `champ tracks timed sessions for a small roster of users.
Every stop adds to your weekly total, may unlock achievements, and moves
you up the leaderboard that everyone watching sees update live.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// app is everything a command needs, opened once per invocation
type app struct {
	cfg     config.Config
	log     *slog.Logger
	loc     *time.Location
	broker  *feed.Broker
	store   *db.Store
	catalog *achievements.Catalog
}

// openApp loads config, sets up logging, opens the store and seeds the
// achievement catalog
func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.Setup(cfg.Log, os.Stderr)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	catalog := achievements.DefaultCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = achievements.LoadCatalogFile(cfg.CatalogPath); err != nil {
			return nil, err
		}
	}

	broker := feed.NewBroker(cfg.Feed.Buffer)
	store, err := db.Open(cfg.DatabasePath, db.Options{Publisher: broker, Logger: log})
	if err != nil {
		broker.Close()
		return nil, err
	}

	if err := store.SeedAchievements(context.Background(), catalog.Entries()); err != nil {
		broker.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to seed achievements: %w", err)
	}

	log.Debug("Opened store",
		slog.String("path", cfg.DatabasePath),
		slog.String("timezone", loc.String()))

	return &app{cfg: cfg, log: log, loc: loc, broker: broker, store: store, catalog: catalog}, nil
}

func (a *app) Close() {
	a.broker.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close store", slog.Any("error", err))
	}
}

// self resolves the local user from --user or the configured user
func (a *app) self(ctx context.Context) (models.User, error) {
	ref := userRef
	if ref == "" {
		ref = a.cfg.User
	}
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return models.User{}, err
	}
	return parser.ResolveUser(ref, users)
}

// manager builds a Manager that may only act on self's sessions
func (a *app) manager(self models.User, local session.LocalApplier) *session.Manager {
	return session.New(a.store, session.Options{
		Catalog:  a.catalog,
		Local:    local,
		Owner:    self.ID,
		Location: a.loc,
		Logger:   a.log,
	})
}

// withApp wraps a command function so it runs with an opened app
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("champ %s (commit %s, built %s)\n", version, commit, date)
	},
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command until ctx is cancelled
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.champ/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&userRef, "user", "u", "", "user id or name (fuzzy matched)")

	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(weekCmd)
	rootCmd.AddCommand(achievementsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.SetHelpCommand(helpCmd)
	rootCmd.AddCommand(versionCmd)
}
