package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balkashynov/champ/internal/parser"
)

var joinCmd = &cobra.Command{
	Use:   "join <name>",
	Short: "Add yourself to the roster",
	Long: `Add a user to the roster. Names are unique, at most 32 characters, and may
contain letters, digits, spaces, dots, dashes and underscores.

Examples:
  champ join ada
  champ join "Ada L" --avatar 🦊`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		name, err := parser.NormalizeName(strings.Join(args, " "))
		if err != nil {
			return err
		}
		avatar, _ := cmd.Flags().GetString("avatar")

		user, err := a.store.CreateUser(cmd.Context(), name, avatar)
		if err != nil {
			return err
		}

		fmt.Printf("👋 Welcome, %s!\n", displayName(user.Name, user.Avatar))
		fmt.Printf("   id: %s\n", user.ID)
		if a.cfg.User == "" {
			fmt.Printf("💡 Set CHAMP_USER=%q or pass --user to act as this user.\n", user.Name)
		}
		return nil
	}),
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List the roster",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		users, err := a.store.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("Nobody has joined yet. Try 'champ join <name>'.")
			return nil
		}

		for _, u := range users {
			active, err := a.store.ActiveSession(cmd.Context(), u.ID)
			if err != nil {
				return err
			}
			marker := "  "
			if active != nil {
				marker = "⏱️ "
			}
			fmt.Printf("%s %-*s  %9s  %s\n", marker, parser.MaxNameLength, displayName(u.Name, u.Avatar),
				parser.FormatSeconds(u.WeeklyTotal), u.ID)
		}
		return nil
	}),
}

func displayName(name, avatar string) string {
	if avatar == "" {
		return name
	}
	return avatar + " " + name
}

func init() {
	joinCmd.Flags().String("avatar", "", "emoji shown next to your name")
}
