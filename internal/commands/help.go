package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var helpCmd = &cobra.Command{
	Use:   "help",
	Short: "Show comprehensive help for champ",
	Long:  `Display detailed help for all champ commands and flags.`,
	Run: func(cmd *cobra.Command, args []string) {
		showCustomHelp()
	},
}

func showCustomHelp() {
	fmt.Print(`
 ██████╗██╗  ██╗ █████╗ ███╗   ███╗██████╗
██╔════╝██║  ██║██╔══██╗████╗ ████║██╔══██╗
██║     ███████║███████║██╔████╔██║██████╔╝
██║     ██╔══██║██╔══██║██║╚██╔╝██║██╔═══╝
╚██████╗██║  ██║██║  ██║██║ ╚═╝ ██║██║
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝     ╚═╝╚═╝

champ - weekly session tracker with a live leaderboard

GLOBAL FLAGS:

  --config <file>         Config file (default ~/.champ/config.toml)
  -u, --user <ref>        Act as this user: id, name, or an unambiguous
                          part of a name ("ad" for "ada")

COMMANDS:

  join <name>             Add a user to the roster
    --avatar              Emoji shown next to the name
  users                   List the roster and who is running a session

  start                   Start a session with the interactive timer
    --no-ui               Start without the timer
  stop                    Stop the running session and save it
  status                  Show the running session and this week's total

  board                   Show this week's leaderboard and champion
    --json                JSON output
  week                    Show this week's minutes per user and day
  achievements            Show unlocked and locked achievements
  watch                   Live leaderboard that updates as others play

    Quick actions:
      s             Start/stop your session
      esc/q         Quit

  audit                   Compare stored weekly totals with session history
    --fix                 Overwrite mismatched totals (weekly reset)

  version                 Show version information
  help                    Show this help

CONFIG (~/.champ/config.toml, overridden by CHAMP_* environment variables):

  database_path = "~/.champ/champ.db"   # CHAMP_DB_PATH
  user          = "ada"                 # CHAMP_USER
  timezone      = "Europe/Berlin"       # CHAMP_TIMEZONE, default Local
  catalog_path  = "achievements.json"   # CHAMP_CATALOG

  [log]
  level  = "warn"                       # CHAMP_LOG_LEVEL
  format = "text"                       # CHAMP_LOG_FORMAT, text or json

  [feed]
  buffer  = 64                          # CHAMP_FEED_BUFFER
  poll_ms = 1000                        # CHAMP_FEED_POLL_MS, 0 disables

`)
}
