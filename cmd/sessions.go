package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/sessions"
	"github.com/askyhq/asky/internal/store"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage saved sessions",
	}
	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsDetachCmd())
	cmd.AddCommand(sessionsDeleteCmd())
	return cmd
}

// openStore loads config and opens the persistent store for the
// management subcommands.
func openStore() (*store.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.ResolveDBPath())
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions with previews",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			infos, err := st.ListSessions()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("No sessions.")
				return nil
			}

			attached, _ := sessions.ShellSessionID()
			fmt.Printf("%-4s %-6s %-22s %-8s %-5s %s\n", "", "ID", "NAME", "MODEL", "MSGS", "PREVIEW")
			for _, s := range infos {
				marker := ""
				if s.ID == attached {
					marker = "*"
				}
				fmt.Printf("%-4s %-6d %-22s %-8s %-5d %s\n",
					marker, s.ID,
					runewidth.Truncate(s.Name, 22, "…"),
					s.ModelAlias, s.MessageCount,
					runewidth.Truncate(s.Preview, 60, "…"))
			}
			return nil
		},
	}
}

func sessionsDetachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach",
		Short: "Detach this shell from its sticky session",
		Run: func(cmd *cobra.Command, args []string) {
			if id, ok := sessions.ShellSessionID(); ok {
				sessions.ClearShellSession()
				fmt.Printf("Detached from session %d.\n", id)
				return
			}
			fmt.Println("This shell is not attached to a session.")
		},
	}
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>... | all",
		Short: "Delete sessions and their messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 && args[0] == "all" {
				if !confirm("Delete ALL sessions?") {
					fmt.Println("Aborted.")
					return nil
				}
				if err := st.DeleteAllSessions(); err != nil {
					return err
				}
				sessions.ClearShellSession()
				fmt.Println("All sessions deleted.")
				return nil
			}

			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid session id %q", a)
				}
				ids = append(ids, id)
			}
			if err := st.DeleteSessions(ids); err != nil {
				return err
			}
			if attached, ok := sessions.ShellSessionID(); ok {
				for _, id := range ids {
					if id == attached {
						sessions.ClearShellSession()
					}
				}
			}
			fmt.Printf("Deleted %d session(s).\n", len(ids))
			return nil
		},
	}
}

// confirm asks for a yes/no on a TTY; non-interactive runs proceed so
// scripted cleanup keeps working.
func confirm(title string) bool {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return true
	}
	ok := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false
	}
	return ok
}
