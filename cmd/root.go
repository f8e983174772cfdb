package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askyhq/asky/internal/sessions"
)

// Version is set at build time via -ldflags "-X github.com/askyhq/asky/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool

	flagModel        string
	flagSession      string
	flagDeepResearch int
	flagDeepDive     bool
	flagForceSearch  bool
	flagSummarize    bool
	flagOpenBrowser  bool
)

var rootCmd = &cobra.Command{
	Use:   "asky [query...]",
	Short: "asky — autonomous web-research agent",
	Long: `asky answers questions by driving an LLM through a bounded loop of
web search, page fetching, and research-memory tools. Conversations are
persisted as sessions that a shell can stick to and resume.

Examples:
  asky "what changed in go 1.25"
  asky -s kubernetes "and how do I upgrade a cluster?"
  asky --deep-research 10 "state of WASM runtimes in 2026"
  asky sessions list`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		cmd.SilenceUsage = true
		return runQuery(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/asky/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Flags().StringVarP(&flagModel, "model", "m", "", "model alias (default from config)")
	rootCmd.Flags().StringVarP(&flagSession, "session", "s", "", "session id or name to resume")
	rootCmd.Flags().IntVar(&flagDeepResearch, "deep-research", 0, "deep research mode: target number of sources")
	rootCmd.Flags().BoolVar(&flagDeepDive, "deep-dive", false, "deep dive mode: crawl linked pages")
	rootCmd.Flags().BoolVar(&flagForceSearch, "force-search", false, "instruct the model to search before answering")
	rootCmd.Flags().BoolVar(&flagSummarize, "summarize", false, "summarize fetched pages before returning them to the model")
	rootCmd.Flags().BoolVar(&flagOpenBrowser, "open-browser", false, "write the answer to an HTML report and print its path")

	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())

	cobra.OnInitialize(setupLogging)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("asky %s\n", Version)
		},
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// Execute runs the root command. Exit codes: 0 success, 1 error,
// 2 unresolved duplicate-session ambiguity.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var dup *sessions.DuplicateSessionError
		if errors.As(err, &dup) {
			for _, c := range dup.Sessions {
				fmt.Fprintf(os.Stderr, "  %d: %s — %s\n", c.ID, c.Name, c.Preview)
			}
			os.Exit(2)
		}
		os.Exit(1)
	}
}
