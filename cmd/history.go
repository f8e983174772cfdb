package cmd

import (
	"fmt"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past queries and answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.GetHistory(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No history.")
				return nil
			}
			for _, e := range entries {
				query := e.QuerySummary
				if query == "" {
					query = e.Query
				}
				answer := e.AnswerSummary
				if answer == "" {
					answer = e.Answer
				}
				fmt.Printf("%-5d %s  [%s]\n      Q: %s\n      A: %s\n",
					e.ID, e.Timestamp.Format("2006-01-02 15:04"), e.Model,
					runewidth.Truncate(query, 80, "…"),
					runewidth.Truncate(answer, 80, "…"))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to show")

	cmd.AddCommand(historyDeleteCmd())
	return cmd
}

func historyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id | first-last | all>",
		Short: "Delete history entries by id, range, or all",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if args[0] == "all" {
				if !confirm("Delete ALL history entries?") {
					fmt.Println("Aborted.")
					return nil
				}
				if err := st.DeleteAllInteractions(); err != nil {
					return err
				}
				fmt.Println("History cleared.")
				return nil
			}
			if err := st.DeleteInteractions(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted history entries: %s\n", args[0])
			return nil
		},
	}
}
