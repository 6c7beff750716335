package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search indexed transcripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withJobAPI(func(api jobAPI) error {
				hits, err := api.Search(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintf(stdout, "No matches for %q\n", query)
					return nil
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Media", "Title", "Time", "Text"},
					buildSearchRows(hits),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of matches")
	return cmd
}
