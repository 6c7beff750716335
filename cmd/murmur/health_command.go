package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"murmur/internal/ledger"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check ledger database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := fetchHealth(cmd.Context(), ctx)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range renderSectionHeader("Ledger", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Database", boolKind(health.DatabaseExists), health.DBPath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Integrity", boolKind(health.IntegrityCheck), "", colorize))
			fmt.Fprintln(stdout, renderStatusLine("Schema version", statusInfo, fmt.Sprintf("%d", health.SchemaVersion), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Jobs", statusInfo, fmt.Sprintf("%d", health.TotalJobs), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Indexed media", statusInfo, fmt.Sprintf("%d", health.IndexedMedia), colorize))
			if health.Error != "" {
				fmt.Fprintln(stdout, renderStatusLine("Error", statusError, health.Error, colorize))
				return fmt.Errorf("ledger unhealthy: %s", health.Error)
			}
			if !health.IntegrityCheck {
				return fmt.Errorf("ledger integrity check failed")
			}
			return nil
		},
	}
}

// fetchHealth asks the daemon first and falls back to opening the ledger
// directly so the check works while the daemon is down.
func fetchHealth(cmdCtx context.Context, ctx *commandContext) (ledger.Health, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		resp, err := client.Health()
		if err != nil {
			return ledger.Health{}, err
		}
		return ledger.Health{
			DBPath:         resp.DBPath,
			DatabaseExists: resp.DatabaseExists,
			SchemaVersion:  resp.SchemaVersion,
			IntegrityCheck: resp.IntegrityCheck,
			TotalJobs:      resp.TotalJobs,
			IndexedMedia:   resp.IndexedMedia,
			Error:          resp.Error,
		}, nil
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return ledger.Health{}, err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return ledger.Health{}, fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return store.CheckHealth(cmdCtx), nil
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}
