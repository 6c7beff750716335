package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"murmur/internal/ipc"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <url> [url...]",
		Short: "Add media URLs to the ingest queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobAPI(func(api jobAPI) error {
				items, err := api.Enqueue(cmd.Context(), args)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				for _, item := range items {
					fmt.Fprintf(stdout, "Queued job %d: %s\n", item.ID, item.URL)
				}
				return nil
			})
		},
	}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage ingest jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobAPI(func(api jobAPI) error {
				items, err := api.List(cmd.Context(), listStatuses)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(stdout, "No jobs")
					return nil
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "URL", "Status", "Progress", "Created"},
					buildJobRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withJobAPI(func(api jobAPI) error {
				item, err := api.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("job %d not found", id)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Job %d\n", item.ID)
				fmt.Fprintf(stdout, "  URL:        %s\n", item.URL)
				fmt.Fprintf(stdout, "  Status:     %s\n", item.Status)
				fmt.Fprintf(stdout, "  Stage:      %s\n", item.Stage)
				if item.MediaID != "" {
					fmt.Fprintf(stdout, "  Media:      %s\n", item.MediaID)
				}
				if item.Attempt > 0 {
					fmt.Fprintf(stdout, "  Attempt:    %d\n", item.Attempt)
				}
				if progress := formatProgress(*item); progress != "" {
					fmt.Fprintf(stdout, "  Progress:   %s\n", progress)
				}
				if item.ErrorMessage != "" {
					fmt.Fprintf(stdout, "  Error:      %s\n", item.ErrorMessage)
				}
				if item.ErrorKind != "" {
					fmt.Fprintf(stdout, "  Error kind: %s\n", item.ErrorKind)
				}
				if item.OutputPath != "" {
					fmt.Fprintf(stdout, "  Output:     %s\n", item.OutputPath)
				}
				if item.TranscriptPath != "" {
					fmt.Fprintf(stdout, "  Transcript: %s\n", item.TranscriptPath)
				}
				if created := formatTimestamp(item.CreatedAt); created != "" {
					fmt.Fprintf(stdout, "  Created:    %s\n", created)
				}
				if updated := formatTimestamp(item.UpdatedAt); updated != "" {
					fmt.Fprintf(stdout, "  Updated:    %s\n", updated)
				}
				return nil
			})
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Requeue failed jobs (all failed jobs when no ids given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseJobID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withJobAPI(func(api jobAPI) error {
				items, err := api.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(stdout, "No failed jobs to retry")
					return nil
				}
				for _, item := range items {
					fmt.Fprintf(stdout, "Requeued job %d: %s\n", item.ID, item.URL)
				}
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed jobs (or failed jobs with --failed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobAPI(func(api jobAPI) error {
				var removed int64
				var err error
				if clearFailed {
					removed, err = api.ClearFailed(cmd.Context())
				} else {
					removed, err = api.ClearDone(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d jobs\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove failed jobs instead of completed ones")
	return cmd
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Suspend a running job's tool process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControlCommand(ctx, cmd, args[0], func(client *ipc.Client, id int64) (*ipc.ControlResponse, error) {
				return client.Pause(id)
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Continue a paused job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControlCommand(ctx, cmd, args[0], func(client *ipc.Client, id int64) (*ipc.ControlResponse, error) {
				return client.Resume(id)
			})
		},
	}
}

func newKillCommand(ctx *commandContext) *cobra.Command {
	var deleteArtifacts bool

	cmd := &cobra.Command{
		Use:   "kill <id>",
		Short: "Terminate a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControlCommand(ctx, cmd, args[0], func(client *ipc.Client, id int64) (*ipc.ControlResponse, error) {
				return client.Kill(id, deleteArtifacts)
			})
		},
	}
	cmd.Flags().BoolVar(&deleteArtifacts, "delete-artifacts", false, "Also delete downloaded media and transcripts")
	return cmd
}

func runControlCommand(ctx *commandContext, cmd *cobra.Command, arg string, call func(*ipc.Client, int64) (*ipc.ControlResponse, error)) error {
	id, err := parseJobID(arg)
	if err != nil {
		return err
	}
	return ctx.withClient(func(client *ipc.Client) error {
		result, err := call(client, id)
		if err != nil {
			return err
		}
		stdout := cmd.OutOrStdout()
		if result.Reason != "" {
			fmt.Fprintf(stdout, "%s: %s\n", result.Outcome, result.Reason)
		} else {
			fmt.Fprintln(stdout, result.Outcome)
		}
		if result.Outcome == "rejected" {
			return errors.New("request rejected")
		}
		return nil
	})
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}
