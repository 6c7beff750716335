package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"murmur/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a notification webhook test through the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Sent {
					if resp.Message != "" {
						fmt.Fprintf(stdout, "Notification not sent: %s\n", resp.Message)
					} else {
						fmt.Fprintln(stdout, "Notification not sent")
					}
					return nil
				}
				fmt.Fprintln(stdout, "Notification sent")
				return nil
			})
		},
	}
}
