package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
)

const followWaitMillis = 1000

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: lines})
				if err != nil {
					return err
				}
				printLogLines(cmd, resp.Lines)
				if !follow {
					return nil
				}
				return followLogs(cmd, client, resp.Offset)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep polling for new log lines")
	return cmd
}

func followLogs(cmd *cobra.Command, client *ipc.Client, offset int64) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	for {
		select {
		case <-interrupt:
			return nil
		default:
		}
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Follow:     true,
			WaitMillis: followWaitMillis,
		})
		if err != nil {
			return err
		}
		printLogLines(cmd, resp.Lines)
		offset = resp.Offset
	}
}

func printLogLines(cmd *cobra.Command, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}
