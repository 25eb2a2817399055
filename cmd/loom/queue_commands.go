package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the generation queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List generation tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(listStatuses)
				if err != nil {
					return err
				}
				if len(resp.Tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(taskTableHeaders, buildTaskRows(resp.Tasks), taskTableAligns)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by task status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <taskID>",
		Short: "Show one task in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				id, err := resolveClientTaskID(client, args[0])
				if err != nil {
					return err
				}
				resp, err := client.QueueDescribe(id)
				if err != nil {
					return err
				}
				printTaskDetail(cmd, resp.Task)
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <taskID>",
		Short: "Cancel a pending or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				id, err := resolveClientTaskID(client, args[0])
				if err != nil {
					return err
				}
				resp, err := client.QueueCancel(id)
				if err != nil {
					return err
				}
				if resp.Cancelled {
					fmt.Fprintf(cmd.OutOrStdout(), "Cancelled task %s\n", shortID(id))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Task %s already finished\n", shortID(id))
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove finished tasks from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClearCompleted()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished tasks\n", resp.Removed)
				return nil
			})
		},
	}
}

func resolveClientTaskID(client *ipc.Client, arg string) (string, error) {
	resp, err := client.QueueList(nil)
	if err != nil {
		return "", err
	}
	return resolveTaskID(resp.Tasks, arg)
}

func printTaskDetail(cmd *cobra.Command, view api.TaskView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", view.ID)
	fmt.Fprintf(out, "Type:        %s\n", view.Type)
	fmt.Fprintf(out, "Status:      %s\n", statusCell(view))
	fmt.Fprintf(out, "Description: %s\n", view.Description)
	if view.PromptID != "" {
		fmt.Fprintf(out, "Prompt ID:   %s\n", view.PromptID)
	}
	fmt.Fprintf(out, "Created:     %s\n", displayTime(view.CreatedAt))
	if view.SubmittedAt != "" {
		fmt.Fprintf(out, "Submitted:   %s\n", displayTime(view.SubmittedAt))
	}
	if view.CompletedAt != "" {
		fmt.Fprintf(out, "Completed:   %s\n", displayTime(view.CompletedAt))
	}
	if view.GeneratedFilePath != "" {
		fmt.Fprintf(out, "Artifact:    %s\n", view.GeneratedFilePath)
	}
	if view.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:       %s\n", view.ErrorMessage)
	}
}
