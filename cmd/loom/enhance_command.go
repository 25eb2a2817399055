package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
)

func newEnhanceCommand(ctx *commandContext) *cobra.Command {
	var mediaKind string

	cmd := &cobra.Command{
		Use:   "enhance <prompt>",
		Short: "Rewrite a prompt through the text-generation runtime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.EnhancePrompt(args[0], mediaKind)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Enhanced)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mediaKind, "kind", "k", "image", "Media kind: audio, image, or video")
	return cmd
}
