package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
	"loom/internal/workflows"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Queue media generations",
	}

	generateCmd.AddCommand(newGenerateAudioCommand(ctx))
	generateCmd.AddCommand(newGenerateImageCommand(ctx))
	generateCmd.AddCommand(newGenerateVideoCommand(ctx))

	return generateCmd
}

func newGenerateAudioCommand(ctx *commandContext) *cobra.Command {
	cfg := workflows.DefaultAudioConfig()
	var enhance bool

	cmd := &cobra.Command{
		Use:   "audio <tags>",
		Short: "Queue an audio generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Tags = args[0]
			return ctx.withClient(func(client *ipc.Client) error {
				if enhance {
					enhanced, err := enhancePrompt(cmd, client, cfg.Tags, "audio")
					if err != nil {
						return err
					}
					cfg.Tags = enhanced
				}
				resp, err := client.GenerateAudio(cfg)
				if err != nil {
					return err
				}
				printQueued(cmd, resp)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Lyrics, "lyrics", cfg.Lyrics, "Lyrics text")
	flags.Float64Var(&cfg.LyricsStrength, "lyrics-strength", cfg.LyricsStrength, "Lyrics adherence within [0,1]")
	flags.Float64Var(&cfg.DurationSeconds, "duration", cfg.DurationSeconds, "Clip length in seconds")
	addSamplingFlags(cmd, &cfg.Steps, &cfg.CFG, &cfg.SamplerName, &cfg.Scheduler, &cfg.Seed, &cfg.Checkpoint)
	flags.BoolVar(&enhance, "enhance", false, "Rewrite the tags through the text-generation runtime first")
	return cmd
}

func newGenerateImageCommand(ctx *commandContext) *cobra.Command {
	cfg := workflows.DefaultImageConfig()
	var initImage string
	var enhance bool

	cmd := &cobra.Command{
		Use:   "image <prompt>",
		Short: "Queue an image generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Prompt = args[0]
			return ctx.withClient(func(client *ipc.Client) error {
				if enhance {
					enhanced, err := enhancePrompt(cmd, client, cfg.Prompt, "image")
					if err != nil {
						return err
					}
					cfg.Prompt = enhanced
				}
				resp, err := client.GenerateImage(cfg, initImage)
				if err != nil {
					return err
				}
				printQueued(cmd, resp)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.NegativePrompt, "negative", cfg.NegativePrompt, "Negative prompt")
	flags.IntVar(&cfg.Width, "width", cfg.Width, "Image width in pixels")
	flags.IntVar(&cfg.Height, "height", cfg.Height, "Image height in pixels")
	flags.Float64Var(&cfg.Denoise, "denoise", cfg.Denoise, "Denoise strength within (0,1]")
	flags.StringVar(&initImage, "init-image", "", "Local image to start from (img2img)")
	addSamplingFlags(cmd, &cfg.Steps, &cfg.CFG, &cfg.SamplerName, &cfg.Scheduler, &cfg.Seed, &cfg.Checkpoint)
	flags.BoolVar(&enhance, "enhance", false, "Rewrite the prompt through the text-generation runtime first")
	return cmd
}

func newGenerateVideoCommand(ctx *commandContext) *cobra.Command {
	cfg := workflows.DefaultVideoConfig()
	var initImage string

	cmd := &cobra.Command{
		Use:   "video",
		Short: "Queue an image-to-video generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.GenerateVideo(cfg, initImage)
				if err != nil {
					return err
				}
				printQueued(cmd, resp)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.Width, "width", cfg.Width, "Frame width in pixels")
	flags.IntVar(&cfg.Height, "height", cfg.Height, "Frame height in pixels")
	flags.Float64Var(&cfg.DurationSeconds, "duration", cfg.DurationSeconds, "Clip length in seconds")
	flags.IntVar(&cfg.FPS, "fps", cfg.FPS, "Frames per second")
	flags.Float64Var(&cfg.MotionIntensity, "motion", cfg.MotionIntensity, "Motion intensity within [0,1]")
	flags.Float64Var(&cfg.AugmentationLevel, "augmentation", cfg.AugmentationLevel, "Conditioning augmentation level")
	flags.Float64Var(&cfg.Denoise, "denoise", cfg.Denoise, "Denoise strength within (0,1]")
	flags.StringVar(&initImage, "init-image", "", "Local image to animate")
	addSamplingFlags(cmd, &cfg.Steps, &cfg.CFG, &cfg.SamplerName, &cfg.Scheduler, &cfg.Seed, &cfg.Checkpoint)
	return cmd
}

func addSamplingFlags(cmd *cobra.Command, steps *int, cfgScale *float64, sampler, scheduler *string, seed *int64, checkpoint *string) {
	flags := cmd.Flags()
	flags.IntVar(steps, "steps", *steps, "Sampling steps")
	flags.Float64Var(cfgScale, "cfg", *cfgScale, "Guidance scale")
	flags.StringVar(sampler, "sampler", *sampler, "Sampler name")
	flags.StringVar(scheduler, "scheduler", *scheduler, "Scheduler name")
	flags.Int64Var(seed, "seed", *seed, "Seed (-1 for random)")
	flags.StringVar(checkpoint, "checkpoint", *checkpoint, "Checkpoint file (defaults from config)")
}

func enhancePrompt(cmd *cobra.Command, client *ipc.Client, prompt, mediaKind string) (string, error) {
	resp, err := client.EnhancePrompt(prompt, mediaKind)
	if err != nil {
		return "", fmt.Errorf("enhance prompt: %w", err)
	}
	enhanced := strings.TrimSpace(resp.Enhanced)
	if enhanced == "" {
		return prompt, nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enhanced prompt: %s\n", enhanced)
	return enhanced, nil
}

func printQueued(cmd *cobra.Command, resp *ipc.GenerateResponse) {
	fmt.Fprintf(cmd.OutOrStdout(), "Queued %s task %s\n", resp.Task.Type, shortID(resp.TaskID))
}
