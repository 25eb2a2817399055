package workflows

import (
	"fmt"

	"loom/internal/graph"
)

// Filename prefixes passed to the engine's save nodes; the engine appends
// counters and extensions.
const (
	audioFilenamePrefix = "loom/audio"
	imageFilenamePrefix = "loom/image"
	videoFilenamePrefix = "loom/video"
)

// CreateAudioWorkflow builds the fixed audio generation graph: checkpoint
// loader, tag/lyric text encoder, zeroed negative conditioning, a
// duration-sized latent, sampler, audio decoder, and save node.
func CreateAudioWorkflow(cfg AudioConfig) (*graph.Workflow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed, seedControl := ResolveSeed(cfg.Seed)

	w := graph.New()

	loader := w.AddNode("CheckpointLoaderSimple", 40, 40)
	loader.WidgetsValues = []any{cfg.Checkpoint}

	encode := w.AddNode("TextEncodeAceStepAudio", 400, 40)
	encode.WidgetsValues = []any{cfg.Tags, cfg.Lyrics, cfg.LyricsStrength}

	zeroOut := w.AddNode("ConditioningZeroOut", 400, 220)

	latent := w.AddNode("EmptyAceStepLatentAudio", 400, 340)
	latent.WidgetsValues = []any{cfg.DurationSeconds, 1}

	sampler := w.AddNode("KSampler", 760, 40)
	sampler.WidgetsValues = []any{seed, seedControl, cfg.Steps, cfg.CFG, cfg.SamplerName, cfg.Scheduler, 1.0}

	decode := w.AddNode("VAEDecodeAudio", 1120, 40)

	save := w.AddNode("SaveAudio", 1120, 200)
	save.WidgetsValues = []any{audioFilenamePrefix}

	if err := w.Wire([]graph.LinkSpec{
		{SourceID: loader.ID, SourceSlot: 1, TargetID: encode.ID, TargetSlot: 0, Type: graph.TypeClip},
		{SourceID: encode.ID, SourceSlot: 0, TargetID: zeroOut.ID, TargetSlot: 0, Type: graph.TypeConditioning},
		{SourceID: loader.ID, SourceSlot: 0, TargetID: sampler.ID, TargetSlot: 0, Type: graph.TypeModel},
		{SourceID: encode.ID, SourceSlot: 0, TargetID: sampler.ID, TargetSlot: 1, Type: graph.TypeConditioning},
		{SourceID: zeroOut.ID, SourceSlot: 0, TargetID: sampler.ID, TargetSlot: 2, Type: graph.TypeConditioning},
		{SourceID: latent.ID, SourceSlot: 0, TargetID: sampler.ID, TargetSlot: 3, Type: graph.TypeLatent},
		{SourceID: sampler.ID, SourceSlot: 0, TargetID: decode.ID, TargetSlot: 0, Type: graph.TypeLatent},
		{SourceID: loader.ID, SourceSlot: 2, TargetID: decode.ID, TargetSlot: 1, Type: graph.TypeVAE},
		{SourceID: decode.ID, SourceSlot: 0, TargetID: save.ID, TargetSlot: 0, Type: graph.TypeAudio},
	}); err != nil {
		return nil, fmt.Errorf("audio workflow: %w", err)
	}

	return w, nil
}
