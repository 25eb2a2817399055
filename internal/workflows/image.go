package workflows

import (
	"fmt"

	"loom/internal/graph"
)

// CreateImageWorkflow builds the fixed still-image graph: checkpoint loader,
// positive/negative text encoders, an image loader feeding a VAE encoder,
// sampler, decoder, and save node.
//
// The topology does not branch on config values. When no init image is
// supplied the image loader references the placeholder asset; with the default
// denoise of 1.0 the sampler fully replaces its content.
func CreateImageWorkflow(cfg ImageConfig) (*graph.Workflow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed, seedControl := ResolveSeed(cfg.Seed)

	w := graph.New()

	loader := w.AddNode("CheckpointLoaderSimple", 40, 40)
	loader.WidgetsValues = []any{cfg.Checkpoint}

	positive := w.AddNode("CLIPTextEncode", 400, 40)
	positive.WidgetsValues = []any{cfg.Prompt}

	negative := w.AddNode("CLIPTextEncode", 400, 200)
	negative.WidgetsValues = []any{cfg.NegativePrompt}

	image := w.AddNode("LoadImage", 40, 360)
	image.WidgetsValues = []any{imageOrPlaceholder(cfg.InitImage, cfg.PlaceholderImage), "image"}

	encode := w.AddNode("VAEEncode", 400, 360)

	sampler := w.AddNode("KSampler", 760, 40)
	sampler.WidgetsValues = []any{seed, seedControl, cfg.Steps, cfg.CFG, cfg.SamplerName, cfg.Scheduler, cfg.Denoise}

	decode := w.AddNode("VAEDecode", 1120, 40)

	save := w.AddNode("SaveImage", 1120, 200)
	save.WidgetsValues = []any{imageFilenamePrefix}

	if err := w.Wire([]graph.LinkSpec{
		{SourceID: loader.ID, SourceSlot: 1, TargetID: positive.ID, TargetSlot: 0, Type: graph.TypeClip},
		{SourceID: loader.ID, SourceSlot: 1, TargetID: negative.ID, TargetSlot: 0, Type: graph.TypeClip},
		{SourceID: image.ID, SourceSlot: 0, TargetID: encode.ID, TargetSlot: 0, Type: graph.TypeImage},
		{SourceID: loader.ID, SourceSlot: 2, TargetID: encode.ID, TargetSlot: 1, Type: graph.TypeVAE},
		{SourceID: loader.ID, SourceSlot: 0, TargetID: sampler.ID, TargetSlot: 0, Type: graph.TypeModel},
		{SourceID: positive.ID, SourceSlot: 0, TargetID: sampler.ID, TargetSlot: 1, Type: graph.TypeConditioning},
		{SourceID: negative.ID, SourceSlot: 0, TargetID: sampler.ID, TargetSlot: 2, Type: graph.TypeConditioning},
		{SourceID: encode.ID, SourceSlot: 0, TargetID: sampler.ID, TargetSlot: 3, Type: graph.TypeLatent},
		{SourceID: sampler.ID, SourceSlot: 0, TargetID: decode.ID, TargetSlot: 0, Type: graph.TypeLatent},
		{SourceID: loader.ID, SourceSlot: 2, TargetID: decode.ID, TargetSlot: 1, Type: graph.TypeVAE},
		{SourceID: decode.ID, SourceSlot: 0, TargetID: save.ID, TargetSlot: 0, Type: graph.TypeImage},
	}); err != nil {
		return nil, fmt.Errorf("image workflow: %w", err)
	}

	return w, nil
}
