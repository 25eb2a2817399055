package workflows

import (
	"fmt"

	"loom/internal/graph"
)

// CreateVideoWorkflow builds the fixed image-to-video graph: image-only
// checkpoint loader, init-image loader, video conditioning, sampler, decoder,
// and animated save node.
//
// Frame count and motion bucket id are derived from duration/fps and motion
// intensity. The conditioning node's latent lives on output slot 2; slots 0
// and 1 carry the positive/negative conditioning pair.
func CreateVideoWorkflow(cfg VideoConfig) (*graph.Workflow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed, seedControl := ResolveSeed(cfg.Seed)
	frames := FrameCount(cfg.DurationSeconds, cfg.FPS)
	motionBucket := MotionBucketID(cfg.MotionIntensity)

	w := graph.New()

	loader := w.AddNode("ImageOnlyCheckpointLoader", 40, 40)
	loader.WidgetsValues = []any{cfg.Checkpoint}

	image := w.AddNode("LoadImage", 40, 240)
	image.WidgetsValues = []any{imageOrPlaceholder(cfg.InitImage, cfg.PlaceholderImage), "image"}

	conditioning := w.AddNode("SVD_img2vid_Conditioning", 400, 40)
	conditioning.WidgetsValues = []any{cfg.Width, cfg.Height, frames, motionBucket, cfg.FPS, cfg.AugmentationLevel}

	sampler := w.AddNode("KSampler", 760, 40)
	sampler.WidgetsValues = []any{seed, seedControl, cfg.Steps, cfg.CFG, cfg.SamplerName, cfg.Scheduler, cfg.Denoise}

	decode := w.AddNode("VAEDecode", 1120, 40)

	save := w.AddNode("SaveAnimatedWEBP", 1120, 200)
	save.WidgetsValues = []any{videoFilenamePrefix, cfg.FPS, false, 85, "default"}

	if err := w.Wire([]graph.LinkSpec{
		{SourceID: loader.ID, SourceSlot: 1, TargetID: conditioning.ID, TargetSlot: 0, Type: graph.TypeClipVision},
		{SourceID: image.ID, SourceSlot: 0, TargetID: conditioning.ID, TargetSlot: 1, Type: graph.TypeImage},
		{SourceID: loader.ID, SourceSlot: 2, TargetID: conditioning.ID, TargetSlot: 2, Type: graph.TypeVAE},
		{SourceID: loader.ID, SourceSlot: 0, TargetID: sampler.ID, TargetSlot: 0, Type: graph.TypeModel},
		{SourceID: conditioning.ID, SourceSlot: 0, TargetID: sampler.ID, TargetSlot: 1, Type: graph.TypeConditioning},
		{SourceID: conditioning.ID, SourceSlot: 1, TargetID: sampler.ID, TargetSlot: 2, Type: graph.TypeConditioning},
		{SourceID: conditioning.ID, SourceSlot: 2, TargetID: sampler.ID, TargetSlot: 3, Type: graph.TypeLatent},
		{SourceID: sampler.ID, SourceSlot: 0, TargetID: decode.ID, TargetSlot: 0, Type: graph.TypeLatent},
		{SourceID: loader.ID, SourceSlot: 2, TargetID: decode.ID, TargetSlot: 1, Type: graph.TypeVAE},
		{SourceID: decode.ID, SourceSlot: 0, TargetID: save.ID, TargetSlot: 0, Type: graph.TypeImage},
	}); err != nil {
		return nil, fmt.Errorf("video workflow: %w", err)
	}

	return w, nil
}
