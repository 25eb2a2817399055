package graph

// SlotSpec names one connection slot and its data type tag.
type SlotSpec struct {
	Name string
	Type string
}

// ClassSpec declares the schema of a node class as the engine expects it:
// connection inputs and outputs ordered by slot index, and literal widget
// parameter names in positional order.
type ClassSpec struct {
	Inputs  []SlotSpec
	Widgets []string
	Outputs []SlotSpec
}

// classes is the local catalog of node classes the workflow factories emit.
// Slot order and widget order mirror the engine's node schema; both are wire
// contracts.
var classes = map[string]ClassSpec{
	"CheckpointLoaderSimple": {
		Widgets: []string{"ckpt_name"},
		Outputs: []SlotSpec{
			{Name: "MODEL", Type: TypeModel},
			{Name: "CLIP", Type: TypeClip},
			{Name: "VAE", Type: TypeVAE},
		},
	},
	"ImageOnlyCheckpointLoader": {
		Widgets: []string{"ckpt_name"},
		Outputs: []SlotSpec{
			{Name: "MODEL", Type: TypeModel},
			{Name: "CLIP_VISION", Type: TypeClipVision},
			{Name: "VAE", Type: TypeVAE},
		},
	},
	"CLIPTextEncode": {
		Inputs:  []SlotSpec{{Name: "clip", Type: TypeClip}},
		Widgets: []string{"text"},
		Outputs: []SlotSpec{{Name: "CONDITIONING", Type: TypeConditioning}},
	},
	"TextEncodeAceStepAudio": {
		Inputs:  []SlotSpec{{Name: "clip", Type: TypeClip}},
		Widgets: []string{"tags", "lyrics", "lyrics_strength"},
		Outputs: []SlotSpec{{Name: "CONDITIONING", Type: TypeConditioning}},
	},
	"ConditioningZeroOut": {
		Inputs:  []SlotSpec{{Name: "conditioning", Type: TypeConditioning}},
		Outputs: []SlotSpec{{Name: "CONDITIONING", Type: TypeConditioning}},
	},
	"EmptyAceStepLatentAudio": {
		Widgets: []string{"seconds", "batch_size"},
		Outputs: []SlotSpec{{Name: "LATENT", Type: TypeLatent}},
	},
	"LoadImage": {
		Widgets: []string{"image", "upload"},
		Outputs: []SlotSpec{
			{Name: "IMAGE", Type: TypeImage},
			{Name: "MASK", Type: TypeMask},
		},
	},
	"VAEEncode": {
		Inputs: []SlotSpec{
			{Name: "pixels", Type: TypeImage},
			{Name: "vae", Type: TypeVAE},
		},
		Outputs: []SlotSpec{{Name: "LATENT", Type: TypeLatent}},
	},
	"KSampler": {
		Inputs: []SlotSpec{
			{Name: "model", Type: TypeModel},
			{Name: "positive", Type: TypeConditioning},
			{Name: "negative", Type: TypeConditioning},
			{Name: "latent_image", Type: TypeLatent},
		},
		Widgets: []string{"seed", "control_after_generate", "steps", "cfg", "sampler_name", "scheduler", "denoise"},
		Outputs: []SlotSpec{{Name: "LATENT", Type: TypeLatent}},
	},
	// Output slot 2 is the latent; slots 0/1 are the conditioning pair. Wiring
	// a sampler's latent_image to slot 1 here is the classic silent-corruption
	// bug the catalog validation exists to catch.
	"SVD_img2vid_Conditioning": {
		Inputs: []SlotSpec{
			{Name: "clip_vision", Type: TypeClipVision},
			{Name: "init_image", Type: TypeImage},
			{Name: "vae", Type: TypeVAE},
		},
		Widgets: []string{"width", "height", "video_frames", "motion_bucket_id", "fps", "augmentation_level"},
		Outputs: []SlotSpec{
			{Name: "positive", Type: TypeConditioning},
			{Name: "negative", Type: TypeConditioning},
			{Name: "latent", Type: TypeLatent},
		},
	},
	"VAEDecode": {
		Inputs: []SlotSpec{
			{Name: "samples", Type: TypeLatent},
			{Name: "vae", Type: TypeVAE},
		},
		Outputs: []SlotSpec{{Name: "IMAGE", Type: TypeImage}},
	},
	"VAEDecodeAudio": {
		Inputs: []SlotSpec{
			{Name: "samples", Type: TypeLatent},
			{Name: "vae", Type: TypeVAE},
		},
		Outputs: []SlotSpec{{Name: "AUDIO", Type: TypeAudio}},
	},
	"SaveImage": {
		Inputs:  []SlotSpec{{Name: "images", Type: TypeImage}},
		Widgets: []string{"filename_prefix"},
	},
	"SaveAudio": {
		Inputs:  []SlotSpec{{Name: "audio", Type: TypeAudio}},
		Widgets: []string{"filename_prefix"},
	},
	"SaveAnimatedWEBP": {
		Inputs:  []SlotSpec{{Name: "images", Type: TypeImage}},
		Widgets: []string{"filename_prefix", "fps", "lossless", "quality", "method"},
	},
}

// LookupClass returns the declared schema for a node class.
func LookupClass(nodeType string) (ClassSpec, bool) {
	spec, ok := classes[nodeType]
	return spec, ok
}

// inputSlotByName resolves an input name back to its slot index, used when
// reconstructing a workflow from wire form.
func (s ClassSpec) inputSlotByName(name string) (int, bool) {
	for i, input := range s.Inputs {
		if input.Name == name {
			return i, true
		}
	}
	return 0, false
}

// widgetIndexByName resolves a widget name to its positional index.
func (s ClassSpec) widgetIndexByName(name string) (int, bool) {
	for i, widget := range s.Widgets {
		if widget == name {
			return i, true
		}
	}
	return 0, false
}
