package workflows_test

import (
	"strings"
	"testing"

	"loom/internal/workflows"
)

func videoConfig() workflows.VideoConfig {
	cfg := workflows.DefaultVideoConfig()
	cfg.Checkpoint = "svd_xt_1_1.safetensors"
	cfg.PlaceholderImage = "placeholder.png"
	cfg.Seed = 3
	return cfg
}

func TestCreateVideoWorkflowDerivedWidgets(t *testing.T) {
	cfg := videoConfig()
	cfg.DurationSeconds = 2.5
	cfg.FPS = 10
	cfg.MotionIntensity = 1

	w, err := workflows.CreateVideoWorkflow(cfg)
	if err != nil {
		t.Fatalf("create video workflow: %v", err)
	}

	conds := w.NodesOfType("SVD_img2vid_Conditioning")
	if len(conds) != 1 {
		t.Fatalf("expected one conditioning node, got %d", len(conds))
	}
	widgets := conds[0].WidgetsValues
	if got := widgets[2]; got != 25 {
		t.Errorf("frame count widget = %v, want 25", got)
	}
	if got := widgets[3]; got != 254 {
		t.Errorf("motion bucket widget = %v, want 254", got)
	}
	if got := widgets[4]; got != 10 {
		t.Errorf("fps widget = %v, want 10", got)
	}
}

func TestCreateVideoWorkflowTopology(t *testing.T) {
	w, err := workflows.CreateVideoWorkflow(videoConfig())
	if err != nil {
		t.Fatalf("create video workflow: %v", err)
	}

	for _, required := range []string{
		"ImageOnlyCheckpointLoader",
		"LoadImage",
		"SVD_img2vid_Conditioning",
		"KSampler",
		"VAEDecode",
		"SaveAnimatedWEBP",
	} {
		if len(w.NodesOfType(required)) != 1 {
			t.Errorf("expected exactly one %s node", required)
		}
	}

	// The conditioning node's latent output is slot 2; slots 0 and 1 carry
	// the conditioning pair. The sampler must consume them accordingly.
	cond := w.NodesOfType("SVD_img2vid_Conditioning")[0]
	sampler := w.NodesOfType("KSampler")[0]
	var latentWired bool
	for _, link := range w.Links {
		if link.SourceID == cond.ID && link.TargetID == sampler.ID {
			switch link.SourceSlot {
			case 0, 1:
				if link.Type != "CONDITIONING" {
					t.Errorf("conditioning slot %d carries %s", link.SourceSlot, link.Type)
				}
			case 2:
				latentWired = true
				if link.Type != "LATENT" {
					t.Errorf("latent slot carries %s", link.Type)
				}
				if link.TargetSlot != 3 {
					t.Errorf("latent wired to sampler slot %d, want 3", link.TargetSlot)
				}
			}
		}
	}
	if !latentWired {
		t.Fatal("conditioning latent output not wired into sampler")
	}

	if _, err := w.ToWire(); err != nil {
		t.Fatalf("video workflow must convert cleanly to wire form: %v", err)
	}
}

func TestVideoWorkflowUsesPlaceholderWhenNoInitImage(t *testing.T) {
	w, err := workflows.CreateVideoWorkflow(videoConfig())
	if err != nil {
		t.Fatal(err)
	}
	loaders := w.NodesOfType("LoadImage")
	if got := loaders[0].WidgetsValues[0]; got != "placeholder.png" {
		t.Fatalf("expected placeholder filename, got %v", got)
	}
}

func TestCreateVideoWorkflowValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*workflows.VideoConfig)
		wantSub string
	}{
		{"zero fps", func(c *workflows.VideoConfig) { c.FPS = 0 }, "fps"},
		{"negative duration", func(c *workflows.VideoConfig) { c.DurationSeconds = -1 }, "duration"},
		{"motion intensity above one", func(c *workflows.VideoConfig) { c.MotionIntensity = 1.1 }, "motion intensity"},
		{"negative augmentation", func(c *workflows.VideoConfig) { c.AugmentationLevel = -0.1 }, "augmentation"},
		{"no frames", func(c *workflows.VideoConfig) { c.DurationSeconds = 0.04; c.FPS = 1 }, "frames"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := videoConfig()
			tc.mutate(&cfg)
			_, err := workflows.CreateVideoWorkflow(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantSub, err)
			}
		})
	}
}
