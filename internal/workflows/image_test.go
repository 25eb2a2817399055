package workflows_test

import (
	"strings"
	"testing"

	"loom/internal/workflows"
)

func imageConfig() workflows.ImageConfig {
	cfg := workflows.DefaultImageConfig()
	cfg.Prompt = "a lighthouse at dusk"
	cfg.NegativePrompt = "blurry"
	cfg.Checkpoint = "sd_xl_base_1.0.safetensors"
	cfg.PlaceholderImage = "placeholder.png"
	cfg.Seed = 11
	return cfg
}

func TestCreateImageWorkflowTopology(t *testing.T) {
	w, err := workflows.CreateImageWorkflow(imageConfig())
	if err != nil {
		t.Fatalf("create image workflow: %v", err)
	}

	encoders := w.NodesOfType("CLIPTextEncode")
	if len(encoders) != 2 {
		t.Fatalf("expected positive and negative text encoders, got %d", len(encoders))
	}
	if got := encoders[0].WidgetsValues[0]; got != "a lighthouse at dusk" {
		t.Errorf("positive prompt widget = %v", got)
	}
	if got := encoders[1].WidgetsValues[0]; got != "blurry" {
		t.Errorf("negative prompt widget = %v", got)
	}

	for _, required := range []string{"LoadImage", "VAEEncode", "KSampler", "VAEDecode", "SaveImage"} {
		if len(w.NodesOfType(required)) != 1 {
			t.Errorf("expected exactly one %s node", required)
		}
	}

	if _, err := w.ToWire(); err != nil {
		t.Fatalf("image workflow must convert cleanly to wire form: %v", err)
	}
}

func TestImageWorkflowUsesPlaceholderWhenNoInitImage(t *testing.T) {
	cfg := imageConfig()
	cfg.InitImage = ""

	w, err := workflows.CreateImageWorkflow(cfg)
	if err != nil {
		t.Fatal(err)
	}
	loaders := w.NodesOfType("LoadImage")
	if len(loaders) != 1 {
		t.Fatalf("expected one image loader, got %d", len(loaders))
	}
	if got := loaders[0].WidgetsValues[0]; got != "placeholder.png" {
		t.Fatalf("expected placeholder filename, got %v", got)
	}
}

func TestImageWorkflowUsesInitImageWhenSupplied(t *testing.T) {
	cfg := imageConfig()
	cfg.InitImage = "upload_0042.png"

	w, err := workflows.CreateImageWorkflow(cfg)
	if err != nil {
		t.Fatal(err)
	}
	loaders := w.NodesOfType("LoadImage")
	if got := loaders[0].WidgetsValues[0]; got != "upload_0042.png" {
		t.Fatalf("expected init image filename, got %v", got)
	}
}

func TestCreateImageWorkflowValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*workflows.ImageConfig)
		wantSub string
	}{
		{"empty prompt", func(c *workflows.ImageConfig) { c.Prompt = "" }, "prompt"},
		{"zero width", func(c *workflows.ImageConfig) { c.Width = 0 }, "dimensions"},
		{"denoise above one", func(c *workflows.ImageConfig) { c.Denoise = 1.2 }, "denoise"},
		{"no guidance", func(c *workflows.ImageConfig) { c.CFG = 0 }, "guidance"},
		{
			"neither init nor placeholder",
			func(c *workflows.ImageConfig) { c.InitImage = ""; c.PlaceholderImage = "" },
			"placeholder",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := imageConfig()
			tc.mutate(&cfg)
			_, err := workflows.CreateImageWorkflow(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantSub, err)
			}
		})
	}
}
