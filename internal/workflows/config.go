package workflows

import (
	"errors"
	"fmt"
	"strings"
)

// AudioConfig describes one audio generation request. Fields are flat and
// independent; Validate enforces type/range constraints only.
type AudioConfig struct {
	Tags            string
	Lyrics          string
	LyricsStrength  float64
	DurationSeconds float64
	Steps           int
	CFG             float64
	SamplerName     string
	Scheduler       string
	Seed            int64
	Checkpoint      string
}

// DefaultAudioConfig returns the baseline audio settings. Checkpoint is left
// empty; callers fill it from application config.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		LyricsStrength:  0.99,
		DurationSeconds: 120,
		Steps:           50,
		CFG:             5.0,
		SamplerName:     "euler",
		Scheduler:       "simple",
		Seed:            -1,
	}
}

// Validate reports the first constraint violation, if any. Out-of-range values
// are rejected, never clamped.
func (c AudioConfig) Validate() error {
	if strings.TrimSpace(c.Tags) == "" {
		return errors.New("audio config: tags must not be empty")
	}
	if c.DurationSeconds <= 0 {
		return fmt.Errorf("audio config: duration %.2fs must be positive", c.DurationSeconds)
	}
	if c.LyricsStrength < 0 || c.LyricsStrength > 1 {
		return fmt.Errorf("audio config: lyrics strength %.2f must be within [0,1]", c.LyricsStrength)
	}
	return c.validateSampling("audio config")
}

func (c AudioConfig) validateSampling(scope string) error {
	return validateSampling(scope, c.Steps, c.CFG, c.SamplerName, c.Scheduler, c.Checkpoint)
}

// ImageConfig describes one still image generation request.
type ImageConfig struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	CFG            float64
	SamplerName    string
	Scheduler      string
	Seed           int64
	Denoise        float64
	Checkpoint     string

	// InitImage is the engine-side filename of an optional starting image.
	// When empty, the graph references PlaceholderImage instead.
	InitImage        string
	PlaceholderImage string
}

// DefaultImageConfig returns the baseline image settings.
func DefaultImageConfig() ImageConfig {
	return ImageConfig{
		Width:       1024,
		Height:      1024,
		Steps:       30,
		CFG:         7.0,
		SamplerName: "euler",
		Scheduler:   "normal",
		Seed:        -1,
		Denoise:     1.0,
	}
}

// Validate reports the first constraint violation, if any.
func (c ImageConfig) Validate() error {
	if strings.TrimSpace(c.Prompt) == "" {
		return errors.New("image config: prompt must not be empty")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("image config: dimensions %dx%d must be positive", c.Width, c.Height)
	}
	if c.Denoise <= 0 || c.Denoise > 1 {
		return fmt.Errorf("image config: denoise %.2f must be within (0,1]", c.Denoise)
	}
	if strings.TrimSpace(c.PlaceholderImage) == "" && strings.TrimSpace(c.InitImage) == "" {
		return errors.New("image config: placeholder image must be set when no init image is supplied")
	}
	return validateSampling("image config", c.Steps, c.CFG, c.SamplerName, c.Scheduler, c.Checkpoint)
}

// VideoConfig describes one short video generation request.
type VideoConfig struct {
	Width             int
	Height            int
	DurationSeconds   float64
	FPS               int
	MotionIntensity   float64
	AugmentationLevel float64
	Steps             int
	CFG               float64
	SamplerName       string
	Scheduler         string
	Seed              int64
	Denoise           float64
	Checkpoint        string

	InitImage        string
	PlaceholderImage string
}

// DefaultVideoConfig returns the baseline video settings.
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		Width:           1024,
		Height:          576,
		DurationSeconds: 3,
		FPS:             8,
		MotionIntensity: 0.5,
		Steps:           25,
		CFG:             2.5,
		SamplerName:     "euler",
		Scheduler:       "karras",
		Seed:            -1,
		Denoise:         1.0,
	}
}

// Validate reports the first constraint violation, if any.
func (c VideoConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("video config: dimensions %dx%d must be positive", c.Width, c.Height)
	}
	if c.DurationSeconds <= 0 {
		return fmt.Errorf("video config: duration %.2fs must be positive", c.DurationSeconds)
	}
	if c.FPS < 1 {
		return fmt.Errorf("video config: fps %d must be at least 1", c.FPS)
	}
	if c.MotionIntensity < 0 || c.MotionIntensity > 1 {
		return fmt.Errorf("video config: motion intensity %.2f must be within [0,1]", c.MotionIntensity)
	}
	if c.AugmentationLevel < 0 {
		return fmt.Errorf("video config: augmentation level %.2f must not be negative", c.AugmentationLevel)
	}
	if c.Denoise <= 0 || c.Denoise > 1 {
		return fmt.Errorf("video config: denoise %.2f must be within (0,1]", c.Denoise)
	}
	if FrameCount(c.DurationSeconds, c.FPS) < 1 {
		return fmt.Errorf("video config: duration %.2fs at %d fps yields no frames", c.DurationSeconds, c.FPS)
	}
	if strings.TrimSpace(c.PlaceholderImage) == "" && strings.TrimSpace(c.InitImage) == "" {
		return errors.New("video config: placeholder image must be set when no init image is supplied")
	}
	return validateSampling("video config", c.Steps, c.CFG, c.SamplerName, c.Scheduler, c.Checkpoint)
}

func validateSampling(scope string, steps int, cfg float64, sampler, scheduler, checkpoint string) error {
	if steps < 1 {
		return fmt.Errorf("%s: steps %d must be at least 1", scope, steps)
	}
	if cfg <= 0 {
		return fmt.Errorf("%s: guidance scale %.2f must be positive", scope, cfg)
	}
	if strings.TrimSpace(sampler) == "" {
		return fmt.Errorf("%s: sampler name must not be empty", scope)
	}
	if strings.TrimSpace(scheduler) == "" {
		return fmt.Errorf("%s: scheduler must not be empty", scope)
	}
	if strings.TrimSpace(checkpoint) == "" {
		return fmt.Errorf("%s: checkpoint must not be empty", scope)
	}
	return nil
}

func imageOrPlaceholder(initImage, placeholder string) string {
	if trimmed := strings.TrimSpace(initImage); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(placeholder)
}
