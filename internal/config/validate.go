package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateTextGen(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if strings.TrimSpace(c.Engine.BaseURL) == "" {
		return errors.New("engine.base_url must be set")
	}
	parsed, err := url.Parse(c.Engine.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("engine.base_url %q is not a valid URL", c.Engine.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("engine.base_url scheme %q is unsupported", parsed.Scheme)
	}
	if c.Engine.TimeoutSeconds < 0 {
		return errors.New("engine.timeout_seconds must not be negative")
	}
	if c.Engine.UploadSeconds < 0 {
		return errors.New("engine.upload_timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateTextGen() error {
	if !c.TextGen.Enabled {
		return nil
	}
	if strings.TrimSpace(c.TextGen.BaseURL) == "" {
		return errors.New("textgen.base_url must be set when textgen.enabled is true")
	}
	if c.TextGen.TimeoutSeconds < 0 {
		return errors.New("textgen.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.AudioCheckpoint == "" {
		return errors.New("generation.audio_checkpoint must be set")
	}
	if c.Generation.ImageCheckpoint == "" {
		return errors.New("generation.image_checkpoint must be set")
	}
	if c.Generation.VideoCheckpoint == "" {
		return errors.New("generation.video_checkpoint must be set")
	}
	if c.Generation.PlaceholderImage == "" {
		return errors.New("generation.placeholder_image must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.CheckTimeoutSeconds <= 0 {
		return errors.New("workflow.check_timeout_seconds must be positive")
	}
	if c.Workflow.StalePollLimit <= 0 {
		return errors.New("workflow.stale_poll_limit must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	return nil
}
