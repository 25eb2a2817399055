package config

import (
	"strings"

	"github.com/google/uuid"
)

func (c *Config) normalize() error {
	for _, field := range []*string{&c.Paths.OutputDir, &c.Paths.LogDir, &c.Paths.DataDir} {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Engine.BaseURL = strings.TrimRight(strings.TrimSpace(c.Engine.BaseURL), "/")
	c.Engine.ClientID = strings.TrimSpace(c.Engine.ClientID)
	if c.Engine.ClientID == "" {
		c.Engine.ClientID = uuid.NewString()
	}

	c.TextGen.BaseURL = strings.TrimSpace(c.TextGen.BaseURL)
	c.TextGen.Model = strings.TrimSpace(c.TextGen.Model)
	c.TextGen.APIKey = strings.TrimSpace(c.TextGen.APIKey)

	c.Generation.AudioCheckpoint = strings.TrimSpace(c.Generation.AudioCheckpoint)
	c.Generation.ImageCheckpoint = strings.TrimSpace(c.Generation.ImageCheckpoint)
	c.Generation.VideoCheckpoint = strings.TrimSpace(c.Generation.VideoCheckpoint)
	c.Generation.PlaceholderImage = strings.TrimSpace(c.Generation.PlaceholderImage)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}
