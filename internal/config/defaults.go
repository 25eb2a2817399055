package config

const (
	defaultOutputDir = "~/.local/share/loom/output"
	defaultLogDir    = "~/.local/share/loom/logs"
	defaultDataDir   = "~/.local/share/loom"

	defaultEngineBaseURL        = "http://127.0.0.1:8188"
	defaultEngineTimeoutSeconds = 30
	defaultEngineUploadSeconds  = 120

	defaultTextGenBaseURL        = "http://127.0.0.1:5000/v1"
	defaultTextGenTimeoutSeconds = 60

	defaultAudioCheckpoint  = "ace_step_v1_3.5b.safetensors"
	defaultImageCheckpoint  = "sd_xl_base_1.0.safetensors"
	defaultVideoCheckpoint  = "svd_xt_1_1.safetensors"
	defaultPlaceholderImage = "placeholder.png"

	defaultQueuePollInterval   = 3
	defaultCheckTimeoutSeconds = 15
	defaultStalePollLimit      = 40
	defaultErrorRetryInterval  = 10

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			DataDir:   defaultDataDir,
		},
		Engine: Engine{
			BaseURL:        defaultEngineBaseURL,
			TimeoutSeconds: defaultEngineTimeoutSeconds,
			UploadSeconds:  defaultEngineUploadSeconds,
			WebSocket:      true,
		},
		TextGen: TextGen{
			Enabled:        true,
			BaseURL:        defaultTextGenBaseURL,
			TimeoutSeconds: defaultTextGenTimeoutSeconds,
		},
		Generation: Generation{
			AudioCheckpoint:  defaultAudioCheckpoint,
			ImageCheckpoint:  defaultImageCheckpoint,
			VideoCheckpoint:  defaultVideoCheckpoint,
			PlaceholderImage: defaultPlaceholderImage,
		},
		Workflow: Workflow{
			QueuePollInterval:   defaultQueuePollInterval,
			CheckTimeoutSeconds: defaultCheckTimeoutSeconds,
			StalePollLimit:      defaultStalePollLimit,
			ErrorRetryInterval:  defaultErrorRetryInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
