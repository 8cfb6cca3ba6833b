package config

const (
	defaultStagingDir = "~/.local/share/upscale/staging"
	defaultOutputDir  = "~/upscaled"
	defaultLogDir     = "~/.local/share/upscale/logs"
	defaultWeightsDir = "~/.local/share/upscale/weights"
	defaultAPIBind    = "127.0.0.1:7613"

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultWorkerBinary  = "realesr-worker"

	defaultModel     = "realesr-animevideov3"
	defaultScale     = 1.5
	defaultTileEdge  = 512
	defaultTilePad   = 10
	defaultPrecision = "fp16"

	defaultCRF    = 20
	defaultPreset = "medium"

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultFetchTimeout       = 1800
	defaultExtractTimeout     = 1800
	defaultUpscaleTimeout     = 21600
	defaultEncodeTimeout      = 7200
	defaultRemuxTimeout       = 600

	defaultNotifyTimeout = 10

	defaultLogFormat = "auto"
	defaultLogLevel  = "info"
)

// Default returns the built-in configuration. Paths are left unexpanded
// until normalize runs.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			WeightsDir: defaultWeightsDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
			Worker:  defaultWorkerBinary,
		},
		Upscaler: Upscaler{
			DefaultModel: defaultModel,
			DefaultScale: defaultScale,
			TileEdge:     defaultTileEdge,
			TilePad:      defaultTilePad,
			Precision:    defaultPrecision,
		},
		Encoding: Encoding{
			CRF:    defaultCRF,
			Preset: defaultPreset,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			FetchTimeout:       defaultFetchTimeout,
			ExtractTimeout:     defaultExtractTimeout,
			UpscaleTimeout:     defaultUpscaleTimeout,
			EncodeTimeout:      defaultEncodeTimeout,
			RemuxTimeout:       defaultRemuxTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Queue:          true,
			Completion:     true,
			Review:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
