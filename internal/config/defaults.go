package config

const (
	defaultConfigPath           = "~/.config/mediafactory/config.toml"
	defaultDataDir              = "~/.local/share/mediafactory"
	defaultMediaDir             = "~/.local/share/mediafactory/media"
	defaultLogDir               = "~/.local/share/mediafactory/logs"
	defaultDatabaseDriver       = "sqlite"
	defaultDatabaseMaxConns     = 8
	defaultNiche                = "General"
	defaultLengthSeconds        = 480
	defaultLanguage             = "en"
	defaultVoiceProfile         = "alloy"
	defaultWorkers              = 2
	defaultQueuePollInterval    = 1
	defaultDequeueWait          = 5
	defaultErrorRetryInterval   = 5
	defaultVisibilityTimeout    = 120
	defaultHeartbeatInterval    = 15
	defaultMaxRetries           = 3
	defaultMaxDeliveries        = 10
	defaultBackoffBase          = 10
	defaultBackoffMax           = 60
	defaultStageTimeout         = 3600
	defaultAPIBind              = "127.0.0.1:8000"
	defaultLLMProvider          = "openrouter"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "openai/gpt-4o-mini"
	defaultGeminiModel          = "gemini-1.5-flash"
	defaultLLMReferer           = "https://github.com/mediafactory/mediafactory"
	defaultLLMTitle             = "mediafactory script generator"
	defaultLLMTimeoutSeconds    = 120
	defaultVoiceBaseURL         = "https://api.elevenlabs.io/v1"
	defaultVoiceModelID         = "eleven_multilingual_v2"
	defaultWordsPerMinute       = 150
	defaultVoiceTimeoutSeconds  = 120
	defaultAssetsBaseURL        = "https://api.pexels.com"
	defaultAssetsPerPage        = 3
	defaultAssetsTimeoutSeconds = 60
	defaultFFmpegBinary         = "ffmpeg"
	defaultVideoWidth           = 1920
	defaultVideoHeight          = 1080
	defaultVideoFPS             = 30
	defaultSubtitleWrap         = 40
	defaultThumbnailWidth       = 1280
	defaultThumbnailHeight      = 720
	defaultPublishCategoryID    = "22"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
		},
		Database: Database{
			Driver:   defaultDatabaseDriver,
			MaxConns: defaultDatabaseMaxConns,
		},
		Pipeline: Pipeline{
			DefaultNiche:        defaultNiche,
			DefaultLength:       defaultLengthSeconds,
			DefaultLanguage:     defaultLanguage,
			DefaultVoiceProfile: defaultVoiceProfile,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			DequeueWait:        defaultDequeueWait,
			ErrorRetryInterval: defaultErrorRetryInterval,
			VisibilityTimeout:  defaultVisibilityTimeout,
			HeartbeatInterval:  defaultHeartbeatInterval,
			MaxRetries:         defaultMaxRetries,
			MaxDeliveries:      defaultMaxDeliveries,
			BackoffBase:        defaultBackoffBase,
			BackoffMax:         defaultBackoffMax,
			StageTimeout:       defaultStageTimeout,
		},
		API: API{
			Enabled: true,
			Bind:    defaultAPIBind,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Voice: Voice{
			BaseURL:        defaultVoiceBaseURL,
			ModelID:        defaultVoiceModelID,
			WordsPerMinute: defaultWordsPerMinute,
			TimeoutSeconds: defaultVoiceTimeoutSeconds,
		},
		Assets: Assets{
			BaseURL:        defaultAssetsBaseURL,
			PerPage:        defaultAssetsPerPage,
			TimeoutSeconds: defaultAssetsTimeoutSeconds,
		},
		Compose: Compose{
			FFmpegBinary: defaultFFmpegBinary,
			Width:        defaultVideoWidth,
			Height:       defaultVideoHeight,
			FPS:          defaultVideoFPS,
			SubtitleWrap: defaultSubtitleWrap,
		},
		Thumbnail: Thumbnail{
			Width:  defaultThumbnailWidth,
			Height: defaultThumbnailHeight,
		},
		Publish: Publish{
			CategoryID: defaultPublishCategoryID,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobSucceeded:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
