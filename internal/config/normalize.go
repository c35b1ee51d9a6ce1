package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	c.normalizePipeline()
	c.normalizeAPI()
	c.normalizeLLM()
	c.normalizeCollaborators()
	if err := c.normalizePublish(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := lookupEnv("STORAGE_PATH"); ok {
		c.Paths.MediaDir = value
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		c.Paths.MediaDir = defaultMediaDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDatabaseDriver
	}
	if c.Database.DSN == "" {
		if value, ok := lookupEnv("MEDIAFACTORY_DATABASE_DSN"); ok {
			c.Database.DSN = value
		}
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = defaultDatabaseMaxConns
	}
}

func (c *Config) normalizePipeline() {
	c.Pipeline.DefaultNiche = strings.TrimSpace(c.Pipeline.DefaultNiche)
	if c.Pipeline.DefaultNiche == "" {
		c.Pipeline.DefaultNiche = defaultNiche
	}
	c.Pipeline.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Pipeline.DefaultLanguage))
	if c.Pipeline.DefaultLanguage == "" {
		c.Pipeline.DefaultLanguage = defaultLanguage
	}
	c.Pipeline.DefaultVoiceProfile = strings.TrimSpace(c.Pipeline.DefaultVoiceProfile)
	if c.Pipeline.DefaultVoiceProfile == "" {
		c.Pipeline.DefaultVoiceProfile = defaultVoiceProfile
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	if c.API.Token == "" {
		if value, ok := lookupEnv("MONITOR_API_KEY"); ok {
			c.API.Token = value
		}
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.API.JWTSecret = strings.TrimSpace(c.API.JWTSecret)
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	if c.LLM.APIKey == "" {
		for _, key := range llmKeyEnv(c.LLM.Provider) {
			if value, ok := lookupEnv(key); ok {
				c.LLM.APIKey = value
				break
			}
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Provider == "gemini" && (c.LLM.Model == "" || c.LLM.Model == defaultLLMModel) {
		c.LLM.Model = defaultGeminiModel
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func llmKeyEnv(provider string) []string {
	if provider == "gemini" {
		return []string{"GEMINI_API_KEY", "LLM_API_KEY"}
	}
	return []string{"OPENROUTER_API_KEY", "LLM_API_KEY"}
}

func (c *Config) normalizeCollaborators() {
	if c.Voice.APIKey == "" {
		if value, ok := lookupEnv("ELEVENLABS_API_KEY"); ok {
			c.Voice.APIKey = value
		}
	}
	c.Voice.APIKey = strings.TrimSpace(c.Voice.APIKey)
	if strings.TrimSpace(c.Voice.BaseURL) == "" {
		c.Voice.BaseURL = defaultVoiceBaseURL
	}
	if strings.TrimSpace(c.Voice.ModelID) == "" {
		c.Voice.ModelID = defaultVoiceModelID
	}
	if c.Voice.WordsPerMinute <= 0 {
		c.Voice.WordsPerMinute = defaultWordsPerMinute
	}
	if c.Voice.TimeoutSeconds <= 0 {
		c.Voice.TimeoutSeconds = defaultVoiceTimeoutSeconds
	}

	if c.Assets.APIKey == "" {
		if value, ok := lookupEnv("PEXELS_API_KEY"); ok {
			c.Assets.APIKey = value
		}
	}
	c.Assets.APIKey = strings.TrimSpace(c.Assets.APIKey)
	if strings.TrimSpace(c.Assets.BaseURL) == "" {
		c.Assets.BaseURL = defaultAssetsBaseURL
	}
	if c.Assets.PerPage <= 0 {
		c.Assets.PerPage = defaultAssetsPerPage
	}
	if c.Assets.TimeoutSeconds <= 0 {
		c.Assets.TimeoutSeconds = defaultAssetsTimeoutSeconds
	}

	if strings.TrimSpace(c.Compose.FFmpegBinary) == "" {
		c.Compose.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Compose.SubtitleWrap <= 0 {
		c.Compose.SubtitleWrap = defaultSubtitleWrap
	}
	if c.Compose.FPS <= 0 {
		c.Compose.FPS = defaultVideoFPS
	}
	if c.Thumbnail.Width <= 0 {
		c.Thumbnail.Width = defaultThumbnailWidth
	}
	if c.Thumbnail.Height <= 0 {
		c.Thumbnail.Height = defaultThumbnailHeight
	}
}

func (c *Config) normalizePublish() error {
	if value, ok := lookupEnv("AUTO_PUBLISH"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("AUTO_PUBLISH: %w", err)
		}
		c.Publish.AutoPublish = parsed
	}
	if c.Publish.CredentialsFile == "" {
		if value, ok := lookupEnv("YOUTUBE_CREDENTIALS"); ok {
			c.Publish.CredentialsFile = value
		}
	}
	if c.Publish.CredentialsFile != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Publish.CredentialsFile))
		if err != nil {
			return fmt.Errorf("publish.credentials_file: %w", err)
		}
		c.Publish.CredentialsFile = expanded
	}
	if strings.TrimSpace(c.Publish.CategoryID) == "" {
		c.Publish.CategoryID = defaultPublishCategoryID
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}
