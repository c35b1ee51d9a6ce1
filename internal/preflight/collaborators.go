package preflight

import (
	"os"
	"strings"

	"mediafactory/internal/config"
)

// CheckVoiceFromConfig reports whether narration uses ElevenLabs or the
// silent fallback. The fallback passes.
func CheckVoiceFromConfig(cfg *config.Config) Result {
	const name = "ElevenLabs"
	if strings.TrimSpace(cfg.Voice.APIKey) == "" {
		return Result{Name: name, Passed: true, Detail: "Not configured (silent narration)"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured"}
}

// CheckAssetsFromConfig reports whether visuals come from Pexels or from
// rendered slides. The fallback passes.
func CheckAssetsFromConfig(cfg *config.Config) Result {
	const name = "Pexels"
	if strings.TrimSpace(cfg.Assets.APIKey) == "" {
		return Result{Name: name, Passed: true, Detail: "Not configured (title slides)"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured"}
}

// CheckPublishFromConfig verifies the YouTube credentials file when
// publishing is enabled.
func CheckPublishFromConfig(cfg *config.Config) Result {
	const name = "YouTube"
	if !cfg.Publish.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	path := strings.TrimSpace(cfg.Publish.CredentialsFile)
	if path == "" {
		return Result{Name: name, Detail: "Missing credentials file"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: "credentials file unreadable: " + err.Error()}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: path + " is a directory"}
	}
	if !cfg.Publish.AutoPublish {
		return Result{Name: name, Passed: true, Detail: "Credentials present (uploads deferred)"}
	}
	return Result{Name: name, Passed: true, Detail: "Credentials present"}
}
