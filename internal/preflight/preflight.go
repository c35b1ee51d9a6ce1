package preflight

import (
	"context"

	"mediafactory/internal/config"
)

// minFreeBytes is the free space below which the media directory check fails.
const minFreeBytes = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDiskSpace("Media disk space", cfg.Paths.MediaDir, minFreeBytes),
		CheckFFmpeg(cfg),
		CheckLLM(ctx, "Script LLM", cfg.LLM),
		CheckVoiceFromConfig(cfg),
		CheckAssetsFromConfig(cfg),
	}
	if cfg.Publish.Enabled {
		results = append(results, CheckPublishFromConfig(cfg))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
