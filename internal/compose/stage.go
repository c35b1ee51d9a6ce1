package compose

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"mediafactory/internal/assets"
	"mediafactory/internal/config"
	"mediafactory/internal/deps"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/script"
	"mediafactory/internal/services"
	"mediafactory/internal/services/drapto"
	"mediafactory/internal/services/ffmpeg"
	"mediafactory/internal/stage"
	"mediafactory/internal/voice"
)

const (
	// RenderFile is the H.264 render, primary unless AV1 encoding is enabled.
	RenderFile = "video.mp4"
	// SubtitlesFile is the SRT track muxed into the render.
	SubtitlesFile = "subtitles.srt"
	// MetadataFile summarizes the composition.
	MetadataFile = "compose.json"
)

// Metadata is written as compose.json.
type Metadata struct {
	DurationSeconds float64   `json:"duration_seconds"`
	Sections        int       `json:"sections"`
	Timings         []float64 `json:"timings_seconds"`
	Subtitles       string    `json:"subtitles"`
	Video           string    `json:"video"`
	Render          string    `json:"render"`
	AV1             bool      `json:"av1"`
}

// Composer is the compose stage executor.
type Composer struct {
	ffmpeg  ffmpeg.Runner
	encoder drapto.Encoder
	binary  string
	width   int
	height  int
	fps     int
	wrap    int
	logger  *slog.Logger
}

// NewComposer constructs the compose stage using default dependencies.
func NewComposer(cfg *config.Config, logger *slog.Logger) *Composer {
	var encoder drapto.Encoder
	if cfg.Compose.EncodeAV1 {
		encoder = drapto.NewLibrary(logger)
	}
	return NewComposerWithDependencies(cfg, ffmpeg.New(cfg.Compose.FFmpegBinary, logger), encoder, logger)
}

// NewComposerWithDependencies allows injecting collaborators (used in tests).
// A nil encoder disables the AV1 pass.
func NewComposerWithDependencies(cfg *config.Config, runner ffmpeg.Runner, encoder drapto.Encoder, logger *slog.Logger) *Composer {
	return &Composer{
		ffmpeg:  runner,
		encoder: encoder,
		binary:  cfg.Compose.FFmpegBinary,
		width:   cfg.Compose.Width,
		height:  cfg.Compose.Height,
		fps:     cfg.Compose.FPS,
		wrap:    cfg.Compose.SubtitleWrap,
		logger:  logging.NewComponentLogger(logger, "compose"),
	}
}

// Stage implements stage.Executor.
func (c *Composer) Stage() jobs.Stage { return jobs.StageCompose }

// Execute renders the job's video from script, narration and visuals.
func (c *Composer) Execute(ctx context.Context, req stage.Request) error {
	logger := logging.WithContext(ctx, c.logger)
	doc, err := script.LoadFromJob(req.Job)
	if err != nil {
		return err
	}
	manifest, err := assets.LoadManifest(req.Job)
	if err != nil {
		return err
	}
	if len(doc.Sections) == 0 || len(manifest.Items) == 0 {
		return services.Wrap(services.ErrPermanent, "compose", "plan", "script sections or visuals missing", nil)
	}
	audio, err := stage.ArtifactFile(req.Job, jobs.StageVoice, voice.PrimaryFile)
	if err != nil {
		return err
	}
	assetsDir, err := stage.ArtifactDir(req.Job, jobs.StageAssets)
	if err != nil {
		return err
	}

	total := c.narrationLength(ctx, req.Job, audio, doc)
	timings := SectionTimings(doc.Sections, total)
	if len(manifest.Items) != len(doc.Sections) {
		logger.Warn("visual count differs from section count; reusing visuals",
			logging.Int("sections", len(doc.Sections)),
			logging.Int("visuals", len(manifest.Items)),
		)
	}
	segments := make([]ffmpeg.Segment, len(doc.Sections))
	for i := range doc.Sections {
		item := manifest.Items[i%len(manifest.Items)]
		segments[i] = ffmpeg.Segment{
			Path:     filepath.Join(assetsDir, item.File),
			Duration: timings[i],
			Still:    item.Kind != assets.KindClip,
		}
	}

	var srt bytes.Buffer
	if err := WriteSRT(&srt, BuildCues(doc.Sections, timings, c.wrap)); err != nil {
		return services.Wrap(services.ErrPermanent, "compose", "subtitles", "", err)
	}
	if err := req.Output.WriteFile(SubtitlesFile, srt.Bytes()); err != nil {
		return err
	}

	args, err := ffmpeg.RenderArgs(ffmpeg.RenderPlan{
		Segments:  segments,
		Audio:     audio,
		Subtitles: req.Output.Path(SubtitlesFile),
		Output:    req.Output.Path(RenderFile),
		Width:     c.width,
		Height:    c.height,
		FPS:       c.fps,
	})
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "compose", "plan", "", err)
	}
	started := time.Now()
	if err := c.ffmpeg.Run(ctx, args...); err != nil {
		return services.Wrap(nil, "compose", "render", "ffmpeg", err)
	}
	logger.Info("video rendered",
		logging.Int("segments", len(segments)),
		logging.Duration("length", total),
		logging.Duration("elapsed", time.Since(started)),
	)

	meta := Metadata{
		DurationSeconds: total.Seconds(),
		Sections:        len(segments),
		Timings:         make([]float64, len(timings)),
		Subtitles:       SubtitlesFile,
		Video:           RenderFile,
		Render:          RenderFile,
	}
	for i, d := range timings {
		meta.Timings[i] = d.Seconds()
	}
	if c.encoder != nil {
		encoded, err := c.encoder.Encode(ctx, req.Output.Path(RenderFile), req.Output.Dir(), func(p drapto.Progress) {
			logger.Debug("av1 progress",
				logging.String("stage", p.Stage),
				logging.Any("percent", p.Percent),
				logging.Duration("eta", p.ETA),
			)
		})
		if err != nil {
			return err
		}
		meta.Video = filepath.Base(encoded)
		meta.AV1 = true
	}
	if err := stage.WriteJSON(req, MetadataFile, meta); err != nil {
		return err
	}
	return req.Output.SetPrimary(meta.Video)
}

// narrationLength prefers the probed audio duration, then the voice stage
// metadata, then a words-per-minute estimate.
func (c *Composer) narrationLength(ctx context.Context, job *jobs.Job, audio string, doc script.Document) time.Duration {
	if d, err := c.ffmpeg.Duration(ctx, audio); err == nil && d > 0 {
		return d
	}
	if meta, err := voice.LoadMetadata(job); err == nil && meta.DurationSeconds > 0 {
		return time.Duration(meta.DurationSeconds * float64(time.Second))
	}
	d := time.Duration(doc.WordCount()) * time.Minute / 150
	if d < time.Second {
		d = time.Second
	}
	return d
}

// HealthCheck verifies ffmpeg is installed.
func (c *Composer) HealthCheck(context.Context) stage.Health {
	status := deps.CheckFFmpeg(c.binary)
	if !status.Available {
		return stage.Unhealthy("compose", status.Detail)
	}
	return stage.Healthy("compose")
}
