// Package thumbnail renders the 1280x720 title card uploaded with the video.
package thumbnail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"mediafactory/internal/config"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/render"
	"mediafactory/internal/script"
	"mediafactory/internal/services"
	"mediafactory/internal/stage"
)

// PrimaryFile is the rendered thumbnail.
const PrimaryFile = "thumbnail.png"

// Renderer is the thumbnail stage executor.
type Renderer struct {
	width  int
	height int
	logger *slog.Logger
}

// NewRenderer constructs the thumbnail stage.
func NewRenderer(cfg *config.Config, logger *slog.Logger) *Renderer {
	r := &Renderer{width: 1280, height: 720, logger: logging.NewComponentLogger(logger, "thumbnail")}
	if cfg != nil && cfg.Thumbnail.Width > 0 && cfg.Thumbnail.Height > 0 {
		r.width, r.height = cfg.Thumbnail.Width, cfg.Thumbnail.Height
	}
	return r
}

// Stage implements stage.Executor.
func (r *Renderer) Stage() jobs.Stage { return jobs.StageThumbnail }

// Execute draws the script title, falling back to the job topic, with the niche as tagline.
func (r *Renderer) Execute(ctx context.Context, req stage.Request) error {
	title := strings.TrimSpace(req.Job.Topic)
	if doc, err := script.LoadFromJob(req.Job); err == nil && strings.TrimSpace(doc.Title) != "" {
		title = strings.TrimSpace(doc.Title)
	}
	if title == "" {
		return services.Wrap(services.ErrPermanent, "thumbnail", "render", "no title available", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := render.Thumbnail(&buf, r.width, r.height, title, req.Job.Niche); err != nil {
		return services.Wrap(services.ErrConfiguration, "thumbnail", "render", "", err)
	}
	if err := req.Output.WriteFile(PrimaryFile, buf.Bytes()); err != nil {
		return err
	}
	logging.WithContext(ctx, r.logger).Info("thumbnail rendered",
		logging.String("title", title),
		logging.Int("bytes", buf.Len()),
	)
	return req.Output.SetPrimary(PrimaryFile)
}

// HealthCheck always reports ready: rendering is local.
func (r *Renderer) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("thumbnail")
}
