package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"mediafactory/internal/config"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/render"
	"mediafactory/internal/script"
	"mediafactory/internal/services"
	"mediafactory/internal/services/pexels"
	"mediafactory/internal/stage"
	"mediafactory/internal/textutil"
)

// Searcher finds and downloads stock footage.
type Searcher interface {
	Configured() bool
	SearchVideos(ctx context.Context, query string, perPage int) ([]pexels.Video, error)
	Download(ctx context.Context, link string, w io.Writer) (int64, error)
}

// Sourcer is the assets stage executor.
type Sourcer struct {
	search  Searcher
	perPage int
	width   int
	height  int
	logger  *slog.Logger
}

// NewSourcer constructs the assets stage using default dependencies.
func NewSourcer(cfg *config.Config, logger *slog.Logger) *Sourcer {
	client := pexels.NewClient(pexels.Config{
		APIKey:  cfg.Assets.APIKey,
		BaseURL: cfg.Assets.BaseURL,
		Timeout: time.Duration(cfg.Assets.TimeoutSeconds) * time.Second,
	}, nil)
	return NewSourcerWithDependencies(cfg, client, logger)
}

// NewSourcerWithDependencies allows injecting collaborators (used in tests).
func NewSourcerWithDependencies(cfg *config.Config, search Searcher, logger *slog.Logger) *Sourcer {
	s := &Sourcer{
		search:  search,
		perPage: 3,
		width:   1920,
		height:  1080,
		logger:  logging.NewComponentLogger(logger, "assets"),
	}
	if cfg != nil {
		if cfg.Assets.PerPage > 0 {
			s.perPage = cfg.Assets.PerPage
		}
		if cfg.Compose.Width > 0 && cfg.Compose.Height > 0 {
			s.width, s.height = cfg.Compose.Width, cfg.Compose.Height
		}
	}
	return s
}

// Stage implements stage.Executor.
func (s *Sourcer) Stage() jobs.Stage { return jobs.StageAssets }

// Execute picks a visual for every script section.
func (s *Sourcer) Execute(ctx context.Context, req stage.Request) error {
	logger := logging.WithContext(ctx, s.logger)
	doc, err := script.LoadFromJob(req.Job)
	if err != nil {
		return err
	}
	if len(doc.Sections) == 0 {
		return services.Wrap(services.ErrPermanent, "assets", "source", "script has no sections", nil)
	}

	online := s.search != nil && s.search.Configured()
	if !online {
		logger.Warn("pexels not configured; rendering slides for every section",
			logging.String(logging.FieldEventType, "assets_fallback"),
		)
	}
	manifest := Manifest{Items: make([]Item, 0, len(doc.Sections))}
	for i, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := Item{
			Index:   i + 1,
			Heading: strings.TrimSpace(section.Heading),
			Query:   query(section, req.Job.Topic),
		}
		if online {
			found, err := s.clip(ctx, req, &item)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("stock footage unavailable; using slide",
					logging.String(logging.FieldEventType, "assets_clip_failed"),
					logging.Int("section", item.Index),
					logging.String("query", item.Query),
					logging.Error(err),
				)
			}
			if found {
				manifest.Items = append(manifest.Items, item)
				continue
			}
		}
		if err := s.slide(req, section, &item); err != nil {
			return err
		}
		manifest.Items = append(manifest.Items, item)
	}

	if err := stage.WriteJSON(req, PrimaryFile, manifest); err != nil {
		return err
	}
	clips, slides := manifest.Counts()
	logger.Info("assets sourced", logging.Int("clips", clips), logging.Int("slides", slides))
	return req.Output.SetPrimary(PrimaryFile)
}

// clip searches for footage and downloads the best match into the attempt.
func (s *Sourcer) clip(ctx context.Context, req stage.Request, item *Item) (bool, error) {
	videos, err := s.search.SearchVideos(ctx, item.Query, s.perPage)
	if err != nil {
		return false, err
	}
	if len(videos) == 0 {
		return false, nil
	}
	pages := make([]string, len(videos))
	for i, v := range videos {
		pages[i] = v.URL
	}
	for _, idx := range textutil.Rank(item.Query, pages) {
		file, ok := pexels.BestFile(videos[idx])
		if !ok {
			continue
		}
		name := fmt.Sprintf("%02d_clip.mp4", item.Index)
		n, err := s.download(ctx, req, name, file.Link)
		if err != nil {
			return false, err
		}
		item.Kind = KindClip
		item.File = name
		item.Source = videos[idx].URL
		item.Width, item.Height = file.Width, file.Height
		item.Bytes = n
		return true, nil
	}
	return false, nil
}

func (s *Sourcer) download(ctx context.Context, req stage.Request, name, link string) (int64, error) {
	path := req.Output.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "assets", "download", "create file", err)
	}
	n, err := s.search.Download(ctx, link, f)
	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = closeErr
	}
	if err == nil && n == 0 {
		err = errors.New("empty download")
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

func (s *Sourcer) slide(req stage.Request, section script.Section, item *Item) error {
	var buf bytes.Buffer
	if err := render.Slide(&buf, s.width, s.height, section.Heading, section.Body); err != nil {
		return services.Wrap(services.ErrPermanent, "assets", "render slide", "", err)
	}
	name := fmt.Sprintf("%02d_slide.png", item.Index)
	if err := req.Output.WriteFile(name, buf.Bytes()); err != nil {
		return err
	}
	item.Kind = KindSlide
	item.File = name
	item.Width, item.Height = s.width, s.height
	item.Bytes = int64(buf.Len())
	return nil
}

func query(section script.Section, topic string) string {
	for _, candidate := range []string{section.BRoll, section.Heading, topic} {
		if q := strings.TrimSpace(candidate); q != "" {
			return q
		}
	}
	return ""
}

// HealthCheck reports whether stock footage search is available.
func (s *Sourcer) HealthCheck(context.Context) stage.Health {
	if s.search == nil || !s.search.Configured() {
		return stage.Degraded("assets", "pexels api key not set; slides only")
	}
	return stage.Healthy("assets")
}
