package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mediafactory/internal/config"
	"mediafactory/internal/fileutil"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/script"
	"mediafactory/internal/services"
	"mediafactory/internal/services/youtube"
	"mediafactory/internal/stage"
	"mediafactory/internal/textutil"
)

// PrimaryFile records the publish outcome.
const PrimaryFile = "publish.json"

// Ledger is the slice of the job store that deduplicates uploads.
type Ledger interface {
	ReserveLedger(ctx context.Context, id string, stage jobs.Stage) (*jobs.LedgerEntry, bool, error)
	CompleteLedger(ctx context.Context, id string, stage jobs.Stage, state jobs.LedgerState, externalID string) error
}

// Result is written as publish.json.
type Result struct {
	State   jobs.LedgerState `json:"state"`
	VideoID string           `json:"video_id,omitempty"`
	URL     string           `json:"url,omitempty"`
	Privacy string           `json:"privacy,omitempty"`
	Title   string           `json:"title"`
	Video   string           `json:"video"`
	Warning string           `json:"warning,omitempty"`

	// ManualKit lists the files written for a hand upload when no credentials are configured.
	ManualKit []string `json:"manual_kit,omitempty"`
}

// Publisher is the publish stage executor.
type Publisher struct {
	ledger     Ledger
	uploader   youtube.Uploader
	autoPublic bool
	categoryID string
	logger     *slog.Logger
}

// NewPublisher constructs the publish stage. A missing credentials file
// leaves the uploader unset, which records pending_upload.
func NewPublisher(ctx context.Context, cfg *config.Config, ledger Ledger, logger *slog.Logger) (*Publisher, error) {
	var uploader youtube.Uploader
	if strings.TrimSpace(cfg.Publish.CredentialsFile) != "" {
		client, err := youtube.NewClient(ctx, cfg.Publish.CredentialsFile)
		if err != nil {
			return nil, err
		}
		uploader = client
	}
	return NewPublisherWithDependencies(cfg, ledger, uploader, logger), nil
}

// NewPublisherWithDependencies allows injecting collaborators (used in tests).
func NewPublisherWithDependencies(cfg *config.Config, ledger Ledger, uploader youtube.Uploader, logger *slog.Logger) *Publisher {
	return &Publisher{
		ledger:     ledger,
		uploader:   uploader,
		autoPublic: cfg.Publish.AutoPublish,
		categoryID: cfg.Publish.CategoryID,
		logger:     logging.NewComponentLogger(logger, "publish"),
	}
}

// Stage implements stage.Executor.
func (p *Publisher) Stage() jobs.Stage { return jobs.StagePublish }

// Execute uploads the job's video once.
func (p *Publisher) Execute(ctx context.Context, req stage.Request) error {
	logger := logging.WithContext(ctx, p.logger)
	if p.ledger == nil {
		return services.Wrap(services.ErrConfiguration, "publish", "execute", "publish ledger not configured", nil)
	}
	job := req.Job
	videoArtifact := job.Artifacts[jobs.StageCompose]
	if videoArtifact == nil || videoArtifact.Path == "" {
		return services.Wrap(services.ErrPermanent, "publish", "execute", "job has no composed video", nil)
	}
	doc, err := script.LoadFromJob(job)
	if err != nil {
		return err
	}
	result := Result{Title: doc.Title, Video: videoArtifact.Path}

	entry, reserved, err := p.ledger.ReserveLedger(ctx, job.ID, jobs.StagePublish)
	if err != nil {
		return services.Wrap(services.ErrTransient, "publish", "ledger", "reserve", err)
	}
	if !reserved {
		switch entry.State {
		case jobs.LedgerPublished:
			logger.Info("video already published; reusing ledger entry",
				logging.String("video_id", entry.ExternalID),
				logging.String(logging.FieldEventType, "publish_dedup"),
			)
			result.State = jobs.LedgerPublished
			result.VideoID = entry.ExternalID
			result.URL = watchURL(entry.ExternalID)
			return p.finish(req, result)
		default:
			return services.Wrap(services.ErrPermanent, "publish", "ledger",
				"a previous upload did not record its outcome; check the channel before retrying", nil)
		}
	}

	if p.uploader == nil {
		logger.Warn("youtube credentials not configured; leaving video for manual upload",
			logging.String(logging.FieldEventType, "publish_pending"),
		)
		kit, err := writeManualKit(req, doc)
		if err != nil {
			return services.Wrap(services.ErrTransient, "publish", "manual kit", "write upload kit", err)
		}
		result.ManualKit = kit
		if err := p.ledger.CompleteLedger(ctx, job.ID, jobs.StagePublish, jobs.LedgerPendingUpload, ""); err != nil {
			return services.Wrap(services.ErrTransient, "publish", "ledger", "complete", err)
		}
		result.State = jobs.LedgerPendingUpload
		return p.finish(req, result)
	}

	video := youtube.Video{
		Path:        videoArtifact.Path,
		Title:       doc.Title,
		Description: Description(doc),
		Tags:        doc.Tags,
		CategoryID:  p.categoryID,
		Language:    job.Language,
		Privacy:     youtube.PrivacyPrivate,
	}
	if p.autoPublic {
		video.Privacy = youtube.PrivacyPublic
	}
	if thumb := job.Artifacts[jobs.StageThumbnail]; thumb != nil {
		video.ThumbnailPath = thumb.Path
	}
	result.Privacy = video.Privacy

	id, err := p.uploader.Upload(ctx, video)
	if err != nil && id == "" {
		if resetErr := p.ledger.CompleteLedger(context.WithoutCancel(ctx), job.ID, jobs.StagePublish, jobs.LedgerPendingUpload, ""); resetErr != nil {
			logger.Error("reset publish ledger failed", logging.Error(resetErr))
		}
		return services.Wrap(nil, "publish", "upload", "", err)
	}
	if err != nil {
		logging.WarnWithContext(logger, "video published with warnings", "publish_warning",
			logging.String("video_id", id),
			logging.Bool("thumbnail_failed", errors.Is(err, youtube.ErrThumbnail)),
			logging.Error(err),
		)
		result.Warning = err.Error()
	}
	if err := p.ledger.CompleteLedger(context.WithoutCancel(ctx), job.ID, jobs.StagePublish, jobs.LedgerPublished, id); err != nil {
		return services.Wrap(services.ErrTransient, "publish", "ledger", "record video id "+id, err)
	}
	result.State = jobs.LedgerPublished
	result.VideoID = id
	result.URL = watchURL(id)
	logger.Info("video published",
		logging.String("video_id", id),
		logging.String("privacy", video.Privacy),
	)
	return p.finish(req, result)
}

func (p *Publisher) finish(req stage.Request, result Result) error {
	if err := stage.WriteJSON(req, PrimaryFile, result); err != nil {
		return err
	}
	return req.Output.SetPrimary(PrimaryFile)
}

// writeManualKit stores the title, description and thumbnail under a
// title-derived name so the video can be uploaded by hand.
func writeManualKit(req stage.Request, doc script.Document) ([]string, error) {
	name := textutil.Slug(doc.Title, 60, "video")
	text := fmt.Sprintf("%s\n\n%s", strings.TrimSpace(doc.Title), Description(doc))
	kit := []string{name + ".txt"}
	if err := req.Output.WriteFile(kit[0], []byte(text)); err != nil {
		return nil, err
	}
	if thumb := req.Job.Artifacts[jobs.StageThumbnail]; thumb != nil && thumb.Path != "" {
		if err := fileutil.CopyFile(thumb.Path, req.Output.Path(name+".png")); err != nil {
			return nil, err
		}
		kit = append(kit, name+".png")
	}
	return kit, nil
}

// HealthCheck reports whether uploads are possible.
func (p *Publisher) HealthCheck(context.Context) stage.Health {
	if p.uploader == nil {
		return stage.Degraded("publish", "youtube credentials not set; uploads left pending")
	}
	return stage.Healthy("publish")
}

// Description assembles the video description from the script.
func Description(doc script.Document) string {
	var b strings.Builder
	if hook := strings.TrimSpace(doc.Hook); hook != "" {
		b.WriteString(hook)
		b.WriteString("\n\n")
	}
	for _, section := range doc.Sections {
		if heading := strings.TrimSpace(section.Heading); heading != "" {
			fmt.Fprintf(&b, "- %s\n", heading)
		}
	}
	if cta := strings.TrimSpace(doc.CTA); cta != "" {
		b.WriteString("\n")
		b.WriteString(cta)
		b.WriteString("\n")
	}
	var tags []string
	for _, tag := range doc.Tags {
		tag = strings.Join(strings.Fields(tag), "")
		if tag != "" {
			tags = append(tags, "#"+tag)
		}
	}
	if len(tags) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(tags, " "))
	}
	return strings.TrimSpace(b.String())
}

func watchURL(id string) string {
	if id == "" {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + id
}
