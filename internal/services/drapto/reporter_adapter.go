package drapto

import (
	"log/slog"
	"strings"
	"sync"

	draptolib "github.com/five82/drapto"

	"mediafactory/internal/logging"
)

// progressReporter adapts the Drapto Reporter interface to a Progress
// callback and the component logger.
type progressReporter struct {
	callback func(Progress)
	logger   *slog.Logger

	mu      sync.Mutex
	lastErr string
}

func newProgressReporter(callback func(Progress), logger *slog.Logger) *progressReporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &progressReporter{callback: callback, logger: logger}
}

func (r *progressReporter) emit(p Progress) {
	if r.callback != nil {
		r.callback(p)
	}
}

func (r *progressReporter) lastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastErr == "" {
		return "encode failed"
	}
	return r.lastErr
}

func (r *progressReporter) Hardware(s draptolib.HardwareSummary) {
	r.logger.Debug("drapto hardware", logging.String("hostname", s.Hostname))
}

func (r *progressReporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Info("drapto encode initialized",
		logging.String("input", s.InputFile),
		logging.String("output", s.OutputFile),
		logging.Any("resolution", s.Resolution),
	)
}

func (r *progressReporter) StageProgress(s draptolib.StageProgress) {
	p := Progress{Percent: float64(s.Percent), Stage: s.Stage, Message: s.Message}
	if s.ETA != nil {
		p.ETA = *s.ETA
	}
	r.emit(p)
}

func (r *progressReporter) CropResult(s draptolib.CropSummary) {
	r.logger.Debug("drapto crop detection", logging.Any("crop", s.Crop), logging.Any("required", s.Required))
}

func (r *progressReporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Debug("drapto encoding config",
		logging.Any("encoder", s.Encoder),
		logging.Any("preset", s.Preset),
		logging.Any("quality", s.Quality),
	)
}

func (r *progressReporter) EncodingStarted(totalFrames uint64) {
	r.emit(Progress{Stage: "encoding", Message: "started"})
	r.logger.Debug("drapto encoding started", logging.Int64("total_frames", int64(totalFrames)))
}

func (r *progressReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.emit(Progress{Percent: float64(s.Percent), Stage: "encoding", ETA: s.ETA})
}

func (r *progressReporter) ValidationComplete(s draptolib.ValidationSummary) {
	if !s.Passed {
		r.logger.Warn("drapto validation failed", logging.Int("steps", len(s.Steps)))
	}
}

func (r *progressReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.emit(Progress{Percent: 100, Stage: "complete"})
	r.logger.Info("drapto encode complete",
		logging.String("output", s.OutputPath),
		logging.Int64("original_bytes", int64(s.OriginalSize)),
		logging.Int64("encoded_bytes", int64(s.EncodedSize)),
	)
}

func (r *progressReporter) Warning(message string) {
	r.logger.Warn("drapto warning", logging.String("message", message))
}

func (r *progressReporter) Error(e draptolib.ReporterError) {
	msg := strings.TrimSpace(strings.Join([]string{e.Title, e.Message}, ": "))
	r.mu.Lock()
	r.lastErr = strings.Trim(msg, ": ")
	r.mu.Unlock()
	r.logger.Error("drapto error", logging.String("title", e.Title), logging.String("message", e.Message))
}

func (r *progressReporter) OperationComplete(message string) {
	r.logger.Debug("drapto operation complete", logging.String("message", message))
}

func (r *progressReporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *progressReporter) FileProgress(draptolib.FileProgressContext) {}

func (r *progressReporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*progressReporter)(nil)
