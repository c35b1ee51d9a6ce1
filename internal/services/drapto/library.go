package drapto

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	draptolib "github.com/five82/drapto"

	"mediafactory/internal/logging"
	"mediafactory/internal/services"
)

// Library implements Encoder using the Drapto Go library directly.
type Library struct {
	logger *slog.Logger
}

// NewLibrary constructs a Library encoder.
func NewLibrary(logger *slog.Logger) *Library {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Library{logger: logger}
}

// Encode encodes a video file using the Drapto library and returns the output path.
func (l *Library) Encode(ctx context.Context, inputPath, outputDir string, progress func(Progress)) (string, error) {
	if inputPath == "" {
		return "", services.Wrap(services.ErrValidation, "compose", "drapto encode", "input path required", nil)
	}
	if strings.TrimSpace(outputDir) == "" {
		return "", services.Wrap(services.ErrValidation, "compose", "drapto encode", "output directory required", nil)
	}

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "compose", "drapto encode", "create encoder", err)
	}

	rep := newProgressReporter(progress, l.logger)
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Join(ctxErr, err)
		}
		return "", services.Wrap(services.ErrExternalTool, "compose", "drapto encode", rep.lastError(), err)
	}
	return OutputPath(inputPath, outputDir), nil
}

var _ Encoder = (*Library)(nil)
