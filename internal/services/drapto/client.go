package drapto

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Progress captures one Drapto progress event.
type Progress struct {
	Percent float64
	Stage   string
	Message string
	ETA     time.Duration
}

// Encoder re-encodes a rendered video into AV1.
type Encoder interface {
	Encode(ctx context.Context, inputPath, outputDir string, progress func(Progress)) (string, error)
}

// OutputPath returns the file Drapto writes for inputPath inside outputDir.
func OutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(strings.TrimSpace(outputDir), stem+".mkv")
}
