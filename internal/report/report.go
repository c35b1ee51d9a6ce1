// Package report exports job history as XLSX workbooks.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
)

const (
	jobsSheet    = "Jobs"
	summarySheet = "Summary"
	pageSize     = 500
	errorWidth   = 140
)

// JobSource is the read side of the job store an export needs.
type JobSource interface {
	List(ctx context.Context, opts jobs.ListOptions) ([]*jobs.Job, error)
	Stats(ctx context.Context) (map[jobs.Status]int, error)
}

// Options narrows an export.
type Options struct {
	Statuses []jobs.Status
	// Since drops jobs created before it when non-zero.
	Since time.Time
}

// Exporter produces XLSX reports.
type Exporter struct {
	source JobSource
	logger *slog.Logger
}

// NewExporter constructs an exporter over source.
func NewExporter(source JobSource, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Exporter{source: source, logger: logging.NewComponentLogger(logger, "report")}
}

var jobHeaders = []string{
	"Job ID",
	"Topic",
	"Niche",
	"Length (s)",
	"Language",
	"Status",
	"Current Stage",
	"Last Failed Stage",
	"Attempts",
	"Created",
	"Completed",
	"Duration (s)",
	"Error",
}

// Export returns the workbook bytes and the number of job rows written.
func (e *Exporter) Export(ctx context.Context, opts Options) ([]byte, int, error) {
	start := time.Now()
	list, err := e.collect(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	stats, err := e.source.Stats(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("job stats: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", jobsSheet); err != nil {
		return nil, 0, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, 0, err
	}
	if err := writeJobs(f, list); err != nil {
		return nil, 0, err
	}
	if err := writeSummary(f, stats, len(list)); err != nil {
		return nil, 0, err
	}
	index, err := f.GetSheetIndex(jobsSheet)
	if err != nil {
		return nil, 0, err
	}
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("xlsx write: %w", err)
	}
	e.logger.Info("job report exported",
		logging.Int("rows", len(list)),
		logging.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		logging.String(logging.FieldEventType, "report_exported"),
	)
	return buf.Bytes(), len(list), nil
}

// WriteFile exports to path, creating parent directories.
func (e *Exporter) WriteFile(ctx context.Context, path string, opts Options) (int, error) {
	data, rows, err := e.Export(ctx, opts)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write report: %w", err)
	}
	return rows, nil
}

// collect pages through the store; List returns newest first, so paging
// stops at the first job older than opts.Since.
func (e *Exporter) collect(ctx context.Context, opts Options) ([]*jobs.Job, error) {
	var out []*jobs.Job
	for offset := 0; ; offset += pageSize {
		page, err := e.source.List(ctx, jobs.ListOptions{Statuses: opts.Statuses, Offset: offset, Limit: pageSize})
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		for _, job := range page {
			if !opts.Since.IsZero() && job.CreatedAt.Before(opts.Since) {
				return out, nil
			}
			out = append(out, job)
		}
		if len(page) < pageSize {
			return out, nil
		}
	}
}

func writeJobs(f *excelize.File, list []*jobs.Job) error {
	if err := writeRow(f, jobsSheet, 1, toCells(jobHeaders)); err != nil {
		return err
	}
	for i, job := range list {
		if err := writeRow(f, jobsSheet, i+2, jobRow(job)); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(jobsSheet, 1, 1, style)
	}
	_ = f.SetColWidth(jobsSheet, "A", "A", 38)
	_ = f.SetColWidth(jobsSheet, "B", "B", 48)
	_ = f.SetColWidth(jobsSheet, "C", "I", 16)
	_ = f.SetColWidth(jobsSheet, "J", "K", 22)
	_ = f.SetColWidth(jobsSheet, "M", "M", 60)
	return nil
}

func jobRow(job *jobs.Job) []any {
	attempts := 0
	for _, n := range job.Attempts {
		attempts += n
	}
	var duration any = ""
	if !job.CompletedAt.IsZero() {
		duration = int64(job.CompletedAt.Sub(job.CreatedAt).Seconds())
	}
	return []any{
		job.ID,
		job.Topic,
		job.Niche,
		job.LengthSeconds,
		job.Language,
		string(job.Status),
		string(job.CurrentStage),
		string(job.LastFailedStage),
		attempts,
		formatTime(job.CreatedAt),
		formatTime(job.CompletedAt),
		duration,
		truncate(job.ErrorMessage, errorWidth),
	}
}

func writeSummary(f *excelize.File, stats map[jobs.Status]int, exported int) error {
	if err := writeRow(f, summarySheet, 1, []any{"Status", "Jobs"}); err != nil {
		return err
	}
	row := 2
	for _, status := range jobs.AllStatuses() {
		if err := writeRow(f, summarySheet, row, []any{string(status), stats[status]}); err != nil {
			return err
		}
		row++
	}
	if err := writeRow(f, summarySheet, row+1, []any{"Rows exported", exported}); err != nil {
		return err
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 18)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
