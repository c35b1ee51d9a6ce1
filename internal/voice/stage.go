package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediafactory/internal/config"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/script"
	"mediafactory/internal/services"
	"mediafactory/internal/services/elevenlabs"
	"mediafactory/internal/services/ffmpeg"
	"mediafactory/internal/stage"
)

const (
	// PrimaryFile is the narration track.
	PrimaryFile = "voice.mp3"
	// MetadataFile describes how the track was produced.
	MetadataFile = "voice.json"

	// DefaultVoiceID is the ElevenLabs voice used for the "alloy" profile.
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

	providerElevenLabs = "elevenlabs"
	providerSilent     = "silent"
)

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, text string) ([]byte, error)
	HealthCheck(ctx context.Context) error
	Configured() bool
}

// Metadata is written next to the track as voice.json.
type Metadata struct {
	Provider        string  `json:"provider"`
	VoiceID         string  `json:"voice_id,omitempty"`
	Chunks          int     `json:"chunks"`
	Words           int     `json:"words"`
	DurationSeconds float64 `json:"duration_seconds"`
	Estimated       bool    `json:"duration_estimated,omitempty"`
}

// Narrator is the voice stage executor.
type Narrator struct {
	tts            Synthesizer
	ffmpeg         ffmpeg.Runner
	wordsPerMinute int
	logger         *slog.Logger
}

// NewNarrator constructs the voice stage using default dependencies.
func NewNarrator(cfg *config.Config, logger *slog.Logger) *Narrator {
	tts := elevenlabs.NewClient(elevenlabs.Config{
		APIKey:  cfg.Voice.APIKey,
		BaseURL: cfg.Voice.BaseURL,
		ModelID: cfg.Voice.ModelID,
		Timeout: time.Duration(cfg.Voice.TimeoutSeconds) * time.Second,
	})
	return NewNarratorWithDependencies(cfg, tts, ffmpeg.New(cfg.Compose.FFmpegBinary, logger), logger)
}

// NewNarratorWithDependencies allows injecting collaborators (used in tests).
func NewNarratorWithDependencies(cfg *config.Config, tts Synthesizer, runner ffmpeg.Runner, logger *slog.Logger) *Narrator {
	wpm := 150
	if cfg != nil && cfg.Voice.WordsPerMinute > 0 {
		wpm = cfg.Voice.WordsPerMinute
	}
	return &Narrator{
		tts:            tts,
		ffmpeg:         runner,
		wordsPerMinute: wpm,
		logger:         logging.NewComponentLogger(logger, "voice"),
	}
}

// Stage implements stage.Executor.
func (n *Narrator) Stage() jobs.Stage { return jobs.StageVoice }

// Execute renders the narration of the job's script.
func (n *Narrator) Execute(ctx context.Context, req stage.Request) error {
	logger := logging.WithContext(ctx, n.logger)
	doc, err := script.LoadFromJob(req.Job)
	if err != nil {
		return err
	}
	narration := doc.Narration()
	words := len(strings.Fields(narration))
	if words == 0 {
		return services.Wrap(services.ErrPermanent, "voice", "narrate", "script has no narration text", nil)
	}

	meta := Metadata{Words: words}
	out := req.Output.Path(PrimaryFile)
	if n.tts != nil && n.tts.Configured() {
		meta.Provider = providerElevenLabs
		meta.VoiceID = VoiceID(req.Job.VoiceProfile)
		meta.Chunks, err = n.synthesize(ctx, req, meta.VoiceID, narration)
	} else {
		meta.Provider = providerSilent
		logger.Warn("elevenlabs not configured; rendering silent narration",
			logging.String(logging.FieldEventType, "voice_fallback"),
			logging.Int("words", words),
		)
		err = n.ffmpeg.Run(ctx, ffmpeg.SilentAudioArgs(out, n.estimate(words))...)
	}
	if err != nil {
		return services.Wrap(nil, "voice", "narrate", meta.Provider, err)
	}

	length, probeErr := n.ffmpeg.Duration(ctx, out)
	if probeErr != nil || length <= 0 {
		length = n.estimate(words)
		meta.Estimated = true
	}
	meta.DurationSeconds = length.Seconds()
	if err := stage.WriteJSON(req, MetadataFile, meta); err != nil {
		return err
	}
	logger.Info("narration rendered",
		logging.String("provider", meta.Provider),
		logging.Int("chunks", meta.Chunks),
		logging.Duration("duration", length),
	)
	return req.Output.SetPrimary(PrimaryFile)
}

func (n *Narrator) synthesize(ctx context.Context, req stage.Request, voiceID, narration string) (int, error) {
	chunks := SplitText(narration, MaxChunkChars)
	if len(chunks) == 1 {
		audio, err := n.tts.Synthesize(ctx, voiceID, chunks[0])
		if err != nil {
			return 0, err
		}
		return 1, req.Output.WriteFile(PrimaryFile, audio)
	}
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		audio, err := n.tts.Synthesize(ctx, voiceID, chunk)
		if err != nil {
			return 0, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		name := fmt.Sprintf("chunk-%02d.mp3", i+1)
		if err := req.Output.WriteFile(name, audio); err != nil {
			return 0, err
		}
		parts = append(parts, req.Output.Path(name))
	}
	const listName = "chunks.txt"
	if err := req.Output.WriteFile(listName, []byte(ffmpeg.ConcatList(parts))); err != nil {
		return 0, err
	}
	if err := n.ffmpeg.Run(ctx, ffmpeg.ConcatAudioArgs(req.Output.Path(listName), req.Output.Path(PrimaryFile))...); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (n *Narrator) estimate(words int) time.Duration {
	length := time.Duration(words) * time.Minute / time.Duration(n.wordsPerMinute)
	if length < time.Second {
		length = time.Second
	}
	return length
}

// HealthCheck reports whether ElevenLabs is reachable, or that the silent
// fallback is in use.
func (n *Narrator) HealthCheck(ctx context.Context) stage.Health {
	const name = "voice"
	if n.tts == nil || !n.tts.Configured() {
		return stage.Degraded(name, "elevenlabs api key not set; silent narration")
	}
	if err := n.tts.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

// VoiceID maps a job voice profile onto an ElevenLabs voice. Profiles other
// than the named defaults are used as voice IDs directly.
func VoiceID(profile string) string {
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case "", "alloy", "default":
		return DefaultVoiceID
	default:
		return strings.TrimSpace(profile)
	}
}

// LoadMetadata reads the committed voice.json of a job.
func LoadMetadata(job *jobs.Job) (Metadata, error) {
	var meta Metadata
	if err := stage.LoadJSON(job, jobs.StageVoice, MetadataFile, &meta); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}
