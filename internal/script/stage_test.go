package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafactory/internal/artifacts"
	"mediafactory/internal/jobs"
	"mediafactory/internal/services"
	"mediafactory/internal/stage"
	"mediafactory/internal/testsupport"
)

const validReply = "```json\n" + `{
  "title": "Test Video",
  "hook": "Learn this in eight minutes.",
  "sections": [
    {"heading": "Start", "body": "Do the first thing, for example open the box.", "b_roll": "box opening"},
    {"heading": "Finish", "body": "Do the last thing, for example close it.", "b_roll": "closing lid"}
  ],
  "cta": "Subscribe for more.",
  "tags": ["test"],
  "shorts": ["one"]
}` + "\n```"

type fakeCompleter struct {
	reply  string
	err    error
	health error
	user   string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, userPrompt string) (string, error) {
	f.user = userPrompt
	return f.reply, f.err
}

func (f *fakeCompleter) HealthCheck(context.Context) error { return f.health }

func (f *fakeCompleter) Provider() string { return "fake" }

func (f *fakeCompleter) Close() error { return nil }

func newRequest(t *testing.T) stage.Request {
	t.Helper()
	store := artifacts.NewStore(t.TempDir())
	attempt, err := store.Begin(context.Background(), "job-1", jobs.StageScript, 1)
	require.NoError(t, err)
	return stage.Request{
		Job:     &jobs.Job{ID: "job-1", Topic: "Test Video", Niche: "General", LengthSeconds: 480, Language: "en"},
		Attempt: 1,
		Output:  attempt,
	}
}

func TestExecuteWritesScriptAndNarration(t *testing.T) {
	completer := &fakeCompleter{reply: validReply}
	gen := NewGenerator(testsupport.NewConfig(t), completer, nil)
	req := newRequest(t)

	require.NoError(t, gen.Execute(context.Background(), req))
	assert.Equal(t, PrimaryFile, req.Output.Primary())
	assert.Contains(t, completer.user, "topic: Test Video")
	assert.Contains(t, completer.user, "length_seconds: 480")

	artifact, err := req.Output.Commit(context.Background())
	require.NoError(t, err)
	data, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	doc, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, "Test Video", doc.Title)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "box opening", doc.Sections[0].BRoll)

	narration, err := os.ReadFile(filepath.Join(filepath.Dir(artifact.Path), NarrationFile))
	require.NoError(t, err)
	assert.Contains(t, string(narration), "Learn this in eight minutes.")
	assert.Contains(t, string(narration), "Subscribe for more.")
}

func TestExecuteRejectedTopicIsPermanent(t *testing.T) {
	completer := &fakeCompleter{reply: `{"error":"content_not_allowed","reason":"illegal content"}`}
	gen := NewGenerator(testsupport.NewConfig(t), completer, nil)

	err := gen.Execute(context.Background(), newRequest(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, services.Retryable(err))
	assert.Contains(t, err.Error(), "illegal content")
}

func TestExecuteMalformedReplyIsTransient(t *testing.T) {
	for name, reply := range map[string]string{
		"not json":         "sure, here is your script",
		"missing sections": `{"title":"x","hook":"","sections":[],"cta":"","tags":[],"shorts":[]}`,
		"missing b_roll":   `{"title":"x","hook":"","sections":[{"heading":"h","body":"b"}],"cta":"","tags":[],"shorts":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			gen := NewGenerator(testsupport.NewConfig(t), &fakeCompleter{reply: reply}, nil)
			err := gen.Execute(context.Background(), newRequest(t))
			require.Error(t, err)
			assert.True(t, services.Retryable(err), "got %v", err)
		})
	}
}

func TestExecutePropagatesCompleterMarkers(t *testing.T) {
	completer := &fakeCompleter{err: services.Wrap(services.ErrConfiguration, "", "llm", "bad key", nil)}
	gen := NewGenerator(testsupport.NewConfig(t), completer, nil)

	err := gen.Execute(context.Background(), newRequest(t))
	assert.ErrorIs(t, err, services.ErrConfiguration)
	assert.False(t, services.Retryable(err))
}

func TestHealthCheck(t *testing.T) {
	gen := NewGenerator(nil, &fakeCompleter{health: errors.New("down")}, nil)
	health := gen.HealthCheck(context.Background())
	assert.False(t, health.Ready)
	assert.Equal(t, "down", health.Detail)

	assert.False(t, NewGenerator(nil, nil, nil).HealthCheck(context.Background()).Ready)
}

func TestSectionTarget(t *testing.T) {
	assert.Equal(t, 18, sectionTarget(480, 150))
	assert.Equal(t, 1, sectionTarget(10, 150))
	assert.Equal(t, 0, sectionTarget(0, 150))
}
