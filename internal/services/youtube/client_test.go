package youtube

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"mediafactory/internal/services"
)

type fakeAPI struct {
	mu          sync.Mutex
	videoBodies []string
	thumbCalls  int
	videoStatus int
	thumbStatus int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.Contains(r.URL.Path, "thumbnails"):
		f.thumbCalls++
		if f.thumbStatus != 0 {
			w.WriteHeader(f.thumbStatus)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	case strings.Contains(r.URL.Path, "videos"):
		f.videoBodies = append(f.videoBodies, string(body))
		if f.videoStatus != 0 {
			w.WriteHeader(f.videoStatus)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"vid-123"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	client, err := NewClient(context.Background(), "",
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return client
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUploadSendsMetadataAndThumbnail(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	id, err := client.Upload(context.Background(), Video{
		Path:          writeFile(t, "video.mp4", "video-bytes"),
		ThumbnailPath: writeFile(t, "thumbnail.png", "png-bytes"),
		Title:         "Test Video",
		Description:   "desc",
		Tags:          []string{"a", "b"},
		CategoryID:    "22",
		Privacy:       PrivacyPublic,
	})
	require.NoError(t, err)
	assert.Equal(t, "vid-123", id)
	require.Len(t, api.videoBodies, 1)
	assert.Contains(t, api.videoBodies[0], `"title":"Test Video"`)
	assert.Contains(t, api.videoBodies[0], `"privacyStatus":"public"`)
	assert.Contains(t, api.videoBodies[0], "video-bytes")
	assert.Equal(t, 1, api.thumbCalls)
}

func TestUploadClassifiesServerErrors(t *testing.T) {
	api := &fakeAPI{videoStatus: http.StatusServiceUnavailable}
	client := newTestClient(t, api)

	_, err := client.Upload(context.Background(), Video{Path: writeFile(t, "video.mp4", "x"), Title: "T"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrTransient), "got %v", err)
}

func TestThumbnailFailureKeepsVideoID(t *testing.T) {
	api := &fakeAPI{thumbStatus: http.StatusForbidden}
	client := newTestClient(t, api)

	id, err := client.Upload(context.Background(), Video{
		Path:          writeFile(t, "video.mp4", "x"),
		ThumbnailPath: writeFile(t, "thumbnail.png", "y"),
		Title:         "T",
	})
	assert.Equal(t, "vid-123", id)
	assert.True(t, errors.Is(err, ErrThumbnail), "got %v", err)
}

func TestUploadValidatesInput(t *testing.T) {
	client := newTestClient(t, &fakeAPI{})
	_, err := client.Upload(context.Background(), Video{Title: " "})
	assert.True(t, errors.Is(err, services.ErrValidation))

	_, err = NewClient(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, services.ErrConfiguration))
}
