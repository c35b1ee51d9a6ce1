// Package youtube uploads finished videos through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"mediafactory/internal/services"
)

const uploadChunkSize = 8 << 20

// ErrThumbnail is joined to Upload errors that happened after the video was created.
var ErrThumbnail = errors.New("thumbnail not set")

// Privacy values accepted by the API.
const (
	PrivacyPublic   = "public"
	PrivacyPrivate  = "private"
	PrivacyUnlisted = "unlisted"
)

// Video describes one upload.
type Video struct {
	Path          string
	ThumbnailPath string
	Title         string
	Description   string
	Tags          []string
	CategoryID    string
	Language      string
	Privacy       string
}

// Uploader publishes a video and returns its external ID.
type Uploader interface {
	Upload(ctx context.Context, video Video) (string, error)
}

// Client implements Uploader with resumable uploads.
type Client struct {
	svc *yt.Service
}

// NewClient authenticates with the credentials file (an authorized-user or
// service-account JSON document). Extra options are appended, which tests use
// to point the client at a fake endpoint.
func NewClient(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*Client, error) {
	all := make([]option.ClientOption, 0, len(opts)+2)
	if strings.TrimSpace(credentialsFile) != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "publish", "youtube client", "credentials file unreadable", err)
		}
		all = append(all, option.WithCredentialsFile(credentialsFile), option.WithScopes(yt.YoutubeUploadScope))
	}
	all = append(all, opts...)
	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "youtube client", "create service", err)
	}
	return &Client{svc: svc}, nil
}

// Upload inserts the video, then sets its thumbnail when one is provided.
// A thumbnail failure carries ErrThumbnail and the video ID is still returned.
func (c *Client) Upload(ctx context.Context, video Video) (string, error) {
	if strings.TrimSpace(video.Title) == "" || video.Path == "" {
		return "", services.Wrap(services.ErrValidation, "publish", "youtube upload", "title and video path are required", nil)
	}
	file, err := os.Open(video.Path)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "publish", "youtube upload", "open video", err)
	}
	defer file.Close()

	privacy := video.Privacy
	if privacy == "" {
		privacy = PrivacyPrivate
	}
	body := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:                truncate(video.Title, 100),
			Description:          truncate(video.Description, 5000),
			Tags:                 video.Tags,
			CategoryId:           video.CategoryID,
			DefaultLanguage:      video.Language,
			DefaultAudioLanguage: video.Language,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
	inserted, err := c.svc.Videos.Insert([]string{"snippet", "status"}, body).
		Media(file, googleapi.ChunkSize(uploadChunkSize)).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify("youtube upload", err)
	}
	if inserted == nil || inserted.Id == "" {
		return "", services.Wrap(services.ErrTransient, "publish", "youtube upload", "response missing video id", nil)
	}

	if video.ThumbnailPath != "" {
		if err := c.setThumbnail(ctx, inserted.Id, video.ThumbnailPath); err != nil {
			return inserted.Id, err
		}
	}
	return inserted.Id, nil
}

func (c *Client) setThumbnail(ctx context.Context, videoID, path string) error {
	thumb, err := os.Open(path)
	if err != nil {
		return errors.Join(ErrThumbnail, services.Wrap(services.ErrPermanent, "publish", "youtube thumbnail", "open thumbnail", err))
	}
	defer thumb.Close()
	if _, err := c.svc.Thumbnails.Set(videoID).Media(thumb).Context(ctx).Do(); err != nil {
		return errors.Join(ErrThumbnail, classify("youtube thumbnail", err))
	}
	return nil
}

func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		detail := fmt.Sprintf("http %d: %s", apiErr.Code, strings.TrimSpace(apiErr.Message))
		return services.Wrap(services.StatusMarker(apiErr.Code), "publish", op, detail, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(services.ErrTransient, "publish", op, "request failed", err)
}

func truncate(value string, limit int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit])
}
