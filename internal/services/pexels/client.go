// Package pexels searches the Pexels stock video library and downloads clips.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mediafactory/internal/services"
)

const (
	defaultBaseURL = "https://api.pexels.com"
	defaultTimeout = 60 * time.Second
	maxFrameWidth  = 1920
)

// Config captures the runtime settings required to talk to Pexels.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// VideoFile is one rendition of a stock video.
type VideoFile struct {
	ID       int    `json:"id"`
	Quality  string `json:"quality"`
	FileType string `json:"file_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Link     string `json:"link"`
}

// Video is a single search hit.
type Video struct {
	ID       int         `json:"id"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Duration int         `json:"duration"`
	URL      string      `json:"url"`
	Files    []VideoFile `json:"video_files"`
}

type searchResponse struct {
	Page         int     `json:"page"`
	PerPage      int     `json:"per_page"`
	TotalResults int     `json:"total_results"`
	Videos       []Video `json:"videos"`
}

// Client wraps the video search API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a client from cfg. A nil httpClient selects a default with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// SearchVideos returns landscape videos matching query.
func (c *Client) SearchVideos(ctx context.Context, query string, perPage int) ([]Video, error) {
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "assets", "pexels search", "api key required", nil)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if perPage <= 0 {
		perPage = 1
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/videos/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("pexels: new request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, "assets", "pexels search", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, services.Wrap(services.StatusMarker(resp.StatusCode), "assets", "pexels search", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, services.Wrap(services.ErrTransient, "assets", "pexels search", "decode response", err)
	}
	return parsed.Videos, nil
}

// Download streams the file at link into w.
func (c *Client) Download(ctx context.Context, link string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrPermanent, "assets", "pexels download", "invalid link", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, services.Wrap(services.ErrTransient, "assets", "pexels download", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, services.Wrap(services.StatusMarker(resp.StatusCode), "assets", "pexels download", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, services.Wrap(services.ErrTransient, "assets", "pexels download", "copy body", err)
	}
	return n, nil
}

// BestFile picks the widest HD MP4 rendition that fits a 1080p frame,
// falling back to any MP4.
func BestFile(v Video) (VideoFile, bool) {
	var best, fallback VideoFile
	var haveBest, haveFallback bool
	for _, f := range v.Files {
		if f.Link == "" || f.FileType != "video/mp4" {
			continue
		}
		if !haveFallback || f.Width > fallback.Width {
			fallback, haveFallback = f, true
		}
		if f.Quality != "hd" || f.Width > maxFrameWidth {
			continue
		}
		if !haveBest || f.Width > best.Width {
			best, haveBest = f, true
		}
	}
	if haveBest {
		return best, true
	}
	return fallback, haveFallback
}
