package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"convify/internal/services"
	"convify/internal/textutil"
)

const (
	defaultBaseURL     = "https://www.googleapis.com/youtube/v3"
	defaultHTTPTimeout = 15 * time.Second
)

// Config describes the Data API client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Client wraps the YouTube Data API v3 videos endpoint.
type Client struct {
	apiKey  string
	baseURL *url.URL
	http    *http.Client
}

// NewClient creates a Client from the supplied configuration.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("youtube: api key is required")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("youtube: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{apiKey: apiKey, baseURL: baseURL, http: client}, nil
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

// FetchTitle returns the sanitized title for videoID. An empty result set maps
// to ErrNotFound; transport and API errors map to ErrCollaborator.
func (c *Client) FetchTitle(ctx context.Context, videoID string) (string, error) {
	if c == nil {
		return "", errors.New("youtube: client is nil")
	}
	endpoint := c.baseURL.JoinPath("videos")
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", videoID)
	params.Set("key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", services.Wrap(services.ErrCollaborator, "metadata", "build request", "", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrCollaborator, "metadata", "videos.list", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", services.Wrap(services.ErrCollaborator, "metadata", "videos.list",
			fmt.Sprintf("Could not retrieve video title (%s): %s", resp.Status, strings.TrimSpace(string(body))), nil)
	}

	var payload videoListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrCollaborator, "metadata", "decode", "", err)
	}
	if len(payload.Items) == 0 {
		return "", services.Wrap(services.ErrNotFound, "metadata", "videos.list", "Video not found: "+videoID, nil)
	}
	title := textutil.SanitizeFileName(payload.Items[0].Snippet.Title)
	if title == "" {
		title = textutil.SanitizeFileName(videoID)
	}
	return title, nil
}
