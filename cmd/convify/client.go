package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"convify/internal/api"
	"convify/internal/jobs"
)

const requestTimeout = 30 * time.Second

// apiClient is the CLI side of the daemon's /v1 API. Downloads are bounded only
// by the caller's context; every other call gets requestTimeout.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

// apiError carries the daemon's structured error body.
type apiError struct {
	api.ErrorResponse
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Key, e.Status, e.Message)
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{base: base, token: token, http: &http.Client{}}
}

func (c *apiClient) Submit(ctx context.Context, source, format string) (api.ConvertResponse, error) {
	var resp api.ConvertResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/convert/async", api.ConvertRequest{URL: source, Format: format}, &resp)
	return resp, err
}

func (c *apiClient) Status(ctx context.Context, id string) (jobs.Job, error) {
	var job jobs.Job
	err := c.doJSON(ctx, http.MethodGet, "/v1/convert/status/"+url.PathEscape(id), nil, &job)
	return job, err
}

func (c *apiClient) Jobs(ctx context.Context, status string) (api.JobListResponse, error) {
	path := "/v1/jobs"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp api.JobListResponse
	err := c.doJSON(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Health returns the report even when the daemon answers 503.
func (c *apiClient) Health(ctx context.Context) (api.HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	var resp api.HealthResponse
	res, err := c.send(ctx, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return resp, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusServiceUnavailable {
		return resp, decodeAPIError(res)
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("decode health: %w", err)
	}
	return resp, nil
}

// Download streams the file at path into dst.
func (c *apiClient) Download(ctx context.Context, path string, dst io.Writer) (int64, error) {
	res, err := c.send(ctx, http.MethodPost, "/v1/download", api.FilepathRequest{Filepath: path})
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return 0, decodeAPIError(res)
	}
	return io.Copy(dst, res.Body)
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeAPIError(res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, wrapDialError(err, c.base)
	}
	return res, nil
}

func decodeAPIError(res *http.Response) error {
	var body api.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Key == "" {
		return fmt.Errorf("daemon returned %s", res.Status)
	}
	return &apiError{ErrorResponse: body}
}

func wrapDialError(err error, base string) error {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; start the daemon with `convify serve`", base)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}
