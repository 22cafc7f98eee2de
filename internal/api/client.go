// Package api uploads exported session recordings to the web frontend or an
// S3-compatible object store.
package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arscene/statesync/pkg/core"
)

const (
	healthPath = "/api/healthcheck"
	uploadPath = "/api/v1/sessions/add"
)

// Uploader sends an exported session file somewhere durable.
type Uploader interface {
	Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error
}

// StatusError is returned when the frontend answers with a non-2xx status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to the session web frontend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 30s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Healthcheck checks if the web frontend is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	return checkResponse("healthcheck", resp)
}

// Upload streams the file and its session metadata as a multipart form.
func (c *Client) Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(c.writeForm(form, file, filepath.Base(filePath), meta))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		_ = pr.Close()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	return checkResponse("upload", resp)
}

func (c *Client) writeForm(form *multipart.Writer, file io.Reader, name string, meta core.UploadMetadata) error {
	fields := [][2]string{
		{"secret", c.apiKey},
		{"filename", name},
		{"sessionName", meta.SessionName},
		{"sessionDuration", strconv.FormatFloat(meta.Duration, 'f', 3, 64)},
		{"frames", strconv.FormatUint(meta.Frames, 10)},
		{"tag", meta.Tag},
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return form.Close()
}

// checkResponse drains and closes the body, keeping a short excerpt for errors.
func checkResponse(op string, resp *http.Response) error {
	defer resp.Body.Close()
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	return nil
}
