// Package tutor is the HTTP client for the tutoring backend: the streaming
// turn endpoint, paginated history, and the episode job endpoints.
package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lessonloop/lessonloop/internal/sse"
)

const defaultBaseURL = "http://localhost:8787"

// readChunkSize bounds how much raw stream data is handed to the frame
// decoder per read. Frame processing for one chunk completes before the
// next chunk is read.
const readChunkSize = 4 * 1024

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for protocol-level diagnostics.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is the HTTP client for the tutoring backend. The credential is an
// opaque bearer token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new backend client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FrameResult carries one decoded frame or a transport error from the read
// loop. After an Err the channel is closed.
type FrameResult struct {
	Frame sse.Frame
	Err   error
}

// StreamTurn opens one streaming turn and returns a channel of decoded
// frames. The channel is closed when the stream ends, the context is
// cancelled, or the transport fails. Cancellation takes effect at the next
// chunk boundary.
func (c *Client) StreamTurn(ctx context.Context, req *TurnRequest) (<-chan FrameResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/sessions/%s/turns", c.baseURL, url.PathEscape(req.SessionID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	out := make(chan FrameResult)
	go c.streamReader(ctx, resp.Body, out)
	return out, nil
}

// streamReader reads raw chunks, feeds the frame decoder, and forwards
// completed frames. The decoder is created here and dies with the stream.
func (c *Client) streamReader(ctx context.Context, body io.ReadCloser, out chan<- FrameResult) {
	defer close(out)
	defer body.Close()

	dec := sse.NewDecoder(c.logger)
	buf := make([]byte, readChunkSize)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, frame := range dec.Feed(buf[:n]) {
				select {
				case out <- FrameResult{Frame: frame}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				dec.Finish()
				return
			}
			if ctx.Err() != nil {
				// Caller aborted; not a transport fault.
				return
			}
			select {
			case out <- FrameResult{Err: fmt.Errorf("stream read error: %w", err)}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// History fetches a page of prior messages for a session, oldest first.
// An empty cursor fetches the most recent page.
func (c *Client) History(ctx context.Context, sessionID, cursor string, limit int) (*HistoryPage, error) {
	endpoint := fmt.Sprintf("%s/v1/sessions/%s/messages", c.baseURL, url.PathEscape(sessionID))
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var page HistoryPage
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateEpisode submits an audio-episode synthesis request and returns the
// job identifier to poll.
func (c *Client) CreateEpisode(ctx context.Context, req *EpisodeRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/episodes", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result EpisodeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result.JobID, nil
}

// JobStatus polls one background job by its bare identifier.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/jobs/%s", c.baseURL, url.PathEscape(jobID))
	var status JobStatusResponse
	if err := c.getJSON(ctx, endpoint, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CancelJob requests cancellation of a job. Cancellation is advisory: the
// backend may already have progressed past a cancellable point, so callers
// keep polling until a terminal status is observed.
func (c *Client) CancelJob(ctx context.Context, jobID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/v1/jobs/%s/cancel", c.baseURL, url.PathEscape(jobID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result CancelResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result.Accepted, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, into any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, into); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", "lessonloop/1.0")
}
