// Package client provides an HTTP client for the avsync job API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maauso/avsync/internal/job"
	"github.com/maauso/avsync/internal/server"
)

// Static errors for client operations.
var (
	// ErrBaseURLRequired is returned when the server URL is not provided.
	ErrBaseURLRequired = errors.New("avsync client: base URL is required")
	// ErrJobIDRequired is returned when the job ID is not provided.
	ErrJobIDRequired = errors.New("avsync client: job ID is required")
	// ErrNoJobIDReturned is returned when the create response contains no job ID.
	ErrNoJobIDReturned = errors.New("avsync client: submit failed: no job ID returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("avsync client: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("avsync client: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("avsync client: request failed")
)

// APIError is a non-retryable error response decoded from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s with status %d: %s (%s)", ErrRequestFailed, e.StatusCode, e.Message, e.Code)
}

// Is makes errors.Is(err, ErrRequestFailed) match.
func (e *APIError) Is(target error) bool {
	return target == ErrRequestFailed
}

// Client defines the operations of the avsync job API.
type Client interface {
	// Submit creates a mux job and returns its ID.
	Submit(ctx context.Context, req server.CreateJobRequest) (jobID string, err error)

	// Poll fetches the current state of a job.
	Poll(ctx context.Context, jobID string) (*server.JobResponse, error)
}

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a client for the server at baseURL, e.g. "http://localhost:8080".
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("avsync client: invalid base URL %q: %w", baseURL, err)
	}

	c := &HTTPClient{
		baseURL: baseURL,
		// Request bodies carry whole videos.
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		maxRetries:  3,
		baseBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit posts a job to /jobs.
func (c *HTTPClient) Submit(ctx context.Context, req server.CreateJobRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("avsync client: marshal request: %w", err)
	}

	var resp server.CreateJobResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.baseURL+"/jobs", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", ErrNoJobIDReturned
	}
	return resp.ID, nil
}

// Poll fetches /jobs/{id}.
func (c *HTTPClient) Poll(ctx context.Context, jobID string) (*server.JobResponse, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}

	var resp server.JobResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, c.baseURL+"/jobs/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Wait polls the job every interval until it reaches a terminal status.
func Wait(ctx context.Context, c Client, jobID string, interval time.Duration) (*server.JobResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		resp, err := c.Poll(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status(resp.Status).IsTerminal() {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("avsync client: wait for job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, endpoint string, body []byte, result any) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("avsync client: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, method, endpoint, body, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("avsync client: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, endpoint string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("avsync client: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("avsync client: %w", ctx.Err())
		}
		return &retryableError{err: fmt.Errorf("avsync client: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("avsync client: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("avsync client: unmarshal response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var er server.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Code != "" {
		apiErr.Code = er.Code
		apiErr.Message = er.Error
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
