package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maauso/avsync/internal/job"
	"github.com/maauso/avsync/internal/media"
	"github.com/maauso/avsync/internal/server"
	"github.com/maauso/avsync/internal/storage"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
		wantErr bool
	}{
		{name: "empty", baseURL: "", wantErr: true},
		{name: "relative", baseURL: "localhost", wantErr: true},
		{name: "trailing slash", baseURL: "http://localhost:8080/", want: "http://localhost:8080"},
		{name: "plain", baseURL: "https://avsync.internal", want: "https://avsync.internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.baseURL)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.baseURL != tt.want {
				t.Errorf("baseURL = %q, want %q", c.baseURL, tt.want)
			}
		})
	}
}

func TestSubmit_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jobs" {
			t.Errorf("expected POST /jobs, got %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", r.Header.Get("Content-Type"))
		}

		var req server.CreateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req.VideoBase64 != "dmlkZW8=" || req.AudioBase64 != "YXVkaW8=" || req.OutputFormat != "mkv" {
			t.Errorf("unexpected request: %+v", req)
		}

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(server.CreateJobResponse{ID: "job-123", Status: "IN_QUEUE"})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)

	jobID, err := c.Submit(context.Background(), server.CreateJobRequest{
		VideoBase64:  "dmlkZW8=",
		AudioBase64:  "YXVkaW8=",
		OutputFormat: "mkv",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job-123" {
		t.Errorf("expected job-123, got %s", jobID)
	}
}

func TestSubmit_NoJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(server.CreateJobResponse{})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)

	_, err := c.Submit(context.Background(), server.CreateJobRequest{VideoBase64: "dmlkZW8="})
	if !errors.Is(err, ErrNoJobIDReturned) {
		t.Errorf("expected ErrNoJobIDReturned, got %v", err)
	}
}

func TestSubmit_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(server.ErrorResponse{
			Error: "push_to_s3 requested but S3 is not configured",
			Code:  "S3_NOT_CONFIGURED",
		})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)

	_, err := c.Submit(context.Background(), server.CreateJobRequest{VideoBase64: "dmlkZW8=", PushToS3: true})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "S3_NOT_CONFIGURED" {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
}

func TestSubmit_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithBaseBackoff(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Submit(ctx, server.CreateJobRequest{VideoBase64: "dmlkZW8="})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPoll_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/jobs/job-1" {
			t.Errorf("expected GET /jobs/job-1, got %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(server.JobResponse{
			ID:            "job-1",
			Status:        "COMPLETED",
			Action:        "trim",
			VideoDuration: 3,
			AudioDuration: 3,
			VideoBase64:   "dmlkZW8=",
		})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)

	resp, err := c.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "COMPLETED" || resp.Action != "trim" || resp.VideoBase64 != "dmlkZW8=" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestPoll_EmptyJobID(t *testing.T) {
	c, _ := NewClient("http://localhost:8080")

	_, err := c.Poll(context.Background(), "")
	if !errors.Is(err, ErrJobIDRequired) {
		t.Errorf("expected ErrJobIDRequired, got %v", err)
	}
}

func TestRetry_TransientFailure(t *testing.T) {
	var attempts int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("service unavailable"))
			return
		}
		_ = json.NewEncoder(w).Encode(server.JobResponse{ID: "job-1", Status: "RUNNING"})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithMaxRetries(3), WithBaseBackoff(10*time.Millisecond))

	resp, err := c.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "RUNNING" {
		t.Errorf("expected RUNNING, got %v", resp.Status)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_MaxRetriesExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithMaxRetries(2), WithBaseBackoff(10*time.Millisecond))

	_, err := c.Poll(context.Background(), "job-1")
	if !errors.Is(err, ErrServerError) {
		t.Errorf("expected ErrServerError after max retries, got %v", err)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	var attempts int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("404 page not found"))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithMaxRetries(3), WithBaseBackoff(10*time.Millisecond))

	_, err := c.Poll(context.Background(), "job-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "404 page not found" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("expected 1 attempt (no retries for 404), got %d", attempts)
	}
}

func TestRetry_RateLimited(t *testing.T) {
	var attempts int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(server.JobResponse{ID: "job-1", Status: "COMPLETED"})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithMaxRetries(3), WithBaseBackoff(10*time.Millisecond))

	resp, err := c.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "COMPLETED" {
		t.Errorf("expected COMPLETED, got %v", resp.Status)
	}
}

func TestWithHTTPClient(t *testing.T) {
	custom := &http.Client{Timeout: 60 * time.Second}
	c, err := NewClient("http://localhost:8080", WithHTTPClient(custom))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.httpClient != custom {
		t.Error("expected custom HTTP client to be set")
	}
}

func TestWait_UntilTerminal(t *testing.T) {
	var polls int32
	statuses := []string{"IN_QUEUE", "RUNNING", "FAILED"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&polls, 1)
		_ = json.NewEncoder(w).Encode(server.JobResponse{
			ID:     "job-1",
			Status: statuses[min(int(n), len(statuses))-1],
			Error:  "encoding failed",
		})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)

	resp, err := Wait(context.Background(), c, "job-1", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "FAILED" {
		t.Errorf("expected FAILED, got %s", resp.Status)
	}
	if atomic.LoadInt32(&polls) != 3 {
		t.Errorf("expected 3 polls, got %d", polls)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(server.JobResponse{ID: "job-1", Status: "RUNNING"})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Wait(ctx, c, "job-1", 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

// fileMuxer copies the video to the output, standing in for ffmpeg.
type fileMuxer struct{}

func (fileMuxer) Run(_ context.Context, req media.Request) (*media.Result, error) {
	data, err := os.ReadFile(req.VideoPath)
	if err != nil {
		return nil, &media.MissingInputError{Path: req.VideoPath, Err: err}
	}
	if err := os.WriteFile(req.OutputPath, data, 0o644); err != nil {
		return nil, err
	}
	return &media.Result{
		OutputPath:    req.OutputPath,
		Action:        media.ActionNone,
		VideoDuration: 2 * time.Second,
	}, nil
}

func TestClient_AgainstRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	svc := job.NewService(job.NewMemoryRepository(), store, fileMuxer{}, logger)
	router := server.NewRouter(server.NewHandlers(svc, logger), logger, server.DefaultConfig())

	srv := httptest.NewServer(router)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	ctx := context.Background()

	jobID, err := c.Submit(ctx, server.CreateJobRequest{
		VideoBase64: base64.StdEncoding.EncodeToString([]byte("fake video")),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, err := Wait(ctx, c, jobID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if resp.Status != string(job.StatusCompleted) {
		t.Fatalf("expected COMPLETED, got %s (%s)", resp.Status, resp.Error)
	}
	if resp.Action != string(media.ActionNone) || resp.VideoDuration != 2 {
		t.Errorf("unexpected outcome: %+v", resp)
	}
	got, err := base64.StdEncoding.DecodeString(resp.VideoBase64)
	if err != nil {
		t.Fatalf("decode video: %v", err)
	}
	if string(got) != "fake video" {
		t.Errorf("video = %q", got)
	}

	_, err = c.Poll(ctx, "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 APIError, got %v", err)
	}
}
