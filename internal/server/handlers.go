package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/avsync/internal/job"
	"github.com/maauso/avsync/internal/storage"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.Service
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
	s3Enabled          bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithS3 reports whether results can be published to S3. When disabled,
// requests with push_to_s3 are rejected.
func WithS3(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.s3Enabled = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if req.PushToS3 && !h.s3Enabled {
		writeError(w, http.StatusBadRequest, "push_to_s3 requested but S3 is not configured", "S3_NOT_CONFIGURED")
		return
	}

	createdJob, err := h.service.CreateJob(r.Context(), job.CreateJobInput{
		VideoBase64:  req.VideoBase64,
		AudioBase64:  req.AudioBase64,
		OutputFormat: job.OutputFormat(req.OutputFormat),
		PushToS3:     req.PushToS3,
	})
	if err != nil {
		switch {
		case errors.Is(err, job.ErrInvalidMedia),
			errors.Is(err, job.ErrInvalidOutputFormat),
			errors.Is(err, job.ErrVideoRequired):
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_MEDIA")
		default:
			h.logger.Error("failed to create job",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		}
		return
	}

	// Detach from the request so the job outlives it.
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if _, processErr := h.service.ProcessExistingJob(ctx, jobID); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("output_format", string(createdJob.OutputFormat)),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeLookupError(w, jobID, err, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := JobResponse{
		ID:                  foundJob.ID,
		Status:              string(foundJob.Status),
		OutputFormat:        string(foundJob.OutputFormat),
		Error:               foundJob.Error,
		Action:              foundJob.Outcome.Action,
		VideoDuration:       foundJob.Outcome.VideoDuration.Seconds(),
		SourceAudioDuration: foundJob.Outcome.SourceAudioDuration.Seconds(),
		AudioDuration:       foundJob.Outcome.AudioDuration.Seconds(),
		CreatedAt:           foundJob.CreatedAt,
		CompletedAt:         timePtr(foundJob.CompletedAt),
	}

	if foundJob.Status == job.StatusCompleted {
		if foundJob.PushToS3 && foundJob.VideoURL != "" {
			resp.VideoURL = foundJob.VideoURL
		} else if foundJob.OutputPath != "" {
			if encoded, err := h.encodeOutput(r.Context(), foundJob); err != nil {
				// The video may have been deleted; report the job without it.
				h.logger.Error("failed to read output video",
					slog.String("job_id", jobID),
					slog.String("path", foundJob.OutputPath),
					slog.String("error", err.Error()),
				)
			} else {
				resp.VideoBase64 = encoded
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) encodeOutput(ctx context.Context, j *job.Job) (string, error) {
	rc, err := h.service.OpenOutput(ctx, j)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobSummary, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, JobSummary{
			ID:        j.ID,
			Status:    string(j.Status),
			Action:    j.Outcome.Action,
			CreatedAt: j.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteJobVideo handles POST /jobs/{id}/video/delete requests.
func (h *Handlers) DeleteJobVideo(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	if err := h.service.DeleteJobVideo(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobNotCompleted) {
			writeError(w, http.StatusConflict, "job has not finished", "JOB_NOT_COMPLETED")
			return
		}
		h.writeLookupError(w, jobID, err, "failed to delete video", "VIDEO_DELETE_FAILED")
		return
	}

	h.logger.Info("job video deleted", slog.String("job_id", jobID))
	w.WriteHeader(http.StatusNoContent)
}

// DownloadJobVideo handles GET /jobs/{id}/video requests. Local outputs are
// served as raw bytes with range support; published outputs redirect to
// their URL.
func (h *Handlers) DownloadJobVideo(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeLookupError(w, jobID, err, "failed to get job", "JOB_FETCH_FAILED")
		return
	}
	if foundJob.Status != job.StatusCompleted {
		writeError(w, http.StatusConflict, "job is "+string(foundJob.Status), "JOB_NOT_COMPLETED")
		return
	}
	if foundJob.VideoURL != "" {
		http.Redirect(w, r, foundJob.VideoURL, http.StatusFound)
		return
	}
	rc, err := h.service.OpenOutput(r.Context(), foundJob)
	if err != nil {
		h.logger.Warn("output video unavailable",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusGone, "video is no longer available", "VIDEO_NOT_AVAILABLE")
		return
	}
	defer func() { _ = rc.Close() }()

	name := jobID + filepath.Ext(foundJob.OutputPath)
	w.Header().Set("Content-Type", storage.ContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	rs, ok := rc.(io.ReadSeeker)
	if !ok {
		if _, err := io.Copy(w, rc); err != nil {
			h.logger.Warn("video download interrupted",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	http.ServeContent(w, r, name, foundJob.CompletedAt, rs)
}

func (h *Handlers) writeLookupError(w http.ResponseWriter, jobID string, err error, message, code string) {
	if errors.Is(err, job.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	}
	h.logger.Error(message,
		slog.String("job_id", jobID),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, message, code)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
