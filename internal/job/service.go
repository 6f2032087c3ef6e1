package job

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/maauso/avsync/internal/media"
	"github.com/maauso/avsync/internal/storage"
)

// Static errors for job processing.
var (
	// ErrInvalidOutputFormat is returned for containers other than mp4, mov and mkv.
	ErrInvalidOutputFormat = errors.New("invalid output format")
	// ErrInvalidMedia is returned when an uploaded payload is not valid base64.
	ErrInvalidMedia = errors.New("invalid base64 media")
	// ErrVideoRequired is returned when a job has no video payload.
	ErrVideoRequired = errors.New("video is required")
	// ErrJobNotQueued is returned when processing a job that already started.
	ErrJobNotQueued = errors.New("job is not queued")
	// ErrJobNotCompleted is returned when an operation needs a finished job.
	ErrJobNotCompleted = errors.New("job is not completed")
	// ErrOutputUnavailable is returned when a job's local output is gone.
	ErrOutputUnavailable = errors.New("output video is not available")
)

// Muxer runs a single mux invocation. It is implemented by *media.Muxer.
type Muxer interface {
	Run(ctx context.Context, req media.Request) (*media.Result, error)
}

// CreateJobInput contains the parameters of a new job.
type CreateJobInput struct {
	// VideoBase64 is the base64-encoded source video.
	VideoBase64 string
	// AudioBase64 is the optional base64-encoded replacement audio.
	AudioBase64 string
	// OutputFormat is the requested container. Empty means mp4.
	OutputFormat OutputFormat
	// PushToS3 indicates whether to upload the final video to S3.
	PushToS3 bool
}

// Service orchestrates jobs: it stores uploads as temp files, runs them
// through the muxer with bounded concurrency, and optionally publishes the
// output.
type Service struct {
	repo      Repository
	storage   storage.Storage
	muxer     Muxer
	logger    *slog.Logger
	sem       chan struct{}
	keyPrefix string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxConcurrentJobs limits how many jobs are muxed at the same time.
// Values below one are ignored.
func WithMaxConcurrentJobs(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// WithKeyPrefix sets the object key prefix used when publishing outputs.
func WithKeyPrefix(prefix string) ServiceOption {
	return func(s *Service) {
		s.keyPrefix = strings.Trim(prefix, "/")
	}
}

// NewService creates a new Service. Concurrency defaults to one job at a time.
func NewService(repo Repository, store storage.Storage, muxer Muxer, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:      repo,
		storage:   store,
		muxer:     muxer,
		logger:    logger,
		sem:       make(chan struct{}, 1),
		keyPrefix: "avsync",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxConcurrentJobs returns the concurrency limit.
func (s *Service) MaxConcurrentJobs() int {
	return cap(s.sem)
}

// CreateJob decodes the uploads into temp files and persists a new
// IN_QUEUE job referencing them.
func (s *Service) CreateJob(ctx context.Context, input CreateJobInput) (*Job, error) {
	format := input.OutputFormat
	if format == "" {
		format = FormatMP4
	}
	if !format.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutputFormat, format)
	}
	if input.VideoBase64 == "" {
		return nil, ErrVideoRequired
	}

	job := New()
	job.OutputFormat = format
	job.PushToS3 = input.PushToS3

	videoPath, err := s.saveUpload(ctx, job.ID+"_video", input.VideoBase64)
	if err != nil {
		return nil, err
	}

	var audioPath string
	if input.AudioBase64 != "" {
		audioPath, err = s.saveUpload(ctx, job.ID+"_audio", input.AudioBase64)
		if err != nil {
			s.cleanup(ctx, job.ID, videoPath)
			return nil, err
		}
	}
	job.SetInputs(videoPath, audioPath)

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("output_format", string(format)),
		slog.Bool("has_audio", audioPath != ""),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		s.cleanup(ctx, job.ID, videoPath, audioPath)
		return nil, err
	}

	return job, nil
}

// saveUpload streams a base64 payload into a temp file.
func (s *Service) saveUpload(ctx context.Context, name, payload string) (string, error) {
	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(payload))
	p, err := s.storage.SaveTemp(ctx, name, dec)
	if err != nil {
		var corrupt base64.CorruptInputError
		if errors.As(err, &corrupt) {
			return "", fmt.Errorf("%w: %s: %w", ErrInvalidMedia, name, err)
		}
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return p, nil
}

// Process creates a job and runs it synchronously.
func (s *Service) Process(ctx context.Context, input CreateJobInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID)
}

// ProcessExistingJob runs a queued job to completion. It blocks until a
// concurrency slot is free. The returned job reflects the final state; the
// error is non-nil when the job failed.
func (s *Service) ProcessExistingJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.GetStatus() != StatusInQueue {
		return job, fmt.Errorf("%w: %s is %s", ErrJobNotQueued, jobID, job.GetStatus())
	}

	log := s.logger.With(slog.String("job_id", jobID))
	defer s.cleanup(ctx, jobID, job.VideoPath, job.AudioPath)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return job, s.fail(ctx, job, fmt.Errorf("waiting for worker slot: %w", ctx.Err()))
	}
	defer func() { <-s.sem }()

	if err := job.Start(); err != nil {
		return job, err
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return job, err
	}
	log.Info("job started")

	outputPath := s.storage.TempPath(jobID + job.OutputFormat.Ext())
	res, err := s.muxer.Run(ctx, media.Request{
		VideoPath:  job.VideoPath,
		AudioPath:  job.AudioPath,
		OutputPath: outputPath,
	})
	if err != nil {
		return job, s.fail(ctx, job, err)
	}

	job.SetOutcome(Outcome{
		Action:              string(res.Action),
		VideoDuration:       res.VideoDuration,
		SourceAudioDuration: res.SourceAudioDuration,
		AudioDuration:       res.AudioDuration,
	})

	var videoURL string
	if job.PushToS3 {
		key := path.Join(s.keyPrefix, jobID+job.OutputFormat.Ext())
		videoURL, err = s.storage.Publish(ctx, key, outputPath)
		if err != nil {
			s.cleanup(ctx, jobID, outputPath)
			return job, s.fail(ctx, job, fmt.Errorf("publish output: %w", err))
		}
		log.Info("output published", slog.String("url", videoURL))
		s.cleanup(ctx, jobID, outputPath)
		outputPath = ""
	}

	job.SetOutput(outputPath, videoURL)
	if err := job.Complete(); err != nil {
		return job, err
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return job, err
	}

	log.Info("job completed",
		slog.String("action", string(res.Action)),
		slog.Duration("video_duration", res.VideoDuration),
		slog.Duration("audio_duration", res.AudioDuration),
	)
	return job, nil
}

// fail marks the job FAILED, persists it and returns cause.
func (s *Service) fail(ctx context.Context, job *Job, cause error) error {
	s.logger.Error("job failed",
		slog.String("job_id", job.ID),
		slog.String("error", cause.Error()),
	)
	if err := job.Fail(cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// cleanup removes temp files, logging instead of failing.
func (s *Service) cleanup(ctx context.Context, jobID string, paths ...string) {
	if err := s.storage.CleanupTemp(context.WithoutCancel(ctx), paths); err != nil {
		s.logger.Warn("failed to clean up temp files",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, oldest first.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// OpenOutput opens the local output of a completed job.
// The caller must close the returned reader.
func (s *Service) OpenOutput(ctx context.Context, j *Job) (io.ReadCloser, error) {
	if j.OutputPath == "" {
		return nil, fmt.Errorf("%w: %s", ErrOutputUnavailable, j.ID)
	}
	rc, err := s.storage.LoadTemp(ctx, j.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}
	return rc, nil
}

// DeleteJobVideo removes the local output of a finished job and clears its
// output fields. Deleting an already removed file succeeds. Queued and
// running jobs are rejected with ErrJobNotCompleted.
func (s *Service) DeleteJobVideo(ctx context.Context, id string) error {
	_, err := s.repo.Update(ctx, id, func(job *Job) error {
		if !job.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", ErrJobNotCompleted, id, job.GetStatus())
		}
		if job.OutputPath != "" {
			if err := s.storage.CleanupTemp(ctx, []string{job.OutputPath}); err != nil {
				return fmt.Errorf("delete video: %w", err)
			}
		}
		job.ClearOutput()
		return nil
	})
	return err
}

// PruneJobs forgets finished jobs older than retention and deletes their
// local outputs. It returns the number of pruned jobs.
func (s *Service) PruneJobs(ctx context.Context, retention time.Duration) (int, error) {
	pruned, err := s.repo.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}

	for _, job := range pruned {
		if job.OutputPath != "" {
			s.cleanup(ctx, job.ID, job.OutputPath)
		}
		s.logger.Debug("job pruned",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
	}
	return len(pruned), nil
}

// RunJanitor prunes expired jobs every interval until ctx is done.
// A non-positive retention disables pruning.
func (s *Service) RunJanitor(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PruneJobs(ctx, retention)
			if err != nil {
				s.logger.Warn("job pruning failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				s.logger.Info("pruned expired jobs",
					slog.Int("count", n),
					slog.Duration("retention", retention),
				)
			}
		}
	}
}
