// Package bootstrap provides dependency initialization for avsync binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/avsync/internal/audio"
	"github.com/maauso/avsync/internal/config"
	"github.com/maauso/avsync/internal/job"
	"github.com/maauso/avsync/internal/media"
	"github.com/maauso/avsync/internal/server"
	"github.com/maauso/avsync/internal/storage"
)

// janitorInterval is how often expired jobs are pruned.
const janitorInterval = time.Minute

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	Muxer      *media.Muxer
	Storage    storage.Storage
	JobService *job.Service
	S3Enabled  bool
}

// NewMuxer builds the ffmpeg-backed muxer from configuration. The CLI uses
// it directly; it needs no storage.
func NewMuxer(cfg *config.Config, logger *slog.Logger) *media.Muxer {
	codec := media.NewFFmpegCodec(cfg.FFmpegPath, cfg.FFprobePath)
	return media.NewMuxer(codec, logger, media.WithEncodeOptions(media.EncodeOptions{
		VideoCodec: cfg.VideoCodec,
		AudioCodec: cfg.AudioCodec,
	}))
}

// NewInspector returns the stream prober and silence analyzer used by
// `avsync inspect`.
func NewInspector(cfg *config.Config) (*media.FFmpegCodec, *audio.FFmpegAnalyzer) {
	return media.NewFFmpegCodec(cfg.FFmpegPath, cfg.FFprobePath), audio.NewFFmpegAnalyzer(cfg.FFmpegPath)
}

// NewDependencies creates and initializes all dependencies for the server.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	muxer := NewMuxer(cfg, logger)

	svc := job.NewService(
		job.NewMemoryRepository(),
		store,
		muxer,
		logger,
		job.WithMaxConcurrentJobs(cfg.MaxConcurrentJobs),
		job.WithKeyPrefix(cfg.S3KeyPrefix),
	)

	return &Dependencies{
		Muxer:      muxer,
		Storage:    store,
		JobService: svc,
		S3Enabled:  cfg.S3Enabled(),
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// RunServer wires the job API and serves it on cfg.Port until ctx is done.
// Expired jobs are pruned in the background while the server runs.
func RunServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	go deps.JobService.RunJanitor(ctx, cfg.JobRetention, janitorInterval)

	handlers := server.NewHandlers(deps.JobService, logger, server.WithS3(deps.S3Enabled))
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	logger.Info("starting avsync server",
		slog.Int("port", cfg.Port),
		slog.String("temp_dir", cfg.TempDir),
		slog.Int("max_concurrent_jobs", cfg.MaxConcurrentJobs),
		slog.Duration("job_retention", cfg.JobRetention),
		slog.Bool("s3_enabled", deps.S3Enabled),
	)
	return server.Run(ctx, fmt.Sprintf(":%d", cfg.Port), router, logger)
}
