package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/avsync/internal/audio"
	"github.com/maauso/avsync/internal/config"
	"github.com/maauso/avsync/internal/media"
	"github.com/maauso/avsync/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		TempDir:           t.TempDir(),
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		VideoCodec:        "libx264",
		AudioCodec:        "aac",
		MaxConcurrentJobs: 3,
	}
}

func TestNewMuxer_MissingVideo(t *testing.T) {
	cfg := testConfig(t)
	muxer := NewMuxer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	out := filepath.Join(cfg.TempDir, "out.mp4")
	_, err := muxer.Run(context.Background(), media.Request{
		VideoPath:  filepath.Join(cfg.TempDir, "missing.mp4"),
		OutputPath: out,
	})

	require.ErrorIs(t, err, media.ErrMissingInput)
	assert.NoFileExists(t, out)
}

func TestNewInspector_UsesConfiguredBinaries(t *testing.T) {
	cfg := testConfig(t)
	cfg.FFprobePath = filepath.Join(cfg.TempDir, "no-ffprobe")

	prober, analyzer := NewInspector(cfg)
	require.NotNil(t, analyzer)

	_, _, err := prober.StreamDurations(context.Background(), "in.mp4")
	assert.ErrorIs(t, err, media.ErrFFprobeExecution)

	_, err = analyzer.DetectSilences(context.Background(), filepath.Join(cfg.TempDir, "missing.wav"), audio.DefaultSilenceOpts())
	assert.Error(t, err)
}

func TestNewDependencies_LocalStorage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, err := NewDependencies(context.Background(), testConfig(t), logger)
	require.NoError(t, err)

	assert.NotNil(t, deps.Muxer)
	assert.False(t, deps.S3Enabled)
	assert.IsType(t, &storage.LocalStorage{}, deps.Storage)
	assert.Equal(t, 3, deps.JobService.MaxConcurrentJobs())
}

func TestNewDependencies_S3Storage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	cfg.S3Bucket = "bucket"
	cfg.S3Region = "us-east-1"
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.AWSAccessKeyID = "key"
	cfg.AWSSecretAccessKey = "secret"

	deps, err := NewDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)

	assert.True(t, deps.S3Enabled)
	assert.IsType(t, &storage.S3Storage{}, deps.Storage)
}

func TestNewDependencies_UnwritableTempDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	cfg.TempDir = "/dev/null/avsync"

	_, err := NewDependencies(context.Background(), cfg, logger)
	assert.Error(t, err)
}

func TestRunServer_StopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	cfg.Port = 0
	cfg.JobRetention = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunServer(ctx, cfg, logger) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestRunServer_DependencyFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	cfg.TempDir = "/dev/null/avsync"

	err := RunServer(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, "initialize dependencies")
}
