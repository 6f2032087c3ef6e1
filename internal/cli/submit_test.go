package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/avsync/internal/client"
	"github.com/maauso/avsync/internal/job"
	"github.com/maauso/avsync/internal/server"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Submit(ctx context.Context, req server.CreateJobRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockClient) Poll(ctx context.Context, jobID string) (*server.JobResponse, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*server.JobResponse), args.Error(1)
}

var _ client.Client = (*mockClient)(nil)

func submitFixture(t *testing.T, output string) submitOptions {
	t.Helper()
	dir := t.TempDir()
	video := filepath.Join(dir, "input.mp4")
	voice := filepath.Join(dir, "voice.wav")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o600))
	require.NoError(t, os.WriteFile(voice, []byte("audio"), 0o600))
	return submitOptions{
		videoPath:    video,
		audioPath:    voice,
		outputPath:   filepath.Join(dir, output),
		pollInterval: time.Millisecond,
	}
}

func TestRunSubmit_Downloads(t *testing.T) {
	opts := submitFixture(t, "out.mkv")

	c := new(mockClient)
	c.On("Submit", mock.Anything, server.CreateJobRequest{
		VideoBase64:  base64.StdEncoding.EncodeToString([]byte("video")),
		AudioBase64:  base64.StdEncoding.EncodeToString([]byte("audio")),
		OutputFormat: "mkv",
	}).Return("job-1", nil)
	c.On("Poll", mock.Anything, "job-1").
		Return(&server.JobResponse{ID: "job-1", Status: string(job.StatusRunning)}, nil).Once()
	c.On("Poll", mock.Anything, "job-1").Return(&server.JobResponse{
		ID:                  "job-1",
		Status:              string(job.StatusCompleted),
		Action:              "trim",
		VideoDuration:       3,
		SourceAudioDuration: 5,
		AudioDuration:       3,
		VideoBase64:         base64.StdEncoding.EncodeToString([]byte("muxed")),
	}, nil).Once()

	var out bytes.Buffer
	err := runSubmit(context.Background(), &out, c, opts)

	require.NoError(t, err)
	data, err := os.ReadFile(opts.outputPath)
	require.NoError(t, err)
	assert.Equal(t, "muxed", string(data))
	assert.Contains(t, out.String(), "submitted job job-1")
	assert.Contains(t, out.String(), "audio:  5.000s -> 3.000s (trim)")
	c.AssertExpectations(t)
}

func TestRunSubmit_Published(t *testing.T) {
	opts := submitFixture(t, "out.mp4")
	opts.audioPath = ""
	opts.pushToS3 = true

	c := new(mockClient)
	c.On("Submit", mock.Anything, mock.MatchedBy(func(r server.CreateJobRequest) bool {
		return r.PushToS3 && r.AudioBase64 == "" && r.OutputFormat == "mp4"
	})).Return("job-2", nil)
	c.On("Poll", mock.Anything, "job-2").Return(&server.JobResponse{
		ID:            "job-2",
		Status:        string(job.StatusCompleted),
		Action:        "none",
		VideoDuration: 2,
		VideoURL:      "https://bucket.s3.eu-west-1.amazonaws.com/avsync/job-2.mp4",
	}, nil)

	var out bytes.Buffer
	err := runSubmit(context.Background(), &out, c, opts)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "published https://bucket.s3.eu-west-1.amazonaws.com/avsync/job-2.mp4")
	assert.Contains(t, out.String(), "audio:  none (silent)")
	assert.NoFileExists(t, opts.outputPath)
}

func TestRunSubmit_JobFailed(t *testing.T) {
	opts := submitFixture(t, "out.mp4")

	c := new(mockClient)
	c.On("Submit", mock.Anything, mock.Anything).Return("job-3", nil)
	c.On("Poll", mock.Anything, "job-3").Return(&server.JobResponse{
		ID:     "job-3",
		Status: string(job.StatusFailed),
		Error:  "invalid video",
	}, nil)

	err := runSubmit(context.Background(), &bytes.Buffer{}, c, opts)

	require.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "invalid video")
	assert.NoFileExists(t, opts.outputPath)
}

func TestRunSubmit_InvalidFormat(t *testing.T) {
	opts := submitFixture(t, "out.avi")
	c := new(mockClient)

	err := runSubmit(context.Background(), &bytes.Buffer{}, c, opts)

	require.ErrorIs(t, err, job.ErrInvalidOutputFormat)
	c.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestRunSubmit_MissingVideo(t *testing.T) {
	opts := submitFixture(t, "out.mp4")
	opts.videoPath = filepath.Join(t.TempDir(), "nope.mp4")
	c := new(mockClient)

	err := runSubmit(context.Background(), &bytes.Buffer{}, c, opts)

	require.ErrorIs(t, err, os.ErrNotExist)
	c.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}
