// Package job provides the Job aggregate for asynchronous mux requests,
// its state machine, persistence ports and the service that runs jobs
// through the media muxer.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/avsync/internal/job/id"
)

// OutputFormat is the container of the produced video.
type OutputFormat string

const (
	// FormatMP4 writes an MPEG-4 container.
	FormatMP4 OutputFormat = "mp4"
	// FormatMOV writes a QuickTime container.
	FormatMOV OutputFormat = "mov"
	// FormatMKV writes a Matroska container.
	FormatMKV OutputFormat = "mkv"
)

// IsValid returns true if the format is supported.
func (f OutputFormat) IsValid() bool {
	return f == FormatMP4 || f == FormatMOV || f == FormatMKV
}

// Ext returns the file extension for the format, including the dot.
func (f OutputFormat) Ext() string {
	return "." + string(f)
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting for a free worker slot.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being muxed.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the output was written.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Outcome summarises a finished mux.
type Outcome struct {
	// Action is the reconciliation applied to the audio: none, keep, trim or pad.
	Action string
	// VideoDuration is the duration of the video track.
	VideoDuration time.Duration
	// SourceAudioDuration is the length of the supplied audio before reconciliation.
	SourceAudioDuration time.Duration
	// AudioDuration is the length of the attached audio, zero when silent.
	AudioDuration time.Duration
}

// Job represents an asynchronous mux request.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Error contains any error message if the job failed.
	Error string
	// OutputFormat is the requested container.
	OutputFormat OutputFormat
	// VideoPath is the temp path of the uploaded video.
	VideoPath string
	// AudioPath is the temp path of the uploaded audio, empty when none was sent.
	AudioPath string
	// OutputPath is the path to the muxed video.
	OutputPath string
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
	// VideoURL is the S3 URL if PushToS3 was true.
	VideoURL string
	// Outcome is set once the mux succeeded.
	Outcome Outcome
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID, IN_QUEUE status and MP4 output.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:           jobID,
		Status:       StatusInQueue,
		OutputFormat: FormatMP4,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	if err := j.TransitionTo(StatusFailed); err != nil {
		return err
	}
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetInputs records the temp paths of the uploaded media.
func (j *Job) SetInputs(videoPath, audioPath string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.VideoPath = videoPath
	j.AudioPath = audioPath
	j.UpdatedAt = time.Now()
}

// SetOutcome records the mux result.
func (j *Job) SetOutcome(o Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outcome = o
	j.UpdatedAt = time.Now()
}

// SetOutput sets the output video path and optional S3 URL.
func (j *Job) SetOutput(videoPath, videoURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = videoPath
	j.VideoURL = videoURL
	j.UpdatedAt = time.Now()
}

// ClearOutput clears the output video path and URL.
// This is used when deleting the job's video file.
func (j *Job) ClearOutput() {
	j.SetOutput("", "")
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status.IsTerminal()
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		Error:        j.Error,
		OutputFormat: j.OutputFormat,
		VideoPath:    j.VideoPath,
		AudioPath:    j.AudioPath,
		OutputPath:   j.OutputPath,
		PushToS3:     j.PushToS3,
		VideoURL:     j.VideoURL,
		Outcome:      j.Outcome,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
