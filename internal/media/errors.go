package media

import (
	"errors"
	"fmt"
)

// Static errors for media operations.
var (
	// ErrMissingInput is matched by MissingInputError.
	ErrMissingInput = errors.New("missing input")
	// ErrInvalidVideo is returned when the video file exists but cannot be decoded.
	ErrInvalidVideo = errors.New("invalid video")
	// ErrOutputRequired is returned when no output path is given.
	ErrOutputRequired = errors.New("output path is required")
	// ErrInvalidTrim is returned when a trim would extend a clip.
	ErrInvalidTrim = errors.New("invalid trim: target exceeds clip length")
	// ErrNoVideoStream is returned when a file has no video stream.
	ErrNoVideoStream = errors.New("no video stream")
	// ErrNoAudioStream is returned when a file has no audio stream.
	ErrNoAudioStream = errors.New("no audio stream")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrForeignTrack is returned when a codec is handed a track it did not create.
	ErrForeignTrack = errors.New("track was not created by this codec")
)

// MissingInputError reports a video path that does not resolve to a file.
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input %s: %v", e.Path, e.Err)
}

func (e *MissingInputError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMissingInput) match.
func (e *MissingInputError) Is(target error) bool {
	return target == ErrMissingInput
}

// EncodingError reports a failure while the codec was writing the output.
type EncodingError struct {
	OutputPath string
	Err        error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.OutputPath, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
