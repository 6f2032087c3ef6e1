package audio

import (
	"context"
	"time"
)

// SilenceOpts configures silence detection.
type SilenceOpts struct {
	// MinSilence is the shortest run of quiet audio reported as an interval.
	// Default: 100 milliseconds.
	MinSilence time.Duration

	// ThreshDB is the volume threshold in dBFS below which
	// audio is considered silence.
	// Default: -60 dBFS.
	ThreshDB float64
}

// DefaultSilenceOpts returns the default options for silence detection.
// The threshold is low because padding is digital silence.
func DefaultSilenceOpts() SilenceOpts {
	return SilenceOpts{
		MinSilence: 100 * time.Millisecond,
		ThreshDB:   -60,
	}
}

// Interval is a detected silent span, in seconds from the start of the stream.
type Interval struct {
	Start float64
	End   float64
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return time.Duration((i.End - i.Start) * float64(time.Second))
}

// Analyzer inspects the audio of a media file.
type Analyzer interface {
	// Duration returns the container duration of the file.
	Duration(ctx context.Context, path string) (time.Duration, error)

	// DetectSilences returns the silent intervals of the file's first audio
	// stream in chronological order. A file without audio yields no intervals.
	DetectSilences(ctx context.Context, path string, opts SilenceOpts) ([]Interval, error)
}
