// Package audio provides sample-frame arithmetic and ffmpeg-based audio
// analysis.
package audio

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidFormat is returned when a sample rate or channel count is not positive.
var ErrInvalidFormat = errors.New("invalid format: sample rate and channels must be positive")

// FramesFor converts a duration to a whole number of sample frames at rate,
// rounding to the nearest frame.
func FramesFor(d time.Duration, rate int) int64 {
	if d <= 0 || rate <= 0 {
		return 0
	}
	return int64(math.Round(d.Seconds() * float64(rate)))
}

// DurationOf converts a frame count at rate back to a duration.
func DurationOf(frames int64, rate int) time.Duration {
	if frames <= 0 || rate <= 0 {
		return 0
	}
	return time.Duration(float64(frames) / float64(rate) * float64(time.Second))
}
