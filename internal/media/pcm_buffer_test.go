package media

import (
	"errors"
	"fmt"
	"time"

	"github.com/maauso/avsync/internal/audio"
)

var errPCMFormatMismatch = errors.New("pcm format mismatch")

// pcmBuffer is decoded audio with interleaved float32 samples. It backs the
// in-memory codec.
type pcmBuffer struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

func newPCMBuffer(rate, channels int, samples []float32) (*pcmBuffer, error) {
	if rate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: rate=%d, channels=%d", audio.ErrInvalidFormat, rate, channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("sample count %d is not a multiple of %d channels", len(samples), channels)
	}
	return &pcmBuffer{SampleRate: rate, Channels: channels, Samples: samples}, nil
}

func pcmSilence(rate, channels int, frames int64) (*pcmBuffer, error) {
	if frames < 0 {
		frames = 0
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: rate=%d, channels=%d", audio.ErrInvalidFormat, rate, channels)
	}
	return newPCMBuffer(rate, channels, make([]float32, frames*int64(channels)))
}

func concatPCM(head, tail *pcmBuffer) (*pcmBuffer, error) {
	if head.SampleRate != tail.SampleRate || head.Channels != tail.Channels {
		return nil, fmt.Errorf("%w: %dHz/%dch vs %dHz/%dch", errPCMFormatMismatch,
			head.SampleRate, head.Channels, tail.SampleRate, tail.Channels)
	}
	out := make([]float32, 0, len(head.Samples)+len(tail.Samples))
	out = append(out, head.Samples...)
	out = append(out, tail.Samples...)
	return &pcmBuffer{SampleRate: head.SampleRate, Channels: head.Channels, Samples: out}, nil
}

func (b *pcmBuffer) Frames() int64 {
	return int64(len(b.Samples) / b.Channels)
}

func (b *pcmBuffer) Duration() time.Duration {
	return audio.DurationOf(b.Frames(), b.SampleRate)
}

// Trim returns a copy of the prefix [0, frames).
func (b *pcmBuffer) Trim(frames int64) (*pcmBuffer, error) {
	if frames < 0 || frames > b.Frames() {
		return nil, fmt.Errorf("trim %d of %d frames", frames, b.Frames())
	}
	n := frames * int64(b.Channels)
	out := make([]float32, n)
	copy(out, b.Samples[:n])
	return &pcmBuffer{SampleRate: b.SampleRate, Channels: b.Channels, Samples: out}, nil
}

// IsSilent reports whether every sample in frames [from, to) is zero.
func (b *pcmBuffer) IsSilent(from, to int64) bool {
	from = max(from, 0)
	to = min(to, b.Frames())
	for _, s := range b.Samples[from*int64(b.Channels) : max(from, to)*int64(b.Channels)] {
		if s != 0 {
			return false
		}
	}
	return true
}
