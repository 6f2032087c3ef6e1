package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testRate = 8000

// memCodec is an in-memory Codec over PCM buffers. Inputs are registered by
// path; the files themselves only need to exist.
type memCodec struct {
	videos map[string]memVideoInfo
	audios map[string]*pcmBuffer

	writeErr   error
	written    *Composite
	opts       EncodeOptions
	writeCalls int
	opened     int
	closed     int
}

type memVideoInfo struct {
	duration time.Duration
	hasAudio bool
}

type memVideo struct {
	codec    *memCodec
	info     memVideoInfo
	isClosed bool
}

func (v *memVideo) Duration() time.Duration { return v.info.duration }

func (v *memVideo) HadSourceAudio() bool { return v.info.hasAudio }

func (v *memVideo) Close() error {
	if !v.isClosed {
		v.isClosed = true
		v.codec.closed++
	}
	return nil
}

type memAudio struct {
	codec    *memCodec
	buf      *pcmBuffer
	isClosed bool
}

func (a *memAudio) Duration() time.Duration { return a.buf.Duration() }

func (a *memAudio) SampleRate() int { return a.buf.SampleRate }

func (a *memAudio) Channels() int { return a.buf.Channels }

func (a *memAudio) Frames() int64 { return a.buf.Frames() }

func (a *memAudio) Close() error {
	if !a.isClosed {
		a.isClosed = true
		a.codec.closed++
	}
	return nil
}

func newMemCodec() *memCodec {
	return &memCodec{
		videos: make(map[string]memVideoInfo),
		audios: make(map[string]*pcmBuffer),
	}
}

func (c *memCodec) newAudio(buf *pcmBuffer) *memAudio {
	c.opened++
	return &memAudio{codec: c, buf: buf}
}

func (c *memCodec) LoadVideo(_ context.Context, path string) (VideoTrack, error) {
	info, ok := c.videos[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoVideoStream, path)
	}
	c.opened++
	return &memVideo{codec: c, info: info}, nil
}

func (c *memCodec) LoadAudio(ctx context.Context, path string) (AudioTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, ok := c.audios[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAudioStream, path)
	}
	return c.newAudio(buf), nil
}

func (c *memCodec) Trim(_ context.Context, a AudioTrack, frames int64) (AudioTrack, error) {
	out, err := a.(*memAudio).buf.Trim(frames)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTrim, err)
	}
	return c.newAudio(out), nil
}

func (c *memCodec) GenerateSilence(_ context.Context, rate, channels int, frames int64) (AudioTrack, error) {
	out, err := pcmSilence(rate, channels, frames)
	if err != nil {
		return nil, err
	}
	return c.newAudio(out), nil
}

func (c *memCodec) Concatenate(_ context.Context, head, tail AudioTrack) (AudioTrack, error) {
	out, err := concatPCM(head.(*memAudio).buf, tail.(*memAudio).buf)
	if err != nil {
		return nil, err
	}
	return c.newAudio(out), nil
}

func (c *memCodec) WriteOutput(_ context.Context, comp Composite, outputPath string, opts EncodeOptions) error {
	c.writeCalls++
	c.opts = opts
	if c.writeErr != nil {
		// Simulate an encoder that dies after writing part of the file.
		_ = os.WriteFile(outputPath, []byte("partial"), 0o600)
		return c.writeErr
	}
	c.written = &comp
	body := "silent"
	if comp.Audio != nil {
		body = fmt.Sprintf("frames=%d", comp.Audio.Frames())
	}
	return os.WriteFile(outputPath, []byte(body), 0o600)
}

// writtenSamples returns the samples of the last encoded audio, or nil when silent.
func (c *memCodec) writtenSamples(t *testing.T) []float32 {
	t.Helper()
	require.NotNil(t, c.written, "nothing was written")
	if c.written.Audio == nil {
		return nil
	}
	return c.written.Audio.(*memAudio).buf.Samples
}

// ramp returns a mono buffer of frames non-zero samples.
func ramp(frames int64) *pcmBuffer {
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(i%100+1) / 100
	}
	buf, _ := newPCMBuffer(testRate, 1, samples)
	return buf
}

// touch creates an empty file and returns its path.
func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return path
}

var errEncoderCrashed = errors.New("encoder crashed")
