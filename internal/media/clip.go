// Package media reconciles an optional audio track with a video so both have
// the same duration, and muxes the result through an external codec.
package media

import (
	"context"
	"time"
)

// Clip is a handle to decoded media owned by a single mux invocation.
type Clip interface {
	// Duration returns the playback length of the clip.
	Duration() time.Duration
	// Close releases resources held by the handle. Closing twice is a no-op.
	Close() error
}

// VideoTrack is a clip of image frames. It never carries audio; any audio in
// the source file is stripped when the track is loaded.
type VideoTrack interface {
	Clip
	// HadSourceAudio reports whether the source file contained an audio stream.
	HadSourceAudio() bool
}

// AudioTrack is a clip of waveform data.
type AudioTrack interface {
	Clip
	// SampleRate returns the native sample rate in Hz.
	SampleRate() int
	// Channels returns the channel count.
	Channels() int
	// Frames returns the length in sample frames per channel.
	Frames() int64
}

// Composite is a video track with an optional attached audio track.
// A nil Audio means the output is silent.
type Composite struct {
	Video VideoTrack
	Audio AudioTrack
}

// EncodeOptions selects the encoders used when writing a Composite.
type EncodeOptions struct {
	// VideoCodec is the encoder name for the video stream, e.g. "libx264".
	VideoCodec string
	// AudioCodec is the encoder name for the audio stream, e.g. "aac".
	AudioCodec string
}

// DefaultEncodeOptions returns H.264 video with AAC audio.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		VideoCodec: "libx264",
		AudioCodec: "aac",
	}
}

// Codec defines the decode/encode capabilities the muxer delegates to.
// Trim, Concatenate and GenerateSilence return new handles; their inputs may be
// closed once the call returns.
type Codec interface {
	// LoadVideo opens the video stream of the file at path.
	LoadVideo(ctx context.Context, path string) (VideoTrack, error)

	// LoadAudio opens the first audio stream of the file at path.
	LoadAudio(ctx context.Context, path string) (AudioTrack, error)

	// Trim returns the prefix [0, frames) of a. It fails with ErrInvalidTrim
	// when frames exceeds a.Frames().
	Trim(ctx context.Context, a AudioTrack, frames int64) (AudioTrack, error)

	// GenerateSilence returns zero-amplitude audio of the given length.
	GenerateSilence(ctx context.Context, sampleRate, channels int, frames int64) (AudioTrack, error)

	// Concatenate returns head immediately followed by tail.
	Concatenate(ctx context.Context, head, tail AudioTrack) (AudioTrack, error)

	// WriteOutput encodes c into outputPath, replacing any existing file.
	// It returns once the encoder has flushed the output.
	WriteOutput(ctx context.Context, c Composite, outputPath string, opts EncodeOptions) error
}
