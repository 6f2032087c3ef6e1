package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Request names the inputs and destination of one mux invocation.
type Request struct {
	// VideoPath is the source video. It must exist.
	VideoPath string
	// AudioPath is the optional replacement audio. Empty, missing or
	// undecodable audio yields a silent output.
	AudioPath string
	// OutputPath is the destination, overwritten on success.
	OutputPath string
}

// Result reports what a mux invocation produced.
type Result struct {
	OutputPath    string
	Action        Action
	VideoDuration time.Duration
	// SourceAudioDuration is the length of the supplied audio before reconciliation.
	SourceAudioDuration time.Duration
	// AudioDuration is the length of the attached audio; zero when silent.
	AudioDuration time.Duration
	SampleRate    int
	AudioFrames   int64
}

// Muxer strips a video's own audio, reconciles the supplied audio with the
// video duration and writes the composite through a Codec.
type Muxer struct {
	codec  Codec
	opts   EncodeOptions
	logger *slog.Logger
}

// MuxerOption configures a Muxer.
type MuxerOption func(*Muxer)

// WithEncodeOptions sets the video and audio encoders.
func WithEncodeOptions(opts EncodeOptions) MuxerOption {
	return func(m *Muxer) {
		if opts.VideoCodec != "" {
			m.opts.VideoCodec = opts.VideoCodec
		}
		if opts.AudioCodec != "" {
			m.opts.AudioCodec = opts.AudioCodec
		}
	}
}

// NewMuxer creates a Muxer backed by codec.
func NewMuxer(codec Codec, logger *slog.Logger, opts ...MuxerOption) *Muxer {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Muxer{
		codec:  codec,
		opts:   DefaultEncodeOptions(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes one invocation synchronously. A missing video fails with a
// *MissingInputError before OutputPath is touched. Encoder failures return an
// *EncodingError and leave any existing OutputPath unchanged.
func (m *Muxer) Run(ctx context.Context, req Request) (*Result, error) {
	if req.OutputPath == "" {
		return nil, ErrOutputRequired
	}

	log := m.logger.With(
		slog.String("video", req.VideoPath),
		slog.String("output", req.OutputPath),
	)

	if err := requireFile(req.VideoPath); err != nil {
		log.Error("video not found", slog.String("error", err.Error()))
		return nil, &MissingInputError{Path: req.VideoPath, Err: err}
	}

	log.Info("loading video")
	video, err := m.codec.LoadVideo(ctx, req.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVideo, err)
	}
	defer release(video)

	if video.HadSourceAudio() {
		log.Info("stripping source audio")
	}

	result := &Result{
		OutputPath:    req.OutputPath,
		Action:        ActionNone,
		VideoDuration: video.Duration(),
	}
	composite := Composite{Video: video}

	src, err := m.loadAudio(ctx, log, req.AudioPath)
	if err != nil {
		return nil, err
	}
	if src != nil {
		defer release(src)

		reconciled, plan, err := Reconcile(ctx, m.codec, video, src)
		if err != nil {
			return nil, fmt.Errorf("reconcile audio: %w", err)
		}
		if reconciled != src {
			defer release(reconciled)
		}

		log.Info("audio reconciled",
			slog.String("action", string(plan.Action)),
			slog.Duration("video_duration", video.Duration()),
			slog.Duration("audio_duration", src.Duration()),
			slog.Int64("pad_frames", plan.PadFrames()),
			slog.Int("sample_rate", plan.SampleRate),
		)

		composite.Audio = reconciled
		result.Action = plan.Action
		result.SourceAudioDuration = src.Duration()
		result.AudioDuration = reconciled.Duration()
		result.SampleRate = reconciled.SampleRate()
		result.AudioFrames = reconciled.Frames()
	}

	log.Info("writing output",
		slog.String("video_codec", m.opts.VideoCodec),
		slog.String("audio_codec", m.opts.AudioCodec),
		slog.Bool("silent", composite.Audio == nil),
	)
	if err := m.write(ctx, composite, req.OutputPath); err != nil {
		log.Error("encoding failed", slog.String("error", err.Error()))
		return nil, err
	}

	log.Info("output written", slog.String("action", string(result.Action)))
	return result, nil
}

// loadAudio returns nil without error when the audio is unavailable.
func (m *Muxer) loadAudio(ctx context.Context, log *slog.Logger, path string) (AudioTrack, error) {
	if path == "" {
		log.Info("no audio supplied, output will be silent")
		return nil, nil
	}

	log = log.With(slog.String("audio", path))
	if err := requireFile(path); err != nil {
		log.Info("audio unavailable, output will be silent", slog.String("reason", err.Error()))
		return nil, nil
	}

	log.Info("loading audio")
	a, err := m.codec.LoadAudio(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("load audio cancelled: %w", ctx.Err())
		}
		log.Info("audio unreadable, output will be silent", slog.String("reason", err.Error()))
		return nil, nil
	}
	return a, nil
}

// write encodes into a sibling temp file and renames it over outputPath,
// so a failed encode never leaves a partial file behind.
func (m *Muxer) write(ctx context.Context, c Composite, outputPath string) error {
	dir := filepath.Dir(outputPath)
	ext := filepath.Ext(outputPath)
	stem := strings.TrimSuffix(filepath.Base(outputPath), ext)

	f, err := os.CreateTemp(dir, "."+stem+".partial-*"+ext)
	if err != nil {
		return &EncodingError{OutputPath: outputPath, Err: fmt.Errorf("create temp output: %w", err)}
	}
	tmp := f.Name()
	_ = f.Close()

	if err := m.codec.WriteOutput(ctx, c, tmp, m.opts); err != nil {
		_ = os.Remove(tmp)
		return &EncodingError{OutputPath: outputPath, Err: err}
	}

	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return &EncodingError{OutputPath: outputPath, Err: fmt.Errorf("chmod output: %w", err)}
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return &EncodingError{OutputPath: outputPath, Err: fmt.Errorf("rename output: %w", err)}
	}
	return nil
}

// requireFile checks that path names an existing regular file.
func requireFile(path string) error {
	if path == "" {
		return os.ErrNotExist
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("is a directory")
	}
	return nil
}

func release(c Clip) {
	_ = c.Close()
}
