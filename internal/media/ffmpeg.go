package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/maauso/avsync/internal/audio"
)

// FFmpegCodec implements Codec using the ffmpeg and ffprobe CLIs.
// Tracks are lazy filter graph nodes; nothing is decoded until WriteOutput
// runs a single ffmpeg invocation over the whole graph.
type FFmpegCodec struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegCodec creates a new FFmpegCodec.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegCodec(ffmpegPath, ffprobePath string) *FFmpegCodec {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegCodec{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// ffVideo is a video stream selected from an input file.
// Graph nodes hold no OS resources, so Close is a no-op.
type ffVideo struct {
	stream   *ffmpeg.Stream
	duration time.Duration
	hadAudio bool
}

func (v *ffVideo) Duration() time.Duration {
	return v.duration
}

func (v *ffVideo) HadSourceAudio() bool {
	return v.hadAudio
}

func (v *ffVideo) Close() error {
	return nil
}

// ffAudio is an audio stream node in the filter graph.
type ffAudio struct {
	stream   *ffmpeg.Stream
	rate     int
	channels int
	layout   string
	frames   int64
}

func (a *ffAudio) Duration() time.Duration {
	return audio.DurationOf(a.frames, a.rate)
}

func (a *ffAudio) SampleRate() int {
	return a.rate
}

func (a *ffAudio) Channels() int {
	return a.channels
}

func (a *ffAudio) Frames() int64 {
	return a.frames
}

func (a *ffAudio) Close() error {
	return nil
}

// LoadVideo probes path and selects its first video stream.
func (c *FFmpegCodec) LoadVideo(ctx context.Context, path string) (VideoTrack, error) {
	info, err := c.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	vs := info.first("video")
	if vs == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoVideoStream, path)
	}

	duration := vs.durationOr(info.Format.Duration)
	return &ffVideo{
		stream:   ffmpeg.Input(path).Get("v:0"),
		duration: duration,
		hadAudio: info.first("audio") != nil,
	}, nil
}

// LoadAudio probes path and selects its first audio stream.
func (c *FFmpegCodec) LoadAudio(ctx context.Context, path string) (AudioTrack, error) {
	info, err := c.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	as := info.first("audio")
	if as == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoAudioStream, path)
	}

	rate, err := strconv.Atoi(as.SampleRate)
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("parse sample rate %q of %s", as.SampleRate, path)
	}
	if as.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d in %s", as.Channels, path)
	}
	layout := as.ChannelLayout
	if layout == "" || layout == "unknown" {
		layout = channelLayout(as.Channels)
	}

	return &ffAudio{
		stream:   ffmpeg.Input(path).Get("a:0"),
		rate:     rate,
		channels: as.Channels,
		layout:   layout,
		frames:   as.frames(rate, info.Format.Duration),
	}, nil
}

// Trim keeps the first frames samples using atrim's sample counter.
func (c *FFmpegCodec) Trim(_ context.Context, a AudioTrack, frames int64) (AudioTrack, error) {
	src, ok := a.(*ffAudio)
	if !ok {
		return nil, ErrForeignTrack
	}
	if frames < 0 || frames > src.frames {
		return nil, fmt.Errorf("%w: %d of %d frames", ErrInvalidTrim, frames, src.frames)
	}

	stream := src.stream.
		Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{"end_sample": frames}).
		Filter("asetpts", ffmpeg.Args{"PTS-STARTPTS"})

	return &ffAudio{stream: stream, rate: src.rate, channels: src.channels, layout: src.layout, frames: frames}, nil
}

// GenerateSilence creates an anullsrc input cut to exactly frames samples.
func (c *FFmpegCodec) GenerateSilence(_ context.Context, sampleRate, channels int, frames int64) (AudioTrack, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: rate=%d, channels=%d", audio.ErrInvalidFormat, sampleRate, channels)
	}
	if frames < 0 {
		frames = 0
	}

	layout := channelLayout(channels)
	src := fmt.Sprintf("anullsrc=r=%d:cl=%s", sampleRate, layout)
	stream := ffmpeg.Input(src, ffmpeg.KwArgs{"f": "lavfi"}).
		Get("a:0").
		Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{"end_sample": frames})

	return &ffAudio{stream: stream, rate: sampleRate, channels: channels, layout: layout, frames: frames}, nil
}

// Concatenate joins head and tail with the concat filter. A tail whose
// channel layout differs from head's is converted to head's layout first.
func (c *FFmpegCodec) Concatenate(_ context.Context, head, tail AudioTrack) (AudioTrack, error) {
	h, ok := head.(*ffAudio)
	if !ok {
		return nil, ErrForeignTrack
	}
	t, ok := tail.(*ffAudio)
	if !ok {
		return nil, ErrForeignTrack
	}

	tailStream := t.stream
	if h.layout != "" && t.layout != h.layout {
		tailStream = tailStream.Filter("aformat", ffmpeg.Args{}, ffmpeg.KwArgs{"channel_layouts": h.layout})
	}

	stream := ffmpeg.Filter(
		[]*ffmpeg.Stream{h.stream, tailStream},
		"concat",
		ffmpeg.Args{},
		ffmpeg.KwArgs{"n": 2, "v": 0, "a": 1},
	)

	return &ffAudio{stream: stream, rate: h.rate, channels: h.channels, layout: h.layout, frames: h.frames + t.frames}, nil
}

// WriteOutput maps the video stream and the optional audio graph into
// outputPath, encoding with the requested codecs.
func (c *FFmpegCodec) WriteOutput(ctx context.Context, comp Composite, outputPath string, opts EncodeOptions) error {
	args, err := outputArgs(comp, outputPath, opts)
	if err != nil {
		return err
	}
	return c.runFFmpeg(ctx, args)
}

// outputArgs builds the ffmpeg arguments for one WriteOutput call. Only the
// first video stream of the source is mapped, which drops its own audio.
func outputArgs(comp Composite, outputPath string, opts EncodeOptions) ([]string, error) {
	v, ok := comp.Video.(*ffVideo)
	if !ok {
		return nil, ErrForeignTrack
	}

	streams := []*ffmpeg.Stream{v.stream}
	kwargs := ffmpeg.KwArgs{
		"c:v":     opts.VideoCodec,
		"pix_fmt": "yuv420p",
	}

	if comp.Audio != nil {
		a, ok := comp.Audio.(*ffAudio)
		if !ok {
			return nil, ErrForeignTrack
		}
		streams = append(streams, a.stream)
		kwargs["c:a"] = opts.AudioCodec
	}

	return ffmpeg.Output(streams, outputPath, kwargs).
		OverWriteOutput().
		GetArgs(), nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (c *FFmpegCodec) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// probeInfo is the subset of ffprobe's JSON output the codec uses.
type probeInfo struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType     string `json:"codec_type"`
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	ChannelLayout string `json:"channel_layout"`
	TimeBase      string `json:"time_base"`
	DurationTS    int64  `json:"duration_ts"`
	Duration      string `json:"duration"`
}

func (p *probeInfo) first(codecType string) *probeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == codecType {
			return &p.Streams[i]
		}
	}
	return nil
}

// durationOr returns the stream duration, falling back to the container's.
func (s *probeStream) durationOr(fallback string) time.Duration {
	if d, ok := parseSeconds(s.Duration); ok {
		return d
	}
	d, _ := parseSeconds(fallback)
	return d
}

// frames counts sample frames. When the stream time base is 1/rate the
// timestamp duration is already a frame count.
func (s *probeStream) frames(rate int, formatDuration string) int64 {
	if s.DurationTS > 0 && s.TimeBase == "1/"+strconv.Itoa(rate) {
		return s.DurationTS
	}
	return audio.FramesFor(s.durationOr(formatDuration), rate)
}

// probe runs ffprobe and decodes its stream and format sections.
func (c *FFmpegCodec) probe(ctx context.Context, path string) (*probeInfo, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-show_entries", "stream=codec_type,sample_rate,channels,channel_layout,time_base,duration_ts,duration:format=duration",
		"-of", "json",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var info probeInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &info, nil
}

// StreamDurations returns the first video and first audio stream durations
// of a file. A missing stream reports zero.
func (c *FFmpegCodec) StreamDurations(ctx context.Context, path string) (videoDur, audioDur time.Duration, err error) {
	info, err := c.probe(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	if vs := info.first("video"); vs != nil {
		videoDur = vs.durationOr(info.Format.Duration)
	}
	if as := info.first("audio"); as != nil {
		audioDur = as.durationOr(info.Format.Duration)
	}
	return videoDur, audioDur, nil
}

func parseSeconds(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, false
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil || sec < 0 {
		return 0, false
	}
	return time.Duration(sec * float64(time.Second)), true
}

// channelLayout names a layout ffmpeg accepts for the channel count.
func channelLayout(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	case 6:
		return "5.1"
	case 8:
		return "7.1"
	default:
		return strconv.Itoa(channels) + "c"
	}
}

// Verify interface implementation at compile time.
var _ Codec = (*FFmpegCodec)(nil)
