package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrDurationNotFound is returned when ffmpeg output carries no Duration line.
var ErrDurationNotFound = errors.New("could not parse duration from ffmpeg output")

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	startRe    = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	endRe      = regexp.MustCompile(`silence_end:\s*(-?[\d.]+)`)
)

// FFmpegAnalyzer implements Analyzer using the ffmpeg CLI.
type FFmpegAnalyzer struct {
	ffmpegPath string
}

// NewFFmpegAnalyzer creates a new FFmpegAnalyzer.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegAnalyzer(ffmpegPath string) *FFmpegAnalyzer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegAnalyzer{ffmpegPath: ffmpegPath}
}

// Duration implements Analyzer.Duration by reading the banner ffmpeg prints
// for its input.
func (a *FFmpegAnalyzer) Duration(ctx context.Context, path string) (time.Duration, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("stat input: %w", err)
	}

	stderr, err := a.runNull(ctx, "-i", path)
	if err != nil {
		return 0, err
	}
	return parseDuration(stderr)
}

// DetectSilences implements Analyzer.DetectSilences using the silencedetect filter.
func (a *FFmpegAnalyzer) DetectSilences(ctx context.Context, path string, opts SilenceOpts) ([]Interval, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	filter := fmt.Sprintf("silencedetect=noise=%sdB:d=%s",
		strconv.FormatFloat(opts.ThreshDB, 'f', -1, 64),
		strconv.FormatFloat(opts.MinSilence.Seconds(), 'f', 3, 64),
	)

	stderr, err := a.runNull(ctx, "-i", path, "-af", filter)
	if err != nil {
		return nil, err
	}

	intervals, err := parseSilenceOutput(stderr)
	if err != nil {
		return nil, err
	}

	// A silence still open at end of stream ends at the stream end.
	if start, open := openSilence(stderr); open {
		end := start
		if d, err := parseDuration(stderr); err == nil {
			end = d.Seconds()
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	return intervals, nil
}

// runNull decodes the input into the null muxer and returns ffmpeg's stderr.
func (a *FFmpegAnalyzer) runNull(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-hide_banner", "-nostats"}, args...)
	full = append(full, "-f", "null", "-")

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, a.ffmpegPath, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}
	return stderr.String(), nil
}

// parseDuration extracts "Duration: HH:MM:SS.ff" from ffmpeg output.
func parseDuration(output string) (time.Duration, error) {
	matches := durationRe.FindStringSubmatch(output)
	if len(matches) < 5 {
		return 0, ErrDurationNotFound
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	frac, _ := strconv.ParseFloat("0."+matches[4], 64)

	total := hours*3600 + minutes*60 + seconds + frac
	return time.Duration(total * float64(time.Second)), nil
}

// parseSilenceOutput pairs silence_start/silence_end lines from silencedetect.
func parseSilenceOutput(output string) ([]Interval, error) {
	var intervals []Interval
	scanner := bufio.NewScanner(strings.NewReader(output))

	var currentStart float64
	hasStart := false

	for scanner.Scan() {
		line := scanner.Text()

		if m := startRe.FindStringSubmatch(line); len(m) > 1 {
			val, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			// silencedetect may report a slightly negative start at t=0
			if val < 0 {
				val = 0
			}
			currentStart = val
			hasStart = true
		}

		if m := endRe.FindStringSubmatch(line); len(m) > 1 && hasStart {
			val, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			intervals = append(intervals, Interval{Start: currentStart, End: val})
			hasStart = false
		}
	}

	return intervals, scanner.Err()
}

// openSilence reports a trailing silence_start that never got a silence_end.
func openSilence(output string) (float64, bool) {
	starts := startRe.FindAllStringSubmatchIndex(output, -1)
	if len(starts) == 0 {
		return 0, false
	}
	last := starts[len(starts)-1]
	if endRe.MatchString(output[last[1]:]) {
		return 0, false
	}
	val, err := strconv.ParseFloat(output[last[2]:last[3]], 64)
	if err != nil {
		return 0, false
	}
	if val < 0 {
		val = 0
	}
	return val, true
}

// Verify interface implementation at compile time.
var _ Analyzer = (*FFmpegAnalyzer)(nil)
