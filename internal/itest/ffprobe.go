//go:build integration

package itest

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"testing"
)

// streamDuration returns the duration in seconds of the first stream of the
// given type ("v" or "a"), or -1 when the file has no such stream.
func streamDuration(t *testing.T, path, selector string) float64 {
	t.Helper()

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", selector+":0",
		"-show_entries", "stream=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("ffprobe %s: %v\n%s", path, err, string(b))
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return -1
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("parse duration %q: %v", s, err)
	}
	return sec
}

func makeVideo(t *testing.T, path string, seconds float64, withAudio bool) {
	t.Helper()

	args := []string{"-y", "-f", "lavfi", "-i", fmt.Sprintf("color=c=black:s=320x240:r=25:d=%.3f", seconds)}
	if withAudio {
		args = append(args, "-f", "lavfi", "-i", fmt.Sprintf("sine=f=1000:r=48000:d=%.3f", seconds), "-c:a", "aac")
	}
	args = append(args, "-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p", path)
	runFFmpeg(t, args...)
}

func makeTone(t *testing.T, path string, seconds float64) {
	t.Helper()
	runFFmpeg(t, "-y", "-f", "lavfi", "-i", fmt.Sprintf("sine=f=440:r=44100:d=%.3f", seconds), "-c:a", "pcm_s16le", path)
}

func runFFmpeg(t *testing.T, args ...string) {
	t.Helper()
	cmd := exec.Command("ffmpeg", args...)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
}
