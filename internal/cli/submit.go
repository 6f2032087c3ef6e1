package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/avsync/internal/client"
	"github.com/maauso/avsync/internal/job"
	"github.com/maauso/avsync/internal/server"
)

// ErrJobFailed is returned when a submitted job ends in FAILED.
var ErrJobFailed = errors.New("job failed")

type submitOptions struct {
	server       string
	videoPath    string
	audioPath    string
	outputPath   string
	pushToS3     bool
	pollInterval time.Duration
}

func newSubmitCommand() *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Run a mux job on a remote avsync server and download the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client.NewClient(opts.server)
			if err != nil {
				return err
			}
			return runSubmit(cmd.Context(), cmd.OutOrStdout(), c, opts)
		},
	}

	serverURL := os.Getenv("AVSYNC_SERVER")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	cmd.Flags().StringVar(&opts.server, "server", serverURL, "Server base URL (env AVSYNC_SERVER)")
	cmd.Flags().StringVar(&opts.videoPath, "video", "input.mp4", "Input video")
	cmd.Flags().StringVar(&opts.audioPath, "audio", "", "Replacement audio (empty for a silent output)")
	cmd.Flags().StringVar(&opts.outputPath, "output", "output.mp4", "Output video; its extension selects the container")
	cmd.Flags().BoolVar(&opts.pushToS3, "push-to-s3", false, "Publish the result to S3 instead of downloading it")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", 2*time.Second, "Status polling interval")
	return cmd
}

func runSubmit(ctx context.Context, w io.Writer, c client.Client, opts submitOptions) error {
	format := job.OutputFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.outputPath)), "."))
	if !format.IsValid() {
		return fmt.Errorf("%w: %q", job.ErrInvalidOutputFormat, filepath.Ext(opts.outputPath))
	}

	req := server.CreateJobRequest{
		OutputFormat: string(format),
		PushToS3:     opts.pushToS3,
	}

	var err error
	if req.VideoBase64, err = encodeFile(opts.videoPath); err != nil {
		return fmt.Errorf("read video: %w", err)
	}
	if opts.audioPath != "" {
		if req.AudioBase64, err = encodeFile(opts.audioPath); err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
	}

	jobID, err := c.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	fmt.Fprintf(w, "submitted job %s\n", jobID)

	resp, err := client.Wait(ctx, c, jobID, opts.pollInterval)
	if err != nil {
		return err
	}
	if resp.Status == string(job.StatusFailed) {
		return fmt.Errorf("%w: %s: %s", ErrJobFailed, jobID, resp.Error)
	}

	switch {
	case resp.VideoURL != "":
		fmt.Fprintf(w, "published %s\n", resp.VideoURL)
	case resp.VideoBase64 != "":
		data, err := base64.StdEncoding.DecodeString(resp.VideoBase64)
		if err != nil {
			return fmt.Errorf("decode output video: %w", err)
		}
		if err := os.WriteFile(opts.outputPath, data, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(w, "wrote %s\n", opts.outputPath)
	default:
		return fmt.Errorf("job %s completed without a video", jobID)
	}

	fmt.Fprintf(w, "  video:  %s\n", formatSeconds(resp.VideoDuration))
	if resp.Action == "" || resp.Action == "none" {
		fmt.Fprintln(w, "  audio:  none (silent)")
		return nil
	}
	fmt.Fprintf(w, "  audio:  %s -> %s (%s)\n",
		formatSeconds(resp.SourceAudioDuration), formatSeconds(resp.AudioDuration), resp.Action)
	return nil
}

func encodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
