package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/maauso/avsync/internal/bootstrap"
	"github.com/maauso/avsync/internal/media"
)

type muxRunner interface {
	Run(ctx context.Context, req media.Request) (*media.Result, error)
}

func newMuxCommand() *cobra.Command {
	var req media.Request

	cmd := &cobra.Command{
		Use:   "mux",
		Short: "Strip a video's audio and attach a trimmed or padded replacement",
		Long: `mux writes OUTPUT with the video stream of VIDEO and the audio of AUDIO,
trimmed or padded with silence to the video's duration. Without AUDIO, or
when AUDIO cannot be read, the output is silent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			muxer := bootstrap.NewMuxer(cfg, logger)

			// Encodes always run to completion.
			return runMux(context.Background(), cmd.OutOrStdout(), muxer, req)
		},
	}

	cmd.Flags().StringVar(&req.VideoPath, "video", "input.mp4", "Input video")
	cmd.Flags().StringVar(&req.AudioPath, "audio", "", "Replacement audio (empty for a silent output)")
	cmd.Flags().StringVar(&req.OutputPath, "output", "output.mp4", "Output video, overwritten on success")
	return cmd
}

func runMux(ctx context.Context, w io.Writer, m muxRunner, req media.Request) error {
	res, err := m.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "wrote %s\n", res.OutputPath)
	fmt.Fprintf(w, "  video:  %s\n", formatSeconds(res.VideoDuration.Seconds()))
	if res.Action == media.ActionNone {
		fmt.Fprintln(w, "  audio:  none (silent)")
		return nil
	}
	fmt.Fprintf(w, "  audio:  %s -> %s (%s, %d Hz)\n",
		formatSeconds(res.SourceAudioDuration.Seconds()),
		formatSeconds(res.AudioDuration.Seconds()),
		res.Action,
		res.SampleRate,
	)
	return nil
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3fs", s)
}
