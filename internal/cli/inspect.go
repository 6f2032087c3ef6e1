package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/avsync/internal/audio"
	"github.com/maauso/avsync/internal/bootstrap"
)

type streamProber interface {
	StreamDurations(ctx context.Context, path string) (video, audio time.Duration, err error)
}

func newInspectCommand() *cobra.Command {
	opts := audio.DefaultSilenceOpts()

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print stream durations and silent intervals of a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			prober, analyzer := bootstrap.NewInspector(cfg)

			return runInspect(cmd.Context(), cmd.OutOrStdout(), prober, analyzer, args[0], opts)
		},
	}

	cmd.Flags().DurationVar(&opts.MinSilence, "min-silence", opts.MinSilence, "Shortest silence to report")
	cmd.Flags().Float64Var(&opts.ThreshDB, "thresh-db", opts.ThreshDB, "Silence threshold in dBFS")
	return cmd
}

func runInspect(ctx context.Context, w io.Writer, prober streamProber, analyzer audio.Analyzer, path string, opts audio.SilenceOpts) error {
	videoDur, audioDur, err := prober.StreamDurations(ctx, path)
	if err != nil {
		return fmt.Errorf("probe %s: %w", path, err)
	}
	container, err := analyzer.Duration(ctx, path)
	if err != nil {
		return fmt.Errorf("read duration of %s: %w", path, err)
	}

	fmt.Fprintf(w, "file:   %s (%s)\n", path, formatSeconds(container.Seconds()))
	fmt.Fprintf(w, "video:  %s\n", formatStream(videoDur))
	fmt.Fprintf(w, "audio:  %s\n", formatStream(audioDur))
	if videoDur > 0 && audioDur > 0 {
		fmt.Fprintf(w, "delta:  %+.3fs\n", (audioDur - videoDur).Seconds())
	}
	if audioDur == 0 {
		return nil
	}

	silences, err := analyzer.DetectSilences(ctx, path, opts)
	if err != nil {
		return fmt.Errorf("detect silences: %w", err)
	}

	fmt.Fprintf(w, "silences (>= %s below %gdB): %d\n", opts.MinSilence, opts.ThreshDB, len(silences))
	for _, s := range silences {
		fmt.Fprintf(w, "  %s - %s  (%s)\n",
			formatSeconds(s.Start), formatSeconds(s.End), formatSeconds(s.Duration().Seconds()))
	}
	return nil
}

func formatStream(d time.Duration) string {
	if d == 0 {
		return "none"
	}
	return formatSeconds(d.Seconds())
}
