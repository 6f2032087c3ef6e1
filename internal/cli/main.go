// Package cli implements the avsync command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maauso/avsync/internal/config"
)

// Main runs the avsync command and exits non-zero on failure.
func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := NewRootCommand()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "avsync",
		Short:         "Replace a video's audio with a track of exactly the same duration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMuxCommand(),
		newInspectCommand(),
		newServeCommand(),
		newSubmitCommand(),
	)
	return root
}

// loadConfig reads the environment and builds a logger writing to w.
func loadConfig(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.NewLogger(w), nil
}
