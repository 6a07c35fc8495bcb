package cli

import (
	"context"
	"io"
	"os"

	"github.com/rileyhilliard/debdeploy/internal/build"
	"github.com/rileyhilliard/debdeploy/internal/config"
	"github.com/rileyhilliard/debdeploy/internal/logger"
	"github.com/rileyhilliard/debdeploy/internal/pipeline"
	"github.com/spf13/cobra"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	JSON bool

	Stdout io.Writer
	Stderr io.Writer
	// Runner replaces the shell runner (tests).
	Runner build.Runner
}

var buildJSON bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the package locally",
	Long: `Remove stale packages from the output directory, then run the packaging
toolchain: clean, binary, clean. Prints the selected package on success.

Examples:
  debdeploy build
  debdeploy build --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return buildCommand(cmd.Context(), cfg, BuildOptions{
			JSON:   buildJSON,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		})
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "print the result as JSON")
}

func buildCommand(ctx context.Context, cfg *config.Config, opts BuildOptions) error {
	// With --json, stdout carries only the envelope.
	human := opts.Stdout
	if opts.JSON {
		human = opts.Stderr
	}

	orch := pipeline.New(cfg, pipeline.Options{
		Build: build.Options{
			Runner:   opts.Runner,
			Observer: newPhaseObserver(human),
			Stdout:   human,
			Stderr:   opts.Stderr,
		},
		Log: logger.Default(),
	})

	rep, err := orch.Build(ctx)
	if opts.JSON {
		if werr := WriteJSONResult(opts.Stdout, rep, err); werr != nil {
			return werr
		}
		if err != nil {
			return &reportedError{err: err}
		}
		return nil
	}
	if err != nil {
		return err
	}
	renderArtifact(human, rep.Artifact)
	return nil
}
