package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/debdeploy/internal/build"
	"github.com/rileyhilliard/debdeploy/internal/config"
	"github.com/rileyhilliard/debdeploy/internal/deploy"
	"github.com/rileyhilliard/debdeploy/internal/deploy/board"
	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/internal/host"
	"github.com/rileyhilliard/debdeploy/internal/logger"
	"github.com/rileyhilliard/debdeploy/internal/pipeline"
	"github.com/rileyhilliard/debdeploy/internal/ui"
	"github.com/rileyhilliard/debdeploy/pkg/sshutil"
	"github.com/spf13/cobra"
)

// DeployOptions holds options shared by the deploy and all commands.
type DeployOptions struct {
	// Build runs the build first (the all command).
	Build bool

	// Targets replace the configured hosts with explicit user@host[:port].
	Targets []string

	// Overrides for the deploy section; nil leaves the config value.
	Parallel *int
	Timeout  *time.Duration

	FailFast   bool
	BestEffort bool
	Output     string
	JSON       bool
	Yes        bool

	// Interactive is set when stdin and stdout are terminals.
	Interactive bool

	Stdout io.Writer
	Stderr io.Writer

	// Test hooks; nil means the real implementation.
	Runner   build.Runner
	Dialer   deploy.Dialer
	Resolver host.Resolver
	Confirm  pipeline.ConfirmFunc
}

// deployFlags backs the flags shared by deploy and all.
type deployFlags struct {
	hosts      []string
	parallel   int
	timeout    time.Duration
	failFast   bool
	bestEffort bool
	output     string
	json       bool
	yes        bool
}

var (
	deployFlagValues deployFlags
	allFlagValues    deployFlags
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Install the built package on every host",
	Long: `Upload the package already in the output directory to every host and
install it with dpkg. When dpkg fails (usually missing dependencies) the
fix-dependencies command runs and the install is verified.

Nothing is built; run 'debdeploy build' first or use 'debdeploy all'.

Examples:
  debdeploy deploy
  debdeploy deploy --host ci@10.0.0.5 --host root@10.0.0.6
  debdeploy deploy --parallel 4 --fail-fast`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeployCmd(cmd, &deployFlagValues, false)
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Build the package once, then deploy it",
	Long: `Resolve the hosts, build the package, then install it on every host.
The build runs once regardless of how many hosts there are.

Examples:
  debdeploy all
  debdeploy all --yes --output stream`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeployCmd(cmd, &allFlagValues, true)
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(allCmd)
	addDeployFlags(deployCmd, &deployFlagValues)
	addDeployFlags(allCmd, &allFlagValues)
}

func addDeployFlags(cmd *cobra.Command, f *deployFlags) {
	cmd.Flags().StringArrayVarP(&f.hosts, "host", "H", nil, "deploy to user@host[:port] instead of the configured hosts (repeatable)")
	cmd.Flags().IntVar(&f.parallel, "parallel", 1, "hosts deployed at once")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "time limit per host, e.g. 10m (0 = none)")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", false, "skip remaining hosts after the first failure")
	cmd.Flags().BoolVar(&f.bestEffort, "best-effort", false, "report hosts done after the fallback without verifying the install")
	cmd.Flags().StringVar(&f.output, "output", "", "progress display: progress, stream, or quiet (default: progress on a terminal)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the result as JSON")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "don't ask for confirmation")
}

func runDeployCmd(cmd *cobra.Command, f *deployFlags, withBuild bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := DeployOptions{
		Build:       withBuild,
		Targets:     f.hosts,
		FailFast:    f.failFast,
		BestEffort:  f.bestEffort,
		Output:      f.output,
		JSON:        f.json,
		Yes:         f.yes,
		Interactive: ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
	if cmd.Flags().Changed("parallel") {
		opts.Parallel = &f.parallel
	}
	if cmd.Flags().Changed("timeout") {
		opts.Timeout = &f.timeout
	}
	return deployCommand(cmd.Context(), cfg, opts)
}

// applyDeployOverrides copies command-line overrides into cfg and validates
// the result.
func applyDeployOverrides(cfg *config.Config, opts DeployOptions) error {
	if opts.Parallel != nil {
		cfg.Deploy.Parallel = *opts.Parallel
	}
	if opts.Timeout != nil {
		cfg.Deploy.Timeout = *opts.Timeout
	}
	if opts.FailFast {
		cfg.Deploy.FailFast = true
	}
	if opts.BestEffort {
		cfg.Deploy.BestEffort = true
	}
	return config.Validate(cfg)
}

// resolveOutputMode picks the progress display. The board needs a terminal,
// so it falls back to streaming elsewhere.
func resolveOutputMode(opts DeployOptions) (deploy.OutputMode, error) {
	if opts.JSON {
		return deploy.OutputQuiet, nil
	}
	if opts.Output == "" {
		if opts.Interactive {
			return deploy.OutputProgress, nil
		}
		return deploy.OutputStream, nil
	}
	mode, ok := deploy.ParseOutputMode(opts.Output)
	if !ok {
		return "", errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown output mode '%s'", opts.Output),
			"Use progress, stream, or quiet.")
	}
	if mode == deploy.OutputProgress && !opts.Interactive {
		return deploy.OutputStream, nil
	}
	return mode, nil
}

func deployCommand(ctx context.Context, cfg *config.Config, opts DeployOptions) error {
	if err := applyDeployOverrides(cfg, opts); err != nil {
		return err
	}
	mode, err := resolveOutputMode(opts)
	if err != nil {
		return err
	}

	// With --json, stdout carries only the envelope.
	human := opts.Stdout
	if opts.JSON {
		human = opts.Stderr
	}

	dopts := deploy.OptionsFromConfig(cfg)
	dopts.Dialer = opts.Dialer
	if dopts.Dialer == nil {
		dopts.Dialer = deploy.SSHDialer{Options: sshutil.DialOptions{
			Timeout:               cfg.SSH.ConnectTimeout,
			StrictHostKeyChecking: cfg.SSH.StrictHostKeyChecking,
		}}
	}
	if mode == deploy.OutputStream {
		dopts.Reporter = deploy.NewStreamReporter(human)
	}

	popts := pipeline.Options{
		Resolver: opts.Resolver,
		Targets:  opts.Targets,
		Build: build.Options{
			Runner:   opts.Runner,
			Observer: newPhaseObserver(human),
			Stdout:   human,
			Stderr:   opts.Stderr,
		},
		Deploy:  dopts,
		Confirm: opts.Confirm,
		Log:     logger.Default(),
	}
	if popts.Confirm == nil && opts.Interactive && !opts.Yes && !opts.JSON {
		popts.Confirm = confirmPlan
	}
	if mode == deploy.OutputProgress {
		popts.Runner = func(ctx context.Context, plan pipeline.Plan, fn pipeline.DeployFunc) (*deploy.Summary, error) {
			return board.Run(ctx, human, plan.Artifact.Name, board.DeployFunc(fn))
		}
	}

	orch := pipeline.New(cfg, popts)
	var rep *pipeline.Report
	if opts.Build {
		rep, err = orch.All(ctx)
	} else {
		rep, err = orch.Deploy(ctx)
	}

	if opts.JSON {
		if werr := WriteJSONResult(opts.Stdout, rep, err); werr != nil {
			return werr
		}
		if err != nil {
			return &reportedError{err: err}
		}
		return nil
	}

	if stderrors.Is(err, pipeline.ErrAborted) {
		fmt.Fprintln(human, lipgloss.NewStyle().Foreground(ui.ColorMuted).Render("Cancelled."))
		return &reportedError{err: err}
	}
	if rep != nil && rep.Deploy != nil {
		deploy.RenderSummary(human, rep.Deploy)
		if err != nil {
			return &reportedError{err: err, msg: deployFailureLine(rep.Deploy)}
		}
	}
	return err
}

// deployFailureLine is the last line printed for a partly failed deploy.
func deployFailureLine(sum *deploy.Summary) string {
	style := lipgloss.NewStyle().Foreground(ui.ColorError)
	return style.Render(ui.SymbolFail + " " + deploy.BriefSummary(sum))
}

// confirmPlan asks before touching any host.
func confirmPlan(plan pipeline.Plan) (bool, error) {
	what := "the package"
	if plan.Artifact != nil {
		what = plan.Artifact.Name
	}
	title := fmt.Sprintf("Deploy %s to %d %s?", what, len(plan.Hosts), ui.Plural(len(plan.Hosts), "host"))
	if plan.Artifact == nil {
		title = fmt.Sprintf("Build %s and deploy it to %d %s?", plan.Pattern, len(plan.Hosts), ui.Plural(len(plan.Hosts), "host"))
	}

	lines := make([]string, len(plan.Hosts))
	for i, h := range plan.Hosts {
		lines[i] = fmt.Sprintf("%s (%s)", h.Alias, h.String())
	}
	return ui.Confirm(title, strings.Join(lines, "\n"))
}
