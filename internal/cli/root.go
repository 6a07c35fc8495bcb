package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/debdeploy/internal/config"
	"github.com/rileyhilliard/debdeploy/internal/logger"
	"github.com/rileyhilliard/debdeploy/internal/ui"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile   string
	sshConfig string
	verbose   bool
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "debdeploy",
	Short: "Build a Debian package once and install it on many hosts",
	Long: `debdeploy runs the Debian packaging toolchain locally, then uploads the
resulting package to every configured host over SSH and installs it with dpkg,
falling back to apt-get -f install when dependencies are missing.

Hosts are logical names resolved through your ~/.ssh/config.

Examples:
  debdeploy all
  debdeploy deploy --host ci@10.0.0.5
  debdeploy build`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)
		if noColor || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: nearest .debdeploy.yaml)")
	rootCmd.PersistentFlags().StringVar(&sshConfig, "ssh-config", "", "SSH client config used to resolve hosts (default: ~/.ssh/config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// reportedError marks an error whose details were already written, as JSON
// or as a deploy summary. Execute prints only msg for it.
type reportedError struct {
	err error
	msg string
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Execute runs the root command and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	printError(os.Stderr, err)
	return 1
}

func printError(w io.Writer, err error) {
	var rep *reportedError
	if stderrors.As(err, &rep) {
		if rep.msg != "" {
			fmt.Fprintln(w, rep.msg)
		}
		return
	}
	if isUnknownCommandError(err) {
		fmt.Fprintf(w, "%s\n\nRun 'debdeploy --help' for usage.\n", err)
		return
	}
	fmt.Fprint(w, err.Error())
	if !strings.HasSuffix(err.Error(), "\n") {
		fmt.Fprintln(w)
	}
}

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// loadConfig loads and validates the config, then applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.Default().Debug("using config %s", path)
	}
	if sshConfig != "" {
		cfg.SSH.Config = sshConfig
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
