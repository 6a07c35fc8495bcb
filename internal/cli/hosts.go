package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/debdeploy/internal/config"
	"github.com/rileyhilliard/debdeploy/internal/deploy"
	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/internal/host"
	"github.com/rileyhilliard/debdeploy/internal/logger"
	"github.com/rileyhilliard/debdeploy/internal/pipeline"
	"github.com/rileyhilliard/debdeploy/internal/ui"
	"github.com/rileyhilliard/debdeploy/pkg/sshutil"
	"github.com/spf13/cobra"
)

// HostsOptions holds options for the hosts command.
type HostsOptions struct {
	JSON bool
	// Check connects to every host over SSH and reports which answer.
	Check  bool
	Stdout io.Writer
	// Resolver replaces SSH config resolution (tests).
	Resolver host.Resolver
	// Dialer replaces real SSH connections for --check (tests).
	Dialer deploy.Dialer
}

var (
	hostsJSON  bool
	hostsCheck bool
)

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Show where each configured host resolves to",
	Long: `Resolve the configured host names through the SSH config and print the
user@hostname each one deploys to. Nothing is contacted unless --check is
given, which opens an SSH session to every host and reports which answer.

Examples:
  debdeploy hosts
  debdeploy hosts --check
  debdeploy hosts --ssh-config ./ssh_config --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return hostsCommand(cmd.Context(), cfg, HostsOptions{
			JSON:   hostsJSON,
			Check:  hostsCheck,
			Stdout: os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(hostsCmd)
	hostsCmd.Flags().BoolVar(&hostsJSON, "json", false, "print the hosts as JSON")
	hostsCmd.Flags().BoolVar(&hostsCheck, "check", false, "connect to every host and report which are reachable")
}

func hostsCommand(ctx context.Context, cfg *config.Config, opts HostsOptions) error {
	hosts, err := pipeline.New(cfg, pipeline.Options{
		Resolver: opts.Resolver,
		Log:      logger.Default(),
	}).Hosts()

	if err == nil && opts.Check {
		return checkHosts(ctx, cfg, hosts, opts)
	}

	if opts.JSON {
		if werr := WriteJSONResult(opts.Stdout, hosts, err); werr != nil {
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

	if len(hosts) == 0 {
		fmt.Fprintln(opts.Stdout, "No hosts configured. Add names under 'hosts' in .debdeploy.yaml.")
		return nil
	}

	rows := make([][]string, len(hosts))
	for i, h := range hosts {
		port := h.Port
		if port == "" {
			port = "22"
		}
		rows[i] = []string{h.Alias, h.String(), port}
	}
	fmt.Fprintln(opts.Stdout, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "Host", Width: 10},
		{Title: "Target", Width: 10},
		{Title: "Port", Width: 6},
	}, rows))
	return nil
}

// checkHosts dials every host with the deploy settings for parallelism and
// connect timeout, then prints a reachability table.
func checkHosts(ctx context.Context, cfg *config.Config, hosts host.List, opts HostsOptions) error {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = deploy.SSHDialer{Options: sshutil.DialOptions{
			Timeout:               cfg.SSH.ConnectTimeout,
			StrictHostKeyChecking: cfg.SSH.StrictHostKeyChecking,
		}}
	}
	dial := func(ctx context.Context, h host.Spec) (io.Closer, error) {
		return dialer.Dial(ctx, h)
	}

	results := host.ProbeAll(ctx, hosts, dial, cfg.Deploy.Parallel, cfg.SSH.ConnectTimeout)

	var unreachable []string
	for _, r := range results {
		if !r.OK() {
			unreachable = append(unreachable, r.Host.Alias)
			logger.Default().Debug("probe %s: %v", r.Host.Alias, r.Err)
		}
	}
	var err error
	if len(unreachable) > 0 {
		err = errors.New(errors.ErrSSH,
			fmt.Sprintf("%d of %d %s unreachable", len(unreachable), len(results), ui.Plural(len(results), "host")),
			"Run with -v to see the connection errors.")
	}

	if opts.JSON {
		if werr := WriteJSONResult(opts.Stdout, results, err); werr != nil {
			return werr
		}
		if err != nil {
			return &reportedError{err: err}
		}
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(opts.Stdout, "No hosts configured. Add names under 'hosts' in .debdeploy.yaml.")
		return nil
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		symbol := ui.SymbolSuccess
		if !r.OK() {
			symbol = ui.SymbolFail
		}
		rows[i] = []string{r.Host.Alias, r.Host.String(), symbol + " " + r.Describe()}
	}
	fmt.Fprintln(opts.Stdout, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "Host", Width: 10},
		{Title: "Target", Width: 10},
		{Title: "Status", Width: 10},
	}, rows))
	return err
}
