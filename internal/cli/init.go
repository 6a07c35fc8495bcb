package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/debdeploy/internal/config"
	"github.com/rileyhilliard/debdeploy/internal/ui"
	"github.com/spf13/cobra"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Path    string   // Where to write; defaults to ./.debdeploy.yaml
	Project string   // Package name; empty keeps the default
	Hosts   []string // Host names; empty keeps the defaults
	Force   bool     // Overwrite an existing file
	Stdout  io.Writer
}

var (
	initProject string
	initHosts   []string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .debdeploy.yaml with defaults",
	Long: `Write a .debdeploy.yaml in the current directory (or the --config path)
with every setting spelled out, ready to edit.

Examples:
  debdeploy init
  debdeploy init --project mypkg --host build1 --host build2
  debdeploy init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Init(InitOptions{
			Path:    cfgFile,
			Project: initProject,
			Hosts:   initHosts,
			Force:   initForce,
			Stdout:  os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initProject, "project", "", "package name (default jenkins-debian-glue)")
	initCmd.Flags().StringArrayVar(&initHosts, "host", nil, "host name to deploy to (repeatable)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
}

// Init writes a new config file.
func Init(opts InitOptions) error {
	path := opts.Path
	if path == "" {
		path = config.ConfigFileName
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	cfg := config.DefaultConfig()
	if opts.Project != "" {
		cfg.Project = opts.Project
	}
	if len(opts.Hosts) > 0 {
		cfg.Hosts = opts.Hosts
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Write(path, cfg, opts.Force); err != nil {
		return err
	}

	style := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	fmt.Fprintf(opts.Stdout, "%s Wrote %s\n", style.Render(ui.SymbolSuccess), path)
	fmt.Fprintf(opts.Stdout, "  %d %s: %s\n", len(cfg.Hosts), ui.Plural(len(cfg.Hosts), "host"), strings.Join(cfg.Hosts, ", "))
	return nil
}
