// Package pipeline wires host resolution, the build and the deploy into the
// three top-level operations: build, deploy, and all.
package pipeline

import (
	"context"
	"time"

	"github.com/rileyhilliard/debdeploy/internal/artifact"
	"github.com/rileyhilliard/debdeploy/internal/build"
	"github.com/rileyhilliard/debdeploy/internal/config"
	"github.com/rileyhilliard/debdeploy/internal/deploy"
	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/internal/host"
	"github.com/rileyhilliard/debdeploy/internal/logger"
	"github.com/spf13/afero"
)

// Plan is what a deploy is about to do. Artifact is nil when the package
// hasn't been built yet (the all operation confirms before building).
type Plan struct {
	Hosts    host.List
	Artifact *artifact.Artifact
	Pattern  string
}

// ConfirmFunc approves a plan. Returning false stops the run with ErrAborted.
type ConfirmFunc func(Plan) (bool, error)

// DeployFunc runs one deploy, reporting through r.
type DeployFunc func(ctx context.Context, r deploy.Reporter) (*deploy.Summary, error)

// RunnerFunc decides how a deploy is displayed. It must call fn exactly once
// and return its result. The default passes Options.Deploy.Reporter through.
type RunnerFunc func(ctx context.Context, plan Plan, fn DeployFunc) (*deploy.Summary, error)

// ErrAborted is returned when the confirmation is declined.
var ErrAborted = errors.New(errors.ErrExec, "Deploy cancelled", "")

// Report is the outcome of one operation.
type Report struct {
	Build    *build.Result      `json:"build,omitempty"`
	Artifact *artifact.Artifact `json:"artifact,omitempty"`
	Hosts    host.List          `json:"hosts,omitempty"`
	Deploy   *deploy.Summary    `json:"deploy,omitempty"`
	Duration time.Duration      `json:"duration"`
}

// Options configure an Orchestrator.
type Options struct {
	FS afero.Fs

	// Resolver maps cfg.Hosts to targets. Ignored when Targets is set.
	Resolver host.Resolver
	// Targets are explicit user@host[:port] strings that replace cfg.Hosts.
	Targets []string

	// Build configures the builder; its FS is filled from FS when empty.
	Build build.Options
	// Deploy configures the deployer; start from deploy.OptionsFromConfig.
	Deploy deploy.Options

	Confirm ConfirmFunc
	Runner  RunnerFunc
	Log     logger.Logger
}

// Orchestrator runs build, deploy and all against one config. The build runs
// at most once per Orchestrator.
type Orchestrator struct {
	cfg      *config.Config
	fs       afero.Fs
	resolver host.Resolver
	targets  []string
	builder  *build.Builder
	deployer *deploy.Deployer
	reporter deploy.Reporter
	confirm  ConfirmFunc
	runner   RunnerFunc
	log      logger.Logger
}

// New creates an Orchestrator.
func New(cfg *config.Config, opts Options) *Orchestrator {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Log == nil {
		opts.Log = logger.Noop()
	}
	if opts.Resolver == nil {
		opts.Resolver = &host.SSHConfigResolver{
			Path:        cfg.SSH.Config,
			DefaultUser: cfg.SSH.DefaultUser,
			Log:         opts.Log,
		}
	}
	if opts.Build.FS == nil {
		opts.Build.FS = opts.FS
	}
	if opts.Build.Log == nil {
		opts.Build.Log = opts.Log
	}
	if opts.Deploy.FS == nil {
		opts.Deploy.FS = opts.FS
	}
	if opts.Deploy.Log == nil {
		opts.Deploy.Log = opts.Log
	}
	if opts.Deploy.Reporter == nil {
		opts.Deploy.Reporter = deploy.QuietReporter{}
	}

	o := &Orchestrator{
		cfg:      cfg,
		fs:       opts.FS,
		resolver: opts.Resolver,
		targets:  opts.Targets,
		builder:  build.New(cfg, opts.Build),
		deployer: deploy.New(opts.Deploy),
		reporter: opts.Deploy.Reporter,
		confirm:  opts.Confirm,
		runner:   opts.Runner,
		log:      opts.Log,
	}
	if o.runner == nil {
		o.runner = func(ctx context.Context, _ Plan, fn DeployFunc) (*deploy.Summary, error) {
			return fn(ctx, o.reporter)
		}
	}
	return o
}

// Hosts resolves the deploy targets: the explicit Targets when given,
// otherwise the configured host names through the resolver.
func (o *Orchestrator) Hosts() (host.List, error) {
	if len(o.targets) > 0 {
		return host.ParseTargets(o.targets, o.cfg.SSH.DefaultUser)
	}
	return o.resolver.Resolve(o.cfg.Hosts)
}

// Build runs the build and selects the artifact.
func (o *Orchestrator) Build(ctx context.Context) (*Report, error) {
	start := time.Now()
	res, err := o.builder.Build(ctx)
	rep := &Report{Build: res, Duration: time.Since(start)}
	if res != nil {
		rep.Artifact = res.Artifact
	}
	return rep, err
}

// Deploy installs the package already in the output directory. Hosts and the
// artifact are checked before any connection is made.
func (o *Orchestrator) Deploy(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep := &Report{}
	defer func() { rep.Duration = time.Since(start) }()

	hosts, err := o.Hosts()
	if err != nil {
		return rep, err
	}
	rep.Hosts = hosts

	art, err := artifact.Find(o.fs, o.cfg.ArtifactDir(), o.cfg.ArtifactPattern())
	if err != nil {
		return rep, err
	}
	rep.Artifact = art

	if err := o.approve(Plan{Hosts: hosts, Artifact: art, Pattern: o.cfg.ArtifactPattern()}); err != nil {
		return rep, err
	}

	rep.Deploy, err = o.deploy(ctx, hosts, art)
	return rep, err
}

// All builds once and deploys the result. Hosts are resolved and approved
// before the build starts.
func (o *Orchestrator) All(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep := &Report{}
	defer func() { rep.Duration = time.Since(start) }()

	hosts, err := o.Hosts()
	if err != nil {
		return rep, err
	}
	rep.Hosts = hosts

	if err := o.approve(Plan{Hosts: hosts, Pattern: o.cfg.ArtifactPattern()}); err != nil {
		return rep, err
	}

	res, err := o.builder.Build(ctx)
	rep.Build = res
	if err != nil {
		return rep, err
	}
	rep.Artifact = res.Artifact

	rep.Deploy, err = o.deploy(ctx, hosts, res.Artifact)
	return rep, err
}

func (o *Orchestrator) approve(plan Plan) error {
	if o.confirm == nil || len(plan.Hosts) == 0 {
		return nil
	}
	ok, err := o.confirm(plan)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}

func (o *Orchestrator) deploy(ctx context.Context, hosts host.List, art *artifact.Artifact) (*deploy.Summary, error) {
	if len(hosts) == 0 {
		o.log.Warn("no hosts to deploy to")
	}
	plan := Plan{Hosts: hosts, Artifact: art, Pattern: o.cfg.ArtifactPattern()}
	return o.runner(ctx, plan, func(ctx context.Context, r deploy.Reporter) (*deploy.Summary, error) {
		return o.deployer.WithReporter(r).Deploy(ctx, hosts, art)
	})
}
