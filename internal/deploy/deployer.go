// Package deploy uploads a built package to every host and installs it.
package deploy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alessio/shellescape"
	"github.com/hashicorp/go-multierror"
	"github.com/rileyhilliard/debdeploy/internal/artifact"
	"github.com/rileyhilliard/debdeploy/internal/config"
	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/internal/host"
	"github.com/rileyhilliard/debdeploy/internal/logger"
	"github.com/rileyhilliard/debdeploy/pkg/sshutil"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Options configure a Deployer.
type Options struct {
	// RemoteDir receives the artifact ("~" is the login directory).
	RemoteDir string

	// Command templates; see config.CommandData.
	Install         string
	FixDependencies string
	Verify          string

	// BestEffort reports a host done once the fallback has run, whatever its
	// exit status. Otherwise a failed fallback or verify fails the host.
	BestEffort bool

	// Parallel is the number of hosts in flight at once (minimum 1).
	Parallel int
	// Timeout bounds each host's whole sequence (0 = none).
	Timeout time.Duration
	// FailFast skips hosts that haven't started once any host fails.
	FailFast bool

	// FS is where the artifact is read from. Defaults to the OS filesystem.
	FS       afero.Fs
	Dialer   Dialer
	Reporter Reporter
	Log      logger.Logger
}

// OptionsFromConfig maps the deploy section of cfg to Options.
// FS, Dialer, Reporter and Log are left for the caller.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RemoteDir:       cfg.Deploy.RemoteDir,
		Install:         cfg.Deploy.Install,
		FixDependencies: cfg.Deploy.FixDependencies,
		Verify:          cfg.Deploy.Verify,
		BestEffort:      cfg.Deploy.BestEffort,
		Parallel:        cfg.Deploy.Parallel,
		Timeout:         cfg.Deploy.Timeout,
		FailFast:        cfg.Deploy.FailFast,
	}
}

// Deployer runs the per-host sequence: upload, install, and on install
// failure the fix-dependencies fallback.
type Deployer struct {
	opts Options
}

// New creates a Deployer. Missing collaborators get quiet defaults; Dialer
// has none and must be set.
func New(opts Options) *Deployer {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.Reporter == nil {
		opts.Reporter = QuietReporter{}
	}
	if opts.Log == nil {
		opts.Log = logger.Noop()
	}
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	return &Deployer{opts: opts}
}

// WithReporter returns a copy of d that reports to r.
func (d *Deployer) WithReporter(r Reporter) *Deployer {
	opts := d.opts
	opts.Reporter = r
	return New(opts)
}

// Deploy installs art on every host. The returned Summary always has one
// result per host, in host order. The error aggregates every host failure
// and is nil only when all hosts are done.
//
// Problems with the artifact or the command templates are reported before
// any host is contacted.
func (d *Deployer) Deploy(ctx context.Context, hosts host.List, art *artifact.Artifact) (*Summary, error) {
	if err := d.preflight(art); err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]HostResult, len(hosts))
	for i, h := range hosts {
		results[i] = HostResult{Host: h, State: StatePending}
	}
	d.opts.Reporter.HostsPlanned(hosts)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		merr   *multierror.Error
		failed bool
	)

	g := new(errgroup.Group)
	g.SetLimit(d.opts.Parallel)

	for i := range hosts {
		g.Go(func() error {
			mu.Lock()
			skip := d.opts.FailFast && failed
			mu.Unlock()

			var res HostResult
			if skip || runCtx.Err() != nil {
				res = HostResult{Host: hosts[i], State: StatePending, Skipped: true}
			} else {
				res = d.deployHost(runCtx, hosts[i], art)
			}
			d.opts.Reporter.HostFinished(res)

			mu.Lock()
			results[i] = res
			if !res.Skipped && !res.Success() {
				failed = true
				merr = multierror.Append(merr, res.Err)
				if d.opts.FailFast {
					cancel()
				}
			}
			mu.Unlock()
			// Host failures are collected, not returned: the group must
			// keep running the rest.
			return nil
		})
	}
	_ = g.Wait()

	sum := summarize(results, time.Since(start))
	d.opts.Reporter.Finished(sum)
	d.opts.Log.Info("deploy finished: %d done, %d failed, %d skipped", sum.Done, sum.Failed, sum.Skipped)

	if err := merr.ErrorOrNil(); err != nil {
		return sum, err
	}
	if sum.Skipped > 0 {
		// Only cancellation from the caller leaves skips without failures.
		return sum, errors.WrapWithCode(ctx.Err(), errors.ErrExec,
			fmt.Sprintf("Deploy interrupted, %d host(s) not attempted", sum.Skipped), "")
	}
	return sum, nil
}

func (d *Deployer) preflight(art *artifact.Artifact) error {
	if d.opts.Dialer == nil {
		return errors.New(errors.ErrConfig, "No dialer configured", "")
	}
	if art == nil {
		return errors.New(errors.ErrArtifactNotFound, "No package to deploy",
			"Run 'debdeploy build' first.")
	}
	info, err := d.opts.FS.Stat(art.Path)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrArtifactNotFound,
			fmt.Sprintf("Package %s is gone", art.Path),
			"Rebuild with 'debdeploy all'.")
	}
	if info.IsDir() {
		return errors.New(errors.ErrArtifactNotFound,
			fmt.Sprintf("%s is a directory, not a package", art.Path), "")
	}

	probe := config.CommandData{Artifact: "x", Package: art.Package, Host: "x"}
	for name, tmpl := range map[string]string{
		"install":          d.opts.Install,
		"fix_dependencies": d.opts.FixDependencies,
		"verify":           d.opts.Verify,
	} {
		if _, err := config.RenderCommand(name, tmpl, probe); err != nil {
			return err
		}
	}
	return nil
}

// hostRun carries one host's in-flight state.
type hostRun struct {
	d      *Deployer
	h      host.Spec
	res    *HostResult
	stdout *lineWriter
	stderr *lineWriter
}

func (r *hostRun) setState(s State) {
	r.res.State = s
	r.d.opts.Reporter.StateChanged(r.h, s)
}

func (r *hostRun) fail(err error) HostResult {
	r.res.State = StateFailed
	r.res.Err = err
	return *r.res
}

// exec runs cmd with output routed through the reporter.
func (r *hostRun) exec(ctx context.Context, client sshutil.SSHClient, cmd string) (int, error) {
	r.d.opts.Log.Debug("[%s] $ %s", r.h.Alias, cmd)
	code, err := client.ExecStream(ctx, cmd, r.stdout, r.stderr)
	r.stdout.Flush()
	r.stderr.Flush()
	return code, err
}

func (d *Deployer) deployHost(ctx context.Context, h host.Spec, art *artifact.Artifact) HostResult {
	start := time.Now()
	res := &HostResult{Host: h, State: StatePending}
	run := &hostRun{
		d:   d,
		h:   h,
		res: res,
		stdout: newLineWriter(func(line []byte) {
			d.opts.Reporter.Output(h.Alias, line, false)
		}),
		stderr: newLineWriter(func(line []byte) {
			d.opts.Reporter.Output(h.Alias, line, true)
		}),
	}

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	out := d.runSequence(ctx, run, art)
	out.Duration = time.Since(start)
	if out.Err != nil && ctx.Err() == context.DeadlineExceeded {
		code := errors.CodeOf(out.Err)
		if code == "" {
			code = errors.ErrExec
		}
		out.Err = errors.WrapWithCode(out.Err, code,
			fmt.Sprintf("%s timed out after %s", h.Alias, d.opts.Timeout),
			"Raise deploy.timeout or check the host is responsive.")
	}
	return out
}

func (d *Deployer) runSequence(ctx context.Context, run *hostRun, art *artifact.Artifact) HostResult {
	h := run.h
	res := run.res

	run.setState(StateUploading)
	client, err := d.opts.Dialer.Dial(ctx, h)
	if err != nil {
		return run.fail(err)
	}
	defer client.Close()

	remotePath, err := d.upload(ctx, client, art)
	if err != nil {
		if errors.CodeOf(err) == "" {
			err = errors.WrapWithCode(err, errors.ErrTransferFailed,
				fmt.Sprintf("Upload to %s failed", h.Alias), "")
		}
		return run.fail(err)
	}
	res.RemotePath = remotePath
	d.opts.Log.Debug("[%s] uploaded %s to %s", h.Alias, art.Name, remotePath)

	data := config.CommandData{
		Artifact: shellescape.Quote(remotePath),
		Package:  art.Package,
		Host:     h.Alias,
	}

	run.setState(StateInstalling)
	install, err := config.RenderCommand("install", d.opts.Install, data)
	if err != nil {
		return run.fail(err)
	}
	code, err := run.exec(ctx, client, install)
	res.InstallExit = code
	if err != nil {
		return run.fail(execError(h, "install", err))
	}
	if code == 0 {
		res.State = StateDone
		return *res
	}

	// dpkg -i fails when dependencies are missing; the fix-up installs them
	// and finishes configuring the package.
	run.setState(StateFixing)
	res.Fallback = true
	fix, err := config.RenderCommand("fix_dependencies", d.opts.FixDependencies, data)
	if err != nil {
		return run.fail(err)
	}
	if fix == "" {
		return run.fail(errors.New(errors.ErrInstallFailed,
			fmt.Sprintf("Install on %s exited with %d", h.Alias, code),
			"No deploy.fix_dependencies command is configured."))
	}
	fixCode, err := run.exec(ctx, client, fix)
	res.FixExit = fixCode
	if err != nil {
		return run.fail(execError(h, "fix_dependencies", err))
	}

	if d.opts.BestEffort {
		res.Unverified = true
		res.State = StateDone
		d.opts.Log.Warn("[%s] install exited %d, fallback exited %d; reporting done without verification", h.Alias, code, fixCode)
		return *res
	}

	if fixCode != 0 {
		return run.fail(errors.New(errors.ErrInstallFailed,
			fmt.Sprintf("Install on %s failed (install exited %d, fix-dependencies exited %d)", h.Alias, code, fixCode),
			"Scroll up for the remote output, or use --best-effort to accept this."))
	}

	verify, err := config.RenderCommand("verify", d.opts.Verify, data)
	if err != nil {
		return run.fail(err)
	}
	if verify == "" {
		res.State = StateDone
		return *res
	}
	verifyCode, err := run.exec(ctx, client, verify)
	if err != nil {
		return run.fail(execError(h, "verify", err))
	}
	if verifyCode != 0 {
		return run.fail(errors.New(errors.ErrInstallFailed,
			fmt.Sprintf("%s isn't installed on %s after fixing dependencies", art.Package, h.Alias),
			"Check the fix-dependencies output above."))
	}
	res.Verified = true
	res.State = StateDone
	return *res
}

func (d *Deployer) upload(ctx context.Context, client sshutil.SSHClient, art *artifact.Artifact) (string, error) {
	f, err := d.opts.FS.Open(art.Path)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrArtifactNotFound,
			fmt.Sprintf("Can't open %s", art.Path),
			"Check the artifact still exists.")
	}
	defer f.Close()
	return client.Upload(ctx, f, art.Name, d.opts.RemoteDir)
}

func execError(h host.Spec, step string, err error) error {
	if errors.CodeOf(err) != "" {
		return err
	}
	return errors.WrapWithCode(err, errors.ErrExec,
		fmt.Sprintf("Couldn't run %s on %s", step, h.Alias),
		"The connection may have dropped.")
}
