// Package build runs the local packaging toolchain and hands back the artifact.
package build

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/debdeploy/internal/artifact"
	"github.com/rileyhilliard/debdeploy/internal/config"
	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/internal/logger"
	"github.com/spf13/afero"
)

// Step names, in execution order.
const (
	StepRemove = "remove old packages"
	StepClean  = "clean"
	StepBinary = "binary"
	StepSelect = "select artifact"
)

// Step is one unit of the build sequence.
type Step struct {
	Name string
	// Command is the shell command for toolchain steps, empty otherwise.
	Command string
}

// Observer is told about step progress. Either method may be called from the
// goroutine running Build.
type Observer interface {
	StepStarted(step Step)
	StepFinished(step Step, d time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) StepStarted(Step) {}
func (noopObserver) StepFinished(Step, time.Duration, error) {}

// Result is the outcome of a build.
type Result struct {
	Artifact *artifact.Artifact `json:"artifact"`
	Removed  []string           `json:"removed,omitempty"`
	Duration time.Duration      `json:"duration"`
}

// Options configure a Builder.
type Options struct {
	FS       afero.Fs
	Runner   Runner
	Observer Observer
	Log      logger.Logger
	// Stdout and Stderr receive the toolchain's output unchanged.
	Stdout io.Writer
	Stderr io.Writer
}

// Builder runs the build sequence at most once. Later calls to Build return
// the first call's result.
type Builder struct {
	sourceDir string
	outputDir string
	pattern   string
	steps     []Step

	fs       afero.Fs
	runner   Runner
	observer Observer
	log      logger.Logger
	stdout   io.Writer
	stderr   io.Writer

	once   sync.Once
	result *Result
	err    error
}

// New creates a Builder for cfg.
func New(cfg *config.Config, opts Options) *Builder {
	b := &Builder{
		sourceDir: cfg.Build.SourceDir,
		outputDir: cfg.ArtifactDir(),
		pattern:   cfg.ArtifactPattern(),
		fs:        opts.FS,
		runner:    opts.Runner,
		observer:  opts.Observer,
		log:       opts.Log,
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
	}
	if b.fs == nil {
		b.fs = afero.NewOsFs()
	}
	if b.runner == nil {
		b.runner = ShellRunner{}
	}
	if b.observer == nil {
		b.observer = noopObserver{}
	}
	if b.log == nil {
		b.log = logger.Noop()
	}
	if b.stdout == nil {
		b.stdout = io.Discard
	}
	if b.stderr == nil {
		b.stderr = io.Discard
	}

	// Clean runs on both sides of binary.
	b.steps = append(b.steps, Step{Name: StepRemove})
	if cfg.Build.Clean != "" {
		b.steps = append(b.steps, Step{Name: StepClean, Command: wrap(cfg.Build.Wrapper, cfg.Build.Clean)})
	}
	b.steps = append(b.steps, Step{Name: StepBinary, Command: wrap(cfg.Build.Wrapper, cfg.Build.Binary)})
	if cfg.Build.Clean != "" {
		b.steps = append(b.steps, Step{Name: StepClean, Command: wrap(cfg.Build.Wrapper, cfg.Build.Clean)})
	}
	b.steps = append(b.steps, Step{Name: StepSelect})
	return b
}

// Steps returns the planned sequence.
func (b *Builder) Steps() []Step {
	return append([]Step(nil), b.steps...)
}

// OutputDir is where the artifact is looked up.
func (b *Builder) OutputDir() string { return b.outputDir }

// Pattern is the glob the artifact must match.
func (b *Builder) Pattern() string { return b.pattern }

// Build runs the sequence once. Any failing step aborts the rest.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	b.once.Do(func() {
		b.result, b.err = b.run(ctx)
	})
	return b.result, b.err
}

func (b *Builder) run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}

	for _, step := range b.steps {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrBuildStepFailed,
				fmt.Sprintf("Build cancelled before %s", step.Name), "")
		}

		b.observer.StepStarted(step)
		stepStart := time.Now()
		err := b.runStep(ctx, step, res)
		b.observer.StepFinished(step, time.Since(stepStart), err)
		if err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	b.log.Info("built %s in %s", res.Artifact.Name, res.Duration.Round(time.Millisecond))
	return res, nil
}

func (b *Builder) runStep(ctx context.Context, step Step, res *Result) error {
	switch step.Name {
	case StepRemove:
		removed, err := artifact.Remove(b.fs, b.outputDir, removalPattern(b.pattern))
		for _, r := range removed {
			b.log.Debug("removed %s", r)
		}
		res.Removed = removed
		return err

	case StepSelect:
		a, err := artifact.Find(b.fs, b.outputDir, b.pattern)
		if err != nil {
			return err
		}
		res.Artifact = a
		return nil
	}

	b.log.Debug("running %q in %s", step.Command, b.sourceDir)
	code, err := b.runner.Run(ctx, b.sourceDir, step.Command, b.stdout, b.stderr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrBuildStepFailed,
			fmt.Sprintf("Build step '%s' couldn't run", step.Name),
			"Check that the packaging tools are installed (fakeroot, debhelper).")
	}
	if code != 0 {
		return errors.New(errors.ErrBuildStepFailed,
			fmt.Sprintf("Build step '%s' failed: %s exited with %d", step.Name, step.Command, code),
			"Scroll up for the toolchain output.")
	}
	return nil
}

func wrap(wrapper, cmd string) string {
	if strings.TrimSpace(wrapper) == "" {
		return cmd
	}
	return wrapper + " " + cmd
}

// removalPattern turns foo*_all.deb into foo*all.deb.
func removalPattern(pattern string) string {
	return strings.Replace(pattern, "*_all.", "*all.", 1)
}
