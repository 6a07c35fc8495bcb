package build

import (
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rileyhilliard/debdeploy/internal/errors"
)

// Runner runs one toolchain command. A non-zero exit is reported through the
// exit code, not the error; the error means the command couldn't run at all.
type Runner interface {
	Run(ctx context.Context, dir, cmd string, stdout, stderr io.Writer) (exitCode int, err error)
}

// ShellRunner runs commands through $SHELL -c (falling back to /bin/sh) so
// pipes and redirects in configured steps work.
type ShellRunner struct{}

// Run implements Runner.
func (ShellRunner) Run(ctx context.Context, dir, cmd string, stdout, stderr io.Writer) (int, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	command := exec.CommandContext(ctx, shell, "-c", cmd)
	if dir != "" {
		command.Dir = dir
	}
	command.Stdout = stdout
	command.Stderr = stderr
	// Children of the shell can hold the output pipes open after a kill.
	command.WaitDelay = 2 * time.Second

	runErr := command.Run()
	if runErr == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, errors.WrapWithCode(ctx.Err(), errors.ErrExec,
			"Build interrupted",
			"")
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, errors.WrapWithCode(runErr, errors.ErrExec,
		"Couldn't run the command locally",
		"Make sure the command exists and is executable.")
}
