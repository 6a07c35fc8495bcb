package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrConfigNotFound,
		ErrHostUnresolved,
		ErrBuildStepFailed,
		ErrArtifactNotFound,
		ErrArtifactAmbiguous,
		ErrSSH,
		ErrTransferFailed,
		ErrInstallFailed,
		ErrExec,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config not found",
			code:       ErrConfigNotFound,
			message:    "SSH config not found at /home/ci/.ssh/config",
			suggestion: "Create it or pass --ssh-config",
		},
		{
			name:       "build step",
			code:       ErrBuildStepFailed,
			message:    "Build step 'binary' exited with code 2",
			suggestion: "Check the debian/rules output above",
		},
		{
			name:       "install",
			code:       ErrInstallFailed,
			message:    "Install failed on jenkins-slave1",
			suggestion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := WrapWithCode(
		errors.New("dial tcp 10.0.0.5:22: i/o timeout"),
		ErrSSH,
		"Can't reach 'jenkins-slave1'",
		"Make sure the host is reachable",
	)

	output := err.Error()
	lines := strings.Split(output, "\n")

	assert.True(t, strings.HasPrefix(lines[0], "✗"))
	assert.Contains(t, lines[0], "Can't reach 'jenkins-slave1'")
	assert.Contains(t, output, "i/o timeout")
	assert.Contains(t, output, "Make sure the host is reachable")
}

func TestErrorWithoutSuggestion(t *testing.T) {
	err := New(ErrExec, "Command failed", "")
	assert.Equal(t, "✗ Command failed\n", err.Error())
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying network error")
	wrapped := Wrap(cause, "SSH connection failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrSSH, wrapped.Code, "Wrap should default to ErrSSH code")
	assert.Equal(t, cause, wrapped.Cause)
	assert.True(t, errors.Is(wrapped, cause))
}

func TestErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(ErrHostUnresolved, "no HostName", ""))

	var dErr *Error
	require.True(t, errors.As(wrapped, &dErr))
	assert.Equal(t, ErrHostUnresolved, dErr.Code)
}

func TestIsCode(t *testing.T) {
	err := New(ErrConfig, "Config error", "")

	assert.True(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(err, ErrSSH))
	assert.False(t, IsCode(errors.New("standard error"), ErrConfig))
	assert.False(t, IsCode(nil, ErrConfig))
}

func TestIsCode_NestedCause(t *testing.T) {
	inner := New(ErrTransferFailed, "upload failed", "")
	outer := WrapWithCode(inner, ErrSSH, "jenkins: deploy failed", "")

	assert.True(t, IsCode(outer, ErrSSH))
	assert.True(t, IsCode(outer, ErrTransferFailed))
	assert.False(t, IsCode(outer, ErrInstallFailed))
}

func TestIsCode_Multierror(t *testing.T) {
	var merr *multierror.Error
	merr = multierror.Append(merr, New(ErrTransferFailed, "a", ""))
	merr = multierror.Append(merr, New(ErrInstallFailed, "b", ""))

	assert.True(t, IsCode(merr.ErrorOrNil(), ErrTransferFailed))
	assert.True(t, IsCode(merr.ErrorOrNil(), ErrInstallFailed))
	assert.False(t, IsCode(merr.ErrorOrNil(), ErrBuildStepFailed))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrArtifactAmbiguous, CodeOf(New(ErrArtifactAmbiguous, "x", "")))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}
