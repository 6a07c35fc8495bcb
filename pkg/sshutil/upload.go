package sshutil

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/pkg/sftp"
	"github.com/rileyhilliard/debdeploy/internal/errors"
)

// Upload writes content to remoteDir/name over SFTP. remoteDir "~" (or "")
// means the remote user's home directory. Returns the remote path relative to
// the login directory when possible, so it can be passed to later commands
// without tilde expansion.
func (c *Client) Upload(ctx context.Context, content io.Reader, name, remoteDir string) (string, error) {
	sc, err := sftp.NewClient(c.Client)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrTransferFailed,
			fmt.Sprintf("Couldn't start SFTP on %s", c.Host),
			"Make sure the SSH server has the sftp subsystem enabled.")
	}
	defer sc.Close()

	remote, err := uploadFile(ctx, sc, content, name, remoteDir)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrTransferFailed,
			fmt.Sprintf("Upload of %s to %s failed", name, c.Host),
			"Check disk space and permissions in the remote directory.")
	}
	return remote, nil
}

// uploadFile copies content into remoteDir through sc. Cancelling ctx closes
// sc, which aborts a transfer in flight.
func uploadFile(ctx context.Context, sc *sftp.Client, content io.Reader, name, remoteDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = sc.Close()
		case <-done:
		}
	}()

	if dir := RemoteDirPath(remoteDir); dir != "." {
		if err := sc.MkdirAll(dir); err != nil {
			return "", fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	remote := RemoteFilePath(remoteDir, name)
	dst, err := sc.Create(remote)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", remote, err)
	}
	n, err := io.Copy(dst, content)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", fmt.Errorf("wrote %d bytes to %s: %w", n, remote, err)
	}
	if err := sc.Chmod(remote, 0644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", remote, err)
	}
	return remote, nil
}

// RemoteDirPath maps a configured remote directory to an SFTP path. SFTP
// resolves relative paths against the login directory, so "~" becomes ".".
func RemoteDirPath(remoteDir string) string {
	switch {
	case remoteDir == "" || remoteDir == "~" || remoteDir == "~/":
		return "."
	case strings.HasPrefix(remoteDir, "~/"):
		return remoteDir[2:]
	default:
		return remoteDir
	}
}

// RemoteFilePath returns where a file named name lands inside remoteDir.
func RemoteFilePath(remoteDir, name string) string {
	dir := RemoteDirPath(remoteDir)
	if dir == "." {
		return name
	}
	return path.Join(dir, name)
}
