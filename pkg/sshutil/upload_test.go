package sshutil

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMemSFTP connects a client to an in-memory SFTP server.
func newMemSFTP(t *testing.T) *sftp.Client {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go func() { _ = server.Serve() }()
	t.Cleanup(func() { _ = server.Close() })

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func readRemote(t *testing.T, sc *sftp.Client, p string) string {
	t.Helper()
	f, err := sc.Open(p)
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(b)
}

func TestUploadFile(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{dir: "~", want: "foo_1.0_all.deb"},
		{dir: "~/debs", want: "debs/foo_1.0_all.deb"},
		{dir: "/srv/debs", want: "/srv/debs/foo_1.0_all.deb"},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			sc := newMemSFTP(t)
			remote, err := uploadFile(context.Background(), sc, strings.NewReader("deb payload"), "foo_1.0_all.deb", tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, remote)
			assert.Equal(t, "deb payload", readRemote(t, sc, remote))
		})
	}
}

func TestUploadFile_CancelledContext(t *testing.T) {
	sc := newMemSFTP(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := uploadFile(ctx, sc, strings.NewReader("x"), "foo.deb", "~")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRemoteDirAndFilePath(t *testing.T) {
	tests := []struct {
		dir      string
		wantDir  string
		wantPath string
	}{
		{dir: "", wantDir: ".", wantPath: "foo.deb"},
		{dir: "~", wantDir: ".", wantPath: "foo.deb"},
		{dir: "~/", wantDir: ".", wantPath: "foo.deb"},
		{dir: "~/debs", wantDir: "debs", wantPath: "debs/foo.deb"},
		{dir: "/tmp", wantDir: "/tmp", wantPath: "/tmp/foo.deb"},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			assert.Equal(t, tt.wantDir, RemoteDirPath(tt.dir))
			assert.Equal(t, tt.wantPath, RemoteFilePath(tt.dir, "foo.deb"))
		})
	}
}
