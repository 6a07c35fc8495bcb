package deploy

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rileyhilliard/debdeploy/internal/artifact"
	"github.com/rileyhilliard/debdeploy/internal/config"
	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/internal/host"
	"github.com/rileyhilliard/debdeploy/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/debdeploy/pkg/sshutil/testing"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fleet hands out one MockClient per alias and counts dials.
type fleet struct {
	mu      sync.Mutex
	clients map[string]*sshtesting.MockClient
	setup   func(alias string, c *sshtesting.MockClient)
	dialErr map[string]error
	dials   atomic.Int32
}

func newFleet(setup func(alias string, c *sshtesting.MockClient)) *fleet {
	return &fleet{
		clients: make(map[string]*sshtesting.MockClient),
		setup:   setup,
		dialErr: make(map[string]error),
	}
}

func (f *fleet) Dial(ctx context.Context, h host.Spec) (sshutil.SSHClient, error) {
	f.dials.Add(1)
	if err := f.dialErr[h.Alias]; err != nil {
		return nil, err
	}
	c := sshtesting.NewMockClient(h.Alias)
	if f.setup != nil {
		f.setup(h.Alias, c)
	}
	f.mu.Lock()
	f.clients[h.Alias] = c
	f.mu.Unlock()
	return c, nil
}

func (f *fleet) client(alias string) *sshtesting.MockClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[alias]
}

func testHosts(n int) host.List {
	aliases := []string{"jenkins", "jenkins-slave1", "jenkins-slave2", "jenkins-slave3",
		"jenkins-slave4", "jenkins-slave5", "jenkins-slave6"}
	var l host.List
	for i := 0; i < n; i++ {
		l = append(l, host.Spec{Alias: aliases[i], User: "root", Hostname: aliases[i] + ".example.org"})
	}
	return l
}

func testArtifact(t *testing.T) *artifact.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jenkins-debian-glue_0.22.0_all.deb")
	require.NoError(t, os.WriteFile(path, []byte("!<arch>\ndebian-binary"), 0644))
	return &artifact.Artifact{
		Path:    path,
		Name:    filepath.Base(path),
		Package: "jenkins-debian-glue",
		Size:    21,
	}
}

func testOptions(dialer Dialer) Options {
	opts := OptionsFromConfig(config.DefaultConfig())
	opts.Dialer = dialer
	return opts
}

func TestDeploy_SevenHosts(t *testing.T) {
	f := newFleet(nil)
	art := testArtifact(t)
	hosts := testHosts(7)

	sum, err := New(testOptions(f)).Deploy(context.Background(), hosts, art)
	require.NoError(t, err)
	require.Len(t, sum.Results, 7)
	assert.Equal(t, 7, sum.Done)
	assert.True(t, sum.Success())
	assert.Equal(t, int32(7), f.dials.Load())

	for i, res := range sum.Results {
		assert.Equal(t, hosts[i], res.Host, "results keep host order")
		assert.Equal(t, StateDone, res.State)
		assert.False(t, res.Fallback)

		c := f.client(res.Host.Alias)
		require.NotNil(t, c)
		uploads := c.Uploads()
		require.Contains(t, uploads, art.Name)
		assert.Equal(t, "!<arch>\ndebian-binary", string(uploads[art.Name]))
		assert.Equal(t, []string{"dpkg -i jenkins-debian-glue_0.22.0_all.deb"}, c.Commands())
		assert.True(t, c.Closed())
	}
}

func TestDeploy_ReadsArtifactFromFS(t *testing.T) {
	fs := afero.NewMemMapFs()
	art := &artifact.Artifact{
		Path:    "/build/jenkins-debian-glue_0.22.0_all.deb",
		Name:    "jenkins-debian-glue_0.22.0_all.deb",
		Package: "jenkins-debian-glue",
	}
	require.NoError(t, afero.WriteFile(fs, art.Path, []byte("from memory"), 0644))

	f := newFleet(nil)
	opts := testOptions(f)
	opts.FS = fs

	sum, err := New(opts).Deploy(context.Background(), testHosts(2), art)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Done)
	assert.Equal(t, map[string][]byte{art.Name: []byte("from memory")}, f.client("jenkins-slave1").Uploads())

	_, err = New(testOptions(f)).Deploy(context.Background(), testHosts(1), art)
	require.Error(t, err, "the OS filesystem doesn't have the package")
	assert.True(t, errors.IsCode(err, errors.ErrArtifactNotFound))
}

func TestDeploy_ZeroHosts(t *testing.T) {
	f := newFleet(nil)
	sum, err := New(testOptions(f)).Deploy(context.Background(), nil, testArtifact(t))
	require.NoError(t, err)
	assert.Empty(t, sum.Results)
	assert.True(t, sum.Success())
	assert.Zero(t, f.dials.Load())
}

func TestDeploy_Fallback(t *testing.T) {
	tests := []struct {
		name       string
		bestEffort bool
		fixExit    int
		verifyExit int
		wantState  State
		wantCmds   int
		verified   bool
		unverified bool
	}{
		{name: "fix and verify pass", wantState: StateDone, wantCmds: 3, verified: true},
		{name: "fix fails", fixExit: 100, wantState: StateFailed, wantCmds: 2},
		{name: "verify fails", verifyExit: 1, wantState: StateFailed, wantCmds: 3},
		{name: "best effort with failing fix", bestEffort: true, fixExit: 100, wantState: StateDone, wantCmds: 2, unverified: true},
		{name: "best effort with passing fix", bestEffort: true, wantState: StateDone, wantCmds: 2, unverified: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFleet(func(_ string, c *sshtesting.MockClient) {
				c.SetCommandResponse(`^dpkg -i `, sshtesting.CommandResponse{
					Stderr:   []byte("dpkg: dependency problems prevent configuration\n"),
					ExitCode: 1,
				})
				c.SetCommandResponse(`^apt-get -f install`, sshtesting.CommandResponse{ExitCode: tt.fixExit})
				c.SetCommandResponse(`^dpkg-query`, sshtesting.CommandResponse{ExitCode: tt.verifyExit})
			})
			opts := testOptions(f)
			opts.BestEffort = tt.bestEffort

			sum, err := New(opts).Deploy(context.Background(), testHosts(1), testArtifact(t))
			res := sum.Results[0]

			assert.Equal(t, tt.wantState, res.State)
			assert.True(t, res.Fallback)
			assert.Equal(t, 1, res.InstallExit)
			assert.Equal(t, tt.fixExit, res.FixExit)
			assert.Equal(t, tt.verified, res.Verified)
			assert.Equal(t, tt.unverified, res.Unverified)
			assert.Len(t, f.client("jenkins").Commands(), tt.wantCmds)

			if tt.wantState == StateFailed {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrInstallFailed))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeploy_FallbackCommands(t *testing.T) {
	f := newFleet(func(_ string, c *sshtesting.MockClient) {
		c.SetCommandResponse(`^dpkg -i `, sshtesting.CommandResponse{ExitCode: 1})
	})

	_, err := New(testOptions(f)).Deploy(context.Background(), testHosts(1), testArtifact(t))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"dpkg -i jenkins-debian-glue_0.22.0_all.deb",
		"apt-get -f install -y",
		"dpkg-query -W -f='${Status}' jenkins-debian-glue | grep -q 'install ok installed'",
	}, f.client("jenkins").Commands())
}

func TestDeploy_NoFixCommand(t *testing.T) {
	f := newFleet(func(_ string, c *sshtesting.MockClient) {
		c.SetCommandResponse(`^dpkg -i `, sshtesting.CommandResponse{ExitCode: 2})
	})
	opts := testOptions(f)
	opts.FixDependencies = ""

	sum, err := New(opts).Deploy(context.Background(), testHosts(1), testArtifact(t))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInstallFailed))
	assert.Equal(t, StateFailed, sum.Results[0].State)
}

func TestDeploy_QuotesRemotePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd name_1.0_all.deb")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	art := &artifact.Artifact{Path: path, Name: filepath.Base(path), Package: "odd name"}

	f := newFleet(nil)
	opts := testOptions(f)
	opts.RemoteDir = "/tmp/debs"

	_, err := New(opts).Deploy(context.Background(), testHosts(1), art)
	require.NoError(t, err)
	assert.Equal(t, []string{"dpkg -i '/tmp/debs/odd name_1.0_all.deb'"}, f.client("jenkins").Commands())
}

func TestDeploy_FailuresAreIsolated(t *testing.T) {
	f := newFleet(func(alias string, c *sshtesting.MockClient) {
		if alias == "jenkins-slave3" {
			c.UploadErr = stderrors.New("disk full")
		}
	})
	f.dialErr["jenkins-slave1"] = errors.New(errors.ErrSSH, "Can't reach 'jenkins-slave1'", "")

	opts := testOptions(f)
	opts.Parallel = 3

	sum, err := New(opts).Deploy(context.Background(), testHosts(7), testArtifact(t))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.True(t, errors.IsCode(err, errors.ErrTransferFailed))

	assert.Equal(t, 5, sum.Done)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, int32(7), f.dials.Load(), "every host is attempted")
	assert.Equal(t, StateFailed, sum.Results[1].State)
	assert.Equal(t, StateFailed, sum.Results[3].State)
	assert.Contains(t, sum.Results[3].Err.Error(), "disk full")
}

func TestDeploy_FailFast(t *testing.T) {
	f := newFleet(func(alias string, c *sshtesting.MockClient) {
		if alias == "jenkins-slave1" {
			c.SetCommandResponse(`.*`, sshtesting.CommandResponse{ExitCode: 1})
		}
	})
	opts := testOptions(f)
	opts.FailFast = true

	sum, err := New(opts).Deploy(context.Background(), testHosts(7), testArtifact(t))
	require.Error(t, err)

	assert.Equal(t, 1, sum.Done)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 5, sum.Skipped)
	assert.Equal(t, int32(2), f.dials.Load())
	for _, res := range sum.Results[2:] {
		assert.True(t, res.Skipped, res.Host.Alias)
		assert.Equal(t, StatePending, res.State)
	}
}

func TestDeploy_ParallelLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	inner := newFleet(nil)
	dialer := DialerFunc(func(ctx context.Context, h host.Spec) (sshutil.SSHClient, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return inner.Dial(ctx, h)
	})

	opts := testOptions(dialer)
	opts.Parallel = 2

	sum, err := New(opts).Deploy(context.Background(), testHosts(7), testArtifact(t))
	require.NoError(t, err)
	assert.Equal(t, 7, sum.Done)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDeploy_SequentialAndParallelAgree(t *testing.T) {
	setup := func(alias string, c *sshtesting.MockClient) {
		if strings.HasSuffix(alias, "2") || strings.HasSuffix(alias, "5") {
			c.SetCommandResponse(`.*`, sshtesting.CommandResponse{ExitCode: 1})
		}
	}

	states := func(parallel int) []State {
		opts := testOptions(newFleet(setup))
		opts.Parallel = parallel
		sum, _ := New(opts).Deploy(context.Background(), testHosts(7), testArtifact(t))
		var out []State
		for _, r := range sum.Results {
			out = append(out, r.State)
		}
		return out
	}

	seq := states(1)
	assert.Equal(t, StateFailed, seq[3])
	assert.Equal(t, seq, states(7))
}

func TestDeploy_Timeout(t *testing.T) {
	dialer := DialerFunc(func(ctx context.Context, h host.Spec) (sshutil.SSHClient, error) {
		<-ctx.Done()
		return nil, errors.WrapWithCode(ctx.Err(), errors.ErrSSH, "Can't reach '"+h.Alias+"'", "")
	})
	opts := testOptions(dialer)
	opts.Timeout = 20 * time.Millisecond

	sum, err := New(opts).Deploy(context.Background(), testHosts(2), testArtifact(t))
	require.Error(t, err)
	assert.Equal(t, 2, sum.Failed)
	assert.Contains(t, sum.Results[0].Err.Error(), "timed out after 20ms")
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
}

func TestDeploy_ArtifactProblemsFailBeforeDialing(t *testing.T) {
	missing := &artifact.Artifact{Path: filepath.Join(t.TempDir(), "gone_1.0_all.deb"), Name: "gone_1.0_all.deb"}

	tests := []struct {
		name string
		art  *artifact.Artifact
	}{
		{name: "nil artifact"},
		{name: "missing file", art: missing},
		{name: "directory", art: &artifact.Artifact{Path: t.TempDir()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFleet(nil)
			sum, err := New(testOptions(f)).Deploy(context.Background(), testHosts(7), tt.art)
			require.Error(t, err)
			assert.Nil(t, sum)
			assert.True(t, errors.IsCode(err, errors.ErrArtifactNotFound))
			assert.Zero(t, f.dials.Load())
		})
	}
}

func TestDeploy_BadTemplateFailsBeforeDialing(t *testing.T) {
	f := newFleet(nil)
	opts := testOptions(f)
	opts.Verify = "dpkg -s {{.Pkg}}"

	_, err := New(opts).Deploy(context.Background(), testHosts(3), testArtifact(t))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Zero(t, f.dials.Load())
}

func TestDeploy_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFleet(nil)
	sum, err := New(testOptions(f)).Deploy(ctx, testHosts(3), testArtifact(t))
	require.Error(t, err)
	assert.Equal(t, 3, sum.Skipped)
	assert.Zero(t, f.dials.Load())
}

func TestDeploy_StreamOutputIsAttributed(t *testing.T) {
	f := newFleet(func(alias string, c *sshtesting.MockClient) {
		c.SetCommandResponse(`^dpkg -i `, sshtesting.CommandResponse{
			Stdout: []byte("Selecting previously unselected package.\nUnpacking " + alias + "\n"),
			Stderr: []byte("warning: partial"),
		})
	})

	var buf bytes.Buffer
	opts := testOptions(f)
	opts.Reporter = NewStreamReporter(&buf)
	opts.Parallel = 7

	_, err := New(opts).Deploy(context.Background(), testHosts(7), testArtifact(t))
	require.NoError(t, err)

	for _, h := range testHosts(7) {
		prefix := "[" + h.Alias + "]"
		assert.Regexp(t, `(?m)^`+regexp.QuoteMeta(prefix)+` +Unpacking `+h.Alias+`$`, buf.String())
		assert.Regexp(t, `(?m)^`+regexp.QuoteMeta(prefix)+` +warning: partial$`, buf.String())
		assert.Regexp(t, `(?m)^`+regexp.QuoteMeta(prefix)+` +uploading to root@`+h.Alias, buf.String())
	}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.True(t, strings.HasPrefix(line, "["), "unattributed line: %q", line)
	}
}

type recordingReporter struct {
	mu       sync.Mutex
	planned  int
	states   map[string][]State
	finished []string
	summary  *Summary
}

func (r *recordingReporter) HostsPlanned(hosts host.List) { r.planned = len(hosts) }
func (r *recordingReporter) StateChanged(h host.Spec, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states == nil {
		r.states = make(map[string][]State)
	}
	r.states[h.Alias] = append(r.states[h.Alias], s)
}
func (r *recordingReporter) Output(string, []byte, bool) {}
func (r *recordingReporter) HostFinished(res HostResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res.Host.Alias)
}
func (r *recordingReporter) Finished(sum *Summary) { r.summary = sum }

func TestDeploy_StateTransitions(t *testing.T) {
	f := newFleet(func(alias string, c *sshtesting.MockClient) {
		if alias == "jenkins-slave1" {
			c.SetCommandResponse(`^dpkg -i `, sshtesting.CommandResponse{ExitCode: 1})
		}
	})
	rep := &recordingReporter{}
	opts := testOptions(f)
	opts.Reporter = rep

	sum, err := New(opts).Deploy(context.Background(), testHosts(2), testArtifact(t))
	require.NoError(t, err)

	assert.Equal(t, 2, rep.planned)
	assert.Equal(t, []State{StateUploading, StateInstalling}, rep.states["jenkins"])
	assert.Equal(t, []State{StateUploading, StateInstalling, StateFixing}, rep.states["jenkins-slave1"])
	assert.ElementsMatch(t, []string{"jenkins", "jenkins-slave1"}, rep.finished)
	assert.Same(t, sum, rep.summary)
}

func TestLineWriter(t *testing.T) {
	var lines []string
	w := newLineWriter(func(line []byte) { lines = append(lines, string(line)) })

	_, _ = w.Write([]byte("one\ntw"))
	_, _ = w.Write([]byte("o\r\nthree"))
	assert.Equal(t, []string{"one", "two"}, lines)

	w.Flush()
	assert.Equal(t, []string{"one", "two", "three"}, lines)

	w.Flush()
	assert.Len(t, lines, 3)
}

func TestHeadline(t *testing.T) {
	assert.Equal(t, "", Headline(nil))
	assert.Equal(t, "Upload failed", Headline(errors.WrapWithCode(stderrors.New("eof"), errors.ErrTransferFailed, "Upload failed", "retry")))
	assert.Equal(t, "first", Headline(stderrors.New("first\nsecond")))
}

func TestParseOutputMode(t *testing.T) {
	for _, s := range []string{"progress", "stream", "quiet"} {
		m, ok := ParseOutputMode(s)
		assert.True(t, ok)
		assert.Equal(t, OutputMode(s), m)
	}
	_, ok := ParseOutputMode("verbose")
	assert.False(t, ok)
}
