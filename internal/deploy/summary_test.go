package deploy

import (
	"bytes"
	"testing"
	"time"

	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/internal/host"
	"github.com/stretchr/testify/assert"
)

func summaryFixture() *Summary {
	return summarize([]HostResult{
		{Host: host.Spec{Alias: "jenkins", User: "root", Hostname: "jenkins.example.org"}, State: StateDone, Duration: 2 * time.Second},
		{Host: host.Spec{Alias: "jenkins-slave1", User: "root", Hostname: "10.0.0.5"}, State: StateDone, Fallback: true, Unverified: true},
		{Host: host.Spec{Alias: "jenkins-slave2", User: "ci", Hostname: "10.0.0.6"}, State: StateFailed,
			Err: errors.New(errors.ErrInstallFailed, "Install on jenkins-slave2 failed", "")},
		{Host: host.Spec{Alias: "jenkins-slave3", User: "ci", Hostname: "10.0.0.7"}, Skipped: true},
	}, 5*time.Second)
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	RenderSummary(&buf, summaryFixture())
	out := buf.String()

	assert.Contains(t, out, "root@jenkins.example.org")
	assert.Contains(t, out, "unverified")
	assert.Contains(t, out, "Install on jenkins-slave2 failed")
	assert.Contains(t, out, "2 done")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "1 skipped")
	assert.Contains(t, out, "debdeploy deploy -H ci@10.0.0.6 -H ci@10.0.0.7")
}

func TestRenderSummary_AllDone(t *testing.T) {
	sum := summarize([]HostResult{
		{Host: host.Spec{Alias: "jenkins", User: "root", Hostname: "jenkins.example.org"}, State: StateDone, Fallback: true, Verified: true},
	}, time.Second)

	var buf bytes.Buffer
	RenderSummary(&buf, sum)

	assert.Contains(t, buf.String(), "dependencies fixed")
	assert.NotContains(t, buf.String(), "Retry")
}

func TestRenderSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	RenderSummary(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestBriefSummary(t *testing.T) {
	assert.Equal(t, "No results", BriefSummary(nil))
	assert.Equal(t, "2 done, 1 failed, 1 skipped of 4 hosts (5.0s)", BriefSummary(summaryFixture()))

	ok := summarize([]HostResult{{State: StateDone}}, 1500*time.Millisecond)
	assert.Equal(t, "1/1 host deployed (1.5s)", BriefSummary(ok))
}
