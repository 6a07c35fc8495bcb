package sshutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
Host jenkins
    HostName jenkins.example.org
    User root

Host jenkins-slave1
    HostName 10.0.0.5
    User ci

Host jenkins-slave*
    Port 2222

Host *
    User deploy
    ServerAliveInterval 60
`

func TestDecodeConfig_Get(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "jenkins.example.org", cfg.Get("jenkins", "HostName"))
	assert.Equal(t, "root", cfg.Get("jenkins", "User"))

	assert.Equal(t, "10.0.0.5", cfg.Get("jenkins-slave1", "HostName"))
	assert.Equal(t, "ci", cfg.Get("jenkins-slave1", "User"))
	assert.Equal(t, "2222", cfg.Get("jenkins-slave1", "Port"))

	// Only the wildcard blocks apply
	assert.Equal(t, "", cfg.Get("jenkins-slave2", "HostName"))
	assert.Equal(t, "deploy", cfg.Get("jenkins-slave2", "User"))
	assert.Equal(t, "2222", cfg.Get("jenkins-slave2", "Port"))
}

func TestDecodeConfig_Aliases(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"jenkins", "jenkins-slave1"}, cfg.Aliases())
}

func TestDecodeConfig_MatchBlockIsDropped(t *testing.T) {
	content := `Host early
    HostName early.example.com

Match host late
    User nobody

Host late
    HostName late.example.com
`
	cfg, err := DecodeConfig(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MatchLine)
	assert.Equal(t, "early.example.com", cfg.Get("early", "HostName"))
	assert.Equal(t, "", cfg.Get("late", "HostName"))
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MatchLine)
	assert.Equal(t, "ci", cfg.Get("jenkins-slave1", "User"))
}

func TestLoadConfigFile_NotExists(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestNilConfig(t *testing.T) {
	var cfg *Config
	assert.Equal(t, "", cfg.Get("any", "HostName"))
	assert.Nil(t, cfg.Aliases())
}

func TestExpandPath(t *testing.T) {
	home := HomeDir()

	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, ".ssh", "id_ed25519"), ExpandPath("~/.ssh/id_ed25519"))
	assert.Equal(t, "/etc/ssh/key", ExpandPath("/etc/ssh/key"))
}
