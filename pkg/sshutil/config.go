package sshutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// DefaultConfigPath returns ~/.ssh/config for the invoking user.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), ".ssh", "config")
}

// Config is a decoded SSH client configuration.
type Config struct {
	cfg *ssh_config.Config

	// MatchLine is the 1-indexed line of the first Match directive, 0 if none.
	// Everything from that line on was dropped before decoding.
	MatchLine int
}

// LoadConfigFile reads and decodes an OpenSSH client config file.
// The returned error satisfies os.IsNotExist when the file is missing.
func LoadConfigFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeConfig(bytes.NewReader(content))
}

// DecodeConfig decodes an OpenSSH client config from r.
func DecodeConfig(r io.Reader) (*Config, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// kevinburke/ssh_config doesn't support Match, so only the content before
	// the first Match block is parsed.
	stripped, matchLine := stripMatchBlocks(content)

	cfg, err := ssh_config.Decode(bytes.NewReader(stripped))
	if err != nil {
		return nil, err
	}
	return &Config{cfg: cfg, MatchLine: matchLine}, nil
}

// Get returns the first value for key that applies to alias, honoring Host
// patterns and "Host *" fallbacks. Returns "" when nothing matches.
func (c *Config) Get(alias, key string) string {
	if c == nil || c.cfg == nil {
		return ""
	}
	v, err := c.cfg.Get(alias, key)
	if err != nil {
		return ""
	}
	return v
}

// Aliases returns every concrete (non-wildcard) Host alias in file order.
func (c *Config) Aliases() []string {
	if c == nil || c.cfg == nil {
		return nil
	}

	var aliases []string
	seen := make(map[string]bool)
	for _, host := range c.cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()
			if strings.ContainsAny(alias, "*?!") || seen[alias] {
				continue
			}
			seen[alias] = true
			aliases = append(aliases, alias)
		}
	}
	return aliases
}

// stripMatchBlocks returns content up to the first Match directive and the
// line number where it was found (0 if not found).
func stripMatchBlocks(content []byte) ([]byte, int) {
	lines := strings.Split(string(content), "\n")
	var result []string

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			return []byte(strings.Join(result, "\n")), i + 1
		}
		result = append(result, line)
	}

	return content, 0
}

// HomeDir returns the current user's home directory.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// CurrentUser returns the login name of the invoking user.
func CurrentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

// ExpandPath expands a leading ~/ to the home directory.
func ExpandPath(path string) string {
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}
