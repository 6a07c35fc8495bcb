package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".debdeploy.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/debdeploy"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix namespaces environment overrides, e.g. DEBDEPLOY_DEPLOY_PARALLEL=4.
	EnvPrefix = "DEBDEPLOY"
)

// Load reads config from the specified path.
// Relative build directories are resolved against the config file's
// directory, except for the global config, whose build directories are
// relative to the working directory.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'debdeploy init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	cfg, err := parseConfig(v, path)
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.Build.SourceDir) {
		base := filepath.Dir(path)
		if IsGlobal(path) {
			if base, err = os.Getwd(); err != nil {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Cannot determine current directory",
					"Check directory permissions")
			}
		}
		cfg.Build.SourceDir = filepath.Join(base, cfg.Build.SourceDir)
	}
	return cfg, nil
}

// IsGlobal reports whether path is the per-user config in ~/.config.
func IsGlobal(path string) bool {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .debdeploy.yaml in current directory
// 3. .debdeploy.yaml in parent directories (stops at git root or home)
// 4. ~/.config/debdeploy/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for !isGitRoot(dir) {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if home != "" && parent == home {
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults
// (with environment overrides applied) if no file exists.
// The second return value is the path that was loaded, or "".
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "environment")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// newViper creates a viper instance with defaults and env overrides wired up.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can override it and
// Unmarshal sees a value even when the file omits it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("version", d.Version)
	v.SetDefault("project", d.Project)
	v.SetDefault("hosts", d.Hosts)

	v.SetDefault("build.source_dir", d.Build.SourceDir)
	v.SetDefault("build.output_dir", d.Build.OutputDir)
	v.SetDefault("build.extension", d.Build.Extension)
	v.SetDefault("build.wrapper", d.Build.Wrapper)
	v.SetDefault("build.clean", d.Build.Clean)
	v.SetDefault("build.binary", d.Build.Binary)

	v.SetDefault("ssh.config", d.SSH.Config)
	v.SetDefault("ssh.default_user", d.SSH.DefaultUser)
	v.SetDefault("ssh.connect_timeout", d.SSH.ConnectTimeout)
	v.SetDefault("ssh.strict_host_key_checking", d.SSH.StrictHostKeyChecking)

	v.SetDefault("deploy.remote_dir", d.Deploy.RemoteDir)
	v.SetDefault("deploy.install", d.Deploy.Install)
	v.SetDefault("deploy.fix_dependencies", d.Deploy.FixDependencies)
	v.SetDefault("deploy.verify", d.Deploy.Verify)
	v.SetDefault("deploy.best_effort", d.Deploy.BestEffort)
	v.SetDefault("deploy.parallel", d.Deploy.Parallel)
	v.SetDefault("deploy.timeout", d.Deploy.Timeout)
	v.SetDefault("deploy.fail_fast", d.Deploy.FailFast)
}

// parseConfig converts viper config to our Config struct.
func parseConfig(v *viper.Viper, source string) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+source)
	}
	return cfg, nil
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ArtifactDir returns the absolute directory the artifact is written to.
func (c *Config) ArtifactDir() string {
	dir := c.Build.OutputDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.Build.SourceDir, dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
