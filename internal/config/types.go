package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .debdeploy.yaml configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Project is the package name prefix used to find the built artifact.
	Project string `yaml:"project" mapstructure:"project"`

	// Hosts are logical names resolved through the SSH config, in deploy order.
	Hosts []string `yaml:"hosts" mapstructure:"hosts"`

	Build  BuildConfig  `yaml:"build" mapstructure:"build"`
	SSH    SSHConfig    `yaml:"ssh" mapstructure:"ssh"`
	Deploy DeployConfig `yaml:"deploy" mapstructure:"deploy"`
}

// BuildConfig describes the local packaging toolchain.
type BuildConfig struct {
	// SourceDir is the package source tree (the directory holding debian/).
	SourceDir string `yaml:"source_dir" mapstructure:"source_dir"`

	// OutputDir is where the toolchain drops the artifact, relative to SourceDir.
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`

	// Extension of the artifact file, without the dot.
	Extension string `yaml:"extension" mapstructure:"extension"`

	// Wrapper prefixes every toolchain command (fakeroot by default) so the
	// build can record root ownership without real privilege.
	Wrapper string `yaml:"wrapper" mapstructure:"wrapper"`

	Clean  string `yaml:"clean" mapstructure:"clean"`
	Binary string `yaml:"binary" mapstructure:"binary"`
}

// SSHConfig controls host resolution and connections.
type SSHConfig struct {
	// Config is the OpenSSH client config used to resolve Hosts.
	Config string `yaml:"config" mapstructure:"config"`

	// DefaultUser applies to hosts without a User directive. Empty means $USER.
	DefaultUser string `yaml:"default_user" mapstructure:"default_user"`

	ConnectTimeout        time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	StrictHostKeyChecking bool          `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`
}

// DeployConfig controls the per-host upload and install sequence.
type DeployConfig struct {
	// RemoteDir receives the uploaded artifact. "~" is the login directory.
	RemoteDir string `yaml:"remote_dir" mapstructure:"remote_dir"`

	// Install, FixDependencies and Verify are text/template strings.
	// See CommandData for the available fields.
	Install         string `yaml:"install" mapstructure:"install"`
	FixDependencies string `yaml:"fix_dependencies" mapstructure:"fix_dependencies"`
	Verify          string `yaml:"verify" mapstructure:"verify"`

	// BestEffort reports a host as done after the fallback regardless of its
	// exit status, without verification.
	BestEffort bool `yaml:"best_effort" mapstructure:"best_effort"`

	// Parallel is the number of hosts deployed at once. 1 is sequential.
	Parallel int `yaml:"parallel" mapstructure:"parallel"`

	// Timeout bounds the whole sequence for one host (0 = no timeout).
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// FailFast stops starting new hosts after the first failure.
	FailFast bool `yaml:"fail_fast" mapstructure:"fail_fast"`
}

// DefaultHosts are the Jenkins build machines the package is rolled out to.
var DefaultHosts = []string{
	"jenkins",
	"jenkins-slave1",
	"jenkins-slave2",
	"jenkins-slave3",
	"jenkins-slave4",
	"jenkins-slave5",
	"jenkins-slave6",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Project: "jenkins-debian-glue",
		Hosts:   append([]string(nil), DefaultHosts...),
		Build: BuildConfig{
			SourceDir: ".",
			OutputDir: "..",
			Extension: "deb",
			Wrapper:   "fakeroot",
			Clean:     "debian/rules clean",
			Binary:    "debian/rules binary",
		},
		SSH: SSHConfig{
			Config:                "~/.ssh/config",
			ConnectTimeout:        10 * time.Second,
			StrictHostKeyChecking: true,
		},
		Deploy: DeployConfig{
			RemoteDir:       "~",
			Install:         "dpkg -i {{.Artifact}}",
			FixDependencies: "apt-get -f install -y",
			Verify:          "dpkg-query -W -f='${Status}' {{.Package}} | grep -q 'install ok installed'",
			Parallel:        1,
			Timeout:         10 * time.Minute,
		},
	}
}

// ArtifactPattern returns the glob matching the built package, e.g.
// jenkins-debian-glue*_all.deb.
func (c *Config) ArtifactPattern() string {
	return c.Project + "*_all." + c.Build.Extension
}
