package config

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/debdeploy/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but debdeploy only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade debdeploy.")
	}

	if strings.TrimSpace(cfg.Project) == "" {
		return errors.New(errors.ErrConfig,
			"'project' is empty",
			"Set it to the package name, e.g. project: jenkins-debian-glue")
	}
	if strings.ContainsAny(cfg.Project, "/*?[") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("'project' can't contain path separators or glob characters: %q", cfg.Project),
			"Use the bare package name.")
	}

	if err := validateBuild(cfg.Build); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'build' section in your .debdeploy.yaml.")
	}

	if cfg.SSH.ConnectTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"ssh.connect_timeout can't be negative",
			"Use a duration like 10s.")
	}

	if err := validateDeploy(cfg.Deploy); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'deploy' section in your .debdeploy.yaml.")
	}

	seen := make(map[string]bool)
	for _, h := range cfg.Hosts {
		if strings.TrimSpace(h) == "" {
			return errors.New(errors.ErrConfig, "'hosts' has an empty entry", "Remove the blank line from the hosts list.")
		}
		if seen[h] {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' is listed twice", h),
				"Each host is deployed once; drop the duplicate.")
		}
		seen[h] = true
	}

	return nil
}

func validateBuild(b BuildConfig) error {
	if strings.TrimSpace(b.Extension) == "" {
		return fmt.Errorf("build.extension is empty")
	}
	if strings.ContainsAny(b.Extension, "./*") {
		return fmt.Errorf("build.extension should be a bare extension like 'deb', got %q", b.Extension)
	}
	if strings.TrimSpace(b.Binary) == "" {
		return fmt.Errorf("build.binary is empty")
	}
	return nil
}

func validateDeploy(d DeployConfig) error {
	if d.Parallel < 1 {
		return fmt.Errorf("deploy.parallel must be at least 1, got %d", d.Parallel)
	}
	if d.Timeout < 0 {
		return fmt.Errorf("deploy.timeout can't be negative")
	}
	if strings.TrimSpace(d.Install) == "" {
		return fmt.Errorf("deploy.install is empty")
	}

	templates := map[string]string{
		"deploy.install":          d.Install,
		"deploy.fix_dependencies": d.FixDependencies,
		"deploy.verify":           d.Verify,
	}
	for name, tmpl := range templates {
		if _, err := parseCommand(name, tmpl); err != nil {
			return fmt.Errorf("%s isn't a valid template: %v", name, err)
		}
	}
	return nil
}
