package host

import (
	"fmt"
	"os"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/internal/logger"
	"github.com/rileyhilliard/debdeploy/pkg/sshutil"
)

// Spec is the resolved connection identity of one deployment target.
type Spec struct {
	Alias        string `json:"alias"`
	User         string `json:"user"`
	Hostname     string `json:"hostname"`
	Port         string `json:"port,omitempty"`
	IdentityFile string `json:"identity_file,omitempty"`
}

// String returns the user@hostname connection string.
func (s Spec) String() string {
	if s.User == "" {
		return s.Hostname
	}
	return s.User + "@" + s.Hostname
}

// Target converts the spec into dial parameters.
func (s Spec) Target() sshutil.Target {
	return sshutil.Target{
		Alias:        s.Alias,
		User:         s.User,
		Hostname:     s.Hostname,
		Port:         s.Port,
		IdentityFile: s.IdentityFile,
	}
}

// List is an ordered set of resolved hosts, one per logical name.
type List []Spec

// Strings returns the user@hostname form of every host, in order.
func (l List) Strings() []string {
	out := make([]string, len(l))
	for i, s := range l {
		out[i] = s.String()
	}
	return out
}

// Resolver turns logical host names into a List.
type Resolver interface {
	Resolve(names []string) (List, error)
}

// SSHConfigResolver resolves names against an OpenSSH client config file.
// Resolution is a pure function of the file contents; nothing is cached.
type SSHConfigResolver struct {
	// Path of the SSH config; defaults to ~/.ssh/config.
	Path string

	// DefaultUser is used when no User directive applies to a host.
	// Falls back to $USER when empty.
	DefaultUser string

	Log logger.Logger
}

// Resolve reads the config file and resolves every name, preserving order.
func (r *SSHConfigResolver) Resolve(names []string) (List, error) {
	path := r.Path
	if path == "" {
		path = sshutil.DefaultConfigPath()
	}
	path = sshutil.ExpandPath(path)

	cfg, err := sshutil.LoadConfigFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfigNotFound,
				fmt.Sprintf("SSH config not found at %s", path),
				"Create it, point --ssh-config at another file, or pass targets with --host user@hostname")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't parse SSH config %s", path),
			"Check the file with: ssh -G <host>")
	}

	log := r.Log
	if log == nil {
		log = logger.Noop()
	}
	if cfg.MatchLine > 0 {
		log.Warn("%s has a Match block at line %d; entries after it are ignored", path, cfg.MatchLine)
	}

	return resolve(cfg, names, r.DefaultUser)
}

// StaticResolver resolves names against an in-memory SSH config.
type StaticResolver struct {
	cfg         *sshutil.Config
	defaultUser string
}

// NewStaticResolver decodes content in OpenSSH client config format.
func NewStaticResolver(content, defaultUser string) (*StaticResolver, error) {
	cfg, err := sshutil.DecodeConfig(strings.NewReader(content))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Couldn't parse SSH config", "")
	}
	return &StaticResolver{cfg: cfg, defaultUser: defaultUser}, nil
}

// Resolve resolves every name, preserving order.
func (r *StaticResolver) Resolve(names []string) (List, error) {
	return resolve(r.cfg, names, r.defaultUser)
}

// resolve looks up HostName, User, Port and IdentityFile for every name.
// Every name without a HostName is reported in a single HostUnresolved error.
func resolve(cfg *sshutil.Config, names []string, defaultUser string) (List, error) {
	if defaultUser == "" {
		defaultUser = sshutil.CurrentUser()
	}

	list := make(List, 0, len(names))
	var unresolved []string

	for _, name := range names {
		hostname := cfg.Get(name, "HostName")
		if hostname == "" {
			unresolved = append(unresolved, name)
			continue
		}

		user := cfg.Get(name, "User")
		if user == "" {
			user = defaultUser
		}

		list = append(list, Spec{
			Alias:        name,
			User:         user,
			Hostname:     strings.ReplaceAll(hostname, "%h", name),
			Port:         cfg.Get(name, "Port"),
			IdentityFile: cfg.Get(name, "IdentityFile"),
		})
	}

	if len(unresolved) > 0 {
		suggestion := "Add a Host block with a HostName line for each target in your SSH config"
		var hints []string
		for _, name := range unresolved {
			if alias := suggestAlias(cfg, name); alias != "" {
				hints = append(hints, fmt.Sprintf("'%s' for '%s'", alias, name))
			}
		}
		if len(hints) > 0 {
			suggestion = "Did you mean " + strings.Join(hints, ", ") + "?\n" + suggestion
		}
		return nil, errors.New(errors.ErrHostUnresolved,
			fmt.Sprintf("No HostName configured for: %s", strings.Join(unresolved, ", ")),
			suggestion)
	}

	return list, nil
}

// suggestAlias returns the resolvable alias closest to name by edit
// distance, or "" when none is close enough to be a likely typo.
func suggestAlias(cfg *sshutil.Config, name string) string {
	limit := len(name) / 3
	if limit < 2 {
		limit = 2
	}

	best, bestDist := "", limit+1
	for _, alias := range cfg.Aliases() {
		if cfg.Get(alias, "HostName") == "" {
			continue
		}
		if d := levenshtein.Distance(name, alias, nil); d < bestDist {
			best, bestDist = alias, d
		}
	}
	return best
}
