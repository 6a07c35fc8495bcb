package host

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/pkg/sshutil"
)

// ParseTargets builds a List from explicit connection strings, bypassing
// SSH config resolution. Accepted forms: host, user@host, user@host:port.
// Hosts without a user get defaultUser (or $USER when empty).
func ParseTargets(targets []string, defaultUser string) (List, error) {
	if defaultUser == "" {
		defaultUser = sshutil.CurrentUser()
	}

	list := make(List, 0, len(targets))
	for _, raw := range targets {
		spec, err := parseTarget(strings.TrimSpace(raw), defaultUser)
		if err != nil {
			return nil, err
		}
		list = append(list, spec)
	}
	return list, nil
}

func parseTarget(raw, defaultUser string) (Spec, error) {
	invalid := func(reason string) error {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("'%s' isn't a valid target: %s", raw, reason),
			"Use host, user@host, or user@host:port")
	}

	if raw == "" {
		return Spec{}, invalid("empty")
	}

	spec := Spec{Alias: raw, User: defaultUser}
	rest := raw

	if at := strings.LastIndex(rest, "@"); at != -1 {
		spec.User = rest[:at]
		rest = rest[at+1:]
		if spec.User == "" {
			return Spec{}, invalid("empty user")
		}
	}

	// Bracketed IPv6 literal: [::1]:2222
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end == -1 {
			return Spec{}, invalid("unterminated [")
		}
		spec.Hostname = rest[1:end]
		rest = rest[end+1:]
		if strings.HasPrefix(rest, ":") {
			spec.Port = rest[1:]
		} else if rest != "" {
			return Spec{}, invalid("unexpected text after ]")
		}
	} else if colon := strings.LastIndex(rest, ":"); colon != -1 && strings.Count(rest, ":") == 1 {
		spec.Hostname = rest[:colon]
		spec.Port = rest[colon+1:]
	} else {
		spec.Hostname = rest
	}

	if spec.Hostname == "" {
		return Spec{}, invalid("empty hostname")
	}
	if spec.Port != "" {
		if n, err := strconv.Atoi(spec.Port); err != nil || n < 1 || n > 65535 {
			return Spec{}, invalid("bad port")
		}
	}

	return spec, nil
}
