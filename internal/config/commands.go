package config

import (
	"strings"
	"text/template"

	"github.com/rileyhilliard/debdeploy/internal/errors"
)

// CommandData is the data available to deploy command templates.
type CommandData struct {
	// Artifact is the shell-quoted remote path of the uploaded package.
	Artifact string
	// Package is the Debian package name (file name up to the first '_').
	Package string
	// Host is the alias of the host the command runs on.
	Host string
}

func parseCommand(name, tmpl string) (*template.Template, error) {
	return template.New(name).Option("missingkey=error").Parse(tmpl)
}

// RenderCommand expands a deploy command template. An empty template renders
// to an empty string.
func RenderCommand(name, tmpl string, data CommandData) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		return "", nil
	}

	t, err := parseCommand(name, tmpl)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Can't parse the "+name+" command",
			"Check the template syntax, e.g. dpkg -i {{.Artifact}}")
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Can't render the "+name+" command",
			"Available fields: .Artifact, .Package, .Host")
	}
	return sb.String(), nil
}
