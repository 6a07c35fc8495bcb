// Package artifact locates the built package file in the output directory.
package artifact

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/spf13/afero"
)

// Artifact is the single package file a build produced.
type Artifact struct {
	// Path is the local path of the file.
	Path string `json:"path"`
	// Name is the file's base name, e.g. foo_1.0_all.deb.
	Name string `json:"name"`
	// Package is the Debian package name, e.g. foo.
	Package string `json:"package"`
	Size    int64  `json:"size"`
}

// Find returns the one file in dir matching pattern. Zero matches is
// ArtifactNotFound; more than one is ArtifactAmbiguous.
func Find(fs afero.Fs, dir, pattern string) (*Artifact, error) {
	matches, err := glob(fs, dir, pattern)
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, errors.New(errors.ErrArtifactNotFound,
			fmt.Sprintf("No package matching %s in %s", pattern, dir),
			"Run 'debdeploy build' first, or check build.output_dir.")
	case 1:
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = filepath.Base(m)
		}
		return nil, errors.New(errors.ErrArtifactAmbiguous,
			fmt.Sprintf("%d packages match %s in %s: %s", len(matches), pattern, dir, strings.Join(names, ", ")),
			"Remove the stale ones, or run 'debdeploy all' to rebuild from scratch.")
	}

	path := matches[0]
	info, err := fs.Stat(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrArtifactNotFound,
			fmt.Sprintf("Can't stat %s", path), "")
	}
	if info.IsDir() {
		return nil, errors.New(errors.ErrArtifactNotFound,
			fmt.Sprintf("%s is a directory, not a package", path), "")
	}

	name := filepath.Base(path)
	return &Artifact{
		Path:    path,
		Name:    name,
		Package: PackageName(name),
		Size:    info.Size(),
	}, nil
}

// Remove deletes every file in dir matching pattern and returns the removed
// paths. Nothing to remove is not an error.
func Remove(fs afero.Fs, dir, pattern string) ([]string, error) {
	matches, err := glob(fs, dir, pattern)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, m := range matches {
		if err := fs.Remove(m); err != nil {
			return removed, errors.WrapWithCode(err, errors.ErrBuildStepFailed,
				fmt.Sprintf("Couldn't remove old package %s", m),
				"Check permissions on the output directory.")
		}
		removed = append(removed, m)
	}
	return removed, nil
}

// PackageName returns the Debian package name of a file named
// name_version_arch.ext, i.e. everything before the first '_'.
func PackageName(fileName string) string {
	base := filepath.Base(fileName)
	if i := strings.IndexByte(base, '_'); i > 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func glob(fs afero.Fs, dir, pattern string) ([]string, error) {
	matches, err := afero.Glob(fs, filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Bad artifact pattern %q", pattern),
			"Check 'project' and build.extension in your config.")
	}
	sort.Strings(matches)
	return matches, nil
}
