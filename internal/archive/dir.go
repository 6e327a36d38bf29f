package archive

import (
	"os"
	"path/filepath"

	"github.com/xtxerr/archivist/config"
	"github.com/xtxerr/archivist/internal/errors"
)

// EnsureDir creates dir if needed and returns its absolute path. An existing
// directory is not an error; anything else is.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrapf(err, "resolve archive dir %s", dir)
	}
	if err := os.MkdirAll(abs, config.DefaultDirMode); err != nil {
		return "", errors.Wrapf(err, "create archive dir %s", abs)
	}
	return abs, nil
}
