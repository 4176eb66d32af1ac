package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

const defaultHeader = `# obsprep configuration.
#
# Every key can be overridden from the environment with the OBSPREP_ prefix,
# e.g. OBSPREP_LOG_LEVEL=debug or OBSPREP_SURVEYS_2023_SAVE_DIR=/tmp/out.
#
# surveys.<year>.age_bands optionally replaces the fine age bands; each band
# covers ages from min up to the next band's min:
#
#   age_bands:
#     - {label: "Under 18", min: 0}
#     - {label: "18 and over", min: 18}

`

// DefaultYAML renders the built-in configuration as a documented YAML file.
func DefaultYAML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(defaultHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return nil, eris.Wrap(err, "config: encode default")
	}
	if err := enc.Close(); err != nil {
		return nil, eris.Wrap(err, "config: encode default")
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the default configuration to path. It does not
// overwrite an existing file.
func WriteDefault(path string) error {
	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "config: create dir %s", dir)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return eris.Errorf("config: %s already exists", path)
	}
	if err != nil {
		return eris.Wrapf(err, "config: create %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck,gosec
		return eris.Wrapf(err, "config: write %s", path)
	}
	return eris.Wrapf(f.Close(), "config: close %s", path)
}
