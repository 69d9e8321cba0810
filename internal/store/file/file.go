// Package file serves test definitions from YAML or JSON files in a
// directory. The file name without extension is the test id.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MrWong99/oralread/internal/store"
	"github.com/MrWong99/oralread/internal/testdef"
)

var extensions = []string{".yaml", ".yml", ".json"}

// Store reads definitions from a directory on every lookup, so edits are
// picked up without a restart.
type Store struct {
	dir string
}

var _ store.DefinitionSource = (*Store)(nil)

// New returns a Store rooted at dir. The directory must exist.
func New(dir string) (*Store, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("file store: %s is not a directory", dir)
	}
	return &Store{dir: dir}, nil
}

// Definition loads <dir>/<id>.yaml, .yml or .json, in that order.
func (s *Store) Definition(_ context.Context, id string) (*testdef.Test, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id != filepath.Clean(id) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("file store: invalid id %q: %w", id, store.ErrNotFound)
	}
	for _, ext := range extensions {
		t, err := Load(filepath.Join(s.dir, id+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if t.ID != id {
			return nil, fmt.Errorf("file store: %s%s declares id %q", id, ext, t.ID)
		}
		return t, nil
	}
	return nil, fmt.Errorf("file store: %q: %w", id, store.ErrNotFound)
}

// Paths lists the definition files in the directory, sorted by name.
func (s *Store) Paths() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(extensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		out = append(out, filepath.Join(s.dir, e.Name()))
	}
	return out, nil
}

// Load parses and validates a single definition file. JSON files are
// decoded as JSON; everything else as YAML.
func Load(path string) (*testdef.Test, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t *testdef.Test
	if strings.EqualFold(filepath.Ext(path), ".json") {
		t, err = testdef.ParseJSON(b)
	} else {
		t, err = testdef.ParseYAML(b)
	}
	if err != nil {
		return nil, fmt.Errorf("file store: %s: %w", filepath.Base(path), err)
	}
	return t, nil
}
