package theme

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the preference in <dir>/darkMode.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) path() string {
	return filepath.Join(f.dir, Key)
}

func (f *FileStore) Load() (bool, error) {
	data, err := os.ReadFile(f.path())
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return decode(strings.TrimSpace(string(data)))
}

// Save writes to a temporary file and renames it so a reader never sees a
// partial value.
func (f *FileStore) Save(dark bool) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, Key+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(encode(dark)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path())
}

// FileProvider stores each scope in its own subdirectory of root.
type FileProvider struct {
	root string
}

func NewFileProvider(root string) *FileProvider {
	return &FileProvider{root: root}
}

func (p *FileProvider) For(scope string) Store {
	return NewFileStore(filepath.Join(p.root, sanitize(scope)))
}

// sanitize keeps scope names from escaping the root directory.
func sanitize(scope string) string {
	if scope == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, scope)
}
