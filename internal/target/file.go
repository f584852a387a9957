package target

import (
	"fmt"
	"os"
	"path/filepath"
)

// StoreFileName is the target database file name inside the data directory.
const StoreFileName = "targets.json"

// FilePersister stores the serialized target database as a single JSON
// file, written atomically via a temp file and rename so a crash mid-save
// never leaves a truncated database.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister writing to dir/targets.json. The
// directory is created on first save.
func NewFilePersister(dir string) *FilePersister {
	return &FilePersister{path: filepath.Join(dir, StoreFileName)}
}

// Path returns the database file path.
func (p *FilePersister) Path() string { return p.path }

// Load reads the store file. A missing file is reported with an error
// wrapping fs.ErrNotExist, which Open treats as an empty store.
func (p *FilePersister) Load() ([]byte, error) {
	return os.ReadFile(p.path)
}

// Save atomically replaces the store file.
func (p *FilePersister) Save(data []byte) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, StoreFileName+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}
