package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
)

// Persister loads and saves the whole knowledge map.
//
// Load returns ErrStoreMissing when nothing has been saved yet and wraps
// ErrCorruptStore when the stored data cannot be parsed. Save always
// overwrites the full map.
type Persister interface {
	Load(ctx context.Context) (concept.Map, error)
	Save(ctx context.Context, kb concept.Map) error
	Close() error
}

// FileStore persists the map as one JSON document:
//
//	{"GRAVITY": ["A fundamental force..."], "SOLAR SYSTEM": ["..."]}
//
// Legacy documents whose values are single strings are accepted on load.
type FileStore struct {
	path string
}

// NewFileStore creates a JSON file persister at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads and normalizes the document.
func (f *FileStore) Load(ctx context.Context) (concept.Map, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrStoreMissing
		}
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, f.path, err)
	}
	if raw == nil {
		// A bare "null" document.
		return nil, fmt.Errorf("%w: %s: document is null", ErrCorruptStore, f.path)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kb := make(concept.Map, len(raw))
	for _, key := range keys {
		explanations, err := decodeExplanations(raw[key])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: key %q: %v", ErrCorruptStore, f.path, key, err)
		}
		c := concept.Normalize(key)
		if c.IsZero() || len(explanations) == 0 {
			continue
		}
		kb[c] = append(kb[c], explanations...)
	}
	return kb, nil
}

// decodeExplanations accepts either a list of strings or a single string.
func decodeExplanations(value json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		out := list[:0]
		for _, e := range list {
			if e != "" {
				out = append(out, e)
			}
		}
		return out, nil
	}

	var single string
	if err := json.Unmarshal(value, &single); err != nil {
		return nil, fmt.Errorf("value must be a string or a list of strings")
	}
	if single == "" {
		return nil, nil
	}
	return []string{single}, nil
}

// Save writes the document to a temporary file and renames it into place.
func (f *FileStore) Save(ctx context.Context, kb concept.Map) error {
	data, err := json.MarshalIndent(kb, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding knowledge map: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

// Close is a no-op; the file is not held open between saves.
func (f *FileStore) Close() error {
	return nil
}
