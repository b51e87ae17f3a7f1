// Package artifact persists raw fetch results, one JSON file per entity class.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
)

var (
	// ErrNotFound is returned when the artifact for a class has not been fetched.
	ErrNotFound = errors.New("artifact not found")
	// ErrMalformed is returned when an artifact is not a category-keyed JSON object.
	ErrMalformed = errors.New("malformed artifact")
)

// Store reads and writes artifacts under a directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the file path of the artifact for class.
func (s *Store) Path(class domain.Class) string {
	return filepath.Join(s.dir, class.ArtifactName())
}

// Write replaces the artifact for class. The previous file stays in place
// until the new one is complete.
func (s *Store) Write(class domain.Class, a domain.Artifact) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, class.ArtifactName()+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode %s: %w", class.ArtifactName(), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", class.ArtifactName(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", class.ArtifactName(), err)
	}

	if err := os.Rename(tmpName, s.Path(class)); err != nil {
		return fmt.Errorf("rename %s: %w", class.ArtifactName(), err)
	}
	return nil
}

// Read loads the artifact for class.
func (s *Store) Read(class domain.Class) (domain.Artifact, error) {
	f, err := os.Open(s.Path(class))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Path(class))
		}
		return nil, fmt.Errorf("open %s: %w", class.ArtifactName(), err)
	}
	defer f.Close()

	var a domain.Artifact
	if err := json.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, class.ArtifactName(), err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s: not an object", ErrMalformed, class.ArtifactName())
	}
	return a, nil
}

// ReadAll loads every class's artifact, failing on the first missing or
// malformed one.
func (s *Store) ReadAll() (map[domain.Class]domain.Artifact, error) {
	out := make(map[domain.Class]domain.Artifact, len(domain.Classes))
	for _, class := range domain.Classes {
		a, err := s.Read(class)
		if err != nil {
			return nil, err
		}
		out[class] = a
	}
	return out, nil
}
