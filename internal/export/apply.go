package export

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/rpp-data-etl-service/internal/database"
	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
)

// ErrChecksumMismatch is returned when a bundle file differs from its manifest entry.
var ErrChecksumMismatch = errors.New("bundle checksum mismatch")

// Apply seeds db from the bundle in dir: the schema first, then every data
// file in name order inside one transaction. Reapplying a bundle leaves
// existing rows untouched. It returns the number of data files applied.
func Apply(ctx context.Context, db *sql.DB, dir string) (int, error) {
	schema, err := os.ReadFile(filepath.Join(dir, SchemaFile))
	if err != nil {
		return 0, fmt.Errorf("read schema: %w", err)
	}
	if err := database.ExecScript(ctx, db, string(schema)); err != nil {
		return 0, fmt.Errorf("apply schema: %w", err)
	}

	names, err := dataFiles(dir)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin apply: %w", err)
	}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("apply %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit apply: %w", err)
	}
	return len(names), nil
}

// Verify checks every file listed in the bundle manifest against its size and digest.
func Verify(dir string) (domain.BundleManifest, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return domain.BundleManifest{}, err
	}
	for _, f := range m.Files {
		data, err := os.ReadFile(filepath.Join(dir, f.Name))
		if err != nil {
			return domain.BundleManifest{}, fmt.Errorf("read %s: %w", f.Name, err)
		}
		sum := sha256.Sum256(data)
		if int64(len(data)) != f.Bytes || hex.EncodeToString(sum[:]) != f.SHA256 {
			return domain.BundleManifest{}, fmt.Errorf("%w: %s", ErrChecksumMismatch, f.Name)
		}
	}
	return m, nil
}

func dataFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read bundle dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == SchemaFile || !strings.HasSuffix(name, ".sql") {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
