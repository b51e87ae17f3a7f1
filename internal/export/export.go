// Package export writes the build store as a chunked, idempotent SQL bundle
// and applies such bundles to deployed stores.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/rpp-data-etl-service/internal/database"
	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	// SchemaFile is the first file of every bundle.
	SchemaFile = "00_schema.sql"
	// ManifestFile describes the bundle; it is not applied.
	ManifestFile = "manifest.json"
	// DefaultChunkSize bounds the rows per data file.
	DefaultChunkSize = 500
)

// Exporter serializes the build store into a bundle directory.
type Exporter struct {
	dbPath    string
	outDir    string
	chunkSize int
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewExporter creates an Exporter. A non-positive chunkSize uses DefaultChunkSize.
func NewExporter(dbPath, outDir string, chunkSize int, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Exporter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Exporter{
		dbPath:    dbPath,
		outDir:    outDir,
		chunkSize: chunkSize,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

// Export replaces the output directory with a fresh bundle and returns its manifest.
func (e *Exporter) Export(ctx context.Context) (domain.BundleManifest, error) {
	db, err := database.OpenReadOnly(e.dbPath)
	if err != nil {
		return domain.BundleManifest{}, err
	}
	defer db.Close()

	if err := os.RemoveAll(e.outDir); err != nil {
		return domain.BundleManifest{}, fmt.Errorf("remove output dir: %w", err)
	}
	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return domain.BundleManifest{}, fmt.Errorf("create output dir: %w", err)
	}

	manifest := domain.BundleManifest{
		RunID:       uuid.NewString(),
		GeneratedAt: e.clock.Now().UTC(),
		ChunkSize:   e.chunkSize,
		TableRows:   make(map[string]int, len(database.Tables)),
	}

	schema, err := e.writeFile(SchemaFile, []byte(database.Schema))
	if err != nil {
		return domain.BundleManifest{}, err
	}
	manifest.Files = append(manifest.Files, schema)

	for _, table := range database.Tables {
		files, rows, err := e.exportTable(ctx, db, table)
		if err != nil {
			return domain.BundleManifest{}, err
		}
		manifest.Files = append(manifest.Files, files...)
		manifest.TableRows[table.Name] = rows
		e.metrics.ExportRows.WithLabelValues(table.Name).Add(float64(rows))
		e.logger.Info("exported table",
			"table", table.Name,
			"rows", humanize.Comma(int64(rows)),
			"files", len(files),
		)
	}

	if err := WriteManifest(e.outDir, manifest); err != nil {
		return domain.BundleManifest{}, err
	}

	var total int64
	for _, f := range manifest.Files {
		total += f.Bytes
	}
	e.logger.Info("export complete",
		"run_id", manifest.RunID,
		"files", len(manifest.Files),
		"size", humanize.Bytes(uint64(total)),
		"dir", e.outDir,
	)
	return manifest, nil
}

func (e *Exporter) exportTable(ctx context.Context, db *sql.DB, table database.Table) ([]domain.BundleFile, int, error) {
	cols := strings.Join(table.Columns, ", ")
	rows, err := db.QueryContext(ctx, "SELECT "+cols+" FROM "+table.Name+" ORDER BY "+table.OrderBy)
	if err != nil {
		return nil, 0, fmt.Errorf("query %s: %w", table.Name, err)
	}
	defer rows.Close()

	header := "INSERT OR IGNORE INTO " + table.Name + " (" + cols + ") VALUES\n"
	values := make([]any, len(table.Columns))
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var (
		files []domain.BundleFile
		buf   bytes.Buffer
		inBuf int
		total int
	)
	flush := func() error {
		if inBuf == 0 {
			return nil
		}
		buf.WriteString(";\n")
		name := fmt.Sprintf("%s_%05d.sql", table.Name, len(files))
		f, err := e.writeFile(name, buf.Bytes())
		if err != nil {
			return err
		}
		f.Table = table.Name
		f.Rows = inBuf
		files = append(files, f)
		buf.Reset()
		inBuf = 0
		return nil
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", table.Name, err)
		}
		if inBuf == 0 {
			buf.WriteString(header)
		} else {
			buf.WriteString(",\n")
		}
		if err := writeTuple(&buf, values); err != nil {
			return nil, 0, fmt.Errorf("%s row %d: %w", table.Name, total+1, err)
		}
		inBuf++
		total++
		if inBuf == e.chunkSize {
			if err := flush(); err != nil {
				return nil, 0, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", table.Name, err)
	}
	if err := flush(); err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

func writeTuple(buf *bytes.Buffer, values []any) error {
	buf.WriteByte('(')
	for i, v := range values {
		lit, err := Literal(v)
		if err != nil {
			return err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(lit)
	}
	buf.WriteByte(')')
	return nil
}

func (e *Exporter) writeFile(name string, data []byte) (domain.BundleFile, error) {
	if err := os.WriteFile(filepath.Join(e.outDir, name), data, 0o644); err != nil {
		return domain.BundleFile{}, fmt.Errorf("write %s: %w", name, err)
	}
	e.metrics.ExportFiles.Inc()
	sum := sha256.Sum256(data)
	return domain.BundleFile{
		Name:   name,
		Bytes:  int64(len(data)),
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

// WriteManifest writes manifest.json into dir.
func WriteManifest(dir string, m domain.BundleManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads manifest.json from dir.
func ReadManifest(dir string) (domain.BundleManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return domain.BundleManifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m domain.BundleManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.BundleManifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
