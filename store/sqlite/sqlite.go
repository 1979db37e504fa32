// Package sqlite implements store.Store on an embedded SQLite database.
//
// Dataset headers and rows are kept as JSON text columns. They are read back
// through the binding decoders, which also accept values that an older
// writer encoded twice.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lvillar/pdfmerge/binding"
	"github.com/lvillar/pdfmerge/store"
	"github.com/lvillar/pdfmerge/store/sqlite/migrations"
)

// DBName is the database file created inside the data directory.
const DBName = "pdfmerge.db"

// Ensure Store implements the interface.
var _ store.Store = (*Store)(nil)

// Store is a SQLite backed store.Store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database in dataDir and applies pending
// migrations.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("sqlite: creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, DBName)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs every NNN_name.up.sql file newer than the recorded version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// ==================== Templates ====================

// SaveTemplate stores or updates a template, assigning an ID when empty and
// marking it as used now.
func (s *Store) SaveTemplate(ctx context.Context, t *store.Template) error {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.LastUsed = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, content, last_used, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			content = excluded.content,
			last_used = excluded.last_used
	`, t.ID, t.Name, t.Content, t.LastUsed, t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: saving template: %w", err)
	}
	return nil
}

const templateColumns = "id, name, content, last_used, created_at"

func scanTemplate(sc interface{ Scan(...any) error }) (*store.Template, error) {
	var t store.Template
	var lastUsed, createdAt sql.NullTime
	if err := sc.Scan(&t.ID, &t.Name, &t.Content, &lastUsed, &createdAt); err != nil {
		return nil, err
	}
	t.LastUsed = lastUsed.Time
	t.CreatedAt = createdAt.Time
	return &t, nil
}

// GetTemplate retrieves a template by ID.
func (s *Store) GetTemplate(ctx context.Context, id string) (*store.Template, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+templateColumns+" FROM templates WHERE id = ?", id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scanning template: %w", err)
	}
	return t, nil
}

// ListTemplates returns all templates, most recently used first.
func (s *Store) ListTemplates(ctx context.Context) ([]store.Template, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+templateColumns+" FROM templates ORDER BY last_used DESC, id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying templates: %w", err)
	}
	defer rows.Close()

	var out []store.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning template: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating templates: %w", err)
	}
	return out, nil
}

// TouchTemplate sets the last used time of a template.
func (s *Store) TouchTemplate(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, "UPDATE templates SET last_used = ? WHERE id = ?", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: touching template: %w", err)
	}
	return affected(res)
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting template: %w", err)
	}
	return affected(res)
}

// ==================== Datasets ====================

// SaveDataset validates and stores a dataset.
func (s *Store) SaveDataset(ctx context.Context, d *store.Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	headers, err := json.Marshal(d.Headers)
	if err != nil {
		return fmt.Errorf("sqlite: marshalling headers: %w", err)
	}
	data, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("sqlite: marshalling data: %w", err)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.ImportedAt.IsZero() {
		d.ImportedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO imports (id, file_name, file_type, headers, data, row_count, column_count, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_name = excluded.file_name,
			file_type = excluded.file_type,
			headers = excluded.headers,
			data = excluded.data,
			row_count = excluded.row_count,
			column_count = excluded.column_count
	`, d.ID, d.FileName, d.FileType, string(headers), string(data), d.RowCount, d.ColumnCount, d.ImportedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: saving dataset: %w", err)
	}
	return nil
}

const datasetColumns = "id, file_name, file_type, headers, data, row_count, column_count, imported_at"

func scanDataset(sc interface{ Scan(...any) error }) (*store.Dataset, error) {
	var d store.Dataset
	var headers, data string
	var importedAt sql.NullTime
	if err := sc.Scan(&d.ID, &d.FileName, &d.FileType, &headers, &data, &d.RowCount, &d.ColumnCount, &importedAt); err != nil {
		return nil, err
	}
	var err error
	if d.Headers, err = binding.DecodeHeaders(headers); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.ID, err)
	}
	if d.Data, err = binding.DecodeRows(data); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.ID, err)
	}
	d.ImportedAt = importedAt.Time
	return &d, nil
}

// GetDataset retrieves a dataset by ID.
func (s *Store) GetDataset(ctx context.Context, id string) (*store.Dataset, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+datasetColumns+" FROM imports WHERE id = ?", id)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scanning dataset: %w", err)
	}
	return d, nil
}

// ListDatasets returns all datasets, newest first.
func (s *Store) ListDatasets(ctx context.Context) ([]store.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+datasetColumns+" FROM imports ORDER BY imported_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying datasets: %w", err)
	}
	defer rows.Close()

	var out []store.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning dataset: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating datasets: %w", err)
	}
	return out, nil
}

// DeleteDataset removes a dataset.
func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM imports WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting dataset: %w", err)
	}
	return affected(res)
}

// ==================== Artifacts ====================

// SaveArtifact stores an artifact record.
func (s *Store) SaveArtifact(ctx context.Context, a *store.ArtifactRecord) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, name, template_id, import_id, row_index, file_path, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, nullString(a.TemplateID), nullString(a.ImportID), a.RowIndex, a.FilePath, a.Size, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: saving artifact: %w", err)
	}
	return nil
}

const artifactColumns = "id, name, template_id, import_id, row_index, file_path, size, created_at"

func scanArtifact(sc interface{ Scan(...any) error }) (*store.ArtifactRecord, error) {
	var a store.ArtifactRecord
	var templateID, importID sql.NullString
	var createdAt sql.NullTime
	if err := sc.Scan(&a.ID, &a.Name, &templateID, &importID, &a.RowIndex, &a.FilePath, &a.Size, &createdAt); err != nil {
		return nil, err
	}
	a.TemplateID = templateID.String
	a.ImportID = importID.String
	a.CreatedAt = createdAt.Time
	return &a, nil
}

// GetArtifact retrieves an artifact record by ID.
func (s *Store) GetArtifact(ctx context.Context, id string) (*store.ArtifactRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+artifactColumns+" FROM artifacts WHERE id = ?", id)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scanning artifact: %w", err)
	}
	return a, nil
}

// ListArtifacts returns all artifact records, newest first.
func (s *Store) ListArtifacts(ctx context.Context) ([]store.ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+artifactColumns+" FROM artifacts ORDER BY created_at DESC, name")
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying artifacts: %w", err)
	}
	defer rows.Close()

	var out []store.ArtifactRecord
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning artifact: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating artifacts: %w", err)
	}
	return out, nil
}

// DeleteArtifact removes an artifact record.
func (s *Store) DeleteArtifact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM artifacts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting artifact: %w", err)
	}
	return affected(res)
}

// affected maps an update or delete that touched no row to ErrNotFound.
func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
