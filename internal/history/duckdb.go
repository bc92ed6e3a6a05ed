package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	apperrors "github.com/kyleking/docs2ddl/internal/errors"
)

// DefaultListLimit bounds List when no positive limit is given
const DefaultListLimit = 20

var _ Store = (*DuckDBStore)(nil)

// DuckDBStore implements Store using DuckDB
type DuckDBStore struct {
	db   *sql.DB
	path string
}

// NewDuckDBStore opens (creating if needed) the history database at dbPath
func NewDuckDBStore(dbPath string) (*DuckDBStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeFileSystem, "failed to create history directory")
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to open history database")
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to ping history database").
			WithSuggestion("Another docs2ddl process may hold the database lock")
	}

	return &DuckDBStore{db: db, path: dbPath}, nil
}

// Initialize creates the schema using migrations
func (s *DuckDBStore) Initialize(ctx context.Context) error {
	if err := NewMigrationManager(s.db).MigrateUp(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to migrate history database")
	}

	return nil
}

// Record appends a generation; ID and CreatedAt are assigned when empty
func (s *DuckDBStore) Record(ctx context.Context, record Record) (*Record, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO generations (
		id, created_at, provider, repository, path, database_name,
		table_name, column_count, script_sha256, output_file
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.CreatedAt, record.Provider, record.Repository, record.Path,
		record.DatabaseName, record.TableName, record.ColumnCount, record.ScriptSHA256,
		nullString(record.OutputFile),
	)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeDatabase, "failed to record generation of %s", record.TableName)
	}

	return &record, nil
}

// List returns the most recent generations first
func (s *DuckDBStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, created_at, COALESCE(provider, ''), COALESCE(repository, ''), COALESCE(path, ''),
		database_name, table_name, column_count, script_sha256, COALESCE(output_file, '')
	FROM generations
	ORDER BY created_at DESC, id
	LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to list generations")
	}

	defer rows.Close()

	var records []Record

	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Provider, &r.Repository, &r.Path,
			&r.DatabaseName, &r.TableName, &r.ColumnCount, &r.ScriptSHA256, &r.OutputFile); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to scan generation")
		}

		records = append(records, r)
	}

	return records, rows.Err()
}

// Stats returns history statistics
func (s *DuckDBStore) Stats(ctx context.Context) (*Stats, error) {
	var (
		stats Stats
		last  sql.NullTime
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT database_name || '.' || table_name), MAX(created_at) FROM generations",
	).Scan(&stats.TotalGenerations, &stats.DistinctTables, &last)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to read history stats")
	}

	if last.Valid {
		stats.LastGeneratedAt = last.Time
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.DatabaseSizeMB = float64(info.Size()) / (1024 * 1024)
	}

	return &stats, nil
}

// Clear removes every recorded generation
func (s *DuckDBStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM generations"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to clear history")
	}

	return nil
}

// Close closes the database connection
func (s *DuckDBStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
