// Package history keeps an audit log of generated DDL scripts in DuckDB.
package history

import (
	"context"
	"time"
)

// Store defines the interface for the generation history
type Store interface {
	Initialize(ctx context.Context) error
	Record(ctx context.Context, record Record) (*Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
	Stats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Record describes one generated script
type Record struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Provider     string    `json:"provider"`
	Repository   string    `json:"repository"`
	Path         string    `json:"path"`
	DatabaseName string    `json:"database_name"`
	TableName    string    `json:"table_name"`
	ColumnCount  int       `json:"column_count"`
	ScriptSHA256 string    `json:"script_sha256"`
	OutputFile   string    `json:"output_file,omitempty"`
}

// Stats summarizes the history
type Stats struct {
	TotalGenerations int       `json:"total_generations"`
	DistinctTables   int       `json:"distinct_tables"`
	LastGeneratedAt  time.Time `json:"last_generated_at"`
	DatabaseSizeMB   float64   `json:"database_size_mb"`
}
