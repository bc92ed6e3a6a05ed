package ddl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kyleking/docs2ddl/internal/errors"
)

// ErrNoColumns is returned by Synthesize when the schema has no columns
var ErrNoColumns = errors.New(errors.ErrTypeNoColumns, "no columns found in table format")

// tableOptions follow the table name in every CREATE statement
var tableOptions = []string{
	"NO BEFORE JOURNAL,",
	"NO AFTER JOURNAL,",
	"CHECKSUM = DEFAULT,",
	"DEFAULT MERGEBLOCKRATIO,",
	"MAP = TD_MAP1",
}

// Script is a generated DDL script
type Script struct {
	Database string
	Table    string
	Columns  []ColumnSpec
	Text     string
}

// ColumnCount returns the number of column definitions in the script
func (s Script) ColumnCount() int {
	return len(s.Columns)
}

// FileName returns the artifact name for the script
func (s Script) FileName() string {
	return ArtifactName(s.Table)
}

// Checksum returns the hex SHA-256 of the script text
func (s Script) Checksum() string {
	sum := sha256.Sum256([]byte(s.Text))
	return hex.EncodeToString(sum[:])
}

// WriteFile writes the script into dir as UTF-8 text and returns its path
func (s Script) WriteFile(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, errors.ErrTypeFileSystem, "failed to create output directory")
	}

	path := filepath.Join(dir, s.FileName())
	if err := os.WriteFile(path, []byte(s.Text), 0644); err != nil {
		return "", errors.Wrapf(err, errors.ErrTypeFileSystem, "failed to write %s", path)
	}

	return path, nil
}

// ArtifactName returns "<table>_DDL.sql"
func ArtifactName(table string) string {
	return table + "_DDL.sql"
}

// Synthesize renders the CREATE MULTISET TABLE statement followed by the
// table comment and one comment per column, in column order
func Synthesize(database string, schema TableSchema) (Script, error) {
	if len(schema.Columns) == 0 {
		return Script{}, ErrNoColumns
	}

	qualified := database + "." + schema.Table

	var b strings.Builder

	fmt.Fprintf(&b, "CREATE MULTISET TABLE %s, FALLBACK,\n", qualified)

	for _, opt := range tableOptions {
		b.WriteString(opt)
		b.WriteString("\n")
	}

	b.WriteString("(\n")

	defs := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		defs[i] = fmt.Sprintf("    %s %s", col.Name, col.Type)
	}

	b.WriteString(strings.Join(defs, ",\n"))
	b.WriteString("\n);\n\n")

	fmt.Fprintf(&b, "COMMENT ON TABLE %s IS %s;\n",
		qualified, quote(schema.Table+": "+schema.Description))

	for _, col := range schema.Columns {
		fmt.Fprintf(&b, "COMMENT ON COLUMN %s.%s IS %s;\n",
			qualified, col.Name, quote(col.Name+": "+col.Comment))
	}

	return Script{
		Database: database,
		Table:    schema.Table,
		Columns:  append([]ColumnSpec(nil), schema.Columns...),
		Text:     b.String(),
	}, nil
}

// Generate extracts the schema from doc and synthesizes its script
func Generate(database, doc string) (Script, error) {
	return Synthesize(database, Extract(doc))
}

// quote renders s as a SQL string literal
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
