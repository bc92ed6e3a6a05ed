// Package ddl turns the tabular description embedded in a markdown document
// into a Teradata CREATE TABLE script with table and column comments
//
// Every function here is pure; the compiled patterns are never mutated and
// documents can be processed concurrently
package ddl

import (
	"regexp"
	"strings"
)

// DefaultTableName is used when the document names no table
const DefaultTableName = "MiTabla"

// word matches the letters, digits and underscores of an identifier token
const word = `[\p{L}\p{N}_]+`

// space also covers Unicode separators such as the non-breaking space
const space = `[\s\p{Zs}]*`

var (
	headingPattern    = regexp.MustCompile(`###` + space + `(` + word + `)`)
	tableLabelPattern = regexp.MustCompile(`(?i)Tabla` + space + `:` + space + `(` + word + `)`)
	columnRowPattern  = regexp.MustCompile(
		`\|` + space + `\p{Nd}+` + space + `\|` + space + `(` + word + `)` + space +
			`\|` + space + `([^|]+?)` + space + `\|` + space + `([^|]+?)` + space + `\|`,
	)
)

// ColumnSpec is one column row parsed from the document
type ColumnSpec struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Comment string `json:"comment"`
}

// TableSchema is everything extracted from one document
type TableSchema struct {
	Table       string       `json:"table"`
	Description string       `json:"description"`
	Columns     []ColumnSpec `json:"columns"`
}

// ExtractTableName returns the upper-cased token after the first "###" marker,
// falling back to a "Tabla:" label and then DefaultTableName
func ExtractTableName(doc string) string {
	if m := headingPattern.FindStringSubmatch(doc); m != nil {
		return strings.ToUpper(m[1])
	}

	if m := tableLabelPattern.FindStringSubmatch(doc); m != nil {
		return strings.ToUpper(m[1])
	}

	return DefaultTableName
}

// ExtractDescription returns the trimmed line after the first
// case-insensitive occurrence of table that has a non-empty next line
func ExtractDescription(doc, table string) string {
	if table == "" {
		return ""
	}

	pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(table) + `.*\n(.+)`)

	m := pattern.FindStringSubmatch(doc)
	if m == nil {
		return ""
	}

	return strings.TrimSpace(m[1])
}

// ParseColumns returns one ColumnSpec per "| n | NAME | TYPE | COMMENT |" row
// in document order; rows are matched per line so a malformed row never
// consumes the one below it
func ParseColumns(doc string) []ColumnSpec {
	columns := []ColumnSpec{}

	for _, line := range strings.Split(doc, "\n") {
		if !strings.Contains(line, "|") {
			continue
		}

		for _, m := range columnRowPattern.FindAllStringSubmatch(line, -1) {
			columns = append(columns, ColumnSpec{
				Name:    strings.ToUpper(strings.TrimSpace(m[1])),
				Type:    strings.TrimSpace(m[2]),
				Comment: strings.TrimSpace(m[3]),
			})
		}
	}

	return columns
}

// Extract runs the three extractors over doc
func Extract(doc string) TableSchema {
	table := ExtractTableName(doc)

	return TableSchema{
		Table:       table,
		Description: ExtractDescription(doc, table),
		Columns:     ParseColumns(doc),
	}
}
