package ddl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTableName(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		expected string
	}{
		{"level three heading", "### Customers\nsome text", "CUSTOMERS"},
		{"heading without space", "###orders", "ORDERS"},
		{"heading with extra spaces", "###    foo_bar1   \n", "FOO_BAR1"},
		{"heading after other content", "# Docs\n\nIntro\n\n### ventas\n", "VENTAS"},
		{"deeper heading still contains marker", "#### Deep\n", "DEEP"},
		{"tabla label", "Tabla: clientes\n", "CLIENTES"},
		{"tabla label is case-insensitive", "TABLA :   Pedidos", "PEDIDOS"},
		{"heading wins over label", "Tabla: first\n### second\n", "SECOND"},
		{"unicode token", "### año_fiscal", "AÑO_FISCAL"},
		{"non-breaking space after heading", "###\u00a0Clientes", "CLIENTES"},
		{"non-breaking spaces around label", "Tabla\u00a0:\u00a0pedidos", "PEDIDOS"},
		{"level two heading is ignored", "## Customers\n", DefaultTableName},
		{"no pattern", "plain text without markers", DefaultTableName},
		{"empty document", "", DefaultTableName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractTableName(tt.doc))
		})
	}
}

func TestExtractTableName_NeverEmpty(t *testing.T) {
	docs := []string{"", "###", "### ", "Tabla:", "|1|A|B|C|"}
	for _, doc := range docs {
		assert.NotEmpty(t, ExtractTableName(doc), "doc %q", doc)
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		table    string
		expected string
	}{
		{
			name:     "line after heading",
			doc:      "### CUSTOMERS\n   Customer master data   \n\n| 1 | ID | INTEGER | id |",
			table:    "CUSTOMERS",
			expected: "Customer master data",
		},
		{
			name:     "case-insensitive match",
			doc:      "Tabla: clientes\nClientes activos\n",
			table:    "CLIENTES",
			expected: "Clientes activos",
		},
		{
			name:     "blank line after every occurrence",
			doc:      "### ORDERS\n\nList of orders\n",
			table:    "ORDERS",
			expected: "",
		},
		{
			name:     "later occurrence is used when the first has no next line text",
			doc:      "### ORDERS\n\nThe ORDERS table\nholds every order\n",
			table:    "ORDERS",
			expected: "holds every order",
		},
		{
			name:     "placeholder table absent from text",
			doc:      "no headings here\nat all",
			table:    DefaultTableName,
			expected: "",
		},
		{
			name:     "identifier on last line",
			doc:      "intro\n### LAST",
			table:    "LAST",
			expected: "",
		},
		{
			name:     "carriage returns are trimmed",
			doc:      "### ITEMS\r\nItem catalog\r\n",
			table:    "ITEMS",
			expected: "Item catalog",
		},
		{
			name:     "empty table name",
			doc:      "### X\nY",
			table:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractDescription(tt.doc, tt.table))
		})
	}
}

func TestParseColumns(t *testing.T) {
	doc := strings.Join([]string{
		"### CUSTOMERS",
		"",
		"| # | Column | Type | Comment |",
		"|---|--------|------|---------|",
		"| 1 | id | INTEGER | Customer id |",
		"| 2 | NAME | VARCHAR(50) | Customer name |",
		"|3|created_at|TIMESTAMP(0)|  Alta  |",
	}, "\n")

	columns := ParseColumns(doc)

	assert.Equal(t, []ColumnSpec{
		{Name: "ID", Type: "INTEGER", Comment: "Customer id"},
		{Name: "NAME", Type: "VARCHAR(50)", Comment: "Customer name"},
		{Name: "CREATED_AT", Type: "TIMESTAMP(0)", Comment: "Alta"},
	}, columns)
}

func TestParseColumns_NonBreakingSpaces(t *testing.T) {
	doc := strings.Join([]string{
		"| 1 |\u00a0ID | INTEGER | Customer id |",
		"|\u00a02\u00a0|\u00a0NAME\u00a0|\u00a0VARCHAR(50)\u00a0|\u00a0Customer name\u00a0|",
		"| 3 | FLAG\u2007| BYTEINT |\u00a0|",
	}, "\n")

	columns := ParseColumns(doc)

	assert.Equal(t, []ColumnSpec{
		{Name: "ID", Type: "INTEGER", Comment: "Customer id"},
		{Name: "NAME", Type: "VARCHAR(50)", Comment: "Customer name"},
		{Name: "FLAG", Type: "BYTEINT", Comment: ""},
	}, columns)
}

func TestGenerate_NonBreakingSpaceDocument(t *testing.T) {
	doc := "###\u00a0clientes\nMaestro\n| 1 |\u00a0ID\u00a0| INTEGER | Id |\n"

	script, err := Generate("DB", doc)

	assert.NoError(t, err)
	assert.Equal(t, "CLIENTES", script.Table)
	assert.Contains(t, script.Text, "    ID INTEGER\n")
}

func TestParseColumns_PreservesOrder(t *testing.T) {
	doc := "| 3 | C | INT | third |\n| 1 | A | INT | first |\n| 2 | B | INT | second |\n"

	columns := ParseColumns(doc)

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}

	assert.Equal(t, []string{"C", "A", "B"}, names)
}

func TestParseColumns_SkipsMalformedRows(t *testing.T) {
	doc := strings.Join([]string{
		"| 1 | OK1 | INTEGER | fine |",
		"| 2 | BROKEN | INTEGER |",
		"| 3 | OK2 | DATE | Fecha |",
		"| x | NOTNUM | INTEGER | bad ordinal |",
		"| 4 | two words | CHAR(1) | bad name |",
		"| 5 | NOCOMMENT | CHAR(1) ||",
	}, "\n")

	columns := ParseColumns(doc)

	assert.Equal(t, []ColumnSpec{
		{Name: "OK1", Type: "INTEGER", Comment: "fine"},
		{Name: "OK2", Type: "DATE", Comment: "Fecha"},
	}, columns)
}

func TestParseColumns_BlankCommentCell(t *testing.T) {
	columns := ParseColumns("| 1 | FLAG | BYTEINT |   |")

	assert.Equal(t, []ColumnSpec{{Name: "FLAG", Type: "BYTEINT", Comment: ""}}, columns)
}

func TestParseColumns_SeveralRowsOnOneLine(t *testing.T) {
	columns := ParseColumns("| 1 | A | INT | a || 2 | B | INT | b |")

	assert.Len(t, columns, 2)
	assert.Equal(t, "A", columns[0].Name)
	assert.Equal(t, "B", columns[1].Name)
}

func TestParseColumns_NoRows(t *testing.T) {
	columns := ParseColumns("# Title\n\nNo table here.\n| a | b |\n")

	assert.NotNil(t, columns)
	assert.Empty(t, columns)
}

func TestExtract(t *testing.T) {
	doc := "### customers\nCustomer master data\n| 1 | ID | INTEGER | Customer id |\n"

	schema := Extract(doc)

	assert.Equal(t, "CUSTOMERS", schema.Table)
	assert.Equal(t, "Customer master data", schema.Description)
	assert.Equal(t, []ColumnSpec{{Name: "ID", Type: "INTEGER", Comment: "Customer id"}}, schema.Columns)
}
