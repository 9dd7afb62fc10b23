// Package markdown parses the pipe tables LLM evaluation replies are asked
// to produce.
package markdown

import (
	"regexp"
	"strings"
)

// Table is one parsed pipe table. StartLine and EndLine delimit it in the
// source text (half-open, zero-based), so callers can relate a table to the
// headings around it.
type Table struct {
	Headers   []string
	Rows      [][]string
	StartLine int
	EndLine   int
}

// tableRowRegex matches pipe table rows.
var tableRowRegex = regexp.MustCompile(`^\s*\|(.+)\|\s*$`)

// separatorRegex matches separator rows (|---|---|).
var separatorRegex = regexp.MustCompile(`^\s*\|[\s\-:|]+\|\s*$`)

// FindTables parses every pipe table in the text, in document order. A table
// needs a header row, a separator row, and at least one data row; short data
// rows are padded to the header width.
func FindTables(text string) []Table {
	return findTables(strings.Split(text, "\n"))
}

// FindTablesInLines is FindTables over pre-split lines, so a caller that
// scans the lines for headings does not split twice.
func FindTablesInLines(lines []string) []Table {
	return findTables(lines)
}

func findTables(lines []string) []Table {
	var tables []Table
	i := 0
	for i < len(lines) {
		if tableRowRegex.MatchString(lines[i]) {
			if table, end := parseTable(lines, i); table != nil {
				table.StartLine = i
				table.EndLine = end
				tables = append(tables, *table)
				i = end
				continue
			}
		}
		i++
	}
	return tables
}

// parseTable attempts to parse a table starting at lineIdx, returning the
// table and the first line past it, or nil when the lines there are not a
// valid table.
func parseTable(lines []string, lineIdx int) (*Table, int) {
	headers := parseCells(lines[lineIdx])
	if len(headers) == 0 {
		return nil, lineIdx
	}
	if lineIdx+1 >= len(lines) || !separatorRegex.MatchString(lines[lineIdx+1]) {
		return nil, lineIdx
	}

	table := &Table{Headers: headers}
	end := lineIdx + 2
	for end < len(lines) {
		if !tableRowRegex.MatchString(lines[end]) || separatorRegex.MatchString(lines[end]) {
			break
		}
		cells := parseCells(lines[end])
		for len(cells) < len(headers) {
			cells = append(cells, "")
		}
		table.Rows = append(table.Rows, cells)
		end++
	}
	if len(table.Rows) == 0 {
		return nil, lineIdx
	}
	return table, end
}

// parseCells splits one table row into trimmed cell values.
func parseCells(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")

	parts := strings.Split(row, "|")
	cells := make([]string, 0, len(parts))
	for _, part := range parts {
		cells = append(cells, strings.TrimSpace(part))
	}
	return cells
}

// Column returns the index of the header whose text contains name, or -1.
func (t Table) Column(name string) int {
	for i, h := range t.Headers {
		if strings.Contains(h, name) {
			return i
		}
	}
	return -1
}
