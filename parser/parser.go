// Package parser turns raw vendor CM-dump text into structured relation
// tables. A dump file may contain several concatenated tables, each
// introduced by a line whose first CSV field is "SubNetwork".
package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// Sentinel is the marker token that opens every table block in a
// multi-table dump.
const Sentinel = "SubNetwork"

// MaxRows caps parsed tables at the spreadsheet engine row limit.
const MaxRows = 1_048_576

// summaryRe matches trailer lines like "42 instance(s)" which are noise
// wherever they appear.
var summaryRe = regexp.MustCompile(`(?i)^\s*\d+\s+instance\(s\)\s*$`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// nullLiterals are cell values normalized to the empty string.
var nullLiterals = map[string]struct{}{
	"nan": {}, "NaN": {}, "None": {}, "none": {}, "NULL": {}, "null": {},
}

// Row maps column name to trimmed string value. All cells stay strings;
// coercion happens at the comparison sites that need it.
type Row map[string]string

// Table is one parsed relation table. Columns are unique and every row
// carries the same column set.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable returns an empty table over the given columns.
func NewTable(columns []string) *Table {
	return &Table{Columns: columns}
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// InsertFrontColumns prepends columns (in order) and sets the same value
// on every existing row. Used by the loader to inject Side and Date. An
// existing column with the same name is renamed with a numeric suffix so
// column names stay unique.
func (t *Table) InsertFrontColumns(pairs ...[2]string) {
	names := make([]string, 0, len(pairs))
	for _, p := range pairs {
		names = append(names, p[0])
		t.renameColumn(p[0])
	}
	t.Columns = append(names, t.Columns...)
	for _, row := range t.Rows {
		for _, p := range pairs {
			row[p[0]] = p[1]
		}
	}
}

// renameColumn moves an existing column called name out of the way, to
// the first free name_N.
func (t *Table) renameColumn(name string) {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	renamed := ""
	for n := 1; ; n++ {
		cand := fmt.Sprintf("%s_%d", name, n)
		if !t.HasColumn(cand) {
			renamed = cand
			break
		}
	}
	t.Columns[idx] = renamed
	for _, row := range t.Rows {
		row[renamed] = row[name]
		delete(row, name)
	}
}

// Slice is one table found in a file, in file order.
type Slice struct {
	Type  string
	Table *Table
	File  string
	Note  string
}

// IsSummaryLine reports whether the line is an "N instance(s)" trailer.
func IsSummaryLine(line string) bool {
	return summaryRe.MatchString(line)
}

// ParseLines splits the decoded lines of one file into zero or more
// table slices. Every "SubNetwork" marker line starts a new table whose
// type name is the last comma-separated field of that line. Without any
// marker the whole input is parsed as a single table with a heuristic
// header.
func ParseLines(lines []string, file string) []Slice {
	markers := findMarkers(lines)
	if len(markers) == 0 {
		return parseSingleTable(lines, file)
	}

	bounds := append(markers, len(lines))
	slices := make([]Slice, 0, len(markers))
	for i := 0; i < len(markers); i++ {
		start, end := bounds[i], bounds[i+1]
		typeName := typeFromMarkerLine(lines[start])
		table, note := parseSlice(lines, start, end)
		slices = append(slices, Slice{Type: typeName, Table: table, File: file, Note: note})
	}
	return slices
}

// findMarkers returns the indices of every line whose first trimmed
// field equals the sentinel. A sentinel line directly adjacent to a
// marker is that table's column header, not a new marker.
func findMarkers(lines []string) []int {
	var out []int
	lastKept := -2
	for i, ln := range lines {
		if !strings.HasPrefix(strings.TrimSpace(ln), Sentinel) {
			continue
		}
		if i == lastKept+1 {
			continue
		}
		out = append(out, i)
		lastKept = i
	}
	return out
}

// firstContentLine returns the index of the first non-blank, non-summary
// line in [start, end), or -1.
func firstContentLine(lines []string, start, end int) int {
	for j := start; j < end; j++ {
		if strings.TrimSpace(lines[j]) == "" || IsSummaryLine(lines[j]) {
			continue
		}
		return j
	}
	return -1
}

// typeFromMarkerLine derives the table type from a marker line: the
// last comma-separated field, falling back to the last whitespace token.
func typeFromMarkerLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	if strings.Contains(trimmed, ",") {
		fields := strings.Split(trimmed, ",")
		return strings.TrimSpace(fields[len(fields)-1])
	}
	toks := strings.Fields(trimmed)
	return toks[len(toks)-1]
}

// parseSlice parses one table bounded by a marker line (exclusive) and
// the next marker or end of input (exclusive).
func parseSlice(lines []string, markerIdx, end int) (*Table, string) {
	headerIdx := firstContentLine(lines, markerIdx+1, end)
	if headerIdx == -1 {
		return NewTable(nil), "No data header"
	}

	probeEnd := headerIdx + 50
	if probeEnd > end {
		probeEnd = end
	}
	sep := detectSeparator(lines[headerIdx:probeEnd])

	table := buildTable(lines[headerIdx], lines[headerIdx+1:end], sep)
	return capRows(table, noteForSeparator(lines[headerIdx], sep))
}

// parseSingleTable handles files without any SubNetwork marker: the
// first promising line becomes the header and everything after it data.
func parseSingleTable(lines []string, file string) []Slice {
	valid := make([]string, 0, len(lines))
	for _, ln := range lines {
		if strings.TrimSpace(ln) != "" && !IsSummaryLine(ln) {
			valid = append(valid, ln)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sep := detectSeparator(valid)

	headerIdx := -1
	for i, ln := range lines {
		if strings.TrimSpace(ln) == "" || IsSummaryLine(ln) {
			continue
		}
		if sep == "" || strings.Contains(ln, sep) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil
	}

	typeName := typeFromPreviousLine(lines, headerIdx)
	table := buildTable(lines[headerIdx], lines[headerIdx+1:], sep)
	table, note := capRows(table, noteForSeparator(lines[headerIdx], sep))
	return []Slice{{Type: typeName, Table: table, File: file, Note: note}}
}

// typeFromPreviousLine infers the table type from the line right before
// the header, if any.
func typeFromPreviousLine(lines []string, headerIdx int) string {
	if headerIdx == 0 {
		return ""
	}
	prev := strings.TrimSpace(lines[headerIdx-1])
	if prev == "" {
		return ""
	}
	if strings.Contains(prev, ",") {
		fields := strings.Split(prev, ",")
		return strings.TrimSpace(fields[len(fields)-1])
	}
	toks := strings.Fields(prev)
	return toks[len(toks)-1]
}

// detectSeparator probes non-blank, non-summary lines and prefers TAB,
// then comma. An empty result means whitespace-run splitting.
func detectSeparator(probe []string) string {
	kept := make([]string, 0, len(probe))
	for _, ln := range probe {
		if strings.TrimSpace(ln) == "" || IsSummaryLine(ln) {
			continue
		}
		kept = append(kept, ln)
	}
	for _, ln := range kept {
		if strings.Contains(ln, "\t") {
			return "\t"
		}
	}
	for _, ln := range kept {
		if strings.Contains(ln, ",") {
			return ","
		}
	}
	return ""
}

// splitLine splits by sep, or by whitespace runs when sep is empty.
func splitLine(line, sep string) []string {
	if sep == "" {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return nil
		}
		return whitespaceRe.Split(trimmed, -1)
	}
	return strings.Split(line, sep)
}

// buildTable assembles a table from a header line and the data lines
// after it. Vendor dumps put a comma-separated type hierarchy in header
// lines that start with the sentinel, so those split on comma even when
// the data rows are tab-separated.
func buildTable(headerLine string, dataLines []string, sep string) *Table {
	header := strings.TrimSpace(headerLine)
	var rawCols []string
	if strings.HasPrefix(header, Sentinel) {
		rawCols = strings.Split(header, ",")
	} else {
		rawCols = splitLine(header, sep)
	}
	for i := range rawCols {
		rawCols[i] = strings.TrimSpace(rawCols[i])
	}
	columns := uniqueColumns(rawCols)

	table := NewTable(columns)
	for _, ln := range dataLines {
		if strings.TrimSpace(ln) == "" || IsSummaryLine(ln) {
			continue
		}
		parts := splitLine(ln, sep)
		row := make(Row, len(columns))
		empty := true
		for i, col := range columns {
			val := ""
			if i < len(parts) {
				val = NormalizeCell(parts[i])
			}
			if val != "" {
				empty = false
			}
			row[col] = val
		}
		if empty {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// uniqueColumns deduplicates header names by appending a numeric suffix
// to repeats; the first occurrence keeps its name. Empty names become
// "Col".
func uniqueColumns(cols []string) []string {
	seen := make(map[string]int, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		base := c
		if base == "" {
			base = "Col"
		}
		n, ok := seen[base]
		if !ok {
			seen[base] = 0
			out = append(out, base)
			continue
		}
		seen[base] = n + 1
		out = append(out, fmt.Sprintf("%s_%d", base, n+1))
	}
	return out
}

// NormalizeCell trims a raw cell and maps textual null literals to the
// empty string.
func NormalizeCell(v string) string {
	v = strings.TrimSpace(v)
	if _, ok := nullLiterals[v]; ok {
		return ""
	}
	return v
}

// capRows trims the table to MaxRows and records the trim in the note.
func capRows(t *Table, note string) (*Table, string) {
	if len(t.Rows) > MaxRows {
		t.Rows = t.Rows[:MaxRows]
		if note != "" {
			note += " | "
		}
		note += fmt.Sprintf("Trimmed to %d rows", MaxRows)
	}
	return t, note
}

// noteForSeparator describes how the slice was split, for diagnostics.
func noteForSeparator(headerLine, sep string) string {
	if strings.HasPrefix(strings.TrimSpace(headerLine), Sentinel) {
		return "Header=SubNetwork-comma"
	}
	switch sep {
	case "\t":
		return "Tab-separated"
	case ",":
		return "Comma-separated"
	default:
		return "Whitespace-separated"
	}
}
