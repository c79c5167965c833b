// Package report renders reconciliation results into Excel workbooks:
// one audit workbook with every relation seen on either side, and one
// consistency-check workbook with summaries and per-category sheets.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"ssbretune/parser"
	"ssbretune/reconcile"
	"ssbretune/snapshot"
)

// Workbook file names written into the output directory.
const (
	AllRelationsFile = "CellRelation.xlsx"
	ChecksFile       = "CellRelationConsistencyChecks.xlsx"
)

// sheetPrefixes maps relation types to their short sheet-name prefix.
var sheetPrefixes = map[string]string{
	"GUtranCellRelation": "GU",
	"NRCellRelation":     "NR",
}

// leadingColumns are forced to the front of every per-type sheet so the
// identifying columns always read left to right in the same order.
var leadingColumns = map[string][]string{
	"GUtranCellRelation": {"NodeId", "EUtranCellFDDId", "GUtranFreqRelationId", "GUtranCellRelationId"},
	"NRCellRelation":     {"NodeId", "NRCellCUId", "NRCellRelationId"},
}

// Writer renders workbooks. The zero value writes with slog.Default.
type Writer struct {
	Logger *slog.Logger
}

func (w *Writer) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// Write renders both workbooks into dir and returns the written paths.
// Existing files are never overwritten; a numeric suffix is appended.
func (w *Writer) Write(dir string, results map[string]*reconcile.Result, skips []reconcile.Skip) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string

	relPath, err := w.writeRelationsWorkbook(dir, results)
	if err != nil {
		return written, err
	}
	if relPath != "" {
		written = append(written, relPath)
	}

	checksPath, err := w.writeChecksWorkbook(dir, results, skips)
	if err != nil {
		return written, err
	}
	written = append(written, checksPath)
	return written, nil
}

// writeRelationsWorkbook writes the all-relations audit workbook, one
// sheet per relation type. Nothing is written when no result carries an
// all-relations table.
func (w *Writer) writeRelationsWorkbook(dir string, results map[string]*reconcile.Result) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	wrote := false
	for _, relType := range snapshot.RelationTypes {
		res, ok := results[relType]
		if !ok || res.AllRelations.Empty() {
			continue
		}
		sheet := sheetPrefixes[relType] + "_all"
		cols := withLeading(res.AllRelations.Columns, leadingColumns[relType])
		if err := writeTableSheet(f, sheet, cols, tableRowsOrdered(res.AllRelations, cols)); err != nil {
			return "", err
		}
		wrote = true
	}
	if !wrote {
		return "", nil
	}

	path := versionedPath(dir, AllRelationsFile)
	if err := finishWorkbook(f, path); err != nil {
		return "", err
	}
	w.logger().Info("workbook written", "file", path)
	return path, nil
}

// writeChecksWorkbook writes the consistency-check workbook: Summary,
// Summary_Detailed and the per-category sheets for every relation type.
func (w *Writer) writeChecksWorkbook(dir string, results map[string]*reconcile.Result, skips []reconcile.Skip) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeTableSheet(f, "Summary", summaryColumns, summaryRows(results, skips)); err != nil {
		return "", err
	}
	if err := writeTableSheet(f, "Summary_Detailed", detailedColumns, detailedRows(results)); err != nil {
		return "", err
	}

	for _, relType := range snapshot.RelationTypes {
		res, ok := results[relType]
		if !ok {
			continue
		}
		prefix := sheetPrefixes[relType]
		leading := leadingColumns[relType]
		for _, s := range []struct {
			name string
			tbl  *parser.Table
		}{
			{prefix + "_disc", res.Discrepancies},
			{prefix + "_missing", res.MissingInPost},
			{prefix + "_new", res.NewInPost},
			{prefix + "_relations", res.AllRelations},
		} {
			cols := withLeading(s.tbl.Columns, leading)
			if err := writeTableSheet(f, s.name, cols, tableRowsOrdered(s.tbl, cols)); err != nil {
				return "", err
			}
		}
	}

	path := versionedPath(dir, ChecksFile)
	if err := finishWorkbook(f, path); err != nil {
		return "", err
	}
	w.logger().Info("workbook written", "file", path)
	return path, nil
}

var summaryColumns = []string{
	"Table", "Status", "KeyColumns", "FreqColumn",
	"PreRows", "PostRows", "Common", "NewInPost", "MissingInPost",
	"ParamDiscrepancies", "FreqViolations",
}

func summaryRows(results map[string]*reconcile.Result, skips []reconcile.Skip) [][]string {
	var rows [][]string
	for _, relType := range snapshot.RelationTypes {
		res, ok := results[relType]
		if !ok {
			continue
		}
		paramDiffs, freqDiffs := 0, 0
		for _, ps := range res.PairStats {
			if ps.ParamDiff {
				paramDiffs++
			}
			if ps.FreqDiff {
				freqDiffs++
			}
		}
		rows = append(rows, []string{
			relType, "OK",
			strings.Join(res.Meta.KeyColumns, ", "),
			res.Meta.FreqColumn,
			fmt.Sprint(res.Meta.PreRows),
			fmt.Sprint(res.Meta.PostRows),
			fmt.Sprint(len(res.PairStats)),
			fmt.Sprint(res.NewInPost.Len()),
			fmt.Sprint(res.MissingInPost.Len()),
			fmt.Sprint(paramDiffs),
			fmt.Sprint(freqDiffs),
		})
	}
	for _, skip := range skips {
		rows = append(rows, []string{
			skip.Table, fmt.Sprintf("%s: %s", skip.Code, skip.Message),
			"", "", "", "", "", "", "", "", "",
		})
	}
	return rows
}

var detailedColumns = []string{
	"Table", "KeyColumns", "FreqColumn", "Freq_Pre", "Freq_Post",
	"Relations_Pre", "Relations_Post", "Parameters_Discrepancies",
	"Freq_Discrepancies", "New_Relations", "Missing_Relations",
}

// detailedRows breaks every result down by normalized frequency pair.
// The pair universe is the union of the common-key pairs, the pairs of
// the new and missing rows, and a neutral (f, f) pair for every
// frequency seen on either side, so a frequency that only ever appears
// in new or missing relations still gets a row.
func detailedRows(results map[string]*reconcile.Result) [][]string {
	var rows [][]string
	for _, relType := range snapshot.RelationTypes {
		res, ok := results[relType]
		if !ok {
			continue
		}

		params := make(map[[2]string]int)
		freqs := make(map[[2]string]int)
		pairSet := make(map[[2]string]struct{})
		for _, ps := range res.PairStats {
			p := [2]string{ps.FreqPre, ps.FreqPost}
			pairSet[p] = struct{}{}
			if ps.ParamDiff {
				params[p]++
			}
			if ps.FreqDiff {
				freqs[p]++
			}
		}
		newBy := freqPairCounts(res.NewInPost)
		missBy := freqPairCounts(res.MissingInPost)
		for p := range newBy {
			pairSet[p] = struct{}{}
		}
		for p := range missBy {
			pairSet[p] = struct{}{}
		}
		for f := range res.Meta.PreFreqCounts {
			pairSet[[2]string{f, f}] = struct{}{}
		}
		for f := range res.Meta.PostFreqCounts {
			pairSet[[2]string{f, f}] = struct{}{}
		}

		pairs := make([][2]string, 0, len(pairSet))
		for p := range pairSet {
			pairs = append(pairs, p)
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i][0] != pairs[j][0] {
				return pairs[i][0] < pairs[j][0]
			}
			return pairs[i][1] < pairs[j][1]
		})

		for _, p := range pairs {
			rows = append(rows, []string{
				relType,
				strings.Join(res.Meta.KeyColumns, ", "),
				res.Meta.FreqColumn,
				p[0], p[1],
				fmt.Sprint(res.Meta.PreFreqCounts[p[0]]),
				fmt.Sprint(res.Meta.PostFreqCounts[p[1]]),
				fmt.Sprint(params[p]),
				fmt.Sprint(freqs[p]),
				fmt.Sprint(newBy[p]),
				fmt.Sprint(missBy[p]),
			})
		}
	}
	return rows
}

// freqPairCounts tallies a new/missing table by its sentineled
// (Freq_Pre, Freq_Post) annotation columns.
func freqPairCounts(tbl *parser.Table) map[[2]string]int {
	counts := make(map[[2]string]int)
	for _, row := range tbl.Rows {
		p := [2]string{
			reconcile.Sentineled(row["Freq_Pre"]),
			reconcile.Sentineled(row["Freq_Post"]),
		}
		counts[p]++
	}
	return counts
}

// writeTableSheet creates one sheet with a styled header row and string
// cell values.
func writeTableSheet(f *excelize.File, sheet string, columns []string, rows [][]string) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, col)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	for r, row := range rows {
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, val)
		}
	}
	for i := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, 18)
	}
	return nil
}

// withLeading moves the leading columns present in cols to the front,
// keeping the relative order of the rest.
func withLeading(cols, leading []string) []string {
	present := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		present[c] = struct{}{}
	}
	var out []string
	taken := make(map[string]struct{}, len(leading))
	for _, c := range leading {
		if _, ok := present[c]; ok {
			out = append(out, c)
			taken[c] = struct{}{}
		}
	}
	for _, c := range cols {
		if _, ok := taken[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// tableRowsOrdered flattens a parser table into rows ordered by cols.
func tableRowsOrdered(tbl *parser.Table, cols []string) [][]string {
	out := make([][]string, 0, tbl.Len())
	for _, row := range tbl.Rows {
		vals := make([]string, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		out = append(out, vals)
	}
	return out
}

// finishWorkbook drops the default sheet, activates the first real one
// and saves.
func finishWorkbook(f *excelize.File, path string) error {
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// versionedPath returns dir/name, or dir/name_N for the smallest N that
// does not collide with an existing file.
func versionedPath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
