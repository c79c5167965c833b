// Package reconcile diffs Pre and Post snapshots of the same relation
// table and classifies every relation as unchanged, frequency-migrated,
// parameter-discrepant, new or missing. It is pure computation; all
// file I/O stays in the snapshot loader.
package reconcile

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"ssbretune/parser"
	"ssbretune/snapshot"
)

// keySeparator joins key-column values into a composite join key. It
// does not occur in vendor identifier values.
const keySeparator = "||"

// DiagCode labels a soft failure that skips one relation type without
// aborting the run.
type DiagCode string

const (
	DiagNoFrequencyColumn DiagCode = "NoFrequencyColumn"
	DiagNoKeyColumn       DiagCode = "NoKeyColumn"
	DiagEmptySides        DiagCode = "EmptySides"
)

// Skip reports why a relation type produced no result.
type Skip struct {
	Table   string
	Code    DiagCode
	Message string
}

// PairStat is the per-common-key substrate for aggregate counts: the
// normalized frequency on each side plus the two violation flags.
type PairStat struct {
	Key       string
	FreqPre   string
	FreqPost  string
	ParamDiff bool
	FreqDiff  bool
}

// Meta records which columns drove the comparison, the per-side row
// counts after latest-date selection, and how many rows of each side
// carry each normalized base frequency (sentineled, counted before key
// dedup).
type Meta struct {
	KeyColumns     []string
	FreqColumn     string
	PreRows        int
	PostRows       int
	PreFreqCounts  map[string]int
	PostFreqCounts map[string]int
}

// Result is the reconciliation bundle for one relation type. It is
// read-only once returned.
type Result struct {
	Discrepancies *parser.Table
	NewInPost     *parser.Table
	MissingInPost *parser.Table
	PairStats     []PairStat
	AllRelations  *parser.Table
	Meta          Meta
}

// Reconcile compares the Pre and Post rows of one aggregated relation
// table against the freq_before → freq_after migration and returns the
// classification bundle, or a Skip when the table cannot be keyed.
func Reconcile(tableName string, combined *parser.Table, freqBefore, freqAfter string) (*Result, *Skip) {
	if combined.Empty() {
		return nil, &Skip{Table: tableName, Code: DiagEmptySides, Message: "no rows loaded"}
	}

	freqCol := detectFreqColumn(tableName, combined.Columns)
	if freqCol == "" {
		return nil, &Skip{Table: tableName, Code: DiagNoFrequencyColumn,
			Message: "no frequency column detected"}
	}
	keyCols := resolveKeyColumns(tableName, combined.Columns, freqCol)
	if len(keyCols) == 0 {
		return nil, &Skip{Table: tableName, Code: DiagNoKeyColumn,
			Message: "no key column detected"}
	}

	preLatest := selectLatest(combined.Rows, snapshot.SidePre)
	postLatest := selectLatest(combined.Rows, snapshot.SidePost)
	if len(preLatest) == 0 && len(postLatest) == 0 {
		return nil, &Skip{Table: tableName, Code: DiagEmptySides, Message: "no Pre or Post rows"}
	}

	preIdx := indexRows(preLatest, keyCols)
	postIdx := indexRows(postLatest, keyCols)

	commonKeys, newKeys, missingKeys := classifyKeys(preIdx, postIdx)

	grammar := specFor(tableName).Grammar
	fb := strings.TrimSpace(freqBefore)
	fa := strings.TrimSpace(freqAfter)

	sharedCols := diffableColumns(combined.Columns, keyCols, freqCol)

	pairStats := make([]PairStat, 0, len(commonKeys))
	diffColsByKey := make(map[string][]string, len(commonKeys))
	var discrepancyKeys []string
	for _, k := range commonKeys {
		preRow, postRow := preIdx[k], postIdx[k]
		preBase := BaseFrequency(grammar, preRow[freqCol])
		postBase := BaseFrequency(grammar, postRow[freqCol])

		freqViolated := (preBase == fb && postBase != fa) || (preBase == fa && postBase != fa)

		var diffCols []string
		for _, c := range sharedCols {
			if preRow[c] != postRow[c] {
				diffCols = append(diffCols, c)
			}
		}
		sort.Strings(diffCols)
		diffColsByKey[k] = diffCols

		pairStats = append(pairStats, PairStat{
			Key:       k,
			FreqPre:   Sentineled(preBase),
			FreqPost:  Sentineled(postBase),
			ParamDiff: len(diffCols) > 0,
			FreqDiff:  freqViolated,
		})
		if freqViolated || len(diffCols) > 0 {
			discrepancyKeys = append(discrepancyKeys, k)
		}
	}

	res := &Result{
		Discrepancies: buildDiscrepancies(tableName, discrepancyKeys, keyCols, freqCol, preIdx, postIdx, diffColsByKey),
		NewInPost:     buildSideOnly(combined.Columns, newKeys, postIdx, grammar, freqCol, false),
		MissingInPost: buildSideOnly(combined.Columns, missingKeys, preIdx, grammar, freqCol, true),
		PairStats:     pairStats,
		AllRelations:  buildAllRelations(combined.Columns, keyCols, freqCol, grammar, preIdx, postIdx),
		Meta: Meta{
			KeyColumns:     keyCols,
			FreqColumn:     freqCol,
			PreRows:        len(preLatest),
			PostRows:       len(postLatest),
			PreFreqCounts:  freqCounts(preLatest, grammar, freqCol),
			PostFreqCounts: freqCounts(postLatest, grammar, freqCol),
		},
	}
	return res, nil
}

// ReconcileAll runs Reconcile for every relation type concurrently.
// Relation types are independent; results and skips are collected under
// one mutex. Skips are soft: a failed type never aborts the others.
func ReconcileAll(tables map[string]*parser.Table, freqBefore, freqAfter string, logger *slog.Logger) (map[string]*Result, []Skip) {
	if logger == nil {
		logger = slog.Default()
	}

	results := make(map[string]*Result, len(tables))
	var skips []Skip
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, tbl := range tables {
		wg.Add(1)
		go func(name string, tbl *parser.Table) {
			defer wg.Done()
			res, skip := Reconcile(name, tbl, freqBefore, freqAfter)
			mu.Lock()
			defer mu.Unlock()
			if skip != nil {
				skips = append(skips, *skip)
				logger.Warn("relation table skipped",
					"table", name, "code", string(skip.Code), "reason", skip.Message)
				return
			}
			results[name] = res
			logger.Info("relation table reconciled",
				"table", name,
				"keys", strings.Join(res.Meta.KeyColumns, ","),
				"freqColumn", res.Meta.FreqColumn,
				"discrepancies", res.Discrepancies.Len(),
				"newInPost", res.NewInPost.Len(),
				"missingInPost", res.MissingInPost.Len())
		}(name, tbl)
	}
	wg.Wait()

	sort.Slice(skips, func(i, j int) bool { return skips[i].Table < skips[j].Table })
	return results, skips
}

// selectLatest returns the normalized rows of one side, restricted to
// the most recent snapshot date when several dates are present. Rows
// without a parseable date are kept only when no row has one.
func selectLatest(rows []parser.Row, side string) []parser.Row {
	var subset []parser.Row
	maxDate := ""
	for _, row := range rows {
		if !strings.EqualFold(row[snapshot.SideColumn], side) {
			continue
		}
		subset = append(subset, normalizeRow(row))
		if d := row[snapshot.DateColumn]; isSnapshotDate(d) && d > maxDate {
			maxDate = d
		}
	}
	if maxDate == "" {
		return subset
	}
	latest := subset[:0:0]
	for _, row := range subset {
		if row[snapshot.DateColumn] == maxDate {
			latest = append(latest, row)
		}
	}
	return latest
}

func isSnapshotDate(s string) bool {
	if len(s) != len(snapshot.DateLayout) {
		return false
	}
	for i, r := range s {
		if snapshot.DateLayout[i] == '-' {
			if r != '-' {
				return false
			}
		} else if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// freqCounts tallies the sentineled base frequencies of one side.
func freqCounts(rows []parser.Row, grammar Grammar, freqCol string) map[string]int {
	counts := make(map[string]int)
	for _, row := range rows {
		counts[Sentineled(BaseFrequency(grammar, row[freqCol]))]++
	}
	return counts
}

// normalizeRow re-applies the parser's cell normalization defensively.
func normalizeRow(row parser.Row) parser.Row {
	out := make(parser.Row, len(row))
	for k, v := range row {
		out[k] = parser.NormalizeCell(v)
	}
	return out
}

// indexRows builds the composite-key index. Duplicate keys keep the
// last occurrence in scan order.
func indexRows(rows []parser.Row, keyCols []string) map[string]parser.Row {
	idx := make(map[string]parser.Row, len(rows))
	for _, row := range rows {
		parts := make([]string, len(keyCols))
		for i, c := range keyCols {
			parts[i] = row[c]
		}
		idx[strings.Join(parts, keySeparator)] = row
	}
	return idx
}

// classifyKeys splits the two key sets into common, Post-only and
// Pre-only, each sorted for deterministic output.
func classifyKeys(preIdx, postIdx map[string]parser.Row) (common, newInPost, missingInPost []string) {
	for k := range postIdx {
		if _, ok := preIdx[k]; ok {
			common = append(common, k)
		} else {
			newInPost = append(newInPost, k)
		}
	}
	for k := range preIdx {
		if _, ok := postIdx[k]; !ok {
			missingInPost = append(missingInPost, k)
		}
	}
	sort.Strings(common)
	sort.Strings(newInPost)
	sort.Strings(missingInPost)
	return common, newInPost, missingInPost
}

// diffableColumns lists the columns that take part in the generic
// parameter comparison.
func diffableColumns(columns, keyCols []string, freqCol string) []string {
	keySet := make(map[string]struct{}, len(keyCols))
	for _, c := range keyCols {
		keySet[c] = struct{}{}
	}
	var out []string
	for _, c := range columns {
		if c == freqCol || isMetaColumn(c) {
			continue
		}
		if _, ok := keySet[c]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// buildDiscrepancies assembles the discrepancy table: key columns,
// per-side dates and raw frequency values, the relation's required
// columns (Post value preferred), the sorted DiffColumns list and a
// side-by-side value pair for every differing column.
func buildDiscrepancies(tableName string, keys, keyCols []string, freqCol string, preIdx, postIdx map[string]parser.Row, diffColsByKey map[string][]string) *parser.Table {
	spec := specFor(tableName)

	pairSet := make(map[string]struct{})
	for _, k := range keys {
		for _, c := range diffColsByKey[k] {
			pairSet[c] = struct{}{}
		}
	}
	pairCols := make([]string, 0, len(pairSet))
	for c := range pairSet {
		pairCols = append(pairCols, c)
	}
	sort.Strings(pairCols)

	columns := []string{"Date_Pre", "Date_Post", "Freq_Pre", "Freq_Post"}
	columns = appendMissing(columns, keyCols...)
	columns = appendMissing(columns, spec.RequiredColumns...)
	columns = append(columns, "DiffColumns")
	for _, c := range pairCols {
		columns = append(columns, c+"_Pre", c+"_Post")
	}

	out := parser.NewTable(columns)
	for _, k := range keys {
		preRow, postRow := preIdx[k], postIdx[k]
		row := make(parser.Row, len(columns))
		for _, c := range columns {
			row[c] = ""
		}
		for _, c := range keyCols {
			row[c] = preRow[c]
		}
		row["Date_Pre"] = preRow[snapshot.DateColumn]
		row["Date_Post"] = postRow[snapshot.DateColumn]
		row["Freq_Pre"] = preRow[freqCol]
		row["Freq_Post"] = postRow[freqCol]
		for _, rc := range spec.RequiredColumns {
			if v := postRow[rc]; v != "" {
				row[rc] = v
			} else {
				row[rc] = preRow[rc]
			}
		}
		diffCols := diffColsByKey[k]
		row["DiffColumns"] = strings.Join(diffCols, ", ")
		for _, c := range diffCols {
			row[c+"_Pre"] = preRow[c]
			row[c+"_Post"] = postRow[c]
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// buildSideOnly assembles the new-in-Post or missing-in-Post table:
// the side's own data columns (meta columns stripped) plus the
// normalized frequency annotation, with the absent side sentineled.
func buildSideOnly(columns, keys []string, idx map[string]parser.Row, grammar Grammar, freqCol string, missing bool) *parser.Table {
	var dataCols []string
	for _, c := range columns {
		if isMetaColumn(c) {
			continue
		}
		dataCols = append(dataCols, c)
	}
	outCols := appendMissing(append([]string{}, dataCols...), "Freq_Pre", "Freq_Post")

	out := parser.NewTable(outCols)
	for _, k := range keys {
		src := idx[k]
		row := make(parser.Row, len(outCols))
		for _, c := range dataCols {
			row[c] = src[c]
		}
		base := Sentineled(BaseFrequency(grammar, src[freqCol]))
		if missing {
			row["Freq_Pre"] = base
			row["Freq_Post"] = EmptySentinel
		} else {
			row["Freq_Pre"] = EmptySentinel
			row["Freq_Post"] = base
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// buildAllRelations assembles the audit view: a full outer join of the
// two sides on the key columns, Post values preferred when non-empty,
// with normalized per-side frequencies always present.
func buildAllRelations(columns, keyCols []string, freqCol string, grammar Grammar, preIdx, postIdx map[string]parser.Row) *parser.Table {
	keySet := make(map[string]struct{}, len(keyCols))
	for _, c := range keyCols {
		keySet[c] = struct{}{}
	}
	var rest []string
	for _, c := range columns {
		if isMetaColumn(c) {
			continue
		}
		if _, ok := keySet[c]; ok {
			continue
		}
		rest = append(rest, c)
	}

	outCols := append([]string{}, keyCols...)
	outCols = append(outCols, "Freq_Pre", "Freq_Post")
	outCols = appendMissing(outCols, rest...)

	allKeys := make([]string, 0, len(preIdx)+len(postIdx))
	seen := make(map[string]struct{}, len(preIdx)+len(postIdx))
	for k := range preIdx {
		seen[k] = struct{}{}
		allKeys = append(allKeys, k)
	}
	for k := range postIdx {
		if _, ok := seen[k]; !ok {
			allKeys = append(allKeys, k)
		}
	}
	sort.Strings(allKeys)

	out := parser.NewTable(outCols)
	for _, k := range allKeys {
		preRow, hasPre := preIdx[k]
		postRow, hasPost := postIdx[k]
		row := make(parser.Row, len(outCols))

		keySrc := postRow
		if !hasPost {
			keySrc = preRow
		}
		for _, c := range keyCols {
			row[c] = keySrc[c]
		}

		row["Freq_Pre"] = EmptySentinel
		if hasPre {
			row["Freq_Pre"] = Sentineled(BaseFrequency(grammar, preRow[freqCol]))
		}
		row["Freq_Post"] = EmptySentinel
		if hasPost {
			row["Freq_Post"] = Sentineled(BaseFrequency(grammar, postRow[freqCol]))
		}

		for _, c := range rest {
			v := ""
			if hasPost {
				v = postRow[c]
			}
			if v == "" && hasPre {
				v = preRow[c]
			}
			row[c] = v
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func appendMissing(dst []string, names ...string) []string {
	for _, n := range names {
		found := false
		for _, c := range dst {
			if c == n {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, n)
		}
	}
	return dst
}

// Summary returns a one-line description used in logs and reports.
func (s Skip) Summary() string {
	return fmt.Sprintf("%s: %s (%s)", s.Table, s.Message, s.Code)
}
