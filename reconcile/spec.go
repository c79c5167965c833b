package reconcile

import (
	"strings"

	"ssbretune/snapshot"
)

// relationSpec is the static per-relation-type configuration: which
// columns identify an instance, which column carries the frequency, and
// which grammar decodes it.
type relationSpec struct {
	// PreferredKeys are used as the composite key when all of them are
	// present in the table.
	PreferredKeys []string
	// RequiredColumns are carried into report rows for readability.
	RequiredColumns []string
	// FreqColumn, when set and present, wins over the heuristic scan.
	FreqColumn string
	Grammar    Grammar
}

var relationSpecs = map[string]relationSpec{
	"GUtranCellRelation": {
		PreferredKeys:   []string{"NodeId", "EUtranCellFDDId", "GUtranCellRelationId"},
		RequiredColumns: []string{"NodeId", "EUtranCellFDDId", "GUtranFreqRelationId", "GUtranCellRelationId"},
		FreqColumn:      "GUtranFreqRelationId",
		Grammar:         GrammarGU,
	},
	"NRCellRelation": {
		PreferredKeys:   []string{"NodeId", "NRCellCUId", "NRCellRelationId"},
		RequiredColumns: []string{"NodeId", "NRCellCUId", "NRCellRelationId"},
		Grammar:         GrammarNR,
	},
}

func specFor(tableName string) relationSpec {
	if s, ok := relationSpecs[tableName]; ok {
		return s
	}
	return relationSpec{Grammar: GrammarGU}
}

// metaColumns are injected by the loader and never take part in key or
// parameter comparison.
var metaColumns = map[string]struct{}{
	snapshot.SideColumn: {},
	snapshot.DateColumn: {},
}

func isMetaColumn(name string) bool {
	_, ok := metaColumns[name]
	return ok
}

// detectFreqColumn resolves the frequency column for a table: the
// spec's preferred column when present, otherwise the first column
// whose name contains "freqrelation" or "freq" (case-insensitive).
func detectFreqColumn(tableName string, columns []string) string {
	spec := specFor(tableName)
	if spec.FreqColumn != "" {
		for _, c := range columns {
			if c == spec.FreqColumn {
				return c
			}
		}
	}
	for _, c := range columns {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "freqrelation") || strings.Contains(lc, "freq") {
			return c
		}
	}
	return ""
}

// resolveKeyColumns resolves the composite key, in precedence order:
// the full preferred key set, then up to two id-suffixed columns
// (excluding the frequency and meta columns), then neighborCellRef,
// then the first remaining column that is neither meta nor the
// frequency column.
func resolveKeyColumns(tableName string, columns []string, freqCol string) []string {
	spec := specFor(tableName)
	if len(spec.PreferredKeys) > 0 && containsAll(columns, spec.PreferredKeys) {
		return spec.PreferredKeys
	}

	var idLike []string
	for _, c := range columns {
		if c == freqCol || isMetaColumn(c) {
			continue
		}
		if strings.HasSuffix(strings.ToLower(c), "id") {
			idLike = append(idLike, c)
		}
	}
	if len(idLike) > 2 {
		idLike = idLike[:2]
	}
	if len(idLike) > 0 {
		return idLike
	}

	for _, c := range columns {
		if c == "neighborCellRef" {
			return []string{c}
		}
	}
	for _, c := range columns {
		if c != freqCol && !isMetaColumn(c) {
			return []string{c}
		}
	}
	return nil
}

func containsAll(columns, wanted []string) bool {
	for _, w := range wanted {
		found := false
		for _, c := range columns {
			if c == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
