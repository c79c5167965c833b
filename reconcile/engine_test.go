package reconcile

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssbretune/parser"
	"ssbretune/snapshot"
)

func guColumns() []string {
	return []string{
		snapshot.SideColumn, snapshot.DateColumn,
		"NodeId", "EUtranCellFDDId", "GUtranCellRelationId", "GUtranFreqRelationId",
		"isHoAllowed",
	}
}

func guRow(side, date, node, cell, rel, freq, ho string) parser.Row {
	return parser.Row{
		snapshot.SideColumn:    side,
		snapshot.DateColumn:    date,
		"NodeId":               node,
		"EUtranCellFDDId":      cell,
		"GUtranCellRelationId": rel,
		"GUtranFreqRelationId": freq,
		"isHoAllowed":          ho,
	}
}

func guTable(rows ...parser.Row) *parser.Table {
	tbl := parser.NewTable(guColumns())
	tbl.Rows = rows
	return tbl
}

func TestReconcileUnchangedRelation(t *testing.T) {
	tbl := guTable(
		guRow(snapshot.SidePre, "2025-01-03", "ERBS1", "Cell1", "Rel1", "648672-30-20-0-1", "true"),
		guRow(snapshot.SidePost, "2025-01-10", "ERBS1", "Cell1", "Rel1", "648672-30-20-0-1", "true"),
	)

	res, skip := Reconcile("GUtranCellRelation", tbl, "647328", "648672")
	require.Nil(t, skip)

	assert.Equal(t, 0, res.Discrepancies.Len())
	assert.Equal(t, 0, res.NewInPost.Len())
	assert.Equal(t, 0, res.MissingInPost.Len())

	require.Len(t, res.PairStats, 1)
	ps := res.PairStats[0]
	assert.Equal(t, "648672", ps.FreqPre)
	assert.Equal(t, "648672", ps.FreqPost)
	assert.False(t, ps.FreqDiff)
	assert.False(t, ps.ParamDiff)

	assert.Equal(t, []string{"NodeId", "EUtranCellFDDId", "GUtranCellRelationId"}, res.Meta.KeyColumns)
	assert.Equal(t, "GUtranFreqRelationId", res.Meta.FreqColumn)
	assert.Equal(t, 1, res.AllRelations.Len())
}

func TestReconcileFrequencyMigration(t *testing.T) {
	tbl := guTable(
		// Migrated as planned.
		guRow(snapshot.SidePre, "2025-01-03", "ERBS1", "Cell1", "Rel1", "647328", "true"),
		guRow(snapshot.SidePost, "2025-01-10", "ERBS1", "Cell1", "Rel1", "648672-30-20-0-1", "true"),
		// Still on the old frequency after the retune.
		guRow(snapshot.SidePre, "2025-01-03", "ERBS1", "Cell1", "Rel2", "647328", "true"),
		guRow(snapshot.SidePost, "2025-01-10", "ERBS1", "Cell1", "Rel2", "647328", "true"),
	)

	res, skip := Reconcile("GUtranCellRelation", tbl, "647328", "648672")
	require.Nil(t, skip)

	require.Equal(t, 1, res.Discrepancies.Len())
	row := res.Discrepancies.Rows[0]
	assert.Equal(t, "Rel2", row["GUtranCellRelationId"])
	assert.Equal(t, "", row["DiffColumns"], "pure frequency violation carries no parameter diff")
	assert.Equal(t, "647328", row["Freq_Pre"])
	assert.Equal(t, "647328", row["Freq_Post"])
	assert.Equal(t, "2025-01-03", row["Date_Pre"])
	assert.Equal(t, "2025-01-10", row["Date_Post"])

	byKey := map[string]PairStat{}
	for _, ps := range res.PairStats {
		byKey[ps.Key] = ps
	}
	assert.False(t, byKey["ERBS1||Cell1||Rel1"].FreqDiff)
	assert.True(t, byKey["ERBS1||Cell1||Rel2"].FreqDiff)

	assert.Equal(t, map[string]int{"647328": 2}, res.Meta.PreFreqCounts)
	assert.Equal(t, map[string]int{"648672": 1, "647328": 1}, res.Meta.PostFreqCounts)
}

func TestReconcileParameterDiff(t *testing.T) {
	tbl := guTable(
		guRow(snapshot.SidePre, "2025-01-03", "ERBS1", "Cell1", "Rel1", "648672", "true"),
		guRow(snapshot.SidePost, "2025-01-10", "ERBS1", "Cell1", "Rel1", "648672", "false"),
	)

	res, skip := Reconcile("GUtranCellRelation", tbl, "647328", "648672")
	require.Nil(t, skip)

	require.Equal(t, 1, res.Discrepancies.Len())
	row := res.Discrepancies.Rows[0]
	assert.Equal(t, "isHoAllowed", row["DiffColumns"])
	assert.Equal(t, "true", row["isHoAllowed_Pre"])
	assert.Equal(t, "false", row["isHoAllowed_Post"])
	assert.Contains(t, res.Discrepancies.Columns, "isHoAllowed_Pre")
	assert.Contains(t, res.Discrepancies.Columns, "isHoAllowed_Post")

	require.Len(t, res.PairStats, 1)
	assert.True(t, res.PairStats[0].ParamDiff)
	assert.False(t, res.PairStats[0].FreqDiff)
}

func TestReconcileNewAndMissingAreExclusive(t *testing.T) {
	tbl := guTable(
		guRow(snapshot.SidePre, "2025-01-03", "ERBS1", "Cell1", "RelOld", "647328", "true"),
		guRow(snapshot.SidePost, "2025-01-10", "ERBS1", "Cell1", "RelNew", "648672-30-20-0-1", "true"),
	)

	res, skip := Reconcile("GUtranCellRelation", tbl, "647328", "648672")
	require.Nil(t, skip)

	assert.Empty(t, res.PairStats)
	assert.Equal(t, 0, res.Discrepancies.Len())

	require.Equal(t, 1, res.NewInPost.Len())
	newRow := res.NewInPost.Rows[0]
	assert.Equal(t, "RelNew", newRow["GUtranCellRelationId"])
	assert.Equal(t, EmptySentinel, newRow["Freq_Pre"])
	assert.Equal(t, "648672", newRow["Freq_Post"])

	require.Equal(t, 1, res.MissingInPost.Len())
	missRow := res.MissingInPost.Rows[0]
	assert.Equal(t, "RelOld", missRow["GUtranCellRelationId"])
	assert.Equal(t, "647328", missRow["Freq_Pre"])
	assert.Equal(t, EmptySentinel, missRow["Freq_Post"])

	// Both relations appear exactly once in the outer join.
	assert.Equal(t, 2, res.AllRelations.Len())
}

func TestReconcileDuplicateKeyLastWins(t *testing.T) {
	tbl := guTable(
		guRow(snapshot.SidePre, "2025-01-03", "ERBS1", "Cell1", "Rel1", "647328", "true"),
		guRow(snapshot.SidePre, "2025-01-03", "ERBS1", "Cell1", "Rel1", "648672", "true"),
		guRow(snapshot.SidePost, "2025-01-10", "ERBS1", "Cell1", "Rel1", "648672", "true"),
	)

	res, skip := Reconcile("GUtranCellRelation", tbl, "647328", "648672")
	require.Nil(t, skip)

	require.Len(t, res.PairStats, 1)
	assert.Equal(t, "648672", res.PairStats[0].FreqPre, "last duplicate occurrence should win")
	assert.Equal(t, 0, res.Discrepancies.Len())
	assert.Equal(t, 2, res.Meta.PreRows, "row counts are taken before dedup")
}

func TestReconcileKeepsOnlyLatestSnapshotDate(t *testing.T) {
	tbl := guTable(
		guRow(snapshot.SidePre, "2025-01-01", "ERBS1", "Cell1", "RelStale", "647328", "true"),
		guRow(snapshot.SidePre, "2025-01-03", "ERBS1", "Cell1", "Rel1", "647328", "true"),
		guRow(snapshot.SidePost, "2025-01-10", "ERBS1", "Cell1", "Rel1", "648672", "true"),
	)

	res, skip := Reconcile("GUtranCellRelation", tbl, "647328", "648672")
	require.Nil(t, skip)

	assert.Equal(t, 0, res.MissingInPost.Len(), "stale snapshot rows must not count as missing")
	assert.Equal(t, 1, res.Meta.PreRows)
}

func TestReconcileNRGrammar(t *testing.T) {
	cols := []string{
		snapshot.SideColumn, snapshot.DateColumn,
		"NodeId", "NRCellCUId", "NRCellRelationId", "nRFreqRelationRef",
	}
	tbl := parser.NewTable(cols)
	tbl.Rows = []parser.Row{
		{
			snapshot.SideColumn: snapshot.SidePre, snapshot.DateColumn: "2025-01-03",
			"NodeId": "gNB1", "NRCellCUId": "Cell1", "NRCellRelationId": "Rel1",
			"nRFreqRelationRef": "NRNetwork=1,NRFreqRelation=620352",
		},
		{
			snapshot.SideColumn: snapshot.SidePost, snapshot.DateColumn: "2025-01-10",
			"NodeId": "gNB1", "NRCellCUId": "Cell1", "NRCellRelationId": "Rel1",
			"nRFreqRelationRef": "NRNetwork=1,NRFreqRelation=653952",
		},
	}

	res, skip := Reconcile("NRCellRelation", tbl, "620352", "653952")
	require.Nil(t, skip)

	assert.Equal(t, "nRFreqRelationRef", res.Meta.FreqColumn)
	require.Len(t, res.PairStats, 1)
	assert.Equal(t, "620352", res.PairStats[0].FreqPre)
	assert.Equal(t, "653952", res.PairStats[0].FreqPost)
	assert.False(t, res.PairStats[0].FreqDiff)
}

func TestReconcileSkips(t *testing.T) {
	t.Run("empty table", func(t *testing.T) {
		_, skip := Reconcile("GUtranCellRelation", parser.NewTable(guColumns()), "647328", "648672")
		require.NotNil(t, skip)
		assert.Equal(t, DiagEmptySides, skip.Code)
	})

	t.Run("no frequency column", func(t *testing.T) {
		cols := []string{snapshot.SideColumn, snapshot.DateColumn, "NodeId"}
		tbl := parser.NewTable(cols)
		tbl.Rows = []parser.Row{{snapshot.SideColumn: snapshot.SidePre, snapshot.DateColumn: "", "NodeId": "n1"}}
		_, skip := Reconcile("GUtranCellRelation", tbl, "647328", "648672")
		require.NotNil(t, skip)
		assert.Equal(t, DiagNoFrequencyColumn, skip.Code)
	})

	t.Run("no key column", func(t *testing.T) {
		cols := []string{snapshot.SideColumn, snapshot.DateColumn, "someFreq"}
		tbl := parser.NewTable(cols)
		tbl.Rows = []parser.Row{{snapshot.SideColumn: snapshot.SidePre, snapshot.DateColumn: "", "someFreq": "1"}}
		_, skip := Reconcile("GUtranCellRelation", tbl, "647328", "648672")
		require.NotNil(t, skip)
		assert.Equal(t, DiagNoKeyColumn, skip.Code)
	})
}

func TestReconcileAll(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	tables := map[string]*parser.Table{
		"GUtranCellRelation": guTable(
			guRow(snapshot.SidePre, "2025-01-03", "ERBS1", "Cell1", "Rel1", "647328", "true"),
			guRow(snapshot.SidePost, "2025-01-10", "ERBS1", "Cell1", "Rel1", "648672", "true"),
		),
		"NRCellRelation": parser.NewTable([]string{snapshot.SideColumn, snapshot.DateColumn}),
	}

	results, skips := ReconcileAll(tables, "647328", "648672", logger)

	require.Contains(t, results, "GUtranCellRelation")
	assert.NotContains(t, results, "NRCellRelation")
	require.Len(t, skips, 1)
	assert.Equal(t, "NRCellRelation", skips[0].Table)
	assert.Equal(t, DiagEmptySides, skips[0].Code)
}
