package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExporter() *Exporter {
	return &Exporter{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	}
}

func TestExportGroupsByNodeAndCategory(t *testing.T) {
	dir := t.TempDir()
	byCategory := map[string][]Command{
		CategoryGUNew: {
			{NodeId: "ERBS1", Text: "del EUtranCellFDD=C1,GUtranFreqRelation=F,GUtranCellRelation=R1"},
			{NodeId: "ERBS1", Text: "del EUtranCellFDD=C1,GUtranFreqRelation=F,GUtranCellRelation=R2"},
			{NodeId: "ERBS2", Text: "del EUtranCellFDD=C2,GUtranFreqRelation=F,GUtranCellRelation=R3"},
		},
		CategoryNRMissing: {
			{NodeId: "gNB1", Text: "crn NRCellCU=C,NRCellRelation=R\nend"},
		},
	}

	total, err := testExporter().Export(dir, byCategory)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	base := filepath.Join(dir, "Correction_Cmd")

	data, err := os.ReadFile(filepath.Join(base, "New Relations", "ERBS1_GU_new.txt"))
	require.NoError(t, err)
	// Commands for the same node are joined by a blank line.
	assert.Equal(t,
		"del EUtranCellFDD=C1,GUtranFreqRelation=F,GUtranCellRelation=R1\n\n"+
			"del EUtranCellFDD=C1,GUtranFreqRelation=F,GUtranCellRelation=R2",
		string(data))

	assert.FileExists(t, filepath.Join(base, "New Relations", "ERBS2_GU_new.txt"))
	assert.FileExists(t, filepath.Join(base, "Missing Relations", "gNB1_NR_missing.txt"))
}

func TestExportSkipsEmptyCommands(t *testing.T) {
	dir := t.TempDir()
	byCategory := map[string][]Command{
		CategoryGUDisc: {
			{NodeId: "", Text: "del X"},
			{NodeId: "ERBS1", Text: "   "},
		},
	}

	total, err := testExporter().Export(dir, byCategory)
	require.NoError(t, err)
	assert.Zero(t, total)

	entries, err := os.ReadDir(filepath.Join(dir, "Correction_Cmd", "Discrepancies"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
