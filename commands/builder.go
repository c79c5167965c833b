// Package commands turns reconciliation results into vendor CLI
// correction scripts: delete commands for unexpected relations, create
// blocks for missing ones, and delete+create pairs for discrepancies.
package commands

import (
	"fmt"
	"regexp"
	"strings"

	"ssbretune/parser"
	"ssbretune/reconcile"
)

// Category names used for grouping and output file naming.
const (
	CategoryGUNew     = "GU_new"
	CategoryGUMissing = "GU_missing"
	CategoryGUDisc    = "GU_disc"
	CategoryNRNew     = "NR_new"
	CategoryNRMissing = "NR_missing"
	CategoryNRDisc    = "NR_disc"
)

// DefaultUserLabel marks relations recreated by this tool.
const DefaultUserLabel = "SSBretune"

// Command is one correction script attributed to the node it must run
// on. Text may span multiple lines for create blocks.
type Command struct {
	NodeId string
	Text   string
}

// Builder generates correction commands. SSBPre/SSBPost hold the base
// frequencies of the retune; when a recreated relation still references
// SSBPre, its frequency id is rewritten to the Post SSB.
type Builder struct {
	SSBPre  string
	SSBPost string
}

// Build generates commands for every category that has rows. The
// all-relations table of each result serves as the attribute source of
// truth; values missing there fall back to the category row itself.
func (b *Builder) Build(results map[string]*reconcile.Result) map[string][]Command {
	out := make(map[string][]Command)

	if res, ok := results["GUtranCellRelation"]; ok {
		lookup := newRowLookup(res.AllRelations, "NodeId", "EUtranCellFDDId", "GUtranCellRelationId")
		addAll(out, CategoryGUNew, b.guDeletes(res.NewInPost, lookup))
		addAll(out, CategoryGUMissing, b.guCreates(res.MissingInPost, lookup))
		addAll(out, CategoryGUDisc, combine(b.guDeletes(res.Discrepancies, lookup), b.guCreates(res.Discrepancies, lookup)))
	}

	if res, ok := results["NRCellRelation"]; ok {
		lookup := newRowLookup(res.AllRelations, "NodeId", "NRCellCUId", "NRCellRelationId")
		addAll(out, CategoryNRNew, b.nrDeletes(res.NewInPost, lookup))
		addAll(out, CategoryNRMissing, b.nrCreates(res.MissingInPost, lookup))
		addAll(out, CategoryNRDisc, combine(b.nrDeletes(res.Discrepancies, lookup), b.nrCreates(res.Discrepancies, lookup)))
	}

	return out
}

// guDeletes builds one delete command per row.
func (b *Builder) guDeletes(tbl *parser.Table, lookup rowLookup) []Command {
	cmds := make([]Command, 0, tbl.Len())
	for _, row := range tbl.Rows {
		rel := lookup.find(row)
		euCell := pick(rel, row, "EUtranCellFDDId")
		freqRel := pick(rel, row, "GUtranFreqRelationId")
		cellRel := pick(rel, row, "GUtranCellRelationId")

		text := ""
		if euCell != "" && freqRel != "" && cellRel != "" {
			text = fmt.Sprintf("del EUtranCellFDD=%s,GUtranFreqRelation=%s,GUtranCellRelation=%s",
				euCell, freqRel, cellRel)
		}
		cmds = append(cmds, Command{NodeId: pick(rel, row, "NodeId"), Text: text})
	}
	return cmds
}

// guCreates builds one create block per row: crn, attribute lines, end
// and a final set command.
func (b *Builder) guCreates(tbl *parser.Table, lookup rowLookup) []Command {
	cmds := make([]Command, 0, tbl.Len())
	for _, row := range tbl.Rows {
		rel := lookup.find(row)

		enbFunc := pick(rel, row, "ENodeBFunctionId")
		euCell := pick(rel, row, "EUtranCellFDDId")
		freqRel := pick(rel, row, "GUtranFreqRelationId")
		cellRel := pick(rel, row, "GUtranCellRelationId")

		// The recreated relation must point at the Post SSB when the
		// source data still carries the Pre one.
		if b.SSBPre != "" && b.SSBPost != "" && strings.HasPrefix(freqRel, b.SSBPre) {
			freqRel = b.SSBPost + "-30-20-0-1"
		}

		userLabel := pick(rel, row, "userLabel")
		if userLabel == "" {
			userLabel = DefaultUserLabel
		}

		text := ""
		if enbFunc != "" && euCell != "" && freqRel != "" && cellRel != "" {
			dn := fmt.Sprintf("EUtranCellFDD=%s,GUtranFreqRelation=%s,GUtranCellRelation=%s",
				euCell, freqRel, cellRel)
			lines := []string{"crn ENodeBFunction=" + enbFunc + "," + dn}
			lines = appendAttr(lines, "neighborCellRef", trimFromMarker(pick(rel, row, "neighborCellRef"), "GUtraNetwork="))
			lines = appendAttr(lines, "isEndcAllowed", pick(rel, row, "isEndcAllowed"))
			lines = appendAttr(lines, "isHoAllowed", pick(rel, row, "isHoAllowed"))
			lines = appendAttr(lines, "isRemoveAllowed", pick(rel, row, "isRemoveAllowed"))
			lines = appendAttr(lines, "isVoiceHoAllowed", pick(rel, row, "isVoiceHoAllowed"))
			lines = append(lines, "userlabel "+userLabel, "end")
			if coverage := pick(rel, row, "coverageIndicator"); coverage != "" {
				lines = append(lines, "set "+dn+" coverageIndicator "+coverage)
			} else {
				lines = append(lines, "set "+dn)
			}
			text = strings.Join(lines, "\n")
		}
		cmds = append(cmds, Command{NodeId: pick(rel, row, "NodeId"), Text: text})
	}
	return cmds
}

func (b *Builder) nrDeletes(tbl *parser.Table, lookup rowLookup) []Command {
	cmds := make([]Command, 0, tbl.Len())
	for _, row := range tbl.Rows {
		rel := lookup.find(row)
		cellCU := pick(rel, row, "NRCellCUId")
		cellRel := pick(rel, row, "NRCellRelationId")

		text := ""
		if cellCU != "" && cellRel != "" {
			text = fmt.Sprintf("del NRCellCU=%s,NRCellRelation=%s", cellCU, cellRel)
		}
		cmds = append(cmds, Command{NodeId: pick(rel, row, "NodeId"), Text: text})
	}
	return cmds
}

func (b *Builder) nrCreates(tbl *parser.Table, lookup rowLookup) []Command {
	cmds := make([]Command, 0, tbl.Len())
	for _, row := range tbl.Rows {
		rel := lookup.find(row)
		cellCU := pick(rel, row, "NRCellCUId")
		cellRel := pick(rel, row, "NRCellRelationId")

		text := ""
		if cellCU != "" && cellRel != "" {
			dn := fmt.Sprintf("NRCellCU=%s,NRCellRelation=%s", cellCU, cellRel)
			lines := []string{"crn " + dn}
			lines = appendAttr(lines, "nRCellRef", trimFromMarker(pick(rel, row, "nRCellRef"), "GNBCUCPFunction="))
			lines = appendAttr(lines, "nRFreqRelationRef", b.rebuildNRFreqRef(pick(rel, row, "nRFreqRelationRef")))
			lines = appendAttr(lines, "isHoAllowed", pick(rel, row, "isHoAllowed"))
			lines = appendAttr(lines, "isRemoveAllowed", pick(rel, row, "isRemoveAllowed"))
			lines = append(lines, "end")
			if coverage := pick(rel, row, "coverageIndicator"); coverage != "" {
				lines = append(lines, "set "+dn+" coverageIndicator "+coverage)
			} else {
				lines = append(lines, "set "+dn)
			}
			if sCell := pick(rel, row, "sCellCandidate"); sCell != "" {
				lines = append(lines, "set "+dn+" sCellCandidate "+sCell)
			}
			text = strings.Join(lines, "\n")
		}
		cmds = append(cmds, Command{NodeId: pick(rel, row, "NodeId"), Text: text})
	}
	return cmds
}

var (
	nrCellCURefRe = regexp.MustCompile(`NRCellCU=([^,]+)`)
	nrFreqRefRe   = regexp.MustCompile(`NRFreqRelation=([^,]+)`)
)

// rebuildNRFreqRef reduces a full frequency-relation DN to its
// GNBCUCPFunction/NRCellCU/NRFreqRelation segments and swaps the Pre
// SSB frequency id for the Post one.
func (b *Builder) rebuildNRFreqRef(ref string) string {
	pos := strings.Index(ref, "GNBCUCPFunction=")
	if pos < 0 {
		return ""
	}
	sub := ref[pos:]

	gnbPart, _, _ := strings.Cut(sub, ",")
	_, gnbVal, ok := strings.Cut(gnbPart, "=")
	if !ok {
		return ""
	}

	var cellVal, freqVal string
	if m := nrCellCURefRe.FindStringSubmatch(sub); m != nil {
		cellVal = m[1]
	}
	if m := nrFreqRefRe.FindStringSubmatch(sub); m != nil {
		freqVal = m[1]
	}
	if b.SSBPre != "" && freqVal == b.SSBPre {
		freqVal = b.SSBPost
	}

	if gnbVal == "" || cellVal == "" || freqVal == "" {
		return ""
	}
	return fmt.Sprintf("GNBCUCPFunction=%s,NRCellCU=%s,NRFreqRelation=%s", gnbVal, cellVal, freqVal)
}

// rowLookup resolves a category row back to its all-relations row by
// composite key.
type rowLookup struct {
	keys []string
	rows map[string]parser.Row
}

func newRowLookup(tbl *parser.Table, keys ...string) rowLookup {
	l := rowLookup{keys: keys, rows: make(map[string]parser.Row, tbl.Len())}
	for _, row := range tbl.Rows {
		l.rows[l.keyOf(row)] = row
	}
	return l
}

func (l rowLookup) keyOf(row parser.Row) string {
	parts := make([]string, len(l.keys))
	for i, k := range l.keys {
		parts[i] = strings.TrimSpace(row[k])
	}
	return strings.Join(parts, "||")
}

func (l rowLookup) find(row parser.Row) parser.Row {
	return l.rows[l.keyOf(row)]
}

// pick prefers the all-relations value, falling back to the category
// row. Either map may be nil.
func pick(rel, row parser.Row, field string) string {
	if v := strings.TrimSpace(rel[field]); v != "" {
		return v
	}
	return strings.TrimSpace(row[field])
}

// trimFromMarker keeps the substring starting at marker, or the whole
// value when the marker is absent.
func trimFromMarker(value, marker string) string {
	if pos := strings.Index(value, marker); pos >= 0 {
		return value[pos:]
	}
	return value
}

func appendAttr(lines []string, name, value string) []string {
	if value == "" {
		return lines
	}
	return append(lines, name+" "+value)
}

// combine pairs delete and create commands row by row into one script.
func combine(deletes, creates []Command) []Command {
	out := make([]Command, 0, len(deletes))
	for i := range deletes {
		cmd := deletes[i]
		if i < len(creates) && creates[i].Text != "" {
			if cmd.Text != "" {
				cmd.Text += "\n" + creates[i].Text
			} else {
				cmd.Text = creates[i].Text
			}
		}
		if cmd.NodeId == "" && i < len(creates) {
			cmd.NodeId = creates[i].NodeId
		}
		out = append(out, cmd)
	}
	return out
}

func addAll(dst map[string][]Command, category string, cmds []Command) {
	for _, c := range cmds {
		if c.NodeId == "" || c.Text == "" {
			continue
		}
		dst[category] = append(dst[category], c)
	}
}
