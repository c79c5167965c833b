// Package snapshot discovers Pre/Post CM-dump folders on disk and
// aggregates their relation tables into per-type snapshots.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ssbretune/parser"
)

// Columns injected in front of every aggregated table.
const (
	SideColumn = "Pre/Post"
	DateColumn = "Date"
)

// Side values written into SideColumn.
const (
	SidePre  = "Pre"
	SidePost = "Post"
)

// Folder-name tokens that classify a subfolder, case-insensitive.
var (
	preTokens  = []string{"pre", "step0"}
	postTokens = []string{"post", "step3"}
)

// RelationTypes are the only table types the loader keeps.
var RelationTypes = []string{"GUtranCellRelation", "NRCellRelation"}

// ErrNotDirectory is returned when the input root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Result is the outcome of one load: the aggregated tables keyed by
// relation type plus soft-warning flags the caller surfaces to the user
// instead of failing.
type Result struct {
	Tables    map[string]*parser.Table
	PreFound  bool
	PostFound bool
	Warnings  []string
}

// Loader walks a snapshot root directory. The zero value is usable; Now
// only matters for the current-year preference in date extraction.
type Loader struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *Loader) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// DetectSide classifies a folder name as Pre, Post or neither.
func DetectSide(folderName string) string {
	name := strings.ToLower(folderName)
	for _, tok := range preTokens {
		if strings.Contains(name, tok) {
			return SidePre
		}
	}
	for _, tok := range postTokens {
		if strings.Contains(name, tok) {
			return SidePost
		}
	}
	return ""
}

// Load scans the immediate subfolders of root, parses every .log/.txt
// file inside the Pre/Post-classified ones, and returns one aggregated
// table per relation type with SideColumn and DateColumn injected.
// Missing Pre or Post folders and an empty aggregate are soft warnings,
// not errors; only a bad root path fails.
func (l *Loader) Load(root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	res := &Result{Tables: make(map[string]*parser.Table)}
	collected := make(map[string][]*parser.Table)

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		side := DetectSide(entry.Name())
		if side == "" {
			continue
		}
		switch side {
		case SidePre:
			res.PreFound = true
		case SidePost:
			res.PostFound = true
		}
		date := ExtractDate(entry.Name(), l.now())
		l.loadFolder(res, filepath.Join(root, entry.Name()), side, date, collected)
	}

	for _, relType := range RelationTypes {
		chunks := collected[relType]
		if len(chunks) == 0 {
			continue
		}
		res.Tables[relType] = concatTables(chunks)
	}

	if !res.PreFound {
		res.Warnings = append(res.Warnings, "no Pre folder found (looked for 'pre'/'step0' in folder names)")
	}
	if !res.PostFound {
		res.Warnings = append(res.Warnings, "no Post folder found (looked for 'post'/'step3' in folder names)")
	}
	if len(res.Tables) == 0 {
		res.Warnings = append(res.Warnings, "no relation tables found under the input directory")
	}
	for _, w := range res.Warnings {
		l.logger().Warn(w, "root", root)
	}
	return res, nil
}

// loadFolder parses every dump file directly inside dir and appends the
// relation tables of interest to collected.
func (l *Loader) loadFolder(res *Result, dir, side, date string, collected map[string][]*parser.Table) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		l.logger().Warn("skipping unreadable folder", "dir", dir, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isDumpFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger().Warn("skipping unreadable file", "file", path, "error", err)
			continue
		}
		decoded := parser.DecodeBytes(data)
		if decoded.Lossy {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("encoding fallback used for %s (%s): undecodable bytes were replaced", path, decoded.Encoding))
		}
		for _, slice := range parser.ParseLines(parser.SplitLines(decoded.Text), path) {
			if !isRelationType(slice.Type) || slice.Table.Empty() {
				continue
			}
			slice.Table.InsertFrontColumns(
				[2]string{SideColumn, side},
				[2]string{DateColumn, date},
			)
			collected[slice.Type] = append(collected[slice.Type], slice.Table)
			l.logger().Debug("loaded table",
				"type", slice.Type, "file", path, "rows", slice.Table.Len(),
				"side", side, "encoding", decoded.Encoding, "note", slice.Note)
		}
	}
}

func isDumpFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".txt")
}

func isRelationType(name string) bool {
	for _, t := range RelationTypes {
		if name == t {
			return true
		}
	}
	return false
}

// concatTables appends same-type tables row-wise. The column set is the
// ordered union across sources; cells missing in a source stay empty.
func concatTables(chunks []*parser.Table) *parser.Table {
	var columns []string
	seen := make(map[string]struct{})
	for _, c := range chunks {
		for _, col := range c.Columns {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			columns = append(columns, col)
		}
	}
	out := parser.NewTable(columns)
	for _, c := range chunks {
		for _, row := range c.Rows {
			merged := make(parser.Row, len(columns))
			for _, col := range columns {
				merged[col] = row[col]
			}
			out.Rows = append(out.Rows, merged)
		}
	}
	return out
}
