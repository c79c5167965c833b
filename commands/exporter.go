package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Subdirectories of the Correction_Cmd tree, by category kind.
const (
	baseDirName    = "Correction_Cmd"
	newDirName     = "New Relations"
	missingDirName = "Missing Relations"
	discDirName    = "Discrepancies"
)

// Exporter writes correction scripts as text files, one file per node
// and category. The zero value logs with slog.Default.
type Exporter struct {
	Logger *slog.Logger
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Export writes every non-empty command under
// outputDir/Correction_Cmd/<kind dir>/<NodeId>_<Category>.txt, with the
// node's commands joined by blank lines. Returns the number of files
// written.
func (e *Exporter) Export(outputDir string, byCategory map[string][]Command) (int, error) {
	baseDir := filepath.Join(outputDir, baseDirName)
	for _, d := range []string{baseDir,
		filepath.Join(baseDir, newDirName),
		filepath.Join(baseDir, missingDirName),
		filepath.Join(baseDir, discDirName),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return 0, fmt.Errorf("create command dir: %w", err)
		}
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	total := 0
	for _, category := range categories {
		byNode := make(map[string][]string)
		for _, cmd := range byCategory[category] {
			node := strings.TrimSpace(cmd.NodeId)
			text := strings.TrimSpace(cmd.Text)
			if node == "" || text == "" {
				continue
			}
			byNode[node] = append(byNode[node], text)
		}

		nodes := make([]string, 0, len(byNode))
		for n := range byNode {
			nodes = append(nodes, n)
		}
		sort.Strings(nodes)

		dir := filepath.Join(baseDir, categoryDir(category))
		for _, node := range nodes {
			path := filepath.Join(dir, fmt.Sprintf("%s_%s.txt", node, category))
			content := strings.Join(byNode[node], "\n\n")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return total, fmt.Errorf("write command file: %w", err)
			}
			total++
		}
	}

	e.logger().Info("correction command files written", "dir", baseDir, "files", total)
	return total, nil
}

func categoryDir(category string) string {
	lower := strings.ToLower(category)
	switch {
	case strings.Contains(lower, "new"):
		return newDirName
	case strings.Contains(lower, "missing"):
		return missingDirName
	case strings.Contains(lower, "disc"):
		return discDirName
	}
	return "."
}
