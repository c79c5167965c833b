package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCommandHonorsHistoryDBFlag(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs([]string{"history", "--history-db", dbPath})
	defer RootCmd.SetArgs(nil)

	require.NoError(t, RootCmd.Execute())

	assert.Contains(t, out.String(), "No runs recorded yet.")
	assert.FileExists(t, dbPath)
}
