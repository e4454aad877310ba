package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescout-dev/codescout/internal/config"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand_Short(t *testing.T) {
	out, err := executeCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev", strings.TrimSpace(out))
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := executeCommand(t, "version", "--json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "dev", info["version"])
	assert.NotEmpty(t, info["go_version"])
}

func TestSearchCommand_UnknownCategory(t *testing.T) {
	_, err := executeCommand(t, "search", "query", "--category", "BOGUS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestSearchCommand_RequiresQuery(t *testing.T) {
	_, err := executeCommand(t, "search")
	assert.Error(t, err)
}

func TestIndexAndSearch_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CODESCOUT_EMBEDDER_PROVIDER", "static")
	t.Setenv("CODESCOUT_LOG_LEVEL", "error")

	jsonl := strings.Join([]string{
		`{"id":"db.go:1","content":"func NewConnectionPool(size int) *Pool { return &Pool{size: size} }","file_path":"db.go","start_line":1,"end_line":3}`,
		`{"id":"auth.go:10","content":"func ValidateToken(token string) error { return verifySignature(token) }","file_path":"auth.go","start_line":10,"end_line":12}`,
	}, "\n")
	input := filepath.Join(dir, "docs.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(jsonl), 0o644))

	out, err := executeCommand(t, "index", input)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 2 documents")

	// Vector index persisted for the next invocation.
	assert.FileExists(t, filepath.Join(dir, ".codescout", "vectors.hnsw"))

	out, err = executeCommand(t, "search", "connection pool", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "db.go")
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := executeCommand(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, ".codescout.yaml")
	assert.FileExists(t, filepath.Join(dir, ".codescout.yaml"))

	// The generated template must load and validate.
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Search.RRFConstant)

	_, err = executeCommand(t, "init")
	require.Error(t, err)

	_, err = executeCommand(t, "init", "--force")
	assert.NoError(t, err)
}

func TestStatusCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CODESCOUT_EMBEDDER_PROVIDER", "static")
	t.Setenv("CODESCOUT_LOG_LEVEL", "error")

	out, err := executeCommand(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "documents:   0")
	assert.Contains(t, out, "static")
}
