package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseOnly builds the parser with command execution disabled, so tests
// can inspect parsed flags without touching a database. HOME points at a
// temp dir in case anything still resolves a default path.
func parseOnly(t *testing.T) (*goflags.Parser, *GlobalFlags, *commands) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	p, g, c := buildParser("test")
	p.CommandHandler = func(goflags.Commander, []string) error { return nil }
	return p, g, c
}

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("0.1.0-test", []string{"--version"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "burrow 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})

	assert.Equal(t, "burrow 1.2.3", strings.TrimSpace(output))
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{
		"status", "start", "list", "tree", "insights", "node", "search",
		"export", "import", "backup", "restore", "note", "aha", "settings",
		"serve", "prune", "purge",
	}
	parser, _, _ := buildParser("test")

	for _, name := range expected {
		cmd := parser.Find(name)
		assert.NotNil(t, cmd, "subcommand %q should exist", name)
	}
}

func TestServeAliasIngest(t *testing.T) {
	parser, _, _ := buildParser("test")
	cmd := parser.Find("ingest")
	require.NotNil(t, cmd)
	assert.Equal(t, "serve", cmd.Name)
}

func TestPositionalJourneyID(t *testing.T) {
	p, _, c := parseOnly(t)
	_, err := p.ParseArgs([]string{"tree", "42"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.Tree.Args.ID)
}

func TestTreeRequiresJourneyID(t *testing.T) {
	p, _, _ := parseOnly(t)
	_, err := p.ParseArgs([]string{"tree"})
	require.Error(t, err)
}

func TestExportFlags(t *testing.T) {
	p, _, c := parseOnly(t)
	_, err := p.ParseArgs([]string{"export", "--private", "-o", "out.json", "7"})
	require.NoError(t, err)
	assert.True(t, c.Export.Private)
	assert.Equal(t, "out.json", c.Export.Output)
	assert.Equal(t, int64(7), c.Export.Args.ID)
}

func TestSearchFlagsDefaults(t *testing.T) {
	p, _, c := parseOnly(t)
	_, err := p.ParseArgs([]string{"search", "--domain", "go.dev", "my", "query"})
	require.NoError(t, err)

	assert.Equal(t, 20, c.Search.Limit)
	assert.Equal(t, []string{"go.dev"}, c.Search.Domain)
	assert.Equal(t, []string{"my", "query"}, c.Search.Args.Query)
}

func TestGlobalFlags(t *testing.T) {
	parser, globals, _ := parseOnly(t)
	_, err := parser.ParseArgs([]string{"--json", "--verbose", "--config", "/tmp/test.yaml", "--db", "/tmp/b.db", "status"})
	require.NoError(t, err)
	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
	assert.Equal(t, "/tmp/b.db", globals.DB)
}

func TestParseOnly_LeavesHomeUntouched(t *testing.T) {
	p, _, _ := parseOnly(t)
	_, err := p.ParseArgs([]string{"tree", "42"})
	require.NoError(t, err)

	entries, err := os.ReadDir(os.Getenv("HOME"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no config or database is created")
}

func TestUnknownSubcommandFails(t *testing.T) {
	parser, _, _ := parseOnly(t)
	_, err := parser.ParseArgs([]string{"nonexistent"})
	require.Error(t, err)
}

func TestHelpFlagDoesNotError(t *testing.T) {
	err := RunWithArgs("test", []string{"--help"})
	assert.NoError(t, err)
}

func TestPurgeRequiresAll(t *testing.T) {
	err := RunWithArgs("test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge requires --all flag for safety")
}

// TestRunWithArgs_EndToEnd drives real commands against a temporary
// config file and database.
func TestRunWithArgs_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "data", "burrow.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("daemon:\n  port: 1\n"), 0o644))

	base := []string{"--config", cfgPath, "--db", dbPath}

	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("test", append(base, "start", "Deep", "dive"))
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Started journey #1: Deep dive")

	output = captureOutput(t, func() {
		err = RunWithArgs("test", append(base, "list"))
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Deep dive")

	_, statErr := os.Stat(dbPath)
	assert.NoError(t, statErr, "database file is created on first use")
}
