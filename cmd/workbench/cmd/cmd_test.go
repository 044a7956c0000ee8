package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworkbench/workbench/internal/adapters/state"
	"github.com/agentworkbench/workbench/internal/core"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123def", "2024-01-15")

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, []string{})

	output := buf.String()
	assert.Contains(t, output, "workbench v1.2.3")
	assert.Contains(t, output, "commit: abc123def")
	assert.Contains(t, output, "built:  2024-01-15")
}

func TestGetVersion(t *testing.T) {
	SetVersion("test-version", "c", "d")
	assert.Equal(t, "test-version", GetVersion())
}

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"worker", "serve", "submit", "status", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-format"))
}

func TestStatusCommandOnSeededStore(t *testing.T) {
	dbPath := t.TempDir() + "/workbench.db"
	store, err := state.NewSQLiteStore(dbPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.CreateProject(ctx, &core.Project{ID: "proj-1", Name: "demo"}))
	require.NoError(t, store.CreateRun(ctx, &core.Run{
		ID: "run-1", ProjectID: "proj-1", Label: "nightly",
		Status: core.RunStatusQueued, Meta: map[string]any{},
	}))
	require.NoError(t, store.Close())

	rootCmd.SetArgs([]string{"status", "run-1", "--config", writeConfig(t, dbPath)})
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "run run-1")
	assert.Contains(t, buf.String(), "status:   queued")
}

func TestSubmitCommandQueuesRun(t *testing.T) {
	dbPath := t.TempDir() + "/workbench.db"
	store, err := state.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.CreateProject(ctx, &core.Project{ID: "proj-1", Name: "demo"}))
	require.NoError(t, store.Close())

	rootCmd.SetArgs([]string{"submit", "--project", "proj-1", "--config", writeConfig(t, dbPath)})
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "queued run ")

	verify, err := state.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer verify.Close()
	runs, err := verify.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, core.RunStatusQueued, runs[0].Status)
}

func TestSubmitUnknownProjectFails(t *testing.T) {
	dbPath := t.TempDir() + "/workbench.db"
	store, err := state.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	rootCmd.SetArgs([]string{"submit", "--project", "missing", "--config", writeConfig(t, dbPath)})
	err = rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// writeConfig writes a minimal config file pointing at the given store.
func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := t.TempDir() + "/config.yaml"
	content := "store:\n  path: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
