package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "territory.csv"),
		[]byte("city,country,continent\nParis,FR,Europe\n"), 0o644))

	out, err := execute(t, "run", "--driver", "memory", "--source-dir", dir,
		"--dataset", "erp_territory", "--format", "json")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.NotEmpty(t, decoded["run_id"])
	assert.Len(t, decoded["cleansing"], 1)
}

func TestRunCommandReportsFailures(t *testing.T) {
	out, err := execute(t, "run", "--driver", "memory", "--source-dir", t.TempDir(),
		"--dataset", "erp_store")
	assert.Error(t, err)
	assert.Contains(t, out, "unavailable")
}

func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown dataset", []string{"cleanse", "--driver", "memory", "--dataset", "bogus"}},
		{"unknown stage", []string{"check", "--driver", "memory", "--stage", "gold"}},
		{"unknown view", []string{"view", "--driver", "memory", "dim_nothing"}},
		{"unknown format", []string{"status", "--driver", "memory", "--format", "xml"}},
		{"schedule without cron", []string{"schedule", "--driver", "memory"}},
		{"migrate memory", []string{"migrate", "--driver", "memory"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestStatusCommand(t *testing.T) {
	out, err := execute(t, "status", "--driver", "memory", "--format", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}
