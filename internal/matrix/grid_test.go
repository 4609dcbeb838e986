package matrix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeGrid writes grid contents to a temp file and returns its path.
func writeGrid(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.hcl")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadGrid(t *testing.T) {
	path := writeGrid(t, `
toolchains = ["go1.24.5", "go1.25.0"]

template "app" {}

template "sample-app" {
  synth = true
}
`)

	grid, err := LoadGrid(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"go1.24.5", "go1.25.0"}, grid.Toolchains)
	require.Len(t, grid.Templates, 2)
	assert.Equal(t, Template{Name: "app"}, grid.Templates[0])
	assert.Equal(t, Template{Name: "sample-app", Synth: true}, grid.Templates[1])
}

func TestLoadGridMissingFile(t *testing.T) {
	_, err := LoadGrid(filepath.Join(t.TempDir(), "absent.hcl"))
	require.Error(t, err)
}

func TestLoadGridRejects(t *testing.T) {
	tests := []struct {
		name    string
		grid    string
		wantErr string
	}{
		{
			name:    "malformed hcl",
			grid:    `toolchains = [`,
			wantErr: "failed to parse",
		},
		{
			name:    "no toolchains",
			grid:    "toolchains = []\n\ntemplate \"app\" {}\n",
			wantErr: "no toolchains declared",
		},
		{
			name:    "no templates",
			grid:    "toolchains = [\"go1.25.0\"]\n",
			wantErr: "no templates declared",
		},
		{
			name:    "empty toolchain",
			grid:    "toolchains = [\"\"]\n\ntemplate \"app\" {}\n",
			wantErr: "empty toolchain",
		},
		{
			name:    "duplicate toolchain",
			grid:    "toolchains = [\"go1.25.0\", \"go1.25.0\"]\n\ntemplate \"app\" {}\n",
			wantErr: `duplicate toolchain "go1.25.0"`,
		},
		{
			name:    "empty template name",
			grid:    "toolchains = [\"go1.25.0\"]\n\ntemplate \"\" {}\n",
			wantErr: "template with empty name",
		},
		{
			name:    "duplicate template",
			grid:    "toolchains = [\"go1.25.0\"]\n\ntemplate \"app\" {}\n\ntemplate \"app\" {}\n",
			wantErr: `duplicate template "app"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGrid(writeGrid(t, tt.grid))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGridSelect(t *testing.T) {
	grid := &Grid{
		Toolchains: []string{"go1.25.0"},
		Templates: []Template{
			{Name: "app"},
			{Name: "sample-app", Synth: true},
			{Name: "lib"},
		},
	}

	t.Run("empty selection keeps grid", func(t *testing.T) {
		got, err := grid.Select(nil)
		require.NoError(t, err)
		assert.Equal(t, grid, got)
	})

	t.Run("narrows in grid order", func(t *testing.T) {
		got, err := grid.Select([]string{"lib", "app"})
		require.NoError(t, err)
		require.Len(t, got.Templates, 2)
		assert.Equal(t, "app", got.Templates[0].Name)
		assert.Equal(t, "lib", got.Templates[1].Name)
		assert.Equal(t, grid.Toolchains, got.Toolchains)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := grid.Select([]string{"app", "nope"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no template "nope" in grid`)
	})
}
