package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadPrecedence(t *testing.T) {
	repoRoot := t.TempDir()
	home := t.TempDir()

	writeFile(t, filepath.Join(repoRoot, ".revupconfig"), `
[revup]
main_branch = develop

[upload]
skip_confirm = true
labels = team-x
`)
	writeFile(t, filepath.Join(home, ".revupconfig"), `
[upload]
labels = personal
`)
	t.Setenv(EnvConfigPath, filepath.Join(home, ".revupconfig"))

	cfg, err := Load(repoRoot)
	require.NoError(t, err)

	// Repo file over built-in default.
	assert.Equal(t, "develop", cfg.Get("revup", "main_branch"))
	// User file over repo file.
	assert.Equal(t, "personal", cfg.Get("upload", "labels"))
	// Repo file where the user file is silent.
	assert.Equal(t, "true", cfg.Get("upload", "skip_confirm"))
	// Built-in defaults where no file speaks.
	assert.Equal(t, "origin", cfg.Get("revup", "remote_name"))
	assert.Equal(t, "user+branch", cfg.Get("upload", "branch_format"))
	// Unknown options come up empty.
	assert.Equal(t, "", cfg.Get("upload", "no_such_option"))
}

func TestLoadMissingFiles(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "does-not-exist"))

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Get("revup", "main_branch"))
}

func TestLoadMalformed(t *testing.T) {
	repoRoot := t.TempDir()
	writeFile(t, filepath.Join(repoRoot, ".revupconfig"), "[unclosed\n")
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := Load(repoRoot)
	assert.Error(t, err)
}
