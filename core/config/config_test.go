package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"duet-backup/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := config.LoadConfig(t.TempDir(), "")
		require.NoError(t, err)

		assert.Equal(t, config.SourcePrinter, cfg.Backup.Source)
		assert.Equal(t, config.RemoteGitHub, cfg.Backup.Remote)
		assert.True(t, cfg.Backup.Delete)
		assert.Zero(t, cfg.Backup.Interval)
		assert.Empty(t, cfg.Backup.Dirs)
		assert.Equal(t, "http://127.0.0.1", cfg.Printer.URL)
		assert.Equal(t, "reprap", cfg.Printer.Password)
		assert.True(t, cfg.Printer.Notify)
		assert.Equal(t, "https://api.github.com", cfg.GitHub.APIURL)
		assert.Equal(t, "duet-backup", cfg.Storage.Bucket)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Server.Enabled)
	})

	t.Run("ConfigFileInDir", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "duet-backup.yaml", `
backup:
  branch: voron
  dirs: [sd/sys, sd/macros]
  ignore: ["*.bak"]
  interval: 6h
github:
  user: octo
  repo: printers
`)

		cfg, err := config.LoadConfig(dir, "")
		require.NoError(t, err)
		assert.Equal(t, "voron", cfg.Backup.Branch)
		assert.Equal(t, []string{"sd/sys", "sd/macros"}, cfg.Backup.Dirs)
		assert.Equal(t, []string{"*.bak"}, cfg.Backup.Ignore)
		assert.Equal(t, 6*time.Hour, cfg.Backup.Interval)
		assert.Equal(t, "octo", cfg.GitHub.User)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		dir := t.TempDir()
		file := writeFile(t, dir, "custom.yaml", "backup:\n  branch: from-file\n")
		t.Setenv("BACKUP_BRANCH", "from-env")
		t.Setenv("BACKUP_DIRS", "sd/sys, sd/filaments")
		t.Setenv("BACKUP_DELETE", "false")
		t.Setenv("GITHUB_TOKEN", "s3cret")

		cfg, err := config.LoadConfig(dir, file)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Backup.Branch)
		assert.Equal(t, []string{"sd/sys", "sd/filaments"}, cfg.Backup.Dirs)
		assert.False(t, cfg.Backup.Delete)
		assert.Equal(t, "s3cret", cfg.GitHub.Token)
	})

	t.Run("DotEnv", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".env", "PRINTER_PASSWORD=hunter2\n")
		t.Cleanup(func() { os.Unsetenv("PRINTER_PASSWORD") })

		cfg, err := config.LoadConfig(dir, "")
		require.NoError(t, err)
		assert.Equal(t, "hunter2", cfg.Printer.Password)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := config.LoadConfig(t.TempDir(), "/nonexistent/duet-backup.yaml")
		assert.Error(t, err)
	})
}

func validConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Backup.Source = config.SourcePrinter
	cfg.Backup.Remote = config.RemoteGitHub
	cfg.Backup.Branch = "main"
	cfg.Backup.Dirs = []string{"sd/systems", "sd/Macros"}
	cfg.Backup.Protect = []string{"sd/jobs/keep"}
	cfg.GitHub.User = "octo"
	cfg.GitHub.Token = "s3cret"
	cfg.GitHub.Repo = "printers"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("AppliesAliases", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, []string{"sd/sys", "sd/macros"}, cfg.Backup.Dirs)
		assert.Equal(t, []string{"sd/gcodes/keep"}, cfg.Backup.Protect)
	})

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"NoBranch", func(c *config.Config) { c.Backup.Branch = "" }, "backup.branch"},
		{"NoDirs", func(c *config.Config) { c.Backup.Dirs = nil }, "backup.dirs"},
		{"BadSource", func(c *config.Config) { c.Backup.Source = "ftp" }, "backup.source"},
		{"BadRemote", func(c *config.Config) { c.Backup.Remote = "svn" }, "backup.remote"},
		{"NoToken", func(c *config.Config) { c.GitHub.Token = "" }, "github.token"},
		{"NoBucket", func(c *config.Config) {
			c.Backup.Remote = config.RemoteObjectStore
			c.Storage.Bucket = ""
		}, "storage.bucket"},
		{"BadGlob", func(c *config.Config) { c.Backup.Ignore = []string{"[unclosed"} }, "backup.ignore"},
		{"NegativeInterval", func(c *config.Config) { c.Backup.Interval = -time.Hour }, "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("ObjectStoreNeedsNoGitHub", func(t *testing.T) {
		cfg := validConfig()
		cfg.Backup.Remote = config.RemoteObjectStore
		cfg.Storage.Bucket = "printers"
		cfg.GitHub.User, cfg.GitHub.Token, cfg.GitHub.Repo = "", "", ""
		assert.NoError(t, cfg.Validate())
	})
}
