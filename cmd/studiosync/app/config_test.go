package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/studiosync/pkg/authority"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/registry"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, env := range []string{"TPDB_API_KEY", "STASHDB_API_KEY", "STASH_API_KEY", "LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT"} {
		t.Setenv(env, "")
		t.Setenv(constants.EnvPrefix+"_"+env, "")
	}
	return home
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, constants.DefaultStashHost, cfg.Stash.Host)
	assert.Equal(t, constants.DefaultStashPort, cfg.Stash.Port)
	assert.EqualValues(t, constants.DefaultFuzzyThreshold, cfg.Matching.Threshold)
	assert.True(t, cfg.Matching.Fuzzy)
	assert.Equal(t, constants.StashDBEndpoint, cfg.Matching.PrimaryRegistry)
	assert.Equal(t, constants.DefaultConcurrency, cfg.Sync.Concurrency)
	assert.Equal(t, "field-authority", cfg.Matching.Strategy)
	assert.Empty(t, cfg.Matching.Authorities)
	assert.Equal(t, "all", cfg.Sync.Apply)
	assert.Empty(t, cfg.Log.Level, "empty level defers to the flags")
	assert.Equal(t, "auto", cfg.Log.Format)
}

func TestLoadConfig_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("STUDIOSYNC_STASH_HOST", "nas.local")
	t.Setenv("STUDIOSYNC_MATCHING_THRESHOLD", "92.5")
	t.Setenv("STUDIOSYNC_SYNC_CONCURRENCY", "4")
	t.Setenv("TPDB_API_KEY", "tpdb-from-env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "nas.local", cfg.Stash.Host)
	assert.Equal(t, 92.5, cfg.Matching.Threshold)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, "tpdb-from-env", cfg.TPDBAPIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_PrefixedEnvWins(t *testing.T) {
	isolate(t)
	t.Setenv("TPDB_API_KEY", "plain")
	t.Setenv("STUDIOSYNC_TPDB_API_KEY", "prefixed")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.TPDBAPIKey)
}

func TestLoadConfig_File(t *testing.T) {
	home := isolate(t)
	content := `stash:
  host: stash.example
  port: 8080
  api_key: host-key
registries:
  - endpoint: https://fansdb.cc/graphql/
    name: FansDB
    api_key: fans-key
stashdb_api_key: sdb-key
matching:
  threshold: 90
  fuzzy: false
  strategy: registry-order
  authorities:
    - path: image
      registry: https://theporndb.net/graphql
      priority: 150
sync:
  lock_file: /tmp/custom.lock
  apply: additive
log:
  level: warn
  output: /tmp/studiosync.log
`
	path := filepath.Join(home, constants.DefaultConfigName+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "stash.example", cfg.Stash.Host)
	assert.Equal(t, 8080, cfg.Stash.Port)
	assert.Equal(t, "host-key", cfg.Stash.Connection().APIKey)
	assert.Equal(t, 90.0, cfg.Matching.Threshold)
	assert.False(t, cfg.Matching.Fuzzy)
	assert.Equal(t, "registry-order", cfg.Matching.Strategy)
	assert.Equal(t, []authority.Field{{Path: "image", Registry: constants.TPDBEndpoint, Priority: 150}}, cfg.Matching.Authorities)
	assert.Equal(t, "additive", cfg.Sync.Apply)
	assert.Equal(t, "/tmp/custom.lock", cfg.LockFile())
	assert.Equal(t, "/tmp/studiosync.log", cfg.Log.Output)

	require.Len(t, cfg.Registries, 1)
	assert.Equal(t, "fans-key", cfg.Registries[0].APIKey)

	regs := cfg.RegistryConfigs()
	require.Len(t, regs, 2)
	assert.Equal(t, "https://fansdb.cc/graphql", regs[0].ID)
	assert.Equal(t, registry.KindStashBox, regs[0].Kind)
	assert.Equal(t, constants.StashDBEndpoint, regs[1].ID)
	assert.Equal(t, "sdb-key", regs[1].APIKey)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRegistryConfigs_FillsKeys(t *testing.T) {
	cfg := &Config{File: File{
		Registries: []registry.Config{
			{ID: constants.TPDBEndpoint, Name: "TPDB"},
			{ID: constants.StashDBEndpoint, Name: "StashDB", APIKey: "explicit"},
		},
		TPDBAPIKey:    "tpdb",
		StashDBAPIKey: "ignored",
	}}

	regs := cfg.RegistryConfigs()
	require.Len(t, regs, 2)
	assert.Equal(t, "tpdb", regs[0].APIKey)
	assert.Equal(t, registry.KindTPDB, regs[0].Kind, "kind inferred from the endpoint")
	assert.Equal(t, "explicit", regs[1].APIKey, "an explicit key is kept")
}

func TestUpdateFromFlags(t *testing.T) {
	cfg := &Config{Format: "yaml", LogLevel: "error"}
	cfg.UpdateFromFlags(true, false, true, "", "")

	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "yaml", cfg.Format, "empty flag keeps the value")
	assert.Equal(t, "error", cfg.LogLevel)

	cfg.UpdateFromFlags(false, true, false, "json", "trace")
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "trace", cfg.LogLevel)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteFile(path, DefaultFile(), false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(constants.SecureFilePermissions), info.Mode().Perm())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "threshold:")
	assert.Contains(t, string(b), constants.TPDBEndpoint)

	assert.Error(t, WriteFile(path, DefaultFile(), false))
	assert.NoError(t, WriteFile(path, DefaultFile(), true))
}
