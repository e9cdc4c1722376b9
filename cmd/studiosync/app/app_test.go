package app

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/studiosync/internal/lock"
	"github.com/agentstation/studiosync/internal/testutil"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/registry"
)

type harness struct {
	app   *App
	cat   *catalog.Memory
	conn  catalog.Connection
	built []registry.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cat := catalog.NewMemory(
		&catalog.Studio{ID: "1", Name: "Blacked"},
		&catalog.Studio{ID: "2", Name: "Tushy Raw"},
	)
	cat.SetStashBoxes(catalog.StashBox{Endpoint: constants.StashDBEndpoint, Name: "StashDB", APIKey: "host-key"})

	fakes := map[string]*testutil.Registry{
		constants.StashDBEndpoint: testutil.NewRegistry(constants.StashDBEndpoint, "StashDB",
			registry.Detail{RemoteID: "s1", Name: "Blacked", HomeURL: "https://blacked.com"},
		),
		constants.TPDBEndpoint: testutil.NewRegistry(constants.TPDBEndpoint, "ThePornDB",
			registry.Detail{RemoteID: "t1", Name: "Blacked"},
		),
	}

	cfg := &Config{File: DefaultFile()}
	cfg.Registries = nil
	cfg.TPDBAPIKey = "tpdb-key"
	cfg.Log.Output = "discard"
	cfg.Sync.LockFile = filepath.Join(t.TempDir(), "run.lock")

	h := &harness{cat: cat}
	a, err := New("1.2.3", "abc123", "2026-01-01", "test",
		WithConfig(cfg),
		WithCatalogFactory(func(c catalog.Connection) (catalog.Catalog, error) {
			h.conn = c
			return cat, nil
		}),
		WithRegistryBuilder(func(configs []registry.Config) ([]registry.Client, error) {
			h.built = configs
			var out []registry.Client
			for _, c := range configs {
				if f, ok := fakes[c.ID]; ok {
					out = append(out, f)
				}
			}
			return out, nil
		}),
	)
	require.NoError(t, err)
	h.app = a
	return h
}

func (h *harness) exec(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := h.app.createRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestApp_New(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "1.2.3", h.app.Version())
	assert.NotNil(t, h.app.Logger())
	assert.NotNil(t, h.app.Config())
	assert.True(t, h.app.Matcher().Fuzzy())
}

func TestRun_ByID(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "", "run", "--id", "1", "-o", "json")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "updated", res["status"])
	assert.Equal(t, true, res["applied"])

	assert.Equal(t, constants.DefaultStashPort, h.conn.Port)
	require.Len(t, h.built, 2)
	assert.Equal(t, constants.StashDBEndpoint, h.built[0].ID, "host boxes come first")
	assert.Equal(t, constants.TPDBEndpoint, h.built[1].ID)

	got, _ := h.cat.FindStudio(context.Background(), "1")
	assert.True(t, got.ExternalRefs.Contains(constants.StashDBEndpoint, "s1"))
	assert.True(t, got.ExternalRefs.Contains(constants.TPDBEndpoint, "t1"))
	assert.Equal(t, "https://blacked.com", got.URL)
}

func TestRun_ByNameTable(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "", "run", "--name", "blacked", "--dry-run", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "https://blacked.com")
	assert.Contains(t, out, "Blacked (1): Updated [dry run, not applied]")
	assert.Zero(t, h.cat.Updates())
}

func TestRun_AllDryRun(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "", "run", "--all", "--dry-run", "--concurrency", "2", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "total: 2")
	assert.Contains(t, out, "updated: 1")
	assert.Contains(t, out, "no_match: 1")
	assert.Zero(t, h.cat.Updates())
	assert.NoFileExists(t, h.app.Config().LockFile(), "lock released")
}

func TestRun_AllLocked(t *testing.T) {
	h := newHarness(t)
	held, err := lock.Acquire(h.app.Config().LockFile())
	require.NoError(t, err)
	defer held.Release()

	_, err = h.exec(t, "", "run", "--all")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyRunning)
}

func TestRun_NoFuzzy(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "", "run", "--id", "2", "--no-fuzzy", "-o", "json")
	require.NoError(t, err)
	assert.False(t, h.app.Config().Matching.Fuzzy)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "no-match", res["status"])
}

func TestRun_ApplyAdditionsOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.cat.UpdateStudio(ctx, catalog.StudioUpdate{ID: "1", ExternalRefs: catalog.ExternalRefs{{RegistryID: constants.TPDBEndpoint, RemoteID: "t0"}}})
	require.NoError(t, err)

	_, err = h.exec(t, "", "run", "--id", "1", "--force", "--apply", "additions-only", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "additions-only", h.app.Config().Sync.Apply)

	got, _ := h.cat.FindStudio(ctx, "1")
	assert.True(t, got.ExternalRefs.Contains(constants.TPDBEndpoint, "t0"), "existing ids are not replaced")
	assert.True(t, got.ExternalRefs.Contains(constants.StashDBEndpoint, "s1"))
	assert.Equal(t, "https://blacked.com", got.URL)
}

func TestRun_StrategyFromConfig(t *testing.T) {
	h := newHarness(t)
	h.app.Config().Matching.Strategy = "loudest"

	_, err := h.exec(t, "", "run", "--id", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Zero(t, h.cat.Updates())
}

func TestRun_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no mode", []string{"run"}},
		{"two modes", []string{"run", "--id", "1", "--all"}},
		{"bad threshold", []string{"run", "--id", "1", "--fuzzy-threshold", "120"}},
		{"bad apply strategy", []string{"run", "--id", "1", "--apply", "sometimes"}},
		{"bad format", []string{"run", "--id", "1", "-o", "csv"}},
		{"unknown studio", []string{"run", "--id", "99"}},
		{"unknown name", []string{"run", "--name", "zzz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.exec(t, "", tt.args...)
			assert.Error(t, err)
			assert.Zero(t, h.cat.Updates())
		})
	}
}

func TestPluginCommand(t *testing.T) {
	h := newHarness(t)
	req := `{"server_connection":{"Scheme":"https","Host":"stash","Port":443},"args":{"mode":"single","studio_id":"1","dry_run":true}}`

	out, err := h.exec(t, req, "plugin")
	require.NoError(t, err)
	assert.Equal(t, catalog.Connection{Scheme: "https", Host: "stash", Port: 443}, h.conn)

	var resp struct {
		Output map[string]any `json:"output"`
		Error  string         `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Error)
	assert.Equal(t, "updated", resp.Output["status"])
}

func TestRegistriesCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "", "registries", "-o", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "tpdb-key")
	assert.NotContains(t, out, "host-key")

	var views []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "StashDB", views[0]["name"])
	assert.Equal(t, "tpdb", views[1]["kind"])
	assert.Equal(t, true, views[1]["credentialed"])
}

func TestScoreCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "", "score", "Vixen", "Vixen Media Group", "vixen", "-o", "json")
	require.NoError(t, err)

	var scores struct {
		Threshold  float64 `json:"threshold"`
		Breakdowns []struct {
			Candidate string  `json:"candidate"`
			Score     float64 `json:"score"`
			Exact     bool    `json:"exact"`
		} `json:"breakdowns"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &scores))
	assert.EqualValues(t, constants.DefaultFuzzyThreshold, scores.Threshold)
	require.Len(t, scores.Breakdowns, 2)
	assert.Less(t, scores.Breakdowns[0].Score, 85.0)
	assert.True(t, scores.Breakdowns[1].Exact)
	assert.EqualValues(t, 100, scores.Breakdowns[1].Score)

	_, err = h.exec(t, "", "score", "Vixen")
	assert.Error(t, err, "needs a candidate")
}

func TestConfigInit(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "conf", "studiosync.yaml")

	out, err := h.exec(t, "", "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.EqualValues(t, constants.DefaultFuzzyThreshold, cfg.Matching.Threshold)
	require.Len(t, cfg.Registries, 2)
	assert.Equal(t, registry.KindTPDB, cfg.Registries[1].Kind)

	_, err = h.exec(t, "", "config", "init", "--path", path)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	_, err = h.exec(t, "", "config", "init", "--path", path, "--force")
	assert.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "studiosync 1.2.3\n", out)

	out, err = h.exec(t, "", "version", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:   abc123")
}

func TestShutdownReleasesHeldLock(t *testing.T) {
	h := newHarness(t)
	released := false
	h.app.hold(func() { released = true })

	require.NoError(t, h.app.Shutdown(context.Background()))
	assert.True(t, released)
	require.NoError(t, h.app.Shutdown(context.Background()))
}
