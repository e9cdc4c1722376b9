package parent_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/studiosync/internal/testutil"
	"github.com/agentstation/studiosync/pkg/aggregator"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/parent"
	"github.com/agentstation/studiosync/pkg/registry"
)

const (
	stashDB = constants.StashDBEndpoint
	tpdb    = constants.TPDBEndpoint
)

var vmg = registry.ParentRef{RemoteID: "sp", Name: "Vixen Media Group"}

func setup(t *testing.T, studios ...*catalog.Studio) (*catalog.Memory, *parent.Resolver, *testutil.Registry, *testutil.Registry) {
	t.Helper()
	sdb := testutil.NewRegistry(stashDB, "StashDB",
		registry.Detail{RemoteID: "sp", Name: "Vixen Media Group", Images: []string{"https://cdn/vmg-logo.png"}},
		registry.Detail{RemoteID: "sv", Name: "Vixen"},
	)
	tp := testutil.NewRegistry(tpdb, "TPDB",
		registry.Detail{RemoteID: "tp", Name: "Vixen Media Group"},
	)
	cat := catalog.NewMemory(studios...)
	agg := aggregator.New(context.Background(), []registry.Client{sdb, tp}, nil)
	return cat, parent.New(cat, agg), sdb, tp
}

func TestCreatesParentWithEveryRef(t *testing.T) {
	cat, r, _, _ := setup(t, &catalog.Studio{ID: "1", Name: "Blacked"})

	id, err := r.Resolve(context.Background(), vmg, stashDB, false)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, cat.Creates())

	created, err := cat.FindStudio(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Vixen Media Group", created.Name)
	assert.True(t, created.ExternalRefs.Contains(stashDB, "sp"))
	assert.True(t, created.ExternalRefs.Contains(tpdb, "tp"))
	assert.Equal(t, "https://cdn/vmg-logo.png", created.ImageRef)
}

func TestResolutionIsIdempotentAcrossRegistries(t *testing.T) {
	cat, r, _, _ := setup(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, vmg, stashDB, false)
	require.NoError(t, err)

	second, err := r.Resolve(ctx, registry.ParentRef{RemoteID: "tp", Name: "Vixen Media Group"}, tpdb, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	again, err := r.Resolve(ctx, vmg, stashDB, false)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, cat.Creates())
	assert.Zero(t, cat.Updates())
}

func TestExistingRefIsReusedAndMissingRefsMerged(t *testing.T) {
	local := &catalog.Studio{ID: "5", Name: "VMG", ExternalRefs: catalog.ExternalRefs{{RegistryID: tpdb, RemoteID: "tp"}}}
	cat, r, _, _ := setup(t, local)

	id, err := r.Resolve(context.Background(), vmg, stashDB, false)
	require.NoError(t, err)
	assert.Equal(t, "5", id, "found through the TPDB ref even though the names differ")
	assert.Zero(t, cat.Creates())

	got, _ := cat.FindStudio(context.Background(), "5")
	assert.True(t, got.ExternalRefs.Contains(stashDB, "sp"))
	assert.True(t, got.ExternalRefs.Contains(tpdb, "tp"))
	assert.Equal(t, 1, cat.Updates())
}

func TestNameMatchIsReused(t *testing.T) {
	cat, r, _, _ := setup(t, &catalog.Studio{ID: "3", Name: "vixen media group"})

	id, err := r.Resolve(context.Background(), vmg, stashDB, false)
	require.NoError(t, err)
	assert.Equal(t, "3", id)
	assert.Zero(t, cat.Creates())

	got, _ := cat.FindStudio(context.Background(), "3")
	assert.Len(t, got.ExternalRefs, 2)
}

func TestDryRunWritesNothing(t *testing.T) {
	cat, r, _, _ := setup(t, &catalog.Studio{ID: "3", Name: "Vixen Media Group"})

	id, err := r.Resolve(context.Background(), vmg, stashDB, true)
	require.NoError(t, err)
	assert.Equal(t, "3", id)

	other := registry.ParentRef{RemoteID: "x1", Name: "Some Network"}
	placeholder, err := r.Resolve(context.Background(), other, stashDB, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(placeholder, parent.DryRunPrefix))
	assert.Equal(t, parent.Placeholder(stashDB, "x1"), placeholder)
	assert.NotEqual(t, parent.Placeholder(tpdb, "x1"), placeholder)

	assert.Zero(t, cat.Creates())
	assert.Zero(t, cat.Updates())
}

func TestDryRunPlaceholderIsSharedAcrossRegistries(t *testing.T) {
	cat, r, _, _ := setup(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, vmg, stashDB, true)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(first, parent.DryRunPrefix))

	second, err := r.Resolve(ctx, registry.ParentRef{RemoteID: "tp", Name: "Vixen Media Group"}, tpdb, true)
	require.NoError(t, err)
	assert.Equal(t, first, second, "a live run would reuse the studio created for the first ref")

	assert.Zero(t, cat.Creates())
	assert.Zero(t, cat.Updates())
	assert.False(t, r.Touched(first))
}

func TestDryRunAddedRefsAreVisibleToLaterLookups(t *testing.T) {
	local := &catalog.Studio{ID: "5", Name: "VMG", ExternalRefs: catalog.ExternalRefs{{RegistryID: tpdb, RemoteID: "tp"}}}
	cat, r, _, _ := setup(t, local)
	ctx := context.Background()

	id, err := r.Resolve(ctx, vmg, stashDB, true)
	require.NoError(t, err)
	assert.Equal(t, "5", id)

	// only the StashDB id is known now, and TPDB's search finds nothing
	again, err := r.Resolve(ctx, registry.ParentRef{RemoteID: "sp", Name: "Renamed Network"}, stashDB, true)
	require.NoError(t, err)
	assert.Equal(t, "5", again)

	got, _ := cat.FindStudio(ctx, "5")
	assert.False(t, got.ExternalRefs.Contains(stashDB, "sp"), "dry run leaves the catalog alone")
	assert.Zero(t, cat.Updates())
}

func TestIncompleteRefResolvesToNothing(t *testing.T) {
	cat, r, sdb, _ := setup(t)
	for _, ref := range []registry.ParentRef{{Name: "Vixen Media Group"}, {RemoteID: "sp"}} {
		id, err := r.Resolve(context.Background(), ref, stashDB, false)
		require.NoError(t, err)
		assert.Empty(t, id)
	}
	assert.Empty(t, sdb.Searches())
	assert.Zero(t, cat.Creates())
}

func TestConcurrentResolutionCreatesOnce(t *testing.T) {
	cat, r, _, _ := setup(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref, origin := vmg, stashDB
			if i%2 == 1 {
				ref, origin = registry.ParentRef{RemoteID: "tp", Name: "VIXEN MEDIA GROUP"}, tpdb
			}
			id, err := r.Resolve(context.Background(), ref, origin, false)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, cat.Creates())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestRefreshReloadsSnapshot(t *testing.T) {
	cat, r, _, _ := setup(t)
	ctx := context.Background()

	id, err := r.Resolve(ctx, registry.ParentRef{RemoteID: "x1", Name: "Some Network"}, stashDB, false)
	require.NoError(t, err)

	// another writer links the TPDB id behind the resolver's back
	_, err = cat.UpdateStudio(ctx, catalog.StudioUpdate{ID: id, ExternalRefs: catalog.ExternalRefs{{RegistryID: stashDB, RemoteID: "x1"}, {RegistryID: tpdb, RemoteID: "t9"}}})
	require.NoError(t, err)
	r.Refresh()

	again, err := r.Resolve(ctx, registry.ParentRef{RemoteID: "t9", Name: "Renamed Network"}, tpdb, false)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, cat.Creates())
}
