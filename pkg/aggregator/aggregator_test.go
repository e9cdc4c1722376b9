package aggregator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/studiosync/internal/testutil"
	"github.com/agentstation/studiosync/pkg/aggregator"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
	"github.com/agentstation/studiosync/pkg/matcher"
	"github.com/agentstation/studiosync/pkg/registry"
)

const (
	stashDB = "https://stashdb.org/graphql"
	tpdb    = "https://theporndb.net/graphql"
	fansDB  = "https://fansdb.cc/graphql"
)

func TestFindMatchesKeepsRegistryOrder(t *testing.T) {
	sdb := testutil.NewRegistry(stashDB, "StashDB",
		registry.Detail{RemoteID: "s-group", Name: "Vixen Media Group"},
		registry.Detail{RemoteID: "s-vixen", Name: "Vixen", HomeURL: "https://vixen.com"},
	)
	tp := testutil.NewRegistry(tpdb, "TPDB",
		registry.Detail{RemoteID: "t-vixen", Name: "VIXEN", Images: []string{"https://cdn/logo.png"}},
	)
	empty := testutil.NewRegistry(fansDB, "FansDB")

	agg := aggregator.New(context.Background(), []registry.Client{tp, empty, sdb}, matcher.New(), aggregator.WithConcurrency(3))
	matches := agg.FindMatches(context.Background(), "Vixen")

	require.Len(t, matches, 2)
	assert.Equal(t, tpdb, matches[0].RegistryID())
	assert.Equal(t, stashDB, matches[1].RegistryID())
	assert.Equal(t, "s-vixen", matches[1].Detail.RemoteID, "the exact match beats the descriptor variant")
	assert.True(t, matches[1].Result.Exact)
	assert.Equal(t, "https://vixen.com", matches[1].Detail.HomeURL)
}

func TestCandidatesFromDifferentRegistriesNeverCompete(t *testing.T) {
	// StashDB only has a weak candidate; TPDB's exact hit must not leak into it.
	sdb := testutil.NewRegistry(stashDB, "StashDB", registry.Detail{RemoteID: "s1", Name: "Vixen Media Group"})
	tp := testutil.NewRegistry(tpdb, "TPDB", registry.Detail{RemoteID: "t1", Name: "Vixen"})

	agg := aggregator.New(context.Background(), []registry.Client{sdb, tp}, matcher.New())
	matches := agg.FindMatches(context.Background(), "Vixen")
	require.Len(t, matches, 1)
	assert.Equal(t, tpdb, matches[0].RegistryID())
}

func TestFailingRegistryIsIsolated(t *testing.T) {
	tl := logging.CaptureLoggingForTest(t)

	broken := testutil.NewRegistry(stashDB, "StashDB", registry.Detail{RemoteID: "s1", Name: "Blacked"}).
		FailSearch(errors.NewAPIError("StashDB", 503, "down"))
	fetchBroken := testutil.NewRegistry(fansDB, "FansDB", registry.Detail{RemoteID: "f1", Name: "Blacked"}).
		FailFetch(errors.NewAPIError("FansDB", 500, "boom"))
	ok := testutil.NewRegistry(tpdb, "TPDB", registry.Detail{RemoteID: "t1", Name: "Blacked"})

	agg := aggregator.New(context.Background(), []registry.Client{broken, fetchBroken, ok}, nil)
	matches := agg.FindMatches(context.Background(), "Blacked")

	require.Len(t, matches, 1)
	assert.Equal(t, "t1", matches[0].Detail.RemoteID)
	tl.AssertContains(t, "Registry search failed")
	tl.AssertContains(t, "Registry fetch failed")
}

func TestRegistriesWithoutKeyAreSkipped(t *testing.T) {
	keyless := testutil.NewRegistry(stashDB, "StashDB", registry.Detail{RemoteID: "s1", Name: "Vixen"}).WithoutKey()
	tp := testutil.NewRegistry(tpdb, "TPDB", registry.Detail{RemoteID: "t1", Name: "Vixen"})

	agg := aggregator.New(context.Background(), []registry.Client{keyless, tp}, nil)
	require.Len(t, agg.Registries(), 1)
	_ = agg.FindMatches(context.Background(), "Vixen")
	assert.Empty(t, keyless.Searches())

	_, found := agg.Client(stashDB)
	assert.False(t, found)
	c, found := agg.Client(tpdb)
	require.True(t, found)
	assert.Equal(t, tpdb, c.Config().ID)
}

func TestMissingDetailContributesNothing(t *testing.T) {
	// the candidate exists in search results but fetch finds nothing
	r := &searchOnly{Registry: testutil.NewRegistry(stashDB, "StashDB", registry.Detail{RemoteID: "s1", Name: "Vixen"})}
	agg := aggregator.New(context.Background(), []registry.Client{r}, nil)
	assert.Empty(t, agg.FindMatches(context.Background(), "Vixen"))
}

type searchOnly struct {
	*testutil.Registry
}

func (s *searchOnly) Fetch(context.Context, string) (*registry.Detail, error) {
	return nil, nil
}

func TestFetchRefs(t *testing.T) {
	sdb := testutil.NewRegistry(stashDB, "StashDB", registry.Detail{
		RemoteID: "s1", Name: "Blacked Raw", Parent: &registry.ParentRef{RemoteID: "p1", Name: "Vixen Media Group"},
	})
	tp := testutil.NewRegistry(tpdb, "TPDB", registry.Detail{RemoteID: "t1", Name: "Blacked Raw"})
	agg := aggregator.New(context.Background(), []registry.Client{sdb, tp}, nil)

	refs := catalog.ExternalRefs{{RegistryID: stashDB, RemoteID: "s1"}, {RegistryID: tpdb, RemoteID: "t1"}}
	matches := agg.FetchRefs(context.Background(), refs, map[string]bool{tpdb: true})

	require.Len(t, matches, 1)
	assert.True(t, matches[0].FromRef)
	assert.Equal(t, "p1", matches[0].Detail.Parent.RemoteID)
	assert.Empty(t, tp.Fetches())
}

func TestSearchAll(t *testing.T) {
	sdb := testutil.NewRegistry(stashDB, "StashDB",
		registry.Detail{RemoteID: "s1", Name: "Vixen Media Group"},
		registry.Detail{RemoteID: "s2", Name: "Vixen"},
	)
	broken := testutil.NewRegistry(fansDB, "FansDB").FailSearch(assertErr)
	tp := testutil.NewRegistry(tpdb, "TPDB")

	agg := aggregator.New(context.Background(), []registry.Client{sdb, broken, tp}, nil)
	got := agg.SearchAll(context.Background(), "Vixen Media Group")

	require.Len(t, got, 2)
	assert.Equal(t, stashDB, got[0].Registry.ID)
	assert.Len(t, got[0].Candidates, 2)
	assert.Equal(t, tpdb, got[1].Registry.ID)
	assert.Empty(t, got[1].Candidates)
}

var assertErr = errors.New("search exploded")
