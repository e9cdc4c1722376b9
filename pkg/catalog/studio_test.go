package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	stashDB = "https://stashdb.org/graphql"
	tpdb    = "https://theporndb.net/graphql"
)

func TestExternalRefsUpsert(t *testing.T) {
	tests := []struct {
		name    string
		refs    ExternalRefs
		reg, id string
		want    ExternalRefs
		changed bool
	}{
		{
			name:    "add to empty",
			reg:     stashDB,
			id:      "a",
			want:    ExternalRefs{{stashDB, "a"}},
			changed: true,
		},
		{
			name:    "replace existing id",
			refs:    ExternalRefs{{stashDB, "123"}, {tpdb, "x"}},
			reg:     stashDB,
			id:      "456",
			want:    ExternalRefs{{stashDB, "456"}, {tpdb, "x"}},
			changed: true,
		},
		{
			name: "same id is no change",
			refs: ExternalRefs{{stashDB, "123"}},
			reg:  stashDB,
			id:   "123",
			want: ExternalRefs{{stashDB, "123"}},
		},
		{
			name:    "duplicates collapse",
			refs:    ExternalRefs{{stashDB, "1"}, {stashDB, "2"}},
			reg:     stashDB,
			id:      "1",
			want:    ExternalRefs{{stashDB, "1"}},
			changed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.refs.Clone()
			got, changed := tt.refs.Upsert(tt.reg, tt.id)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, before, tt.refs, "receiver must not be modified")
		})
	}
}

func TestExternalRefsUpsertProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		regs := []string{stashDB, tpdb, "https://fansdb.cc/graphql"}
		var refs ExternalRefs
		ops := rapid.IntRange(1, 30).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			reg := rapid.SampledFrom(regs).Draw(t, "reg")
			id := rapid.StringMatching(`[a-z0-9]{1,6}`).Draw(t, "id")
			refs, _ = refs.Upsert(reg, id)

			got, ok := refs.Get(reg)
			if !ok || got != id {
				t.Fatalf("expected %s=%s, got %q", reg, id, got)
			}
			seen := map[string]bool{}
			for _, r := range refs {
				if seen[r.RegistryID] {
					t.Fatalf("two refs for %s: %v", r.RegistryID, refs)
				}
				seen[r.RegistryID] = true
			}
		}
	})
}

func TestExternalRefsAddMissing(t *testing.T) {
	refs := ExternalRefs{{stashDB, "1"}}
	got, changed := refs.AddMissing(ExternalRefs{{stashDB, "2"}, {tpdb, "t"}, {"", "x"}})
	require.True(t, changed)
	assert.Equal(t, ExternalRefs{{stashDB, "1"}, {tpdb, "t"}}, got)

	_, changed = got.AddMissing(ExternalRefs{{tpdb, "t"}})
	assert.False(t, changed)
}

func TestNameKey(t *testing.T) {
	assert.True(t, SameName("Vixen", " vixen "))
	assert.True(t, SameName("BRAZZERS", "brazzers"))
	assert.False(t, SameName("Vixen", "Vixen Media"))
	assert.Equal(t, NameKey("ÉCOLE"), NameKey("école"))
}

func TestFindHelpers(t *testing.T) {
	studios := []*Studio{
		{ID: "1", Name: "Vixen Media Group"},
		{ID: "2", Name: "Vixen", ExternalRefs: ExternalRefs{{stashDB, "abc"}}},
	}
	assert.Equal(t, "2", FindByRef(studios, stashDB, "abc").ID)
	assert.Nil(t, FindByRef(studios, tpdb, "abc"))
	assert.Equal(t, "2", FindByName(studios, "VIXEN").ID)
	assert.Nil(t, FindByName(studios, "Blacked"))
}

func TestStudioUpdateIsEmpty(t *testing.T) {
	assert.True(t, StudioUpdate{ID: "1"}.IsEmpty())
	name := "x"
	assert.False(t, StudioUpdate{ID: "1", Name: &name}.IsEmpty())
	assert.False(t, StudioUpdate{ID: "1", ExternalRefs: ExternalRefs{}}.IsEmpty())
}
