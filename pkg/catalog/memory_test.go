package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/studiosync/pkg/errors"
)

func TestMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(
		&Studio{ID: "5", Name: "Vixen"},
		&Studio{Name: "Blacked"},
	)

	all, err := m.AllStudios(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "6", all[1].ID, "generated ids never collide with seeded ones")

	// returned studios are copies
	all[0].Name = "mutated"
	st, err := m.FindStudio(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, "Vixen", st.Name)

	missing, err := m.FindStudio(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	created, err := m.CreateStudio(ctx, StudioInput{Name: "Vixen Media Group", ExternalRefs: ExternalRefs{{stashDB, "p"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Creates())

	parent := created.ID
	updated, err := m.UpdateStudio(ctx, StudioUpdate{ID: "5", ParentID: &parent})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ParentID)
	assert.Equal(t, 1, m.Updates())

	bogus := "999"
	_, err = m.UpdateStudio(ctx, StudioUpdate{ID: "5", ParentID: &bogus})
	assert.True(t, errors.IsNotFound(err))

	_, err = m.UpdateStudio(ctx, StudioUpdate{ID: "404"})
	assert.True(t, errors.IsNotFound(err))

	_, err = m.CreateStudio(ctx, StudioInput{})
	assert.True(t, errors.IsValidationError(err))
}

func TestMemoryStashBoxes(t *testing.T) {
	m := NewMemory()
	m.SetStashBoxes(StashBox{Endpoint: stashDB, APIKey: "k"})
	boxes, err := m.StashBoxes(context.Background())
	require.NoError(t, err)
	assert.Len(t, boxes, 1)
}
