package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGet(t *testing.T) {
	store := NewStore()

	_, ok := store.Get(KeySearchResults)
	assert.False(t, ok)

	store.Set(KeySearchResults, []string{"r1", "r2"})
	v, ok := store.Get(KeySearchResults)
	require.True(t, ok)
	assert.Equal(t, []string{"r1", "r2"}, v)

	store.Set(KeySearchResults, "replaced")
	v, _ = store.Get(KeySearchResults)
	assert.Equal(t, "replaced", v)
}

func TestStoreTouch(t *testing.T) {
	store := NewStore()
	store.Touch("pleural effusion")

	query, ok := store.Get(KeyLastSearchQuery)
	require.True(t, ok)
	assert.Equal(t, "pleural effusion", query)

	ts, ok := store.Get(KeyLastSearchTimestamp)
	require.True(t, ok)
	assert.IsType(t, int64(0), ts)
}

func TestStoreClear(t *testing.T) {
	store := NewStore()
	id := store.SessionID()
	require.NotEmpty(t, id)

	store.Set(KeyTriplets, 42)
	store.Clear()

	_, ok := store.Get(KeyTriplets)
	assert.False(t, ok)
	assert.Equal(t, id, store.SessionID())
}
