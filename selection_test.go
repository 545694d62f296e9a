/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectionSnapshot() Snapshot {
	return Snapshot{
		Categories: []string{uncategorized, "Animals", "Food"},
		Decks: []Deck{
			{ID: "1", Name: "Cats", Category: "Animals", CardCount: 3},
			{ID: "2", Name: "Dogs", Category: "Animals", CardCount: 5},
			{ID: "3", Name: "Fruit", Category: "Food", CardCount: 2},
			{ID: "4", Name: "Misc", Category: uncategorized, CardCount: 1},
		},
	}
}

func TestSelection_Toggle(t *testing.T) {
	var s Selection

	s.Toggle("1")
	s.Toggle("3")
	assert.Equal(t, []ID{"1", "3"}, s.IDs())
	assert.True(t, s.Has("1"))

	s.Toggle("1")
	assert.Equal(t, []ID{"3"}, s.IDs())
	assert.False(t, s.Has("1"))
}

func TestSelection_ToggleCategory(t *testing.T) {
	snap := selectionSnapshot()
	var s Selection

	s.Toggle("1")
	assert.False(t, s.CategoryState(snap, "Animals"))

	s.ToggleCategory(snap, "Animals")
	assert.ElementsMatch(t, []ID{"1", "2"}, s.IDs())
	assert.True(t, s.CategoryState(snap, "Animals"))

	s.ToggleCategory(snap, "Animals")
	assert.Empty(t, s.IDs())

	s.ToggleCategory(snap, "Empty")
	assert.Empty(t, s.IDs())
	assert.False(t, s.CategoryState(snap, "Empty"))
}

func TestSelection_SelectAllClear(t *testing.T) {
	snap := selectionSnapshot()
	var s Selection

	s.SelectAll(snap)
	assert.Equal(t, []ID{"1", "2", "3", "4"}, s.IDs())
	assert.Equal(t, 4, s.Len())

	s.Clear()
	assert.Zero(t, s.Len())
}

func TestSelection_Randomize(t *testing.T) {
	snap := selectionSnapshot()
	rng := testRNG()
	var s Selection

	require.NoError(t, s.Randomize(rng, snap, 2))
	assert.Equal(t, 2, s.Len())
	for _, id := range s.IDs() {
		_, ok := snap.deck(id)
		assert.True(t, ok)
	}

	require.NoError(t, s.Randomize(rng, snap, 10))
	assert.ElementsMatch(t, []ID{"1", "2", "3", "4"}, s.IDs())

	err := s.Randomize(rng, snap, 0)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 4, s.Len(), "a rejected count leaves the selection alone")
}

func TestSelection_Prune(t *testing.T) {
	snap := selectionSnapshot()
	var s Selection

	s.Toggle("2")
	s.Toggle("9")
	s.Toggle("4")

	s.Prune(snap)
	assert.Equal(t, []ID{"2", "4"}, s.IDs())
}

func TestSelection_IDsIsCopy(t *testing.T) {
	var s Selection
	s.Toggle("1")

	ids := s.IDs()
	ids[0] = "changed"
	assert.Equal(t, []ID{"1"}, s.IDs())
}
