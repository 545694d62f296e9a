/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand/v2"
	"slices"
)

// Selection is the ordered set of deck ids chosen for play.
type Selection struct {
	ids []ID
}

func (s *Selection) IDs() []ID {
	return slices.Clone(s.ids)
}

func (s *Selection) Len() int {
	return len(s.ids)
}

func (s *Selection) Has(id ID) bool {
	return slices.Contains(s.ids, id)
}

func (s *Selection) Toggle(id ID) {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
		return
	}
	s.ids = append(s.ids, id)
}

// ToggleCategory selects every deck of the category, or unselects them all
// when they were all selected already.
func (s *Selection) ToggleCategory(snap Snapshot, category string) {
	decks := snap.decksIn(category)
	if len(decks) == 0 {
		return
	}

	all := true
	for _, d := range decks {
		if !s.Has(d.ID) {
			all = false
			break
		}
	}

	if all {
		s.ids = slices.DeleteFunc(s.ids, func(id ID) bool {
			for _, d := range decks {
				if d.ID == id {
					return true
				}
			}
			return false
		})
		return
	}

	for _, d := range decks {
		if !s.Has(d.ID) {
			s.ids = append(s.ids, d.ID)
		}
	}
}

func (s *Selection) SelectAll(snap Snapshot) {
	s.ids = make([]ID, 0, len(snap.Decks))
	for _, d := range snap.Decks {
		s.ids = append(s.ids, d.ID)
	}
}

func (s *Selection) Clear() {
	s.ids = nil
}

// Randomize replaces the selection with n decks chosen uniformly, capped at
// the number of decks available.
func (s *Selection) Randomize(rng *rand.Rand, snap Snapshot, n int) error {
	if n <= 0 {
		return validationError("Enter how many decks you want to randomly select.")
	}
	if len(snap.Decks) == 0 {
		return nil
	}

	all := make([]ID, 0, len(snap.Decks))
	for _, d := range snap.Decks {
		all = append(all, d.ID)
	}
	shuffle(rng, all)

	s.ids = all[:min(n, len(all))]

	return nil
}

// Prune drops ids that no longer name a deck in the snapshot.
func (s *Selection) Prune(snap Snapshot) {
	s.ids = slices.DeleteFunc(s.ids, func(id ID) bool {
		_, ok := snap.deck(id)
		return !ok
	})
}

// CategoryState reports whether every deck of the category is selected.
func (s *Selection) CategoryState(snap Snapshot, category string) bool {
	decks := snap.decksIn(category)
	if len(decks) == 0 {
		return false
	}
	for _, d := range decks {
		if !s.Has(d.ID) {
			return false
		}
	}
	return true
}
