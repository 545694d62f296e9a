/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"slices"
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortMode string

const (
	SortAlphaAsc  SortMode = "alphaAsc"
	SortAlphaDesc SortMode = "alphaDesc"
	SortCardAsc   SortMode = "cardAsc"
	SortCardDesc  SortMode = "cardDesc"
)

func (m SortMode) valid() bool {
	switch m {
	case SortAlphaAsc, SortAlphaDesc, SortCardAsc, SortCardDesc:
		return true
	}
	return false
}

// Organizer holds the manage view's presentation state. It never changes
// the catalog itself; mutations go through Catalog and the state here is
// reconciled with whatever snapshot comes back.
type Organizer struct {
	mu sync.Mutex

	dragging       ID
	sortModes      map[string]SortMode
	collapsed      map[string]bool
	deleteSelected string
	flagged        []ID

	collator *collate.Collator
}

func newOrganizer() *Organizer {
	return &Organizer{
		sortModes: make(map[string]SortMode),
		collapsed: make(map[string]bool),
		collator:  collate.New(language.English),
	}
}

func (o *Organizer) SortMode(category string) SortMode {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.sortModeLocked(category)
}

func (o *Organizer) sortModeLocked(category string) SortMode {
	if m, ok := o.sortModes[category]; ok {
		return m
	}
	return SortAlphaAsc
}

func (o *Organizer) SetSortMode(category string, mode SortMode) error {
	if !mode.valid() {
		return validationError("Unknown sort mode: " + string(mode))
	}

	o.mu.Lock()
	o.sortModes[category] = mode
	o.mu.Unlock()

	return nil
}

// DecksByCategory lists a category's decks in its sort mode. Ties keep the
// server's order.
func (o *Organizer) DecksByCategory(snap Snapshot, category string) []Deck {
	decks := snap.decksIn(category)
	mode := o.SortMode(category)

	o.mu.Lock()
	defer o.mu.Unlock()

	sort.SliceStable(decks, func(i, j int) bool {
		a, b := decks[i], decks[j]
		switch mode {
		case SortAlphaDesc:
			return o.collator.CompareString(b.Name, a.Name) < 0
		case SortCardAsc:
			return a.CardCount < b.CardCount
		case SortCardDesc:
			return b.CardCount < a.CardCount
		default:
			return o.collator.CompareString(a.Name, b.Name) < 0
		}
	})

	return decks
}

// Sync gives every category a collapse flag, expanded by default, and drops
// state kept for categories that no longer exist.
func (o *Organizer) Sync(snap Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, c := range snap.Categories {
		if _, ok := o.collapsed[c]; !ok {
			o.collapsed[c] = false
		}
	}
	for c := range o.collapsed {
		if !snap.hasCategory(c) {
			delete(o.collapsed, c)
			delete(o.sortModes, c)
		}
	}

	if o.deleteSelected != "" && !snap.hasCategory(o.deleteSelected) {
		o.deleteSelected = ""
	}
	if o.dragging != "" {
		if _, ok := snap.deck(o.dragging); !ok {
			o.dragging = ""
		}
	}
	o.flagged = slices.DeleteFunc(o.flagged, func(id ID) bool {
		_, ok := snap.deck(id)
		return !ok
	})
}

func (o *Organizer) Collapsed(category string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.collapsed[category]
}

func (o *Organizer) ToggleCollapsed(category string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.collapsed[category] = !o.collapsed[category]
}

// ToggleAll collapses every category unless all are collapsed already, in
// which case it expands them all.
func (o *Organizer) ToggleAll(snap Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	all := len(snap.Categories) > 0
	for _, c := range snap.Categories {
		if !o.collapsed[c] {
			all = false
			break
		}
	}

	for _, c := range snap.Categories {
		o.collapsed[c] = !all
	}
}

// BeginDrag records the deck being dragged. The id must name a deck in the
// snapshot.
func (o *Organizer) BeginDrag(snap Snapshot, id ID) error {
	if _, ok := snap.deck(id); !ok {
		return validationError("Deck not found.")
	}

	o.mu.Lock()
	o.dragging = id
	o.mu.Unlock()

	return nil
}

func (o *Organizer) EndDrag() {
	o.mu.Lock()
	o.dragging = ""
	o.mu.Unlock()
}

func (o *Organizer) Dragging() ID {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.dragging
}

// Drop moves the dragged deck, or id when given, onto category through the
// catalog. The drag ends whether or not the move succeeds.
func (o *Organizer) Drop(ctx context.Context, cat *Catalog, id ID, category string) (Snapshot, error) {
	if id == "" {
		id = o.Dragging()
	}
	defer o.EndDrag()

	if _, ok := cat.Snapshot().deck(id); !ok {
		return cat.Snapshot(), validationError("Deck not found.")
	}

	snap, err := cat.MoveDeck(ctx, id, category)
	if err != nil {
		return snap, err
	}

	o.Sync(snap)

	return snap, nil
}

func (o *Organizer) SelectForDelete(snap Snapshot, category string) error {
	switch {
	case category == "":
	case category == uncategorized:
		return validationError("Cannot delete the 'Uncategorized' category.")
	case !slices.Contains(snap.deletableCategories(), category):
		return validationError("Category not found.")
	}

	o.mu.Lock()
	o.deleteSelected = category
	o.mu.Unlock()

	return nil
}

func (o *Organizer) DeleteSelection() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.deleteSelected
}

// ConfirmDelete deletes the selected category. The selection is cleared
// either way, and the deleted category's collapse state is dropped at once.
func (o *Organizer) ConfirmDelete(ctx context.Context, cat *Catalog) (Snapshot, error) {
	o.mu.Lock()
	name := o.deleteSelected
	o.deleteSelected = ""
	o.mu.Unlock()

	if name == "" {
		return cat.Snapshot(), validationError("Select a category to delete.")
	}

	snap, err := cat.DeleteCategory(ctx, name)
	if err != nil {
		return snap, err
	}

	o.mu.Lock()
	delete(o.collapsed, name)
	delete(o.sortModes, name)
	o.mu.Unlock()

	o.Sync(snap)

	return snap, nil
}

// ToggleFlag highlights the decks of a workbook, or clears the highlight
// when that workbook's decks are all highlighted already.
func (o *Organizer) ToggleFlag(w Workbook) {
	ids := w.DeckIDs()

	o.mu.Lock()
	defer o.mu.Unlock()

	all := len(ids) > 0
	for _, id := range ids {
		if !slices.Contains(o.flagged, id) {
			all = false
			break
		}
	}

	if all {
		o.flagged = nil
		return
	}
	o.flagged = ids
}

func (o *Organizer) Flagged(id ID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return slices.Contains(o.flagged, id)
}

func (o *Organizer) WorkbookFlagged(w Workbook) bool {
	ids := w.DeckIDs()

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !slices.Contains(o.flagged, id) {
			return false
		}
	}
	return true
}
