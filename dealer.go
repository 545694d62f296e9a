/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand/v2"
)

// DealerState is the coarse state of a play session.
type DealerState string

const (
	StateIdle      DealerState = "idle"
	StatePlaying   DealerState = "playing"
	StateExhausted DealerState = "exhausted"
)

// Entry is a card tagged with the name of the deck it was drawn from.
type Entry struct {
	Card
	DeckName string `json:"deck_name"`
}

// Dealer turns a deck selection into a shuffled draw queue.
//
// stop clears the run but keeps the base pool, so reload can replay the
// same selection without choosing decks again.
type Dealer struct {
	rng *rand.Rand

	basePool []Entry
	run      []Entry
	playing  bool
}

func newDealer(rng *rand.Rand) *Dealer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Dealer{rng: rng}
}

// shuffle is an in-place Fisher-Yates with a uniform index per swap.
func shuffle[T any](rng *rand.Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// buildPool concatenates the cards of every selected deck, in deck order.
func buildPool(decks []Deck, selected []ID) []Entry {
	want := make(map[ID]bool, len(selected))
	for _, id := range selected {
		want[id] = true
	}

	var pool []Entry
	for _, d := range decks {
		if !want[d.ID] {
			continue
		}
		for _, c := range d.Cards {
			pool = append(pool, Entry{Card: c, DeckName: d.Name})
		}
	}
	return pool
}

// BeginPlay starts a run over the selected decks. On a validation failure
// the dealer stays where it was.
func (d *Dealer) BeginPlay(decks []Deck, selected []ID) error {
	if len(selected) == 0 {
		return validationError("Select at least one deck first.")
	}

	pool := buildPool(decks, selected)
	if len(pool) == 0 {
		return validationError("The selected decks don't have any stored cards.\nTry re-importing your Google Sheet decks from the Manage tab.")
	}

	d.basePool = pool
	d.deal()

	return nil
}

func (d *Dealer) deal() {
	run := make([]Entry, len(d.basePool))
	copy(run, d.basePool)
	shuffle(d.rng, run)

	d.run = run
	d.playing = true
}

// Draw discards the current card. It is ignored when nothing is left.
func (d *Dealer) Draw() bool {
	if !d.playing || len(d.run) == 0 {
		return false
	}

	d.run[0] = Entry{}
	d.run = d.run[1:]

	return true
}

// Skip sends the current card to the back of the run. A run of one card
// cannot be skipped.
func (d *Dealer) Skip() bool {
	if !d.playing || len(d.run) <= 1 {
		return false
	}

	first := d.run[0]
	d.run = append(d.run[1:], first)

	return true
}

// Reload reshuffles the base pool into a fresh run. Without a prior
// BeginPlay it does nothing.
func (d *Dealer) Reload() bool {
	if len(d.basePool) == 0 {
		return false
	}

	d.deal()

	return true
}

func (d *Dealer) Stop() {
	d.playing = false
	d.run = nil
}

func (d *Dealer) State() DealerState {
	switch {
	case !d.playing:
		return StateIdle
	case len(d.run) == 0:
		return StateExhausted
	default:
		return StatePlaying
	}
}

func (d *Dealer) Playing() bool {
	return d.playing
}

func (d *Dealer) Current() (Entry, bool) {
	if !d.playing || len(d.run) == 0 {
		return Entry{}, false
	}
	return d.run[0], true
}

func (d *Dealer) Remaining() int {
	return len(d.run)
}

func (d *Dealer) PoolSize() int {
	return len(d.basePool)
}

func (d *Dealer) CanSkip() bool {
	return d.playing && len(d.run) > 1
}

// Run returns a copy of the draw queue, head first.
func (d *Dealer) Run() []Entry {
	out := make([]Entry, len(d.run))
	copy(out, d.run)
	return out
}
