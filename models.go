/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const uncategorized = "Uncategorized"

// ID is an opaque backend identifier. The backend emits both strings and
// bare numbers for ids, so both decode into the same textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number, got %s", data)
	}
	*id = ID(n.String())

	return nil
}

func (id ID) String() string {
	return string(id)
}

// Card is a goal word plus the words that may not be said.
type Card struct {
	Word  string   `json:"word" validate:"required"`
	Taboo []string `json:"taboo"`
}

type Deck struct {
	ID                ID     `json:"id" validate:"required"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	CardCount         int    `json:"card_count" validate:"gte=0"`
	SourceType        string `json:"source_type,omitempty"`
	Source            string `json:"source,omitempty"`
	TabooWordsPerCard int    `json:"taboo_words_per_card,omitempty"`
	Cards             []Card `json:"cards" validate:"dive"`
}

// Snapshot is the full categories/decks state as confirmed by the backend.
type Snapshot struct {
	Categories []string `json:"categories" validate:"required,dive,required"`
	Decks      []Deck   `json:"decks" validate:"required,dive"`
}

// normalized returns a copy where "Uncategorized" is always listed first
// when missing and every deck names a category.
func (s Snapshot) normalized() Snapshot {
	out := Snapshot{
		Categories: make([]string, 0, len(s.Categories)+1),
		Decks:      make([]Deck, len(s.Decks)),
	}

	hasUncategorized := false
	for _, c := range s.Categories {
		if c == uncategorized {
			hasUncategorized = true
			break
		}
	}
	if !hasUncategorized {
		out.Categories = append(out.Categories, uncategorized)
	}
	out.Categories = append(out.Categories, s.Categories...)

	copy(out.Decks, s.Decks)
	for i := range out.Decks {
		if strings.TrimSpace(out.Decks[i].Category) == "" {
			out.Decks[i].Category = uncategorized
		}
	}

	return out
}

func (s Snapshot) deck(id ID) (Deck, bool) {
	for _, d := range s.Decks {
		if d.ID == id {
			return d, true
		}
	}
	return Deck{}, false
}

func (s Snapshot) hasCategory(name string) bool {
	for _, c := range s.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// decksIn returns the decks of one category in server order.
func (s Snapshot) decksIn(category string) []Deck {
	var out []Deck
	for _, d := range s.Decks {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// deletableCategories is every category except the permanent bucket.
func (s Snapshot) deletableCategories() []string {
	out := make([]string, 0, len(s.Categories))
	for _, c := range s.Categories {
		if c != uncategorized {
			out = append(out, c)
		}
	}
	return out
}

type WorkbookTab struct {
	TabName  string `json:"tab_name"`
	SheetGID int64  `json:"sheet_gid"`
	DeckID   ID     `json:"deck_id,omitempty"`
}

// Workbook is a spreadsheet import that produced one deck per tab.
type Workbook struct {
	ID         ID            `json:"_id" validate:"required"`
	WorkbookID string        `json:"workbook_id"`
	Name       string        `json:"name"`
	Tabs       []WorkbookTab `json:"tabs"`
	LastSynced string        `json:"last_synced,omitempty"`
}

func (w *Workbook) UnmarshalJSON(data []byte) error {
	type plain Workbook

	var raw struct {
		plain
		AltID ID `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*w = Workbook(raw.plain)
	if w.ID == "" {
		w.ID = raw.AltID
	}

	return nil
}

// SheetURL links back to the source spreadsheet, or "" when unknown.
func (w Workbook) SheetURL() string {
	if w.WorkbookID == "" {
		return ""
	}
	return "https://docs.google.com/spreadsheets/d/" + w.WorkbookID + "/edit"
}

func (w Workbook) DeckIDs() []ID {
	ids := make([]ID, 0, len(w.Tabs))
	for _, t := range w.Tabs {
		if t.DeckID != "" {
			ids = append(ids, t.DeckID)
		}
	}
	return ids
}

// DeckTotal counts linked decks, falling back to the tab count before the
// backend has wired deck ids into the tabs.
func (w Workbook) DeckTotal() int {
	if n := len(w.DeckIDs()); n > 0 {
		return n
	}
	return len(w.Tabs)
}

type WorkbookImport struct {
	Message    string `json:"message"`
	WorkbookID ID     `json:"workbook_id" validate:"required"`
}

type LoginResult struct {
	Token string `json:"token" validate:"required"`
	Role  Role   `json:"role" validate:"required,oneof=staff admin dev"`
}

// ImportRequest is the body of a deck import from a CSV or Sheets URL.
type ImportRequest struct {
	URL               string `json:"url" validate:"required,url"`
	Name              string `json:"name,omitempty"`
	Category          string `json:"category,omitempty"`
	TabooWordsPerCard int    `json:"taboo_words_per_card" validate:"gte=1"`
}

type messageResponse struct {
	Message string `json:"message"`
}
