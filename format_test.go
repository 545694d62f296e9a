/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnicodeBold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sun", "𝐒𝐮𝐧"},
		{"abc 123", "𝐚𝐛𝐜 𝟏𝟐𝟑"},
		{"hot-dog!", "𝐡𝐨𝐭-𝐝𝐨𝐠!"},
		{"", ""},
		{"café", "𝐜𝐚𝐟é"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, unicodeBold(tt.in))
		})
	}
}

func TestTinyText(t *testing.T) {
	assert.Equal(t, "ᴀɴɪᴍᴀʟs", tinyText("Animals"))
	assert.Equal(t, "ᴘᴏᴘ 2024", tinyText("Pop 2024"))
}

func TestPreviewWord(t *testing.T) {
	entry := &Entry{Card: Card{Word: "Sun"}}

	assert.Equal(t, "Sun", previewWord(entry, true))
	assert.Equal(t, "No cards left in this run.", previewWord(nil, true))
	assert.Equal(t, "Word will appear here once play starts", previewWord(nil, false))
}

func TestCopyText(t *testing.T) {
	entry := &Entry{
		Card:     Card{Word: "Sun", Taboo: []string{"hot", "star"}},
		DeckName: "Sky",
	}

	want := strings.Join([]string{
		"```",
		"✅ GOAL WORD: 𝐒𝐮𝐧",
		"",
		"❌ Don't say:",
		"𝐡𝐨𝐭 | 𝐬𝐭𝐚𝐫",
		"```",
		"-# 🃏 sᴋʏ",
	}, "\n")

	assert.Equal(t, want, copyText(entry, true))
}

func TestCopyText_NoTaboo(t *testing.T) {
	entry := &Entry{Card: Card{Word: "Moon"}}
	got := copyText(entry, true)

	assert.Contains(t, got, "𝐌𝐨𝐨𝐧")
	assert.Contains(t, got, unicodeBold("(none)"))
	assert.NotContains(t, got, "-# ")
	assert.True(t, strings.HasSuffix(got, "```"))
}

func TestCopyText_Placeholder(t *testing.T) {
	assert.Equal(t,
		"TABOO CARD CONTENT WILL GO HERE\n(Current card: Word will appear here once play starts)",
		copyText(nil, false))
	assert.Equal(t,
		"TABOO CARD CONTENT WILL GO HERE\n(Current card: No cards left in this run.)",
		copyText(nil, true))
}

func TestDealerCopyText(t *testing.T) {
	d := newDealer(testRNG())
	assert.Contains(t, dealerCopyText(d), "Word will appear here once play starts")

	decks := []Deck{{ID: "1", Name: "Sky", Cards: []Card{{Word: "Sun", Taboo: []string{"hot"}}}}}
	if assert.NoError(t, d.BeginPlay(decks, []ID{"1"})) {
		assert.Contains(t, dealerCopyText(d), "✅ GOAL WORD: 𝐒𝐮𝐧")
	}

	d.Draw()
	assert.Contains(t, dealerCopyText(d), "No cards left in this run.")
}
