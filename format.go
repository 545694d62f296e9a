/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"unicode"
)

var tinyLetters = map[rune]rune{
	'a': 'ᴀ', 'b': 'ʙ', 'c': 'ᴄ', 'd': 'ᴅ', 'e': 'ᴇ', 'f': 'ғ', 'g': 'ɢ',
	'h': 'ʜ', 'i': 'ɪ', 'j': 'ᴊ', 'k': 'ᴋ', 'l': 'ʟ', 'm': 'ᴍ', 'n': 'ɴ',
	'o': 'ᴏ', 'p': 'ᴘ', 'q': 'ǫ', 'r': 'ʀ', 's': 's', 't': 'ᴛ', 'u': 'ᴜ',
	'v': 'ᴠ', 'w': 'ᴡ', 'x': 'x', 'y': 'ʏ', 'z': 'ᴢ',
}

// unicodeBold maps ASCII letters and digits onto the Mathematical Bold block.
func unicodeBold(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 4)

	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + '𝐀')
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + '𝐚')
		case r >= '0' && r <= '9':
			b.WriteRune(r - '0' + '𝟎')
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// tinyText renders letters as small capitals; everything else passes through.
func tinyText(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)

	for _, r := range s {
		if t, ok := tinyLetters[unicode.ToLower(r)]; ok {
			b.WriteRune(t)
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// previewWord is what the card area shows while there is no current card.
func previewWord(entry *Entry, playing bool) string {
	switch {
	case entry != nil:
		return entry.Word
	case playing:
		return "No cards left in this run."
	default:
		return "Word will appear here once play starts"
	}
}

// copyText formats a card as the block staff paste into a chat: a fenced
// goal word and taboo line, then a small-caps deck footer.
func copyText(entry *Entry, playing bool) string {
	if entry == nil {
		return "TABOO CARD CONTENT WILL GO HERE\n(Current card: " + previewWord(nil, playing) + ")"
	}

	tabooLine := unicodeBold("(none)")
	if len(entry.Taboo) > 0 {
		words := make([]string, len(entry.Taboo))
		for i, t := range entry.Taboo {
			words[i] = unicodeBold(t)
		}
		tabooLine = strings.Join(words, " | ")
	}

	lines := []string{
		"```",
		"✅ GOAL WORD: " + unicodeBold(entry.Word),
		"",
		"❌ Don't say:",
		tabooLine,
		"```",
	}

	if entry.DeckName != "" {
		lines = append(lines, "-# 🃏 "+tinyText(entry.DeckName))
	}

	return strings.TrimRightFunc(strings.Join(lines, "\n"), unicode.IsSpace)
}

// dealerCopyText formats the dealer's current card.
func dealerCopyText(d *Dealer) string {
	if e, ok := d.Current(); ok {
		return copyText(&e, d.Playing())
	}
	return copyText(nil, d.Playing())
}
