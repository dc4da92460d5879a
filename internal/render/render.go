// Package render turns an assembled ProfilePayload/NotePayload into the
// three artifact kinds the dispatcher serves: HTML, a 1200x630 PNG share
// card, and (notes only) a JSON document. HTML/PNG visual fidelity is out
// of scope (spec.md Non-goals) — this is a minimal conforming
// implementation so the gateway runs end to end, following the teacher's
// html/template + goldmark pipeline for markup and the original
// implementation's collapse_whitespace/abbreviate helpers for text
// trimming.
package render

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrRenderFailed wraps any failure while producing an artifact (spec.md §7
// RenderError: 500, logged).
var ErrRenderFailed = errors.New("render: failed")

// abbrevSize matches original_source/abbrev.rs's ABBREV_SIZE.
const abbrevSize = 10

// abbreviate truncates s to at most n bytes, never splitting a UTF-8
// rune; it adds no ellipsis (abbrevStr does). Grounded on abbrev.rs's
// floor_char_boundary/abbreviate.
func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := floorCharBoundary(s, n)
	return s[:cut]
}

// abbrevStr is abbrev.rs's abbrev_str: abbreviate to abbrevSize and mark
// truncation with a trailing ellipsis.
func abbrevStr(s string) string {
	if len(s) <= abbrevSize {
		return s
	}
	return abbreviate(s, abbrevSize) + "..."
}

// floorCharBoundary returns the largest index <= min(index, len(s)) that
// lies on a UTF-8 rune boundary, matching Rust's floor_char_boundary.
func floorCharBoundary(s string, index int) int {
	if index >= len(s) {
		return len(s)
	}
	for index > 0 && !utf8.RuneStart(s[index]) {
		index--
	}
	return index
}

// collapseWhitespace replaces every run of whitespace with a single space
// and trims the result (spec.md §8 testable property 7; grounded on
// original_source/html.rs's collapse_whitespace).
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if isWhitespace(r) {
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
