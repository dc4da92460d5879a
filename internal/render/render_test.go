package render

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"notecrumbs/internal/content"
	"notecrumbs/internal/types"
)

func TestCollapseWhitespaceIdempotentAndTrimmed(t *testing.T) {
	cases := []string{
		"  hello   world  \n\t",
		"already clean",
		"",
		"\t\t\n  ",
		"no-whitespace-at-all",
	}
	for _, in := range cases {
		once := collapseWhitespace(in)
		twice := collapseWhitespace(once)
		if once != twice {
			t.Errorf("collapseWhitespace not idempotent: %q -> %q -> %q", in, once, twice)
		}
		if once != strings.TrimSpace(once) {
			t.Errorf("collapseWhitespace left untrimmed edges: %q", once)
		}
		if strings.Contains(once, "  ") {
			t.Errorf("collapseWhitespace left an adjacent whitespace run: %q", once)
		}
	}
}

func TestAbbreviateNeverSplitsRune(t *testing.T) {
	s := "hello wörld" // the ö is a 2-byte rune occupying bytes 7-8
	out := abbreviate(s, 8)
	if !utf8.ValidString(out) {
		t.Fatalf("abbreviate(%q, 8) = %q, split a multi-byte rune", s, out)
	}
}

func TestRenderNoteJSONMatchesScenario5Shape(t *testing.T) {
	blocks := content.Parse("hello #world https://i.jpg")
	payload := types.NotePayload{
		Event: types.Event{ID: "n1", PubKey: "pk1", Content: "hello #world https://i.jpg"},
		Blocks: blocks,
	}

	out, err := RenderNoteJSON(payload)
	if err != nil {
		t.Fatalf("RenderNoteJSON: %v", err)
	}

	var doc struct {
		ParsedContent []map[string]interface{} `json:"parsed_content"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []map[string]interface{}{
		{"text": "hello "},
		{"hashtag": "world"},
		{"text": " "},
		{"url": "https://i.jpg"},
	}
	if len(doc.ParsedContent) != len(want) {
		t.Fatalf("parsed_content = %+v, want %+v", doc.ParsedContent, want)
	}
	for i, w := range want {
		for k, v := range w {
			if doc.ParsedContent[i][k] != v {
				t.Errorf("parsed_content[%d] = %+v, want %+v", i, doc.ParsedContent[i], w)
			}
		}
	}
}

func TestRenderNoteHTMLProducesDocument(t *testing.T) {
	r := New("https://example.com")
	payload := types.NotePayload{
		Event:  types.Event{ID: "n1", PubKey: "pk1", Content: "hello world"},
		Blocks: content.Parse("hello world"),
	}
	out, err := r.RenderNoteHTML(payload)
	if err != nil {
		t.Fatalf("RenderNoteHTML: %v", err)
	}
	if !strings.Contains(string(out), "<html") {
		t.Errorf("output missing <html>: %s", out)
	}
	if !strings.Contains(string(out), "nostrich") {
		t.Errorf("expected fallback author name when AuthorMissing is unset but Author is nil: %s", out)
	}
}

func TestRenderProfilePNGProducesValidPNG(t *testing.T) {
	r := New("https://example.com")
	payload := types.ProfilePayload{Pubkey: "abc123", DisplayName: "alice"}
	out, err := r.RenderProfilePNG(payload)
	if err != nil {
		t.Fatalf("RenderProfilePNG: %v", err)
	}
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	if len(out) < len(pngMagic) || string(out[:len(pngMagic)]) != string(pngMagic) {
		t.Error("output does not start with PNG magic bytes")
	}
}

func TestGradientEndpointsDeterministicPerSeed(t *testing.T) {
	l1, r1 := gradientEndpoints("alice")
	l2, r2 := gradientEndpoints("alice")
	if l1 != l2 || r1 != r2 {
		t.Error("gradientEndpoints not deterministic for the same seed")
	}
	l3, _ := gradientEndpoints("bob")
	if l1 == l3 {
		t.Error("gradientEndpoints produced identical colors for different seeds (hash collision or bug)")
	}
}
