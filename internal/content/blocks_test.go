package content

import (
	"testing"

	"notecrumbs/internal/nip19"
	"notecrumbs/internal/types"
)

func TestParseTextHashtagURL(t *testing.T) {
	blocks := Parse(`hello #world https://i.jpg`)
	want := []types.Block{
		{Type: types.BlockText, Text: "hello "},
		{Type: types.BlockHashtag, Text: "world"},
		{Type: types.BlockText, Text: " "},
		{Type: types.BlockURL, Text: "https://i.jpg"},
	}
	if len(blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d: %+v", len(blocks), len(want), blocks)
	}
	for i := range want {
		if blocks[i].Type != want[i].Type || blocks[i].Text != want[i].Text {
			t.Errorf("block %d = %+v, want %+v", i, blocks[i], want[i])
		}
	}
}

func TestParseNoSpecialContent(t *testing.T) {
	blocks := Parse("just plain text")
	if len(blocks) != 1 || blocks[0].Type != types.BlockText || blocks[0].Text != "just plain text" {
		t.Fatalf("got %+v", blocks)
	}
}

func TestParseEmpty(t *testing.T) {
	if blocks := Parse(""); len(blocks) != 0 {
		t.Fatalf("expected no blocks for empty content, got %+v", blocks)
	}
}

func TestParseMentionPubkey(t *testing.T) {
	hexPubkey := "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
	npub, err := nip19.EncodePubkey(hexPubkey)
	if err != nil {
		t.Fatalf("EncodePubkey: %v", err)
	}
	blocks := Parse("gm nostr:" + npub + " !")
	found := false
	for _, b := range blocks {
		if b.Type == types.BlockMention && b.Variant == types.MentionPubkey {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a pubkey mention block, got %+v", blocks)
	}
}

func TestParseOrderPreserved(t *testing.T) {
	blocks := Parse("a https://x.com b #tag c")
	var order []types.BlockType
	for _, b := range blocks {
		order = append(order, b.Type)
	}
	want := []types.BlockType{types.BlockText, types.BlockURL, types.BlockText, types.BlockHashtag, types.BlockText}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}
