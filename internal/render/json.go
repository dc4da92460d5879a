package render

import (
	"encoding/json"

	"notecrumbs/internal/types"
)

// noteJSONDoc is the wire shape spec.md §6 names for the JSON artifact:
// {note, parsed_content, profile?}.
type noteJSONDoc struct {
	Note          types.Event       `json:"note"`
	ParsedContent []json.RawMessage `json:"parsed_content"`
	Profile       *types.Event      `json:"profile,omitempty"`
}

// RenderNoteJSON marshals payload per spec.md §6's JSON shape. Only
// available for note references — the dispatcher 404s a .json suffix on
// anything else before ever reaching the renderer.
func RenderNoteJSON(payload types.NotePayload) ([]byte, error) {
	doc := noteJSONDoc{
		Note:    payload.Event,
		Profile: payload.Author,
	}
	for _, b := range payload.Blocks {
		raw, err := blockToJSON(b)
		if err != nil {
			return nil, wrapRenderErr(err)
		}
		doc.ParsedContent = append(doc.ParsedContent, raw)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, wrapRenderErr(err)
	}
	return out, nil
}

// blockToJSON encodes one block as a single-key object, e.g. {"text":"..."}
// or {"hashtag":"world"}, matching spec.md §8 scenario 5's literal shape.
func blockToJSON(b types.Block) (json.RawMessage, error) {
	var key string
	var value interface{}
	switch b.Type {
	case types.BlockText:
		key, value = "text", b.Text
	case types.BlockURL:
		key, value = "url", b.Text
	case types.BlockHashtag:
		key, value = "hashtag", b.Text
	case types.BlockInvoice:
		key, value = "invoice", b.Text
	case types.BlockMention:
		key, value = "mention", mentionJSON(b)
	case types.BlockIndexedMention:
		key, value = "indexed_mention", mentionJSON(b)
	default:
		key, value = "text", b.Text
	}
	return json.Marshal(map[string]interface{}{key: value})
}

type mentionPayload struct {
	Raw        string   `json:"raw"`
	Pubkey     string   `json:"pubkey,omitempty"`
	EventID    string   `json:"event_id,omitempty"`
	Author     string   `json:"author,omitempty"`
	Kind       int      `json:"kind,omitempty"`
	Identifier string   `json:"identifier,omitempty"`
	RelayHints []string `json:"relay_hints,omitempty"`
}

func mentionJSON(b types.Block) mentionPayload {
	return mentionPayload{
		Raw:        b.Raw,
		Pubkey:     b.Ref.Pubkey,
		EventID:    b.Ref.EventID,
		Author:     b.Ref.Author,
		Kind:       b.Ref.EventKind,
		Identifier: b.Ref.Identifier,
		RelayHints: b.Ref.RelayHints,
	}
}
