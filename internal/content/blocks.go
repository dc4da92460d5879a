// Package content parses a Nostr event's free-form content string into the
// typed block sequence the store caches per event (spec.md §4.1 "Content
// blocks"). Grounded on the teacher's regex-driven content pipeline
// (html.go's nostrRefRegex/urlRegex/processContentToHTMLFull): none of the
// example repos reach for a parser-combinator library for this, they all
// scan with compiled regexps, so this follows the same idiom.
package content

import (
	"regexp"
	"sort"
	"strings"

	"notecrumbs/internal/nip19"
	"notecrumbs/internal/types"
)

var (
	urlRe      = regexp.MustCompile(`https?://[^\s<>"]+`)
	hashtagRe  = regexp.MustCompile(`#[A-Za-z0-9_]+`)
	invoiceRe  = regexp.MustCompile(`(?i)lnbc[0-9a-z]+`)
	nostrRefRe = regexp.MustCompile(`(?:nostr:)?(nevent1[a-z0-9]+|note1[a-z0-9]+|nprofile1[a-z0-9]+|naddr1[a-z0-9]+|npub1[a-z0-9]+|nsec1[a-z0-9]+)`)
)

type span struct {
	start, end int
	block      types.Block
}

// Parse splits content into an ordered sequence of blocks. The result is
// cached per event key by the store (internal/store) so it is computed once.
func Parse(content string) []types.Block {
	var spans []span

	collect := func(re *regexp.Regexp, build func(match string) (types.Block, bool)) {
		for _, loc := range re.FindAllStringIndex(content, -1) {
			match := content[loc[0]:loc[1]]
			block, ok := build(match)
			if !ok {
				continue
			}
			spans = append(spans, span{start: loc[0], end: loc[1], block: block})
		}
	}

	collect(nostrRefRe, func(match string) (types.Block, bool) {
		ident := strings.TrimPrefix(match, "nostr:")
		ref, err := nip19.DecodeReference(ident)
		if err != nil {
			return types.Block{}, false
		}
		b := types.Block{Ref: ref, Raw: ident}
		switch ref.Kind {
		case types.RefCoordinate:
			b.Type = types.BlockIndexedMention
			b.Variant = types.MentionAddressable
		case types.RefEventID, types.RefEvent:
			b.Type = types.BlockMention
			b.Variant = types.MentionEvent
		case types.RefPubkey, types.RefProfile:
			b.Type = types.BlockMention
			b.Variant = types.MentionPubkey
			if ref.Kind == types.RefProfile {
				b.Variant = types.MentionProfile
			}
		default:
			return types.Block{}, false
		}
		return b, true
	})
	collect(invoiceRe, func(match string) (types.Block, bool) {
		return types.Block{Type: types.BlockInvoice, Text: match}, true
	})
	collect(urlRe, func(match string) (types.Block, bool) {
		return types.Block{Type: types.BlockURL, Text: match}, true
	})
	collect(hashtagRe, func(match string) (types.Block, bool) {
		return types.Block{Type: types.BlockHashtag, Text: strings.TrimPrefix(match, "#")}, true
	})

	spans = dropOverlaps(spans)
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var blocks []types.Block
	cursor := 0
	for _, s := range spans {
		if s.start > cursor {
			blocks = append(blocks, types.Block{Type: types.BlockText, Text: content[cursor:s.start]})
		}
		blocks = append(blocks, s.block)
		cursor = s.end
	}
	if cursor < len(content) {
		blocks = append(blocks, types.Block{Type: types.BlockText, Text: content[cursor:]})
	}
	return blocks
}

// dropOverlaps keeps the earliest-starting, longest span among overlapping
// matches (a nostr: reference and a url never overlap in practice, but a
// hashtag and an invoice could if content is adversarial).
func dropOverlaps(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})
	var out []span
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		out = append(out, s)
		lastEnd = s.end
	}
	return out
}
