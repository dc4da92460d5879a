package types

// Block is a single parsed content block (spec.md §4.1 "Content blocks").
// Exactly one of the typed fields is set, matching BlockType.
type BlockType string

const (
	BlockText            BlockType = "text"
	BlockURL             BlockType = "url"
	BlockHashtag         BlockType = "hashtag"
	BlockMention         BlockType = "mention"          // profile/event/pubkey/relay/secret mention
	BlockIndexedMention  BlockType = "indexed_mention"   // addressable (naddr) mention
	BlockInvoice         BlockType = "invoice"
)

// MentionVariant distinguishes the bech32 variant of a BlockMention/BlockIndexedMention.
type MentionVariant string

const (
	MentionProfile     MentionVariant = "profile"
	MentionEvent       MentionVariant = "event"
	MentionAddressable MentionVariant = "addressable"
	MentionPubkey      MentionVariant = "pubkey"
	MentionRelay       MentionVariant = "relay"
	MentionSecret      MentionVariant = "secret"
)

// Block is one element of an event's parsed content.
type Block struct {
	Type    BlockType
	Text    string         // BlockText, BlockURL, BlockHashtag, BlockInvoice (raw invoice string)
	Variant MentionVariant // BlockMention, BlockIndexedMention
	Ref     Reference      // decoded mention target
	Raw     string         // original bech32 string, for round-tripping
}

// Missing marks a referenced entity not yet present in the local store.
type Missing struct {
	Pubkey string
	EventID string
}

// ProfilePayload is the assembled render data for a Pubkey/Profile reference
// (spec.md §4.5).
type ProfilePayload struct {
	Pubkey      string
	Profile     *Event // kind-0, nil if not yet ingested
	DisplayName string // first non-empty of display_name, name, else "nostrich"
	RelayList   *RelayList
	RecentNotes []Event // up to PROFILE_FEED_RECENT_LIMIT, newest first
	Missing     *Missing
}

// NotePayload is the assembled render data for an Event/EventId reference.
type NotePayload struct {
	Event        Event
	Author       *Event // kind-0 of event.PubKey, nil if missing
	AuthorMissing *Missing
	SourceRelays []string
	Blocks       []Block

	Mentions map[string]*Event // profile mentions -> resolved kind-0 event, keyed by "p:"+pubkey
	Quotes   map[string]*Event // event mentions keyed by "e:"+id, one level deep, kind-1 only
	Replies  []Event           // ancestor chain via `e` tags, capped at 20, root-first

	Reactions ReactionCounts

	// Article-only fields (kind 30023/30024)
	Article *ArticleMeta

	UnknownIDs     []string // event ids referenced but not in store
	UnknownProfiles []string // pubkeys referenced but not in store
}

// ReactionCounts aggregates kind 6/7 events referencing the primary note.
type ReactionCounts struct {
	Reposts   int
	Reactions int
	ByType    map[string]int
}

// ArticleMeta holds tag-derived metadata for kind 30023/30024 events.
type ArticleMeta struct {
	Title         string
	Image         string
	Summary       string
	PublishedAt   int64 // overrides CreatedAt for display when > 0
	Topics        []string
	Identifier    string
}
