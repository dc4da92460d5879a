// Package types holds the wire-level data shapes shared across packages:
// the Nostr event and filter model (NIP-01) plus the small set of
// profile/relay-list structs the render-data assembler works with.
package types

// Event represents a signed Nostr event (NIP-01). ID is a pure function of
// the remaining fields; signature verification happens at ingest, in
// internal/nostrcrypto.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Kind constants for the event kinds the core cares about (spec.md §3).
const (
	KindProfile    = 0
	KindNote       = 1
	KindContacts   = 3
	KindRepost     = 6
	KindReaction   = 7
	KindRelayList  = 10002
	KindLongForm   = 30023
	KindLongDraft  = 30024
)

// IsReplaceable reports whether the latest event for (author, kind) wins.
func IsReplaceable(kind int) bool {
	return kind == KindProfile || kind == KindRelayList || kind == KindContacts
}

// IsAddressable reports whether the event is identified by (kind, author, d-tag).
func IsAddressable(kind int) bool {
	return kind >= 30000 && kind < 40000
}

// Tag returns the first tag whose name matches, or nil.
func (e Event) Tag(name string) []string {
	for _, t := range e.Tags {
		if len(t) > 0 && t[0] == name {
			return t
		}
	}
	return nil
}

// TagValues returns the second element of every tag with the given name.
func (e Event) TagValues(name string) []string {
	var out []string
	for _, t := range e.Tags {
		if len(t) > 1 && t[0] == name {
			out = append(out, t[1])
		}
	}
	return out
}

// Filter is a single Nostr subscription filter (NIP-01). Multiple filters OR
// together at the store/pool boundary.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Tags    map[string][]string // e.g. "d" -> [...], "t" -> [...], "p" -> [...]
	Since   *int64
	Until   *int64
	Limit   int
}
