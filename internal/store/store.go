// Package store is the persistent, content-addressed event store (C1).
// Every event is content-addressed by its id and immutable once ingested;
// "latest wins" selection for replaceable/addressable kinds happens at read
// time over whatever the backend returns, never by deleting superseded
// events (spec.md §4.1, invariant 4). Grounded on mroxso-wotrlay's
// Save/Query functions, which wrap github.com/fiatjaf/eventstore's
// SaveEvent/QueryEvents exactly this way.
package store

import (
	"context"
	"errors"
	"sort"

	"notecrumbs/internal/content"
	"notecrumbs/internal/types"
)

// ErrNotFound is returned by the single-event lookups when nothing matches.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidEvent is returned by Ingest when an event's id or signature
// doesn't verify (spec.md §7 "InvalidEvent"). The event is dropped, not
// stored.
var ErrInvalidEvent = errors.New("store: invalid event")

// EventStore is the persistence boundary every other component depends on.
type EventStore interface {
	// Ingest verifies e (internal/nostrcrypto.Verify) and stores it if not
	// already present, returning ErrInvalidEvent without storing anything
	// if verification fails. This is the one place signature verification
	// happens, regardless of which caller — primary fetch, profile-feed
	// refresh, note-secondary refresh — is pulling events off the wire
	// (spec.md §4.1, §3 invariant "signature verification is assumed
	// performed at ingest").
	Ingest(ctx context.Context, e types.Event) error

	// GetEventByID returns the event with the given id, or ErrNotFound.
	GetEventByID(ctx context.Context, id string) (types.Event, error)

	// GetProfileByPubkey returns the latest kind-0 event for pubkey, or
	// ErrNotFound if none has been ingested.
	GetProfileByPubkey(ctx context.Context, pubkey string) (types.Event, error)

	// GetRelayListByPubkey returns the latest kind-10002 event for pubkey.
	GetRelayListByPubkey(ctx context.Context, pubkey string) (types.Event, error)

	// GetAddressable returns the latest event for the (kind, pubkey, d-tag)
	// coordinate, or ErrNotFound.
	GetAddressable(ctx context.Context, kind int, pubkey, identifier string) (types.Event, error)

	// Query runs a filter and returns matching events, newest first.
	Query(ctx context.Context, f types.Filter) ([]types.Event, error)

	// GetBlocks returns the cached, parsed content blocks for an event,
	// computing and caching them on first access.
	GetBlocks(ctx context.Context, e types.Event) []types.Block

	Close() error
}

// latestWins picks, among events sharing a replaceable/addressable key, the
// one with the greatest CreatedAt, tie-broken by the lexicographically
// greatest id (spec.md invariant 4).
func latestWins(events []types.Event) (types.Event, bool) {
	if len(events) == 0 {
		return types.Event{}, false
	}
	best := events[0]
	for _, e := range events[1:] {
		if e.CreatedAt > best.CreatedAt || (e.CreatedAt == best.CreatedAt && e.ID > best.ID) {
			best = e
		}
	}
	return best, true
}

// sortNewestFirst orders events by CreatedAt desc, then id desc — the same
// tie-break stream_events uses in internal/relaypool, so query results and
// relay-merged results are consistent.
func sortNewestFirst(events []types.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt != events[j].CreatedAt {
			return events[i].CreatedAt > events[j].CreatedAt
		}
		return events[i].ID > events[j].ID
	})
}

// blockCache is shared by both EventStore implementations: parsing content
// is pure and idempotent, so caching by event id avoids re-running the
// regex scan in content.Parse on every render.
type blockCache interface {
	getBlocks(id string) ([]types.Block, bool)
	putBlocks(id string, blocks []types.Block)
}

func computeOrCachedBlocks(c blockCache, e types.Event) []types.Block {
	if blocks, ok := c.getBlocks(e.ID); ok {
		return blocks
	}
	blocks := content.Parse(e.Content)
	c.putBlocks(e.ID, blocks)
	return blocks
}
