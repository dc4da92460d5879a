package store

import (
	"context"
	"fmt"

	"github.com/fiatjaf/eventstore/badger"
	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"

	"notecrumbs/internal/metrics"
	"notecrumbs/internal/nostrcrypto"
	"notecrumbs/internal/types"
)

// BadgerStore persists events on disk via fiatjaf/eventstore's badger
// backend. Grounded on mroxso-wotrlay's Save/Query functions: every event is
// saved unconditionally (content-addressed, so re-saving is a no-op) and
// "latest wins" is computed in Go over whatever QueryEvents returns, rather
// than relying on the backend to delete superseded replaceable events.
type BadgerStore struct {
	db     *badger.BadgerBackend
	blocks *xsync.MapOf[string, []types.Block]
}

// OpenBadgerStore initializes a badger backend rooted at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	db := &badger.BadgerBackend{Path: dir}
	if err := db.Init(); err != nil {
		return nil, fmt.Errorf("store: badger init: %w", err)
	}
	return &BadgerStore{
		db:     db,
		blocks: xsync.NewMapOf[string, []types.Block](),
	}, nil
}

func (s *BadgerStore) Ingest(ctx context.Context, e types.Event) error {
	if !nostrcrypto.Verify(e) {
		metrics.EventsDroppedTotal.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidEvent, e.ID)
	}
	ne := toNostrEvent(e)
	if err := s.db.SaveEvent(ctx, &ne); err != nil {
		return fmt.Errorf("store: save event %s: %w", e.ID, err)
	}
	metrics.EventsIngestedTotal.Add(1)
	return nil
}

func (s *BadgerStore) GetEventByID(ctx context.Context, id string) (types.Event, error) {
	events, err := s.queryNostr(ctx, nostr.Filter{IDs: []string{id}, Limit: 1})
	if err != nil {
		return types.Event{}, err
	}
	if len(events) == 0 {
		return types.Event{}, ErrNotFound
	}
	return events[0], nil
}

func (s *BadgerStore) GetProfileByPubkey(ctx context.Context, pubkey string) (types.Event, error) {
	return s.latestReplaceable(ctx, types.KindProfile, pubkey)
}

func (s *BadgerStore) GetRelayListByPubkey(ctx context.Context, pubkey string) (types.Event, error) {
	return s.latestReplaceable(ctx, types.KindRelayList, pubkey)
}

func (s *BadgerStore) latestReplaceable(ctx context.Context, kind int, pubkey string) (types.Event, error) {
	events, err := s.queryNostr(ctx, nostr.Filter{Kinds: []int{kind}, Authors: []string{pubkey}})
	if err != nil {
		return types.Event{}, err
	}
	best, ok := latestWins(events)
	if !ok {
		return types.Event{}, ErrNotFound
	}
	return best, nil
}

func (s *BadgerStore) GetAddressable(ctx context.Context, kind int, pubkey, identifier string) (types.Event, error) {
	events, err := s.queryNostr(ctx, nostr.Filter{
		Kinds:   []int{kind},
		Authors: []string{pubkey},
		Tags:    nostr.TagMap{"d": []string{identifier}},
	})
	if err != nil {
		return types.Event{}, err
	}
	best, ok := latestWins(events)
	if !ok {
		return types.Event{}, ErrNotFound
	}
	return best, nil
}

func (s *BadgerStore) Query(ctx context.Context, f types.Filter) ([]types.Event, error) {
	events, err := s.queryNostr(ctx, toNostrFilter(f))
	if err != nil {
		return nil, err
	}
	sortNewestFirst(events)
	if f.Limit > 0 && len(events) > f.Limit {
		events = events[:f.Limit]
	}
	return events, nil
}

func (s *BadgerStore) queryNostr(ctx context.Context, f nostr.Filter) ([]types.Event, error) {
	ch, err := s.db.QueryEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	var out []types.Event
	for ne := range ch {
		out = append(out, fromNostrEvent(*ne))
	}
	return out, nil
}

func (s *BadgerStore) GetBlocks(_ context.Context, e types.Event) []types.Block {
	return computeOrCachedBlocks(badgerBlockCache{s.blocks}, e)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerBlockCache struct {
	m *xsync.MapOf[string, []types.Block]
}

func (c badgerBlockCache) getBlocks(id string) ([]types.Block, bool) { return c.m.Load(id) }
func (c badgerBlockCache) putBlocks(id string, blocks []types.Block) { c.m.Store(id, blocks) }

func toNostrEvent(e types.Event) nostr.Event {
	tags := make(nostr.Tags, 0, len(e.Tags))
	for _, t := range e.Tags {
		tags = append(tags, nostr.Tag(t))
	}
	return nostr.Event{
		ID:        e.ID,
		PubKey:    e.PubKey,
		CreatedAt: nostr.Timestamp(e.CreatedAt),
		Kind:      e.Kind,
		Tags:      tags,
		Content:   e.Content,
		Sig:       e.Sig,
	}
}

func fromNostrEvent(ne nostr.Event) types.Event {
	tags := make([][]string, 0, len(ne.Tags))
	for _, t := range ne.Tags {
		tags = append(tags, []string(t))
	}
	return types.Event{
		ID:        ne.ID,
		PubKey:    ne.PubKey,
		CreatedAt: int64(ne.CreatedAt),
		Kind:      ne.Kind,
		Tags:      tags,
		Content:   ne.Content,
		Sig:       ne.Sig,
	}
}

func toNostrFilter(f types.Filter) nostr.Filter {
	nf := nostr.Filter{
		IDs:     f.IDs,
		Authors: f.Authors,
		Kinds:   f.Kinds,
		Limit:   f.Limit,
	}
	if len(f.Tags) > 0 {
		nf.Tags = nostr.TagMap(f.Tags)
	}
	if f.Since != nil {
		ts := nostr.Timestamp(*f.Since)
		nf.Since = &ts
	}
	if f.Until != nil {
		ts := nostr.Timestamp(*f.Until)
		nf.Until = &ts
	}
	return nf
}
