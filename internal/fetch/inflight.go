// Package fetch is the fetch coordinator (C4): primary inflight
// deduplication for cold-start event lookups, and a debounced background
// refresh state machine for profile feeds and note secondary data.
//
// Primary dedup is grounded directly on the teacher's singleflight.go,
// which already implements "at most one outstanding fetch per key, late
// joiners share the result" via golang.org/x/sync/singleflight — exactly
// the contract spec.md §4.4 describes for event ids.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"notecrumbs/internal/metrics"
	"notecrumbs/internal/relaypool"
	"notecrumbs/internal/store"
	"notecrumbs/internal/types"
)

// defaultFetchTimeout bounds a primary fetch when the caller's context
// carries no deadline (background callers). Request-path callers pass a
// context already bounded by T_req (config.FetchTimeout).
const defaultFetchTimeout = 2 * time.Second

// EventFetcher resolves a single missing event id by querying relays and
// ingesting whatever verified events come back, then re-reading the store.
type EventFetcher struct {
	store store.EventStore
	pool  *relaypool.Pool
	group singleflight.Group
}

// NewEventFetcher builds a coordinator over the given store and pool.
// Relay hints from a decoded reference are passed per call to FetchEvent;
// an empty hint list falls back to the pool's default seed list.
func NewEventFetcher(s store.EventStore, p *relaypool.Pool) *EventFetcher {
	return &EventFetcher{store: s, pool: p}
}

// FetchEvent blocks until the event with id is ingested (by this call or a
// concurrent joined call) or timeout elapses, then re-reads the store.
// Satisfies invariant 1 (spec.md §8): singleflight.Group guarantees at most
// one Do() callback runs per key at a time, and every joiner receives that
// call's result, whether it arrived first or waited.
func (f *EventFetcher) FetchEvent(ctx context.Context, id string, relayHints []string) (types.Event, error) {
	if e, err := f.store.GetEventByID(ctx, id); err == nil {
		return e, nil
	}
	return f.fetchOne(ctx, "evt:"+id, relayHints, types.Filter{IDs: []string{id}, Limit: 1},
		func(e types.Event) bool { return e.ID == id },
		func() (types.Event, error) { return f.store.GetEventByID(ctx, id) })
}

// FetchProfile blocks until a kind-0 event for pubkey is ingested (by this
// call or a joined one) or timeout elapses, then re-reads the store. Used
// when a profile reference's primary object is missing on first view
// (spec.md §4.5 step 2).
func (f *EventFetcher) FetchProfile(ctx context.Context, pubkey string, relayHints []string) (types.Event, error) {
	if e, err := f.store.GetProfileByPubkey(ctx, pubkey); err == nil {
		return e, nil
	}
	filter := types.Filter{Authors: []string{pubkey}, Kinds: []int{types.KindProfile}, Limit: 1}
	return f.fetchOne(ctx, "profile:"+pubkey, relayHints, filter,
		func(e types.Event) bool { return e.PubKey == pubkey && e.Kind == types.KindProfile },
		func() (types.Event, error) { return f.store.GetProfileByPubkey(ctx, pubkey) })
}

// FetchAddressable blocks until the latest (kind, pubkey, identifier)
// coordinate is ingested or timeout elapses, then re-reads the store. Used
// to resolve naddr references (spec.md §4.2) to a concrete event before
// AssembleNote can proceed.
func (f *EventFetcher) FetchAddressable(ctx context.Context, kind int, pubkey, identifier string, relayHints []string) (types.Event, error) {
	if e, err := f.store.GetAddressable(ctx, kind, pubkey, identifier); err == nil {
		return e, nil
	}
	filter := types.Filter{
		Authors: []string{pubkey},
		Kinds:   []int{kind},
		Tags:    map[string][]string{"d": {identifier}},
		Limit:   1,
	}
	key := fmt.Sprintf("addr:%d:%s:%s", kind, pubkey, identifier)
	return f.fetchOne(ctx, key, relayHints, filter,
		func(e types.Event) bool {
			if e.PubKey != pubkey || e.Kind != kind {
				return false
			}
			d := e.TagValues("d")
			return len(d) > 0 && d[0] == identifier
		},
		func() (types.Event, error) { return f.store.GetAddressable(ctx, kind, pubkey, identifier) })
}

// fetchOne is the shared primary-fetch shape: stream filter from relays,
// verify and ingest every event accept() approves of, then re-read via
// reread (which may see data from a concurrent out-of-band ingest even if
// the stream itself found nothing). Deduplicated per key via singleflight,
// giving the at-most-one-outstanding-fetch guarantee spec.md §8 invariant 1
// requires.
func (f *EventFetcher) fetchOne(ctx context.Context, key string, relayHints []string, filter types.Filter, accept func(types.Event) bool, reread func() (types.Event, error)) (types.Event, error) {
	relays := relayHints
	if len(relays) == 0 {
		relays = relaypool.DefaultRelays()
	}

	ran := false
	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		ran = true
		metrics.PrimaryFetchesTotal.Add(1)
		events, _ := f.pool.StreamEvents(ctx, relays, filter, fetchTimeout(ctx))
		for _, e := range events {
			if !accept(e) {
				continue
			}
			if err := f.store.Ingest(ctx, e); err != nil {
				if errors.Is(err, store.ErrInvalidEvent) {
					slog.Debug("fetch: dropped invalid event", "key", key, "id", e.ID, "error", err)
					continue
				}
				return nil, err
			}
		}
		got, err := reread()
		if err != nil {
			return nil, err
		}
		return got, nil
	})
	if !ran {
		metrics.PrimaryFetchJoins.Add(1)
	}
	if err != nil {
		return types.Event{}, fmt.Errorf("fetch: %s: %w", key, err)
	}
	return v.(types.Event), nil
}

func fetchTimeout(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return defaultFetchTimeout
}
