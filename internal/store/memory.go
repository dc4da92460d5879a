package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"notecrumbs/internal/metrics"
	"notecrumbs/internal/nostrcrypto"
	"notecrumbs/internal/types"
)

// MemoryStore is a pure in-memory EventStore, used by tests and by any
// deployment that doesn't need ingested events to survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]types.Event
	blocks *xsync.MapOf[string, []types.Block]
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]types.Event),
		blocks: xsync.NewMapOf[string, []types.Block](),
	}
}

func (m *MemoryStore) Ingest(_ context.Context, e types.Event) error {
	if !nostrcrypto.Verify(e) {
		metrics.EventsDroppedTotal.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidEvent, e.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[e.ID]; exists {
		return nil
	}
	m.byID[e.ID] = e
	metrics.EventsIngestedTotal.Add(1)
	return nil
}

func (m *MemoryStore) GetEventByID(_ context.Context, id string) (types.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[id]
	if !ok {
		return types.Event{}, ErrNotFound
	}
	return e, nil
}

func (m *MemoryStore) GetProfileByPubkey(ctx context.Context, pubkey string) (types.Event, error) {
	return m.latestReplaceable(ctx, types.KindProfile, pubkey)
}

func (m *MemoryStore) GetRelayListByPubkey(ctx context.Context, pubkey string) (types.Event, error) {
	return m.latestReplaceable(ctx, types.KindRelayList, pubkey)
}

func (m *MemoryStore) latestReplaceable(_ context.Context, kind int, pubkey string) (types.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var candidates []types.Event
	for _, e := range m.byID {
		if e.Kind == kind && e.PubKey == pubkey {
			candidates = append(candidates, e)
		}
	}
	best, ok := latestWins(candidates)
	if !ok {
		return types.Event{}, ErrNotFound
	}
	return best, nil
}

func (m *MemoryStore) GetAddressable(_ context.Context, kind int, pubkey, identifier string) (types.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var candidates []types.Event
	for _, e := range m.byID {
		if e.Kind != kind || e.PubKey != pubkey {
			continue
		}
		if len(e.TagValues("d")) == 0 {
			if identifier == "" {
				candidates = append(candidates, e)
			}
			continue
		}
		if e.TagValues("d")[0] == identifier {
			candidates = append(candidates, e)
		}
	}
	best, ok := latestWins(candidates)
	if !ok {
		return types.Event{}, ErrNotFound
	}
	return best, nil
}

func (m *MemoryStore) Query(_ context.Context, f types.Filter) ([]types.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Event
	for _, e := range m.byID {
		if matchFilter(e, f) {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchFilter(e types.Event, f types.Filter) bool {
	if len(f.IDs) > 0 && !containsString(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, e.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	for tagName, wantVals := range f.Tags {
		have := e.TagValues(tagName)
		if !anyIntersect(have, wantVals) {
			return false
		}
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsInt(haystack []int, needle int) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func anyIntersect(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func (m *MemoryStore) GetBlocks(_ context.Context, e types.Event) []types.Block {
	return computeOrCachedBlocks(memoryBlockCache{m.blocks}, e)
}

func (m *MemoryStore) Close() error { return nil }

type memoryBlockCache struct {
	m *xsync.MapOf[string, []types.Block]
}

func (c memoryBlockCache) getBlocks(id string) ([]types.Block, bool) { return c.m.Load(id) }
func (c memoryBlockCache) putBlocks(id string, blocks []types.Block) { c.m.Store(id, blocks) }
