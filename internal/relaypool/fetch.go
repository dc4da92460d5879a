package relaypool

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync"
	"time"

	"notecrumbs/internal/metrics"
	"notecrumbs/internal/types"
)

var defaultRelaysMu sync.RWMutex
var defaultRelays = []string{
	"wss://relay.damus.io",
	"wss://relay.nostr.band",
	"wss://nos.lol",
}

// SetDefaultRelays overrides the built-in seed list, called once at
// startup with the read relays from the operator's relay seed file
// (internal/config). A nil or empty urls leaves the built-in list intact.
func SetDefaultRelays(urls []string) {
	if len(urls) == 0 {
		return
	}
	defaultRelaysMu.Lock()
	defaultRelays = append([]string(nil), urls...)
	defaultRelaysMu.Unlock()
}

// DefaultRelays returns the relay seed list used whenever a reference or
// an unknown carries no relay hints of its own.
func DefaultRelays() []string {
	defaultRelaysMu.RLock()
	defer defaultRelaysMu.RUnlock()
	return append([]string(nil), defaultRelays...)
}

// StreamEvents fans a single filter out to every relay, collects and
// dedupes the results, and returns once either: enough relays have sent
// EOSE plus a short grace period, a target count of deduped events has
// been reached, or timeout elapses. The bool result reports whether every
// relay reached EOSE (a "complete" fetch per spec.md §4.3).
//
// Grounded on the teacher's fetchEventsFromRelaysWithTimeout/fetchFromRelay.
func (p *Pool) StreamEvents(ctx context.Context, relays []string, filter types.Filter, timeout time.Duration) ([]types.Event, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	eventChan := make(chan types.Event, 1000)
	eoseChan := make(chan bool, len(relays))
	done := make(chan struct{})

	go func() {
		var pending int
		results := make(chan struct{}, len(relays))
		for _, relayURL := range relays {
			pending++
			go func(url string) {
				defer func() { results <- struct{}{} }()
				p.fetchFromRelay(ctx, url, filter, eventChan, eoseChan)
			}(relayURL)
		}
		for i := 0; i < pending; i++ {
			<-results
		}
		close(eventChan)
		close(eoseChan)
		close(done)
	}()

	seen := make(map[string]bool)
	var events []types.Event
	targetCount := filter.Limit * 2
	if targetCount == 0 {
		targetCount = 200
	}
	eoseCount := 0
	minEOSE := 2
	if len(relays) < minEOSE {
		minEOSE = len(relays)
	}
	var graceTimer <-chan time.Time

collectLoop:
	for {
		select {
		case evt, ok := <-eventChan:
			if !ok {
				break collectLoop
			}
			if !seen[evt.ID] {
				seen[evt.ID] = true
				events = append(events, evt)
				if len(events) >= targetCount {
					cancel()
					break collectLoop
				}
			}
		case <-eoseChan:
			eoseCount++
			if eoseCount >= minEOSE && graceTimer == nil {
				graceTimer = time.After(500 * time.Millisecond)
			}
			if eoseCount >= len(relays) {
				break collectLoop
			}
		case <-graceTimer:
			break collectLoop
		case <-ctx.Done():
			metrics.RelayTimeoutsTotal.Add(1)
			slog.Debug("relaypool: stream timed out", "events", len(events), "eose", eoseCount, "relays", len(relays))
			break collectLoop
		}
	}

	allEOSE := eoseCount == len(relays)

	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt != events[j].CreatedAt {
			return events[i].CreatedAt > events[j].CreatedAt
		}
		return events[i].ID > events[j].ID
	})
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, allEOSE
}

func (p *Pool) fetchFromRelay(ctx context.Context, relayURL string, filter types.Filter, eventChan chan<- types.Event, eoseChan chan<- bool) {
	subID := "sub-" + randomHex(8)
	reqFilter := map[string]interface{}{}
	if filter.Limit > 0 {
		reqFilter["limit"] = filter.Limit
	}
	if len(filter.IDs) > 0 {
		reqFilter["ids"] = filter.IDs
	}
	if len(filter.Authors) > 0 {
		reqFilter["authors"] = filter.Authors
	}
	if len(filter.Kinds) > 0 {
		reqFilter["kinds"] = filter.Kinds
	}
	if filter.Since != nil {
		reqFilter["since"] = *filter.Since
	}
	if filter.Until != nil {
		reqFilter["until"] = *filter.Until
	}
	for tagName, vals := range filter.Tags {
		reqFilter["#"+tagName] = vals
	}

	sub, err := p.Subscribe(ctx, relayURL, subID, reqFilter)
	if err != nil {
		slog.Debug("relaypool: subscribe failed", "relay", relayURL, "error", err)
		return
	}
	defer p.Unsubscribe(relayURL, sub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case evt := <-sub.EventChan:
			select {
			case eventChan <- evt:
			case <-ctx.Done():
				return
			}
		case <-sub.EOSEChan:
			eoseChan <- true
			return
		}
	}
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "fallback00"
	}
	return hex.EncodeToString(b)
}
