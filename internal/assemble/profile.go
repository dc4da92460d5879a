// Package assemble is the render-data assembler (C5): it resolves a
// decoded reference into a complete ProfilePayload or NotePayload by
// walking the event store, driving the fetch coordinator for whatever is
// missing, and expanding mentions/quotes/reply chains one level deep.
// Grounded on the teacher's fetchProfilesWithOptions/fetchRelayList
// composition and on original_source/unknowns.rs for the missing-reference
// bookkeeping shape.
package assemble

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"notecrumbs/internal/fetch"
	"notecrumbs/internal/relaypool"
	"notecrumbs/internal/store"
	"notecrumbs/internal/types"
)

// ProfileFeedRecentLimit bounds a profile payload's recent-notes feed
// (spec.md §4.5).
const ProfileFeedRecentLimit = 20

const profileRefreshInterval = 5 * time.Minute
const noteRefreshInterval = 5 * time.Minute

// Assembler ties the store, fetch coordinator, and relay pool together to
// answer the two reference-shaped queries the dispatcher needs.
type Assembler struct {
	store          store.EventStore
	fetcher        *fetch.EventFetcher
	pool           *relaypool.Pool
	profileRefresh *fetch.Refresher
	noteRefresh    *fetch.Refresher
}

// New builds an Assembler. reqTimeout is not stored here — request-scoped
// blocking budgets are applied by the caller via context.WithTimeout before
// invoking Assemble*, per spec.md's T_req policy.
func New(s store.EventStore, f *fetch.EventFetcher, pool *relaypool.Pool) *Assembler {
	return &Assembler{
		store:          s,
		fetcher:        f,
		pool:           pool,
		profileRefresh: fetch.NewRefresher("profile-feed", profileRefreshInterval),
		noteRefresh:    fetch.NewRefresher("note-secondary", noteRefreshInterval),
	}
}

// AssembleProfile resolves a Pubkey/Profile reference. If the profile
// event is missing, it blocks on the primary fetch (bounded by ctx); the
// profile feed refresh is always scheduled in the background, fire-and-
// forget, per spec.md §4.4's blocking-vs-background distinction.
func (a *Assembler) AssembleProfile(ctx context.Context, pubkey string, relayHints []string) (types.ProfilePayload, error) {
	payload := types.ProfilePayload{Pubkey: pubkey}

	profileEvent, err := a.store.GetProfileByPubkey(ctx, pubkey)
	if err != nil {
		profileEvent, err = a.fetcher.FetchProfile(ctx, pubkey, relayHints)
	}
	if err != nil {
		payload.Missing = &types.Missing{Pubkey: pubkey}
		payload.DisplayName = "nostrich"
	} else {
		e := profileEvent
		payload.Profile = &e
		info := ParseProfileInfo(e.Content)
		payload.DisplayName = displayName(info)
	}

	if rl, err := a.store.GetRelayListByPubkey(ctx, pubkey); err == nil {
		payload.RelayList = relayListFromEvent(rl)
	}

	recent, err := a.store.Query(ctx, types.Filter{
		Authors: []string{pubkey},
		Kinds:   []int{types.KindNote},
		Limit:   ProfileFeedRecentLimit,
	})
	if err == nil {
		payload.RecentNotes = recent
	}

	a.profileRefresh.Ensure(context.WithoutCancel(ctx), pubkey, func(bgCtx context.Context) error {
		return a.refreshProfileFeed(bgCtx, pubkey, relayHints)
	})

	return payload, nil
}

// refreshProfileFeed fetches recent kind-1 notes for pubkey from relays and
// ingests them, so the next request's cache read sees fresher data.
func (a *Assembler) refreshProfileFeed(ctx context.Context, pubkey string, relayHints []string) error {
	relays := relayHints
	if len(relays) == 0 {
		relays = relaypool.DefaultRelays()
	}
	filter := types.Filter{Authors: []string{pubkey}, Kinds: []int{types.KindNote}, Limit: ProfileFeedRecentLimit}
	events, _ := a.pool.StreamEvents(ctx, relays, filter, noteRefreshInterval)
	for _, e := range events {
		if err := a.store.Ingest(ctx, e); err != nil {
			if errors.Is(err, store.ErrInvalidEvent) {
				slog.Debug("assemble: dropped invalid event in profile feed refresh", "pubkey", pubkey, "id", e.ID, "error", err)
				continue
			}
			return err
		}
	}
	return nil
}

func displayName(info types.ProfileInfo) string {
	if info.DisplayName != "" {
		return info.DisplayName
	}
	if info.Name != "" {
		return info.Name
	}
	return "nostrich"
}

// ParseProfileInfo decodes a kind-0 event's content JSON into the
// recognised-keys subset; unparseable content yields a zero ProfileInfo
// rather than an error (spec.md treats a malformed profile the same as a
// missing one for display purposes).
func ParseProfileInfo(content string) types.ProfileInfo {
	var info types.ProfileInfo
	_ = json.Unmarshal([]byte(content), &info)
	return info
}

func relayListFromEvent(e types.Event) *types.RelayList {
	rl := &types.RelayList{}
	for _, t := range e.Tags {
		if len(t) < 2 || t[0] != "r" {
			continue
		}
		url := t[1]
		marker := ""
		if len(t) > 2 {
			marker = t[2]
		}
		switch marker {
		case "read":
			rl.Read = append(rl.Read, url)
		case "write":
			rl.Write = append(rl.Write, url)
		default:
			rl.Read = append(rl.Read, url)
			rl.Write = append(rl.Write, url)
		}
	}
	return rl
}
