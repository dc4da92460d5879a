package assemble

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"notecrumbs/internal/relaypool"
	"notecrumbs/internal/store"
	"notecrumbs/internal/types"
)

// replyChainLimit caps the ancestor walk (spec.md §9 "Design Notes":
// "capped at e.g. 20 nodes").
const replyChainLimit = 20

// topicsLimit caps deduplicated `t` tags on an article (spec.md §4.5 step 7).
const topicsLimit = 10

// AssembleNoteByCoordinate resolves a naddr (kind, pubkey, d-tag) coordinate
// to its latest event, then assembles it exactly as AssembleNote would. The
// addressable lookup itself may block on the primary fetch coordinator, the
// same way AssembleNote blocks on a missing event id (spec.md §4.2, §4.5).
func (a *Assembler) AssembleNoteByCoordinate(ctx context.Context, kind int, pubkey, identifier string, relayHints []string) (types.NotePayload, error) {
	event, err := a.store.GetAddressable(ctx, kind, pubkey, identifier)
	if err != nil {
		event, err = a.fetcher.FetchAddressable(ctx, kind, pubkey, identifier, relayHints)
		if err != nil {
			return types.NotePayload{}, err
		}
	}
	return a.AssembleNote(ctx, event.ID, relayHints)
}

// AssembleNote resolves an Event/EventId reference into a NotePayload. If
// the primary event is missing, it blocks on the coordinator's primary
// fetch (bounded by ctx); mention/quote/reply resolution and engagement
// counts only ever read the store — any of them being absent yields an
// UnknownIDs/UnknownProfiles entry and a background secondary-fetch
// schedule, never a blocking wait (spec.md §4.4's blocking-vs-background
// distinction: only the primary object blocks).
func (a *Assembler) AssembleNote(ctx context.Context, eventID string, relayHints []string) (types.NotePayload, error) {
	event, err := a.store.GetEventByID(ctx, eventID)
	if err != nil {
		event, err = a.fetcher.FetchEvent(ctx, eventID, relayHints)
		if err != nil {
			return types.NotePayload{}, err
		}
	}

	payload := types.NotePayload{
		Event:        event,
		SourceRelays: relayHints,
		Reactions:    types.ReactionCounts{ByType: map[string]int{}},
	}

	unknowns := newUnknownSet()

	if author, err := a.store.GetProfileByPubkey(ctx, event.PubKey); err == nil {
		e := author
		payload.Author = &e
	} else {
		payload.AuthorMissing = &types.Missing{Pubkey: event.PubKey}
		unknowns.addProfile(event.PubKey, relayHints)
	}

	payload.Blocks = a.store.GetBlocks(ctx, event)
	payload.Mentions = make(map[string]*types.Event)
	payload.Quotes = make(map[string]*types.Event)

	for _, b := range payload.Blocks {
		switch b.Type {
		case types.BlockMention:
			a.resolveMention(ctx, b, &payload, unknowns)
		case types.BlockIndexedMention:
			// Addressable (naddr) mentions: recorded as a reference only,
			// resolution deferred (spec.md §4.5 step 5 — "for articles,
			// deferred").
		}
	}

	payload.Replies = a.resolveReplyChain(ctx, event, unknowns)

	if types.IsAddressable(event.Kind) {
		payload.Article = extractArticleMeta(event)
	}

	payload.Reactions = a.countReactions(ctx, eventID)

	payload.UnknownIDs = unknowns.noteIDs()
	payload.UnknownProfiles = unknowns.profilePubkeys()

	a.noteRefresh.Ensure(context.WithoutCancel(ctx), eventID, func(bgCtx context.Context) error {
		return a.refreshNoteSecondary(bgCtx, eventID, unknowns, relayHints)
	})

	return payload, nil
}

// resolveMention fills in payload.Mentions (profile/pubkey variants) or
// payload.Quotes (event variant, kind-1 only, one level deep — spec.md
// §4.5 step 6) from whatever the store already has, and records misses.
func (a *Assembler) resolveMention(ctx context.Context, b types.Block, payload *types.NotePayload, unknowns *unknownSet) {
	switch b.Variant {
	case types.MentionProfile, types.MentionPubkey:
		pk := b.Ref.Pubkey
		if pk == "" {
			return
		}
		key := "p:" + pk
		if _, already := payload.Mentions[key]; already {
			return
		}
		if e, err := a.store.GetProfileByPubkey(ctx, pk); err == nil {
			payload.Mentions[key] = &e
			return
		}
		unknowns.addProfile(pk, b.Ref.RelayHints)
	case types.MentionEvent:
		id := b.Ref.EventID
		if id == "" {
			return
		}
		key := "e:" + id
		if _, already := payload.Quotes[key]; already {
			return
		}
		if e, err := a.store.GetEventByID(ctx, id); err == nil {
			if e.Kind == types.KindNote {
				payload.Quotes[key] = &e
			}
			return
		}
		unknowns.addNote(id, b.Ref.RelayHints)
	}
}

// resolveReplyChain walks the `e` tags on event (NIP-10 order: root first,
// immediate parent last) and resolves as many ancestors as the store has,
// capped at replyChainLimit. Each missing ancestor is recorded as unknown
// but does not interrupt the walk — the chain is best-effort.
func (a *Assembler) resolveReplyChain(ctx context.Context, event types.Event, unknowns *unknownSet) []types.Event {
	var chain []types.Event
	visited := map[string]bool{event.ID: true}
	for _, id := range event.TagValues("e") {
		if len(chain) >= replyChainLimit {
			break
		}
		if visited[id] {
			continue // cycle guard (spec.md §9)
		}
		visited[id] = true
		if e, err := a.store.GetEventByID(ctx, id); err == nil {
			chain = append(chain, e)
		} else {
			unknowns.addNote(id, nil)
		}
	}
	return chain
}

// countReactions tallies kind-6/7 events in the store that reference
// eventID via an `e` tag. Only what's already ingested counts; the
// background secondary refresh is what grows this count over time.
func (a *Assembler) countReactions(ctx context.Context, eventID string) types.ReactionCounts {
	counts := types.ReactionCounts{ByType: map[string]int{}}
	events, err := a.store.Query(ctx, types.Filter{
		Kinds: []int{types.KindRepost, types.KindReaction},
		Tags:  map[string][]string{"e": {eventID}},
	})
	if err != nil {
		return counts
	}
	for _, e := range events {
		switch e.Kind {
		case types.KindRepost:
			counts.Reposts++
		case types.KindReaction:
			counts.Reactions++
			reaction := e.Content
			if reaction == "" {
				reaction = "+"
			}
			counts.ByType[reaction]++
		}
	}
	return counts
}

// refreshNoteSecondary fetches whatever the main assembly pass couldn't
// resolve locally (unknown mentions/quotes/reply ancestors, plus fresh
// reaction/repost events) and ingests it.
func (a *Assembler) refreshNoteSecondary(ctx context.Context, eventID string, unknowns *unknownSet, relayHints []string) error {
	defaults := relaypool.DefaultRelays()

	if noteIDs := unknowns.noteIDs(); len(noteIDs) > 0 {
		relays := mergeRelayHints(relayHints, unknowns.relayHintsFor(unknownNote, noteIDs[0]), defaults)
		events, _ := a.pool.StreamEvents(ctx, relays, types.Filter{IDs: noteIDs, Limit: len(noteIDs)}, noteRefreshInterval)
		for _, e := range events {
			if err := a.store.Ingest(ctx, e); err != nil {
				if errors.Is(err, store.ErrInvalidEvent) {
					slog.Debug("assemble: dropped invalid event in note secondary refresh", "eventID", eventID, "id", e.ID, "error", err)
					continue
				}
				return err
			}
		}
	}
	if pubkeys := unknowns.profilePubkeys(); len(pubkeys) > 0 {
		relays := mergeRelayHints(relayHints, unknowns.relayHintsFor(unknownProfile, pubkeys[0]), defaults)
		events, _ := a.pool.StreamEvents(ctx, relays, types.Filter{Authors: pubkeys, Kinds: []int{types.KindProfile}, Limit: len(pubkeys)}, noteRefreshInterval)
		for _, e := range events {
			if err := a.store.Ingest(ctx, e); err != nil {
				if errors.Is(err, store.ErrInvalidEvent) {
					slog.Debug("assemble: dropped invalid event in note secondary refresh", "eventID", eventID, "id", e.ID, "error", err)
					continue
				}
				return err
			}
		}
	}

	engagement, _ := a.pool.StreamEvents(ctx, defaults, types.Filter{
		Kinds: []int{types.KindRepost, types.KindReaction},
		Tags:  map[string][]string{"e": {eventID}},
		Limit: 500,
	}, noteRefreshInterval)
	for _, e := range engagement {
		if err := a.store.Ingest(ctx, e); err != nil {
			if errors.Is(err, store.ErrInvalidEvent) {
				slog.Debug("assemble: dropped invalid event in note secondary refresh", "eventID", eventID, "id", e.ID, "error", err)
				continue
			}
			return err
		}
	}
	return nil
}

// extractArticleMeta pulls tag-driven metadata from a kind-30023/30024
// event (spec.md §4.5 step 7).
func extractArticleMeta(e types.Event) *types.ArticleMeta {
	meta := &types.ArticleMeta{}
	if v := e.Tag("title"); len(v) > 1 {
		meta.Title = v[1]
	}
	if v := e.Tag("image"); len(v) > 1 {
		meta.Image = v[1]
	}
	if v := e.Tag("summary"); len(v) > 1 {
		meta.Summary = v[1]
	}
	if v := e.Tag("d"); len(v) > 1 {
		meta.Identifier = v[1]
	}
	if v := e.Tag("published_at"); len(v) > 1 {
		if ts, err := strconv.ParseInt(v[1], 10, 64); err == nil {
			meta.PublishedAt = ts
		}
	}

	seen := make(map[string]struct{})
	for _, t := range e.TagValues("t") {
		lower := strings.ToLower(t)
		if _, dup := seen[lower]; dup {
			continue
		}
		if len(meta.Topics) >= topicsLimit {
			break
		}
		seen[lower] = struct{}{}
		meta.Topics = append(meta.Topics, t)
	}
	return meta
}
