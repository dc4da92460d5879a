package store

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"notecrumbs/internal/nostrcrypto"
	"notecrumbs/internal/types"
)

// testSigner produces events signed by one fixed keypair, so tests that
// need several events sharing an author can compare against the same
// pubkey instead of minting one per event.
type testSigner struct {
	priv *btcec.PrivateKey
	pub  string
}

func newTestSigner(t *testing.T) testSigner {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	return testSigner{priv: priv, pub: hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))}
}

func (s testSigner) sign(t *testing.T, e types.Event) types.Event {
	t.Helper()
	e.PubKey = s.pub
	id, err := nostrcrypto.CanonicalID(e)
	if err != nil {
		t.Fatalf("CanonicalID: %v", err)
	}
	e.ID = id
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	sig, err := schnorr.Sign(s.priv, idBytes)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
	return e
}

func TestLatestWinsByCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	signer := newTestSigner(t)

	old := signer.sign(t, types.Event{Kind: types.KindProfile, CreatedAt: 100, Content: "old"})
	newer := signer.sign(t, types.Event{Kind: types.KindProfile, CreatedAt: 200, Content: "new"})
	if err := s.Ingest(ctx, old); err != nil {
		t.Fatalf("Ingest old: %v", err)
	}
	if err := s.Ingest(ctx, newer); err != nil {
		t.Fatalf("Ingest newer: %v", err)
	}

	got, err := s.GetProfileByPubkey(ctx, signer.pub)
	if err != nil {
		t.Fatalf("GetProfileByPubkey: %v", err)
	}
	if got.ID != newer.ID {
		t.Fatalf("got %q, want newer event %q", got.ID, newer.ID)
	}
}

func TestLatestWinsTieBreakByID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	signer := newTestSigner(t)

	e1 := signer.sign(t, types.Event{Kind: types.KindRelayList, CreatedAt: 500, Content: "one"})
	e2 := signer.sign(t, types.Event{Kind: types.KindRelayList, CreatedAt: 500, Content: "two"})
	if err := s.Ingest(ctx, e1); err != nil {
		t.Fatalf("Ingest e1: %v", err)
	}
	if err := s.Ingest(ctx, e2); err != nil {
		t.Fatalf("Ingest e2: %v", err)
	}

	want := e1.ID
	if e2.ID > want {
		want = e2.ID
	}
	got, err := s.GetRelayListByPubkey(ctx, signer.pub)
	if err != nil {
		t.Fatalf("GetRelayListByPubkey: %v", err)
	}
	if got.ID != want {
		t.Fatalf("got %q, want lexicographically greatest id %q", got.ID, want)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	signer := newTestSigner(t)
	e := signer.sign(t, types.Event{Kind: types.KindNote, Content: "hello"})
	if err := s.Ingest(ctx, e); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := s.Ingest(ctx, e); err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	got, err := s.GetEventByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEventByID: %v", err)
	}
	if got.Content != "hello" {
		t.Fatalf("got %+v", got)
	}
}

func TestIngestRejectsUnverifiedEvent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	signer := newTestSigner(t)
	e := signer.sign(t, types.Event{Kind: types.KindNote, Content: "hello"})
	e.Content = "tampered"
	if err := s.Ingest(ctx, e); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("got %v, want ErrInvalidEvent", err)
	}
	if _, err := s.GetEventByID(ctx, e.ID); err != ErrNotFound {
		t.Fatalf("tampered event was stored: %v", err)
	}
}

func TestGetEventByIDNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetEventByID(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGetAddressableByDTag(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	signer := newTestSigner(t)
	e1 := signer.sign(t, types.Event{Kind: types.KindLongForm, CreatedAt: 1, Tags: [][]string{{"d", "my-article"}}})
	e2 := signer.sign(t, types.Event{Kind: types.KindLongForm, CreatedAt: 2, Tags: [][]string{{"d", "other-article"}}})
	if err := s.Ingest(ctx, e1); err != nil {
		t.Fatalf("Ingest e1: %v", err)
	}
	if err := s.Ingest(ctx, e2); err != nil {
		t.Fatalf("Ingest e2: %v", err)
	}

	got, err := s.GetAddressable(ctx, types.KindLongForm, signer.pub, "my-article")
	if err != nil {
		t.Fatalf("GetAddressable: %v", err)
	}
	if got.ID != e1.ID {
		t.Fatalf("got %q, want %q", got.ID, e1.ID)
	}
}

func TestQueryOrdersNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	signer := newTestSigner(t)
	a := signer.sign(t, types.Event{Kind: types.KindNote, CreatedAt: 1, Content: "a"})
	b := signer.sign(t, types.Event{Kind: types.KindNote, CreatedAt: 3, Content: "b"})
	c := signer.sign(t, types.Event{Kind: types.KindNote, CreatedAt: 2, Content: "c"})
	for _, e := range []types.Event{a, b, c} {
		if err := s.Ingest(ctx, e); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	events, err := s.Query(ctx, types.Filter{Kinds: []int{types.KindNote}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 3 || events[0].ID != b.ID || events[1].ID != c.ID || events[2].ID != a.ID {
		t.Fatalf("got %+v", events)
	}
}

func TestGetBlocksIsCached(t *testing.T) {
	s := NewMemoryStore()
	e := types.Event{ID: "a", Content: "hello #world"}
	first := s.GetBlocks(context.Background(), e)
	second := s.GetBlocks(context.Background(), e)
	if len(first) != len(second) {
		t.Fatalf("cached blocks diverged: %+v vs %+v", first, second)
	}
}
