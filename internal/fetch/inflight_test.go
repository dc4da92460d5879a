package fetch

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"notecrumbs/internal/nostrcrypto"
	"notecrumbs/internal/store"
	"notecrumbs/internal/types"
)

// signedTestEvent builds a validly-signed event so it survives
// store.Ingest's signature check.
func signedTestEvent(t *testing.T, e types.Event) types.Event {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	e.PubKey = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	id, err := nostrcrypto.CanonicalID(e)
	if err != nil {
		t.Fatalf("CanonicalID: %v", err)
	}
	e.ID = id
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	sig, err := schnorr.Sign(priv, idBytes)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
	return e
}

func TestFetchEventReturnsCachedWithoutTouchingPool(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	want := signedTestEvent(t, types.Event{Kind: types.KindNote, Content: "hi"})
	if err := s.Ingest(ctx, want); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// pool is nil: FetchEvent must not dereference it on a cache hit.
	f := NewEventFetcher(s, nil)
	got, err := f.FetchEvent(ctx, want.ID, nil)
	if err != nil {
		t.Fatalf("FetchEvent: %v", err)
	}
	if got.ID != want.ID || got.Content != want.Content {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
