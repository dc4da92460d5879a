package nostrcrypto

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"notecrumbs/internal/types"
)

func signedEvent(t *testing.T) types.Event {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubKeyBytes := schnorr.SerializePubKey(priv.PubKey())

	e := types.Event{
		PubKey:    hex.EncodeToString(pubKeyBytes),
		CreatedAt: 1700000000,
		Kind:      types.KindNote,
		Tags:      [][]string{},
		Content:   "hello nostr",
	}
	id, err := CanonicalID(e)
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

func TestVerifyAcceptsValidEvent(t *testing.T) {
	e := signedEvent(t)
	if !Verify(e) {
		t.Fatal("Verify rejected a validly signed event")
	}
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	e := signedEvent(t)
	e.Content = "tampered"
	if Verify(e) {
		t.Fatal("Verify accepted an event whose content no longer matches its id")
	}
}

func TestVerifyRejectsTamperedID(t *testing.T) {
	e := signedEvent(t)
	e.ID = e.ID[:len(e.ID)-1] + flipHexChar(e.ID[len(e.ID)-1])
	if Verify(e) {
		t.Fatal("Verify accepted an event with a mismatched id")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	e := signedEvent(t)
	e.Sig = e.Sig[:len(e.Sig)-1] + flipHexChar(e.Sig[len(e.Sig)-1])
	if Verify(e) {
		t.Fatal("Verify accepted an event with a corrupted signature")
	}
}

func TestVerifyRejectsMalformedFieldLengths(t *testing.T) {
	e := signedEvent(t)
	e.Sig = "too-short"
	if Verify(e) {
		t.Fatal("Verify accepted an event with a malformed signature field")
	}
}

func TestCanonicalIDDeterministic(t *testing.T) {
	e := types.Event{PubKey: "ab", CreatedAt: 42, Kind: 1, Tags: [][]string{{"e", "1"}}, Content: "x"}
	id1, err := CanonicalID(e)
	if err != nil {
		t.Fatalf("CanonicalID: %v", err)
	}
	id2, err := CanonicalID(e)
	if err != nil {
		t.Fatalf("CanonicalID: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("CanonicalID not deterministic: %s != %s", id1, id2)
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("abcdef0123456789"); got != "abcdef012345" {
		t.Fatalf("ShortID = %q, want abcdef012345", got)
	}
	if got := ShortID("short"); got != "short" {
		t.Fatalf("ShortID = %q, want short unchanged", got)
	}
}

func flipHexChar(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}
