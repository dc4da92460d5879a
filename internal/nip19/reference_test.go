package nip19

import (
	"strings"
	"testing"

	"notecrumbs/internal/types"
)

func hex32(b byte) string {
	return strings.Repeat(string([]byte{"0123456789abcdef"[b%16]}), 64)
}

func TestDecodeReferenceRejectsSecret(t *testing.T) {
	_, err := DecodeReference("nsec1anything")
	if err != ErrSecretRejected {
		t.Fatalf("err = %v, want ErrSecretRejected", err)
	}
}

func TestDecodeReferenceRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "not-bech32-at-all", "npub1", "xyz1abc"} {
		if _, err := DecodeReference(s); err != ErrInvalidRef {
			t.Errorf("DecodeReference(%q) err = %v, want ErrInvalidRef", s, err)
		}
	}
}

func TestEncodeDecodePubkeyRoundTrip(t *testing.T) {
	pk := hex32('a')
	npub, err := EncodePubkey(pk)
	if err != nil {
		t.Fatalf("EncodePubkey: %v", err)
	}
	ref, err := DecodeReference(npub)
	if err != nil {
		t.Fatalf("DecodeReference: %v", err)
	}
	if ref.Kind != types.RefPubkey || ref.Pubkey != pk {
		t.Fatalf("ref = %+v, want Pubkey=%s", ref, pk)
	}
}

func TestEncodeDecodeEventIDRoundTrip(t *testing.T) {
	id := hex32('b')
	note, err := EncodeEventID(id)
	if err != nil {
		t.Fatalf("EncodeEventID: %v", err)
	}
	ref, err := DecodeReference(note)
	if err != nil {
		t.Fatalf("DecodeReference: %v", err)
	}
	if ref.Kind != types.RefEventID || ref.EventID != id {
		t.Fatalf("ref = %+v, want EventID=%s", ref, id)
	}
}

func TestEncodeEventWithRelaysRoundTrip(t *testing.T) {
	id := hex32('c')
	author := hex32('d')
	relays := []string{"wss://relay.one", "wss://relay.two", "wss://relay.one"}

	nevent, err := EncodeEventWithRelays(id, author, 1, true, relays)
	if err != nil {
		t.Fatalf("EncodeEventWithRelays: %v", err)
	}
	ref, err := DecodeReference(nevent)
	if err != nil {
		t.Fatalf("DecodeReference: %v", err)
	}
	if ref.Kind != types.RefEvent || ref.EventID != id || ref.Author != author || ref.EventKind != 1 {
		t.Fatalf("ref = %+v, want EventID=%s Author=%s EventKind=1", ref, id, author)
	}
	if len(ref.RelayHints) != 2 {
		t.Fatalf("RelayHints = %v, want 2 deduped entries", ref.RelayHints)
	}
}

func TestEncodeEventWithRelaysNoOptionalFields(t *testing.T) {
	id := hex32('e')
	nevent, err := EncodeEventWithRelays(id, "", 0, false, nil)
	if err != nil {
		t.Fatalf("EncodeEventWithRelays: %v", err)
	}
	ref, err := DecodeReference(nevent)
	if err != nil {
		t.Fatalf("DecodeReference: %v", err)
	}
	if ref.Author != "" || ref.EventKind != 0 || len(ref.RelayHints) != 0 {
		t.Fatalf("ref = %+v, want no author/kind/relays", ref)
	}
}

func TestDecodeReferenceSwappedHRPChangesInterpretation(t *testing.T) {
	npub, err := EncodePubkey(hex32('f'))
	if err != nil {
		t.Fatalf("EncodePubkey: %v", err)
	}
	_, data, err := Decode(npub)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	reencoded, err := Encode("note", data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	ref, err := DecodeReference(reencoded)
	if err != nil {
		t.Fatalf("DecodeReference: %v", err)
	}
	if ref.Kind != types.RefEventID {
		t.Fatalf("swapping HRP should change interpretation, got %+v", ref)
	}
}

func TestBech32EncodeDecodeRoundTrip(t *testing.T) {
	data, err := ConvertBits([]byte("hello world!"), 8, 5, true)
	if err != nil {
		t.Fatalf("ConvertBits: %v", err)
	}
	s, err := Encode("test", data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	hrp, decoded, err := Decode(s)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if hrp != "test" {
		t.Fatalf("hrp = %q, want test", hrp)
	}
	raw, err := ConvertBits(decoded, 5, 8, false)
	if err != nil {
		t.Fatalf("ConvertBits back: %v", err)
	}
	if string(raw) != "hello world!" {
		t.Fatalf("raw = %q, want %q", raw, "hello world!")
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	npub, err := EncodePubkey(hex32('1'))
	if err != nil {
		t.Fatalf("EncodePubkey: %v", err)
	}
	corrupted := npub[:len(npub)-1] + flipChar(npub[len(npub)-1])
	if _, err := DecodeReference(corrupted); err != ErrInvalidRef {
		t.Fatalf("corrupted checksum err = %v, want ErrInvalidRef", err)
	}
}

func flipChar(c byte) string {
	if c == 'q' {
		return "p"
	}
	return "q"
}
