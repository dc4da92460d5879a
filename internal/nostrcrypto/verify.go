// Package nostrcrypto verifies the invariant that an event's id is a pure
// function of its other fields (canonical serialization + sha256) and that
// its signature is a valid Schnorr signature over that id, per NIP-01.
// Grounded on the teacher's internal/nostr/event.go, which uses the same
// btcec/schnorr primitive.
package nostrcrypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"notecrumbs/internal/types"
)

// CanonicalID computes the NIP-01 event id: sha256 of the JSON array
// [0, pubkey, created_at, kind, tags, content] with compact (no-whitespace)
// encoding.
func CanonicalID(e types.Event) (string, error) {
	arr := []interface{}{0, e.PubKey, e.CreatedAt, e.Kind, e.Tags, e.Content}
	b, err := json.Marshal(arr)
	if err != nil {
		return "", fmt.Errorf("nostrcrypto: canonical serialize: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Verify checks that e.ID matches CanonicalID(e) and that e.Sig is a valid
// Schnorr signature over that id by e.PubKey. Returns false (never an error)
// for malformed hex fields, matching the teacher's permissive style where a
// bad event is simply rejected rather than propagated as a distinct error.
func Verify(e types.Event) bool {
	if len(e.Sig) != 128 || len(e.PubKey) != 64 || len(e.ID) != 64 {
		return false
	}
	wantID, err := CanonicalID(e)
	if err != nil || wantID != e.ID {
		return false
	}

	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return false
	}
	pubKeyBytes, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return false
	}
	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return false
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}
	return sig.Verify(idBytes, pubKey)
}

// ShortID truncates an id/pubkey to 12 hex chars for log lines.
func ShortID(id string) string {
	if len(id) >= 12 {
		return id[:12]
	}
	return id
}
