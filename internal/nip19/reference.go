package nip19

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sort"
	"strings"

	"notecrumbs/internal/types"
)

// TLV type constants shared by nevent/nprofile/naddr (NIP-19).
const (
	tlvSpecial = 0 // event id (nevent) or pubkey (nprofile)
	tlvRelay   = 1
	tlvAuthor  = 2
	tlvKind    = 3
)

// ErrInvalidRef is returned when a path component does not decode to a
// known, well-formed reference.
var ErrInvalidRef = errors.New("nip19: invalid reference")

// ErrSecretRejected is returned for nsec1... references (spec.md §4.2).
var ErrSecretRejected = errors.New("nip19: secret key references are not supported")

// DecodeReference parses one bech32 string (suffix already stripped by the
// caller) into a types.Reference.
func DecodeReference(s string) (types.Reference, error) {
	switch {
	case strings.HasPrefix(s, "nsec1"):
		return types.Reference{}, ErrSecretRejected
	case strings.HasPrefix(s, "npub1"):
		pk, err := decodeHex32(s, "npub")
		if err != nil {
			return types.Reference{}, err
		}
		return types.Reference{Kind: types.RefPubkey, Pubkey: pk}, nil
	case strings.HasPrefix(s, "note1"):
		id, err := decodeHex32(s, "note")
		if err != nil {
			return types.Reference{}, err
		}
		return types.Reference{Kind: types.RefEventID, EventID: id}, nil
	case strings.HasPrefix(s, "nprofile1"):
		return decodeNProfile(s)
	case strings.HasPrefix(s, "nevent1"):
		return decodeNEvent(s)
	case strings.HasPrefix(s, "naddr1"):
		return decodeNAddr(s)
	default:
		return types.Reference{}, ErrInvalidRef
	}
}

func decodeHex32(s, wantHRP string) (string, error) {
	hrp, data, err := Decode(s)
	if err != nil {
		return "", ErrInvalidRef
	}
	if hrp != wantHRP {
		return "", ErrInvalidRef
	}
	raw, err := ConvertBits(data, 5, 8, false)
	if err != nil || len(raw) != 32 {
		return "", ErrInvalidRef
	}
	return hex.EncodeToString(raw), nil
}

func decodeNProfile(s string) (types.Reference, error) {
	hrp, data, err := Decode(s)
	if err != nil || hrp != "nprofile" {
		return types.Reference{}, ErrInvalidRef
	}
	raw, err := ConvertBits(data, 5, 8, false)
	if err != nil {
		return types.Reference{}, ErrInvalidRef
	}
	ref := types.Reference{Kind: types.RefProfile}
	for t := range iterTLV(raw) {
		switch t.typ {
		case tlvSpecial:
			if len(t.val) == 32 {
				ref.Pubkey = hex.EncodeToString(t.val)
			}
		case tlvRelay:
			ref.RelayHints = append(ref.RelayHints, string(t.val))
		}
	}
	if ref.Pubkey == "" {
		return types.Reference{}, ErrInvalidRef
	}
	return ref, nil
}

func decodeNEvent(s string) (types.Reference, error) {
	hrp, data, err := Decode(s)
	if err != nil || hrp != "nevent" {
		return types.Reference{}, ErrInvalidRef
	}
	raw, err := ConvertBits(data, 5, 8, false)
	if err != nil {
		return types.Reference{}, ErrInvalidRef
	}
	ref := types.Reference{Kind: types.RefEvent}
	for t := range iterTLV(raw) {
		switch t.typ {
		case tlvSpecial:
			if len(t.val) == 32 {
				ref.EventID = hex.EncodeToString(t.val)
			}
		case tlvRelay:
			ref.RelayHints = append(ref.RelayHints, string(t.val))
		case tlvAuthor:
			if len(t.val) == 32 {
				ref.Author = hex.EncodeToString(t.val)
			}
		case tlvKind:
			if len(t.val) == 4 {
				ref.EventKind = int(binary.BigEndian.Uint32(t.val))
			}
		}
	}
	if ref.EventID == "" {
		return types.Reference{}, ErrInvalidRef
	}
	return ref, nil
}

func decodeNAddr(s string) (types.Reference, error) {
	hrp, data, err := Decode(s)
	if err != nil || hrp != "naddr" {
		return types.Reference{}, ErrInvalidRef
	}
	raw, err := ConvertBits(data, 5, 8, false)
	if err != nil {
		return types.Reference{}, ErrInvalidRef
	}
	ref := types.Reference{Kind: types.RefCoordinate}
	hasAuthor, hasKind := false, false
	const tlvDTag = 4
	for t := range iterTLV(raw) {
		switch t.typ {
		case tlvDTag:
			ref.Identifier = string(t.val)
		case tlvRelay:
			ref.RelayHints = append(ref.RelayHints, string(t.val))
		case tlvAuthor:
			if len(t.val) == 32 {
				ref.Author = hex.EncodeToString(t.val)
				hasAuthor = true
			}
		case tlvKind:
			if len(t.val) == 4 {
				ref.EventKind = int(binary.BigEndian.Uint32(t.val))
				hasKind = true
			}
		}
	}
	if !hasAuthor || !hasKind {
		return types.Reference{}, ErrInvalidRef
	}
	return ref, nil
}

type tlvEntry struct {
	typ byte
	val []byte
}

// iterTLV walks a NIP-19 TLV byte stream, yielding well-formed entries and
// silently stopping at the first truncated/malformed one (matches the
// teacher's decodeNEventTLV/decodeNAddrTLV/decodeNProfileTLV behavior).
func iterTLV(data []byte) func(func(tlvEntry) bool) {
	return func(yield func(tlvEntry) bool) {
		for i := 0; i < len(data); {
			if i+2 > len(data) {
				return
			}
			typ, l := data[i], int(data[i+1])
			i += 2
			if i+l > len(data) {
				return
			}
			if !yield(tlvEntry{typ: typ, val: data[i : i+l]}) {
				return
			}
			i += l
		}
	}
}

// EncodePubkey encodes a hex pubkey as npub1...
func EncodePubkey(hexPubkey string) (string, error) {
	return encode32("npub", hexPubkey)
}

// EncodeEventID encodes a hex event id as note1...
func EncodeEventID(hexID string) (string, error) {
	return encode32("note", hexID)
}

func encode32(hrp, hexVal string) (string, error) {
	raw, err := hex.DecodeString(hexVal)
	if err != nil || len(raw) != 32 {
		return "", errors.New("nip19: invalid 32-byte value")
	}
	data, err := ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return Encode(hrp, data)
}

// EncodeEventWithRelays encodes an event id (+ optional author, kind, and
// relay hints) as nevent1..., merging the given relay hints into the TLV
// stream. Used when generating outgoing share links (spec.md §4.5 "Bech32
// rewrite with relay hints").
func EncodeEventWithRelays(eventID, author string, kind int, hasKind bool, relays []string) (string, error) {
	idBytes, err := hex.DecodeString(eventID)
	if err != nil || len(idBytes) != 32 {
		return "", errors.New("nip19: invalid event id")
	}
	var raw []byte
	raw = appendTLV(raw, tlvSpecial, idBytes)
	for _, r := range dedupRelays(relays) {
		raw = appendTLV(raw, tlvRelay, []byte(r))
	}
	if author != "" {
		if ab, err := hex.DecodeString(author); err == nil && len(ab) == 32 {
			raw = appendTLV(raw, tlvAuthor, ab)
		}
	}
	if hasKind {
		kb := make([]byte, 4)
		binary.BigEndian.PutUint32(kb, uint32(kind))
		raw = appendTLV(raw, tlvKind, kb)
	}
	data, err := ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return Encode("nevent", data)
}

func appendTLV(dst []byte, typ byte, val []byte) []byte {
	if len(val) > 255 {
		val = val[:255]
	}
	dst = append(dst, typ, byte(len(val)))
	return append(dst, val...)
}

func dedupRelays(relays []string) []string {
	seen := make(map[string]bool, len(relays))
	out := make([]string, 0, len(relays))
	for _, r := range relays {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
