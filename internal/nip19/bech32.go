// Package nip19 implements the bech32-based reference codec (NIP-19):
// npub/nsec/note/nprofile/nevent/naddr encode and decode, including the
// TLV-encoded relay hints carried by the "n..." variants. Grounded on
// the teacher's hand-rolled bech32 codec (nip19.go, internal/nips/bech32.go)
// — none of the pack repos import a bech32 library, they all implement the
// charset/checksum by hand, so we follow that idiom rather than reaching for
// btcsuite's bech32 (never imported for this purpose anywhere in the corpus).
package nip19

import (
	"errors"
	"strings"
)

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// Decode splits a bech32 string into its human-readable part and raw
// 5-bit-per-byte data (checksum stripped).
func Decode(bech string) (hrp string, data []byte, err error) {
	if len(bech) < 8 {
		return "", nil, errors.New("bech32: string too short")
	}
	bech = strings.ToLower(bech)
	pos := strings.LastIndex(bech, "1")
	if pos < 1 || pos+7 > len(bech) {
		return "", nil, errors.New("bech32: invalid separator position")
	}
	hrp = bech[:pos]
	values := make([]byte, 0, len(bech)-pos-1)
	for _, c := range bech[pos+1:] {
		idx := strings.IndexRune(charset, c)
		if idx == -1 {
			return "", nil, errors.New("bech32: invalid character")
		}
		values = append(values, byte(idx))
	}
	if len(values) < 6 {
		return "", nil, errors.New("bech32: too short for checksum")
	}
	if !verifyChecksum(hrp, values) {
		return "", nil, errors.New("bech32: invalid checksum")
	}
	return hrp, values[:len(values)-6], nil
}

// Encode joins a human-readable part with 5-bit data, appending a checksum.
func Encode(hrp string, data []byte) (string, error) {
	checksum := createChecksum(hrp, data)
	combined := append(append([]byte{}, data...), checksum...)

	var sb strings.Builder
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, v := range combined {
		sb.WriteByte(charset[v])
	}
	return sb.String(), nil
}

// ConvertBits regroups a slice of fromBits-wide values into toBits-wide values.
func ConvertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	acc, bits := uint32(0), uint(0)
	maxv := uint32(1)<<toBits - 1
	var ret []byte
	for _, value := range data {
		if uint32(value)>>fromBits != 0 {
			return nil, errors.New("bech32: invalid data range")
		}
		acc = (acc << fromBits) | uint32(value)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			ret = append(ret, byte((acc>>bits)&maxv))
		}
	}
	if pad {
		if bits > 0 {
			ret = append(ret, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits || ((acc<<(toBits-bits))&maxv) != 0 {
		return nil, errors.New("bech32: invalid padding")
	}
	return ret, nil
}

func polymod(values []byte) uint32 {
	gen := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 != 0 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func hrpExpand(hrp string) []byte {
	ret := make([]byte, 0, len(hrp)*2+1)
	for _, c := range hrp {
		ret = append(ret, byte(c>>5))
	}
	ret = append(ret, 0)
	for _, c := range hrp {
		ret = append(ret, byte(c&31))
	}
	return ret
}

func createChecksum(hrp string, data []byte) []byte {
	values := append(hrpExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	mod := polymod(values) ^ 1
	checksum := make([]byte, 6)
	for i := 0; i < 6; i++ {
		checksum[i] = byte((mod >> uint(5*(5-i))) & 31)
	}
	return checksum
}

func verifyChecksum(hrp string, data []byte) bool {
	return polymod(append(hrpExpand(hrp), data...)) == 1
}
