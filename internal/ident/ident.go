// Package ident implements the public identifier of an entry: a 32-bit
// unsigned integer written as six characters of a fixed 64-symbol alphabet.
//
// The first five characters carry six bits each (bits 31..2), the last one
// carries the remaining two bits, so only the first four symbols of the
// alphabet are valid in the final position. This keeps the encoding
// canonical: every ID has exactly one textual form.
package ident

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-+"

	// EncodedLen is the fixed length of an encoded ID.
	EncodedLen = 6
)

// ErrInvalid is returned by Parse for malformed input.
var ErrInvalid = errors.New("invalid identifier")

// decodeMap maps ASCII characters back to their 6-bit values.
var decodeMap [128]byte

func init() {
	for i := range decodeMap {
		decodeMap[i] = 0xFF
	}
	for i := 0; i < len(alphabet); i++ {
		decodeMap[alphabet[i]] = byte(i)
	}
}

// ID identifies one stored entry.
type ID uint32

// FromUint32 wraps n as an ID.
func FromUint32(n uint32) ID { return ID(n) }

// Uint32 returns the numeric value.
func (id ID) Uint32() uint32 { return uint32(id) }

// String returns the six character encoding.
func (id ID) String() string {
	var b [EncodedLen]byte
	n := uint32(id)
	b[0] = alphabet[(n>>26)&0x3f]
	b[1] = alphabet[(n>>20)&0x3f]
	b[2] = alphabet[(n>>14)&0x3f]
	b[3] = alphabet[(n>>8)&0x3f]
	b[4] = alphabet[(n>>2)&0x3f]
	b[5] = alphabet[n&0x3]
	return string(b[:])
}

// Parse decodes the textual form produced by String.
func Parse(s string) (ID, error) {
	if len(s) != EncodedLen {
		return 0, fmt.Errorf("%w: %q has length %d, want %d", ErrInvalid, s, len(s), EncodedLen)
	}

	var n uint32
	for i := 0; i < EncodedLen; i++ {
		c := s[i]
		if c >= 128 || decodeMap[c] == 0xFF {
			return 0, fmt.Errorf("%w: %q has bad character at %d", ErrInvalid, s, i)
		}
		v := uint32(decodeMap[c])
		if i < EncodedLen-1 {
			n = n<<6 | v
			continue
		}
		if v > 3 {
			return 0, fmt.Errorf("%w: %q has bad trailing character", ErrInvalid, s)
		}
		n = n<<2 | v
	}
	return ID(n), nil
}

// Random returns an ID drawn from crypto/rand. Collisions with existing
// entries are the caller's problem.
func Random() (ID, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("random id: %w", err)
	}
	return ID(binary.BigEndian.Uint32(b[:])), nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
