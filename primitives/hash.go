// Package primitives defines the chain types exchanged between runtime API
// callers, the runtime API subsystem and state-query providers.
package primitives

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// HashLength is the size of a block hash in bytes.
const HashLength = 32

// ErrInvalidHash is returned when a hash cannot be parsed from text.
var ErrInvalidHash = errors.New("invalid hash")

// Hash identifies the chain state a query is evaluated against.
type Hash [HashLength]byte

// ParseHash parses a hex string, with or without a 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash

	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != HashLength*2 {
		return h, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidHash, HashLength*2, len(s))
	}

	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	return h, nil
}

// MustParseHash is like ParseHash but panics on error.
func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// HashFromByte returns a hash with every byte set to b.
func HashFromByte(b byte) Hash {
	var h Hash
	for i := range h {
		h[i] = b
	}
	return h
}

// String returns the 0x-prefixed hex form.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Short returns an abbreviated form for log lines.
func (h Hash) Short() string {
	s := hex.EncodeToString(h[:])
	return "0x" + s[:8] + "…" + s[len(s)-8:]
}

// IsZero reports whether every byte of the hash is zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
