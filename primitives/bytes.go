package primitives

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Bytes is an opaque blob. Its text form is 0x-prefixed hex, the same as Hash,
// so documents and query output encode every blob one way.
type Bytes []byte

// ParseBytes parses a hex string, with or without a 0x prefix. An empty
// string, or a bare prefix, is a nil blob.
func ParseBytes(s string) (Bytes, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex bytes: %w", err)
	}
	return Bytes(b), nil
}

// String returns the 0x-prefixed hex form.
func (b Bytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// Clone returns a copy that shares no memory with b. A nil blob stays nil.
func (b Bytes) Clone() Bytes {
	if b == nil {
		return nil
	}
	out := make(Bytes, len(b))
	copy(out, b)
	return out
}

func (b Bytes) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Bytes) UnmarshalText(text []byte) error {
	parsed, err := ParseBytes(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
