// Package codec implements the versioned, fixed-size wire form used
// to persist game state: [version:u8][size:u32 little-endian][state
// bytes]. It also hosts the migration registry keyed by
// (state-type, from-version, from-size) that upgrades stale records.
package codec

import (
	"encoding/binary"
	"fmt"

	"gamecore/gameerr"
)

// HeaderSize is the number of bytes occupied by the version and size
// fields that precede every encoded state.
const HeaderSize = 5

// BinaryMarshaler is implemented by a game state's value type.
type BinaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

// BinaryUnmarshaler is implemented by a game state's pointer type.
type BinaryUnmarshaler interface {
	UnmarshalBinary([]byte) error
}

// EncodeHeader wraps an already-marshaled payload with the version
// and size header described in the persisted record layout.
func EncodeHeader(version uint8, payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	out[0] = version
	binary.LittleEndian.PutUint32(out[1:HeaderSize], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out
}

// SplitHeader parses the version/size header and returns the
// remaining payload slice. It rejects records shorter than
// HeaderSize, per the codec contract.
func SplitHeader(b []byte) (version uint8, size uint32, payload []byte, err error) {
	if len(b) < HeaderSize {
		return 0, 0, nil, fmt.Errorf("record too short: %d bytes (need at least %d)", len(b), HeaderSize)
	}
	version = b[0]
	size = binary.LittleEndian.Uint32(b[1:HeaderSize])
	payload = b[HeaderSize:]
	return version, size, payload, nil
}

// migrationKey identifies a registered migration by the exact
// (from-version, from-size) pair a stale record carried.
type migrationKey struct {
	fromVersion uint8
	fromSize    int
}

// Migration upgrades raw state bytes written under an older version
// or size into a current-version value of S, or fails.
type Migration[S any] func(raw []byte) (S, error)

// Codec encodes and decodes a single fixed-size game state type S,
// whose pointer type PS implements the binary marshal contract.
// Migrations are register-only: once added they are never removed,
// and multiple codecs may be chained by registering intermediate
// types elsewhere — this package does not mandate chaining.
type Codec[S any, PS interface {
	*S
	BinaryMarshaler
	BinaryUnmarshaler
}] struct {
	TypeName   string
	Version    uint8
	Size       int
	migrations map[migrationKey]Migration[S]
}

// NewCodec builds a codec for the current version and size of S.
// Size is the exact byte length of S's current encoding, used to
// recognize records that don't need migration.
func NewCodec[S any, PS interface {
	*S
	BinaryMarshaler
	BinaryUnmarshaler
}](typeName string, version uint8, size int) *Codec[S, PS] {
	return &Codec[S, PS]{
		TypeName:   typeName,
		Version:    version,
		Size:       size,
		migrations: make(map[migrationKey]Migration[S]),
	}
}

// RegisterMigration adds an upgrade path from an old (version, size)
// pair to the current state shape. Registering the same key twice
// overwrites the prior migration — callers own that idempotence.
func (c *Codec[S, PS]) RegisterMigration(fromVersion uint8, fromSize int, m Migration[S]) {
	c.migrations[migrationKey{fromVersion, fromSize}] = m
}

// Encode produces the versioned record described in the persisted
// record layout.
func (c *Codec[S, PS]) Encode(s S) ([]byte, error) {
	p := PS(&s)
	payload, err := p.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", c.TypeName, err)
	}
	return EncodeHeader(c.Version, payload), nil
}

// Decode reverses Encode. On (version, size) matching the codec's
// current shape it performs a direct unmarshal; otherwise it consults
// the migration registry. Any failure is surfaced as a
// gameerr.Corrupt, non-retryable error.
func (c *Codec[S, PS]) Decode(b []byte) (S, error) {
	var zero S

	version, size, payload, err := SplitHeader(b)
	if err != nil {
		return zero, gameerr.Wrap(gameerr.Corrupt, err, "decode %s", c.TypeName)
	}

	if version == c.Version && int(size) == c.Size {
		var s S
		p := PS(&s)
		if err := p.UnmarshalBinary(payload); err != nil {
			return zero, gameerr.Wrap(gameerr.Corrupt, err, "unmarshal %s", c.TypeName)
		}
		return s, nil
	}

	mig, ok := c.migrations[migrationKey{version, int(size)}]
	if !ok {
		return zero, gameerr.New(gameerr.Corrupt,
			"no migration registered for %s (version=%d size=%d, current version=%d size=%d)",
			c.TypeName, version, size, c.Version, c.Size)
	}
	s, err := mig(payload)
	if err != nil {
		return zero, gameerr.Wrap(gameerr.Corrupt, err, "migrate %s from version=%d size=%d", c.TypeName, version, size)
	}
	return s, nil
}
