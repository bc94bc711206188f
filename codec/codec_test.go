package codec

import (
	"encoding/binary"
	"errors"
	"testing"

	"gamecore/gameerr"

	"github.com/stretchr/testify/require"
)

// widget is a tiny fixed-size state used only to exercise the codec.
type widget struct {
	A uint32
	B uint8
}

func (w widget) MarshalBinary() ([]byte, error) {
	out := make([]byte, 5)
	binary.LittleEndian.PutUint32(out[0:4], w.A)
	out[4] = w.B
	return out, nil
}

func (w *widget) UnmarshalBinary(b []byte) error {
	if len(b) != 5 {
		return errors.New("bad widget length")
	}
	w.A = binary.LittleEndian.Uint32(b[0:4])
	w.B = b[4]
	return nil
}

// widgetV1 is the stale shape: just A, no B.
type widgetV1 struct {
	A uint32
}

func TestRoundTrip(t *testing.T) {
	c := NewCodec[widget](
		"widget", 2, 5,
	)
	w := widget{A: 42, B: 7}
	enc, err := c.Encode(w)
	require.NoError(t, err)

	dec, err := c.Decode(enc)
	require.NoError(t, err)
	require.Equal(t, w, dec)
}

func TestDecodeTooShort(t *testing.T) {
	c := NewCodec[widget]("widget", 2, 5)
	_, err := c.Decode([]byte{1, 2, 3})
	require.Error(t, err)
	require.True(t, errors.Is(err, gameerr.ErrCorrupt))
}

func TestMigration(t *testing.T) {
	c := NewCodec[widget]("widget", 2, 5)
	c.RegisterMigration(1, 4, func(raw []byte) (widget, error) {
		if len(raw) != 4 {
			return widget{}, errors.New("bad v1 widget")
		}
		return widget{A: binary.LittleEndian.Uint32(raw), B: 0}, nil
	})

	old := widgetV1{A: 99}
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, old.A)
	record := EncodeHeader(1, raw)

	got, err := c.Decode(record)
	require.NoError(t, err)
	require.Equal(t, widget{A: 99, B: 0}, got)
}

func TestDecodeUnknownVersionFails(t *testing.T) {
	c := NewCodec[widget]("widget", 2, 5)
	record := EncodeHeader(9, []byte{1, 2, 3, 4, 5, 6})
	_, err := c.Decode(record)
	require.Error(t, err)
	require.True(t, errors.Is(err, gameerr.ErrCorrupt))
}
