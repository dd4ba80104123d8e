// Package protocol implements the wire-level codec: VarInt encoding,
// length-prefixed frames, the packet types exchanged during each
// protocol state, and the per-state dispatch table that routes a decoded
// packet to its handler.
package protocol

import (
	"io"

	"github.com/NebulousLabs/errors"
	"github.com/nebulouslabs/blockserver/protoerr"
)

// MaxVarIntLen is the maximum number of bytes a 32-bit VarInt can occupy.
const MaxVarIntLen = 5

const (
	segmentBits = 0x7F
	continueBit = 0x80
)

// ErrVarIntTooLong is returned when a VarInt exceeds MaxVarIntLen bytes
// without terminating, indicating a malformed or malicious frame.
var ErrVarIntTooLong = errors.Extend(errors.New("VarInt is too long"), protoerr.ErrProtocol)

// EncodeVarInt returns the unsigned LEB128-style encoding of v, using 7
// data bits per byte with the high bit as a continuation flag.
func EncodeVarInt(v int32) []byte {
	buf := make([]byte, 0, MaxVarIntLen)
	u := uint32(v)
	for {
		b := byte(u & segmentBits)
		u >>= 7
		if u != 0 {
			b |= continueBit
		}
		buf = append(buf, b)
		if u == 0 {
			return buf
		}
	}
}

// VarIntSize returns the number of bytes EncodeVarInt(v) would occupy.
func VarIntSize(v int32) int {
	return len(EncodeVarInt(v))
}

// WriteVarInt writes v to w in VarInt encoding.
func WriteVarInt(w io.Writer, v int32) error {
	_, err := w.Write(EncodeVarInt(v))
	return err
}

// ReadVarInt reads a VarInt from r, one byte at a time.
func ReadVarInt(r io.Reader) (int32, error) {
	var (
		value  uint32
		shift  uint
		single [1]byte
	)
	for i := 0; i < MaxVarIntLen; i++ {
		if _, err := io.ReadFull(r, single[:]); err != nil {
			return 0, err
		}
		b := single[0]
		value |= uint32(b&segmentBits) << shift
		if b&continueBit == 0 {
			return int32(value), nil
		}
		shift += 7
	}
	return 0, ErrVarIntTooLong
}
