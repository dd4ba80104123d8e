package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/NebulousLabs/errors"
	"github.com/nebulouslabs/blockserver/protoerr"
)

// MaxStringLength bounds a VarInt-prefixed UTF-8 string's byte length,
// matching the wire protocol's own guard against oversized chat/name
// fields.
const MaxStringLength = 32767

// Writer serializes packet fields in wire order: VarInts, big-endian
// fixed-width integers, VarInt-prefixed UTF-8 strings, and raw bytes.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated wire bytes.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// VarInt appends v in VarInt encoding.
func (w *Writer) VarInt(v int32) { w.buf.Write(EncodeVarInt(v)) }

// Bool appends a single-byte boolean.
func (w *Writer) Bool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// Byte appends a single unsigned byte.
func (w *Writer) Byte(v byte) { w.buf.WriteByte(v) }

// Int16 appends v big-endian.
func (w *Writer) Int16(v int16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	w.buf.Write(b[:])
}

// Int32 appends v big-endian.
func (w *Writer) Int32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

// Int64 appends v big-endian.
func (w *Writer) Int64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

// Float64 appends v big-endian.
func (w *Writer) Float64(v float64) { w.Int64(int64(math.Float64bits(v))) }

// String appends a VarInt-length-prefixed UTF-8 string.
func (w *Writer) String(s string) {
	w.VarInt(int32(len(s)))
	w.buf.WriteString(s)
}

// Raw appends b unprefixed.
func (w *Writer) Raw(b []byte) { w.buf.Write(b) }

// ByteArray appends a VarInt-length-prefixed byte slice.
func (w *Writer) ByteArray(b []byte) {
	w.VarInt(int32(len(b)))
	w.buf.Write(b)
}

// Reader deserializes packet fields, the inverse of Writer.
type Reader struct {
	r io.Reader
}

// NewReader wraps payload for sequential field reads.
func NewReader(payload []byte) *Reader {
	return &Reader{r: bytes.NewReader(payload)}
}

func wrapIO(err error) error {
	if err == nil {
		return nil
	}
	return errors.Extend(err, protoerr.ErrProtocol)
}

// VarInt reads a VarInt.
func (r *Reader) VarInt() (int32, error) {
	v, err := ReadVarInt(r.r)
	return v, wrapIO(err)
}

// Bool reads a single-byte boolean.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	return b != 0, err
}

// Byte reads a single unsigned byte.
func (r *Reader) Byte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, wrapIO(err)
	}
	return b[0], nil
}

// Int16 reads a big-endian int16.
func (r *Reader) Int16() (int16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, wrapIO(err)
	}
	return int16(binary.BigEndian.Uint16(b[:])), nil
}

// Int32 reads a big-endian int32.
func (r *Reader) Int32() (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, wrapIO(err)
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

// Int64 reads a big-endian int64.
func (r *Reader) Int64() (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, wrapIO(err)
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

// Float64 reads a big-endian float64.
func (r *Reader) Float64() (float64, error) {
	v, err := r.Int64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

// String reads a VarInt-length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	n, err := r.VarInt()
	if err != nil {
		return "", err
	}
	if n < 0 || n > MaxStringLength {
		return "", errors.Extend(errors.New("string length out of bounds"), protoerr.ErrProtocol)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", wrapIO(err)
	}
	return string(buf), nil
}

// ByteArray reads a VarInt-length-prefixed byte slice.
func (r *Reader) ByteArray() ([]byte, error) {
	n, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n) > MaxFrameSize {
		return nil, errors.Extend(errors.New("byte array length out of bounds"), protoerr.ErrProtocol)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, wrapIO(err)
	}
	return buf, nil
}

// Raw reads exactly n unprefixed bytes.
func (r *Reader) Raw(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, wrapIO(err)
	}
	return buf, nil
}
