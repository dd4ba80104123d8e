package protocol

import (
	"bytes"
	"io"

	"github.com/NebulousLabs/errors"
	"github.com/klauspost/compress/zlib"
	"github.com/nebulouslabs/blockserver/protoerr"
)

// MaxFrameSize bounds a single packet's decompressed size, guarding
// against a malicious or corrupt length prefix driving an unbounded
// allocation.
const MaxFrameSize = 2 * 1024 * 1024

// ErrFrameTooLarge is returned by ReadFrame when the declared length
// exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.Extend(errors.New("frame exceeds maximum size"), protoerr.ErrProtocol)

// ReadFrame reads one length-prefixed, uncompressed frame: a VarInt byte
// count followed by that many bytes. The caller is responsible for
// decryption before calling ReadFrame and for decompression afterward.
func ReadFrame(r io.Reader) ([]byte, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return nil, errors.Extend(err, protoerr.ErrIO)
	}
	if length < 0 || int(length) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Extend(err, protoerr.ErrIO)
	}
	return buf, nil
}

// WriteFrame writes payload as one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if err := WriteVarInt(w, int32(len(payload))); err != nil {
		return errors.Extend(err, protoerr.ErrIO)
	}
	_, err := w.Write(payload)
	if err != nil {
		return errors.Extend(err, protoerr.ErrIO)
	}
	return nil
}

// CompressFrame builds the compressed form of a frame body: a VarInt
// holding the uncompressed length, followed by the zlib-compressed
// packet bytes. It is only used once the session has negotiated a
// compression threshold and packetBytes meets it.
func CompressFrame(packetBytes []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteVarInt(&buf, int32(len(packetBytes))); err != nil {
		return nil, err
	}
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(packetBytes); err != nil {
		return nil, errors.Extend(err, protoerr.ErrSerialization)
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Extend(err, protoerr.ErrSerialization)
	}
	return buf.Bytes(), nil
}

// UninflatedFrame builds the uncompressed form of a frame body used when
// the packet is smaller than the compression threshold: a VarInt zero
// followed by the raw packet bytes, per the wire protocol's convention
// that a zero data-length marks "not compressed".
func UninflatedFrame(packetBytes []byte) []byte {
	var buf bytes.Buffer
	WriteVarInt(&buf, 0)
	buf.Write(packetBytes)
	return buf.Bytes()
}

// DecompressFrame reverses CompressFrame/UninflatedFrame: it reads the
// leading VarInt; a zero means body is already the raw packet bytes,
// otherwise body is zlib-compressed and the VarInt is the expected
// decompressed length, checked against MaxFrameSize and the actual
// inflate output.
func DecompressFrame(body []byte) ([]byte, error) {
	r := bytes.NewReader(body)
	dataLength, err := ReadVarInt(r)
	if err != nil {
		return nil, errors.Extend(err, protoerr.ErrSerialization)
	}
	if dataLength == 0 {
		rest := make([]byte, r.Len())
		io.ReadFull(r, rest)
		return rest, nil
	}
	if dataLength < 0 || int(dataLength) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, errors.Extend(err, protoerr.ErrSerialization)
	}
	defer zr.Close()
	out := make([]byte, dataLength)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, errors.Extend(err, protoerr.ErrSerialization)
	}
	return out, nil
}
