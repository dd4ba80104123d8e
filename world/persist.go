package world

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/nebulouslabs/blockserver/types"
)

// columnBlockWordSize is the packed type+metadata field for every block
// cell: a big-endian uint16 of (TypeID<<4 | Metadata), the same packing
// protocol.BlockChange uses on the wire.
const columnBlockWordSize = types.BlocksPerColumn * 2

// columnNibbleArraySize is the size of one half-byte-per-block array
// (block light, sky light, or the extended-type-ID "add" nibble).
const columnNibbleArraySize = types.BlocksPerColumn / 2

// columnDataSize is the fixed decompressed size of one column's
// persisted arrays: packed type+metadata words, block-light nibbles,
// sky-light nibbles, add nibbles, then one biome byte per XZ column.
const columnDataSize = columnBlockWordSize + 3*columnNibbleArraySize + types.BiomesPerColumn

func columnKey(id types.ColumnID) string {
	return fmt.Sprintf("column_%d_%d_%d", id.X, id.Z, id.Dimension)
}

// addNibble returns the upper 4 bits of a block's 12-bit type ID, the
// "add" array vanilla chunk storage uses to extend an 8-bit block ID
// beyond 255.
func addNibble(b types.Block) uint8 {
	return uint8(b.TypeID()>>8) & 0xF
}

// packNibbles writes one nibble per block (two per output byte, low
// nibble first) for the given extractor.
func packNibbles(buf *bytes.Buffer, blocks []types.Block, nibble func(types.Block) uint8) {
	for i := 0; i < len(blocks); i += 2 {
		lo := nibble(blocks[i]) & 0xF
		hi := nibble(blocks[i+1]) & 0xF
		buf.WriteByte(lo | hi<<4)
	}
}

// unpackNibbles reverses packNibbles, returning one nibble per block.
func unpackNibbles(r *bytes.Reader, n int) ([]uint8, error) {
	out := make([]uint8, n)
	var b byte
	for i := 0; i < n; i += 2 {
		if err := binaryReadByte(r, &b); err != nil {
			return nil, err
		}
		out[i] = b & 0xF
		out[i+1] = (b >> 4) & 0xF
	}
	return out, nil
}

func binaryReadByte(r *bytes.Reader, out *byte) error {
	v, err := r.ReadByte()
	if err != nil {
		return err
	}
	*out = v
	return nil
}

// encodeColumn builds a column's persisted blob: a raw "populated" flag
// byte followed by the zlib-compressed block/light/biome arrays, in the
// documented external layout (packed type+metadata words, then
// block-light/sky-light/add nibble arrays, then biomes).
func encodeColumn(data *types.ColumnData, populated bool) ([]byte, error) {
	var raw bytes.Buffer
	for _, b := range data.Blocks {
		packed := uint16(b.TypeID())<<4 | uint16(b.Metadata())
		raw.WriteByte(byte(packed >> 8))
		raw.WriteByte(byte(packed))
	}
	packNibbles(&raw, data.Blocks[:], types.Block.BlockLight)
	packNibbles(&raw, data.Blocks[:], types.Block.SkyLight)
	packNibbles(&raw, data.Blocks[:], addNibble)
	raw.Write(data.Biomes[:])

	var out bytes.Buffer
	if populated {
		out.WriteByte(1)
	} else {
		out.WriteByte(0)
	}
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// decodeColumn reverses encodeColumn. valid is false for a blob that is
// absent, truncated, or whose decompressed size doesn't match
// columnDataSize — any of which is treated as "no usable persisted data"
// rather than a hard error, per the column loading step's contract.
func decodeColumn(blob []byte) (data types.ColumnData, populated bool, valid bool) {
	if len(blob) < 1 {
		return data, false, false
	}
	populated = blob[0] != 0

	zr, err := zlib.NewReader(bytes.NewReader(blob[1:]))
	if err != nil {
		return data, false, false
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil || len(raw) != columnDataSize {
		return data, false, false
	}
	r := bytes.NewReader(raw)

	typeIDs := make([]uint16, types.BlocksPerColumn)
	metadata := make([]uint8, types.BlocksPerColumn)
	var word [2]byte
	for i := range typeIDs {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return types.ColumnData{}, false, false
		}
		packed := uint16(word[0])<<8 | uint16(word[1])
		typeIDs[i] = packed >> 4
		metadata[i] = uint8(packed) & 0xF
	}

	blockLight, err := unpackNibbles(r, types.BlocksPerColumn)
	if err != nil {
		return types.ColumnData{}, false, false
	}
	skyLight, err := unpackNibbles(r, types.BlocksPerColumn)
	if err != nil {
		return types.ColumnData{}, false, false
	}
	// The "add" nibble array extends an 8-bit block ID beyond 255; our
	// packed type+metadata word already carries the full 12-bit type ID,
	// so it is consumed to keep the cursor aligned and otherwise unused.
	if _, err := unpackNibbles(r, types.BlocksPerColumn); err != nil {
		return types.ColumnData{}, false, false
	}

	for i := range data.Blocks {
		data.Blocks[i] = types.NewBlock(typeIDs[i], metadata[i], blockLight[i], skyLight[i])
	}
	if _, err := io.ReadFull(r, data.Biomes[:]); err != nil {
		return types.ColumnData{}, false, false
	}
	return data, populated, true
}
