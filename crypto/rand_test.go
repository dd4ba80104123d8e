package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadFillsBuffer(t *testing.T) {
	b := make([]byte, 32)
	Read(b)
	var allZero bool = true
	for _, v := range b {
		if v != 0 {
			allZero = false
			break
		}
	}
	require.False(t, allZero, "Read should not leave the buffer all zero")
}

func TestBytesLength(t *testing.T) {
	require.Len(t, Bytes(16), 16)
	require.Len(t, Bytes(0), 0)
}

func TestUint64Varies(t *testing.T) {
	a := Uint64()
	b := Uint64()
	// Extremely unlikely to collide; guards against a broken constant seed.
	require.NotEqual(t, a, b)
}
