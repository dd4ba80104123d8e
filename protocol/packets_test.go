package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	h := &Handshake{
		ProtocolVersion: 47,
		ServerAddress:   "localhost",
		ServerPort:      25565,
		NextState:       Login,
	}
	w := NewWriter()
	h.Encode(w)

	got, err := DecodeHandshake(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestLoginStartRoundTrip(t *testing.T) {
	w := NewWriter()
	w.String("Alice")

	got, err := DecodeLoginStart(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Username)
}

func TestEncryptionResponseRoundTrip(t *testing.T) {
	w := NewWriter()
	w.ByteArray(make([]byte, 16))
	w.ByteArray([]byte{1, 2, 3, 4})

	got, err := DecodeEncryptionResponse(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Len(t, got.SharedSecret, 16)
	require.Equal(t, []byte{1, 2, 3, 4}, got.VerifyToken)
}

func TestKeepAliveRoundTrip(t *testing.T) {
	w := NewWriter()
	w.Int64(123456789)

	got, err := DecodeKeepAlive(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, int64(123456789), got.ID64)
}

func TestBlockChangeEncodesPackedPosition(t *testing.T) {
	bc := &BlockChange{X: 5, Y: 64, Z: 5, BlockID: 1 << 4}
	w := NewWriter()
	bc.Encode(w)

	r := NewReader(w.Bytes())
	packed, err := r.Int64()
	require.NoError(t, err)
	require.Equal(t, int32(5), int32(packed>>38))
	require.Equal(t, int32(64), int32(packed&0xFFF))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "play", Play.String())
	require.Equal(t, "unknown", State(99).String())
}
