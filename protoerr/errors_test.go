package protoerr

import (
	"testing"

	"github.com/NebulousLabs/errors"
	"github.com/stretchr/testify/require"
)

func TestIsProtocolFault(t *testing.T) {
	wrapped := errors.Extend(errors.New("bad packet id"), ErrProtocol)
	require.True(t, IsProtocolFault(wrapped))
	require.False(t, IsCryptoFault(wrapped))
}

func TestIsCryptoFault(t *testing.T) {
	wrapped := errors.Extend(errors.New("verify token mismatch"), ErrCrypto)
	require.True(t, IsCryptoFault(wrapped))
}

func TestIsNotFoundFault(t *testing.T) {
	wrapped := errors.Extend(errors.New("no generator for dimension 7"), ErrNotFound)
	require.True(t, IsNotFoundFault(wrapped))
}
