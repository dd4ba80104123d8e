package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouterDispatchesRegisteredHandler(t *testing.T) {
	r := NewRouter(Ignore)
	called := false
	r.Register(Play, PacketIDKeepAliveServerbound, func(ev *ReceiveEvent) error {
		called = true
		require.Equal(t, Play, ev.State)
		return nil
	})

	err := r.Dispatch(&ReceiveEvent{State: Play, ID: PacketIDKeepAliveServerbound})
	require.NoError(t, err)
	require.True(t, called)
}

func TestRouterIgnoresUnhandledByDefault(t *testing.T) {
	r := NewRouter(Ignore)
	err := r.Dispatch(&ReceiveEvent{State: Play, ID: 0x7F})
	require.NoError(t, err)
}

func TestRouterFatalPolicyErrorsOnUnhandled(t *testing.T) {
	r := NewRouter(Fatal)
	err := r.Dispatch(&ReceiveEvent{State: Handshaking, ID: 0x50})
	require.Error(t, err)
}

func TestRouterRegisterPanicsOnOutOfRangeID(t *testing.T) {
	r := NewRouter(Ignore)
	require.Panics(t, func() {
		r.Register(Play, 9999, func(*ReceiveEvent) error { return nil })
	})
}

func TestRouterLookupRejectsUnknownState(t *testing.T) {
	r := NewRouter(Ignore)
	_, ok := r.Lookup(State(42), 0)
	require.False(t, ok)
}
