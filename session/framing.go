package session

import (
	"bytes"
	"errors"

	"github.com/nebulouslabs/blockserver/protocol"
)

// errNeedMoreData signals that buf does not yet hold a complete frame;
// it never escapes this package.
var errNeedMoreData = errors.New("session: need more data")

// decodeVarIntPrefix reads a VarInt from the front of b without
// consuming anything, the way protocol.ReadVarInt would from a live
// io.Reader. It returns errNeedMoreData if b ends before the VarInt
// terminates within its declared byte budget.
func decodeVarIntPrefix(b []byte) (value int32, n int, err error) {
	var v uint32
	var shift uint
	for i := 0; i < protocol.MaxVarIntLen; i++ {
		if i >= len(b) {
			return 0, 0, errNeedMoreData
		}
		by := b[i]
		v |= uint32(by&0x7F) << shift
		if by&0x80 == 0 {
			return int32(v), i + 1, nil
		}
		shift += 7
	}
	return 0, 0, protocol.ErrVarIntTooLong
}

// extractFrame pulls one complete length-prefixed frame out of the front
// of buf, consuming it, or reports that more data is needed. A
// genuinely malformed length prefix (oversized or a runaway VarInt) is
// returned as err.
func extractFrame(buf *bytes.Buffer) (payload []byte, ok bool, err error) {
	raw := buf.Bytes()

	length, n, err := decodeVarIntPrefix(raw)
	if err == errNeedMoreData {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if length < 0 || int(length) > protocol.MaxFrameSize {
		return nil, false, protocol.ErrFrameTooLarge
	}

	total := n + int(length)
	if len(raw) < total {
		return nil, false, nil
	}

	consumed := buf.Next(total)
	frame := make([]byte, length)
	copy(frame, consumed[n:])
	return frame, true, nil
}
