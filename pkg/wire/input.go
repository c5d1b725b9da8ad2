package wire

import (
	"encoding/binary"
	"fmt"
)

// EncodeInput packs an input id, the logical step it was produced at
// (spec.md §3's Input Descriptor `step` field), and its strategy-specific
// payload bytes for a MessageTypeInput envelope. inputID lets the server
// authority report back which input it last applied (see
// Server.LastHandledInput) so the client engine knows how far it can
// safely re-enact from; step lets the server bucket it for ascending-
// step-order delivery (spec.md §4.6 step 2) instead of applying it the
// instant it arrives.
func EncodeInput(inputID uint32, step uint64, payload []byte) []byte {
	buf := make([]byte, 12+len(payload))
	binary.BigEndian.PutUint32(buf[:4], inputID)
	binary.BigEndian.PutUint64(buf[4:12], step)
	copy(buf[12:], payload)
	return buf
}

// DecodeInput reverses EncodeInput.
func DecodeInput(data []byte) (inputID uint32, step uint64, payload []byte, err error) {
	if len(data) < 12 {
		return 0, 0, nil, fmt.Errorf("wire: input payload too short: %d bytes", len(data))
	}
	inputID = binary.BigEndian.Uint32(data[:4])
	step = binary.BigEndian.Uint64(data[4:12])
	payload = data[12:]
	return inputID, step, payload, nil
}
