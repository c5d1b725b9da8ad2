// Package wire is the outer message envelope: a small, fixed-shape
// flatbuffers table (ClientID, Type, Payload) wrapped in zstd, exactly the
// way the teacher's pkg/messages/serialize.go wraps its own Message type.
// The inner Payload bytes are whatever pkg/serializer/pkg/transmitter
// produced; wire has no opinion on their contents.
package wire

import (
	"bytes"
	"fmt"
	"io"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

// MessageType tags what Payload contains.
type MessageType uint8

const (
	// MessageTypePlayerJoined is the s→c playerJoined event (spec.md §6),
	// carrying a JSON-encoded wire.PlayerJoined payload.
	MessageTypePlayerJoined MessageType = iota
	MessageTypeInput
	MessageTypeSync
	MessageTypePing
	MessageTypePong
	// MessageTypeRoomUpdate is the s→c roomUpdate event (spec.md §6),
	// carrying a JSON-encoded wire.RoomUpdate payload.
	MessageTypeRoomUpdate
	// MessageTypeTrace is the c→s trace event (spec.md §6), carrying a
	// JSON-encoded wire.TraceEntry batch.
	MessageTypeTrace
)

// Message is the envelope carried over a transport.Pipe.
type Message struct {
	ClientID uint32
	Type     MessageType
	Payload  []byte
}

// Encode serializes m to its flatbuffer form and zstd-compresses the
// result.
func Encode(m *Message) ([]byte, error) {
	b, err := encodeFlatbuffer(m)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding message: %w", err)
	}

	compressed := &bytes.Buffer{}
	w, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("wire: creating zstd writer: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return nil, fmt.Errorf("wire: compressing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("wire: closing zstd writer: %w", err)
	}
	return compressed.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*Message, error) {
	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("wire: creating zstd reader: %w", err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wire: decompressing message: %w", err)
	}
	return decodeFlatbuffer(b)
}

func encodeFlatbuffer(m *Message) ([]byte, error) {
	builder := flatbuffers.NewBuilder(0)
	payload := builder.CreateByteVector(m.Payload)

	messageFBStart(builder)
	messageFBAddClientID(builder, m.ClientID)
	messageFBAddType(builder, byte(m.Type))
	messageFBAddPayload(builder, payload)
	offset := messageFBEnd(builder)
	builder.Finish(offset)

	return builder.FinishedBytes(), nil
}

func decodeFlatbuffer(b []byte) (*Message, error) {
	fb := getRootAsMessageFB(b, 0)
	return &Message{
		ClientID: fb.ClientID(),
		Type:     MessageType(fb.Type()),
		Payload:  fb.PayloadBytes(),
	}, nil
}
