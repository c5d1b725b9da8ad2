// Package transmitter implements the Network Transmitter (spec.md §4.5):
// it buffers create/update/destroy events the server authority raises
// during a step, and on demand serializes them into one framed payload,
// diffing each update against the last bytes actually sent for that
// object so unchanged objects and unchanged string fields don't repeat
// on the wire.
package transmitter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/serializer"
)

// FrameType tags each frame inside a payload.
type FrameType byte

const (
	FrameCreate FrameType = iota
	FrameUpdate
	FrameDestroy
)

type event struct {
	typ FrameType
	id  uint32
	obj object.Instance
}

// Transmitter buffers outgoing object events and frames them into payload
// bytes. It is not safe for concurrent use by multiple goroutines at once
// beyond the locking QueueX/SerializePayload/ClearPayload already do
// against each other; callers should still serialize their own access
// pattern (queue during a step, serialize+clear once per sync tick).
type Transmitter struct {
	codec *serializer.Serializer

	mu           sync.Mutex
	events       []event
	objMemory    map[uint32][]byte
	stringMemory map[uint32]map[string]string
}

func New(codec *serializer.Serializer) *Transmitter {
	return &Transmitter{
		codec:        codec,
		objMemory:    make(map[uint32][]byte),
		stringMemory: make(map[uint32]map[string]string),
	}
}

// QueueCreate buffers an object-create event for the next payload.
func (t *Transmitter) QueueCreate(obj object.WorldObject) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event{typ: FrameCreate, id: obj.GetID(), obj: obj})
}

// QueueUpdate buffers an object-update event for the next payload.
func (t *Transmitter) QueueUpdate(obj object.WorldObject) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event{typ: FrameUpdate, id: obj.GetID(), obj: obj})
}

// QueueDestroy buffers an object-destroy event and forgets the diffing
// memory kept for that id.
func (t *Transmitter) QueueDestroy(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event{typ: FrameDestroy, id: id})
	delete(t.objMemory, id)
	delete(t.stringMemory, id)
}

// ClearPayload discards every event buffered so far, whether or not
// SerializePayload has been called for them. A server calls this right
// after a successful broadcast of the payload SerializePayload returned.
func (t *Transmitter) ClearPayload() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

// SerializePayload frames every buffered event into one payload:
//
//	step:u32 | fullSync:u8 | frameCount:u16 | frame...
//
// Each frame is:
//
//	frameType:u8 | id:u32 | [classId-prefixed netScheme bytes, for create/update]
//
// When fullSync is false (a "diffUpdate" sync), an update frame whose
// object encodes byte-identically to the last unpruned encoding recorded
// for that id is dropped entirely, and any STRING field whose value hasn't changed since
// the last send is replaced with object.PrunedMarker before encoding.
// fullSync forces every buffered object through untouched, and re-primes
// the diffing memory from it.
func (t *Transmitter) SerializePayload(step uint64, fullSync bool) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var frames [][]byte
	for _, e := range t.events {
		switch e.typ {
		case FrameDestroy:
			frame := &bytes.Buffer{}
			frame.WriteByte(byte(FrameDestroy))
			if err := binary.Write(frame, binary.BigEndian, e.id); err != nil {
				return nil, err
			}
			frames = append(frames, frame.Bytes())

		case FrameCreate, FrameUpdate:
			encoded, skip, err := t.encodeForSend(e.id, e.obj, fullSync, e.typ == FrameCreate)
			if err != nil {
				return nil, fmt.Errorf("transmitter: encoding object %d: %w", e.id, err)
			}
			if skip {
				continue
			}
			frame := &bytes.Buffer{}
			frame.WriteByte(byte(e.typ))
			if err := binary.Write(frame, binary.BigEndian, e.id); err != nil {
				return nil, err
			}
			frame.Write(encoded)
			frames = append(frames, frame.Bytes())
		}
	}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.BigEndian, uint32(step)); err != nil {
		return nil, err
	}
	fullSyncByte := byte(0)
	if fullSync {
		fullSyncByte = 1
	}
	buf.WriteByte(fullSyncByte)
	if err := binary.Write(buf, binary.BigEndian, uint16(len(frames))); err != nil {
		return nil, err
	}
	for _, f := range frames {
		buf.Write(f)
	}
	return buf.Bytes(), nil
}

type cloner interface {
	CloneInstance() object.Instance
}

func (t *Transmitter) encodeForSend(id uint32, obj object.Instance, fullSync, isCreate bool) (encoded []byte, skip bool, err error) {
	raw, err := t.codec.Encode(obj)
	if err != nil {
		return nil, false, err
	}
	if !isCreate && !fullSync {
		if prev, ok := t.objMemory[id]; ok && bytes.Equal(prev, raw) {
			return nil, true, nil
		}
	}
	t.objMemory[id] = raw

	target := obj

	if c, ok := obj.(cloner); ok {
		clone := c.CloneInstance()
		if fullSync {
			t.stringMemory[id] = object.CurrentStringFields(clone)
		} else {
			t.stringMemory[id] = object.PruneUnchangedStrings(clone, t.stringMemory[id])
			target = clone
		}
	}

	encoded, err = t.codec.Encode(target)
	if err != nil {
		return nil, false, err
	}
	return encoded, false, nil
}

// Frame is one decoded payload entry.
type Frame struct {
	Type     FrameType
	ID       uint32
	Instance object.Instance // nil for FrameDestroy
}

// Payload is a fully decoded SerializePayload output.
type Payload struct {
	Step     uint64
	FullSync bool
	Frames   []Frame
}

// DecodePayload parses the framed bytes SerializePayload produces. It is a
// package-level function rather than a Transmitter method because the
// receiving side (a client, or a room observer) has no per-object send
// memory of its own to consult.
func DecodePayload(codec *serializer.Serializer, data []byte) (Payload, error) {
	if len(data) < 7 {
		return Payload{}, fmt.Errorf("transmitter: payload too short: %d bytes", len(data))
	}

	step := binary.BigEndian.Uint32(data[0:4])
	fullSync := data[4] != 0
	frameCount := binary.BigEndian.Uint16(data[5:7])
	rest := data[7:]

	payload := Payload{Step: uint64(step), FullSync: fullSync}
	for i := uint16(0); i < frameCount; i++ {
		if len(rest) < 5 {
			return Payload{}, fmt.Errorf("transmitter: truncated frame header")
		}
		frameType := FrameType(rest[0])
		id := binary.BigEndian.Uint32(rest[1:5])
		rest = rest[5:]

		frame := Frame{Type: frameType, ID: id}
		if frameType != FrameDestroy {
			inst, tail, err := codec.Decode(rest)
			if err != nil {
				return Payload{}, fmt.Errorf("transmitter: decoding frame for object %d: %w", id, err)
			}
			frame.Instance = inst
			rest = tail
		}
		payload.Frames = append(payload.Frames, frame)
	}
	return payload, nil
}
