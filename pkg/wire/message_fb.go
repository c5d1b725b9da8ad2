package wire

import flatbuffers "github.com/google/flatbuffers/go"

// This file is the flatc output for a 3-field table:
//
//	table Message {
//	  client_id: uint;
//	  type: ubyte;
//	  payload: [ubyte];
//	}
//
// written by hand since the schema is small and stable enough not to
// warrant a flatc step in this module's build. It follows the same
// generated shape the teacher's flatbuffers/message package has
// (MessageStart/MessageAddX/MessageEnd to build, GetRootAsMessage plus
// per-field accessors to read).

type messageFB struct {
	_tab flatbuffers.Table
}

func getRootAsMessageFB(buf []byte, offset flatbuffers.UOffsetT) *messageFB {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &messageFB{}
	x.init(buf, n+offset)
	return x
}

func (rcv *messageFB) init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *messageFB) ClientID() uint32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetUint32(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *messageFB) Type() byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.GetByte(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *messageFB) PayloadBytes() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func messageFBStart(builder *flatbuffers.Builder) {
	builder.StartObject(3)
}

func messageFBAddClientID(builder *flatbuffers.Builder, clientID uint32) {
	builder.PrependUint32Slot(0, clientID, 0)
}

func messageFBAddType(builder *flatbuffers.Builder, typ byte) {
	builder.PrependByteSlot(1, typ, 0)
}

func messageFBAddPayload(builder *flatbuffers.Builder, payload flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(2, payload, 0)
}

func messageFBEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
