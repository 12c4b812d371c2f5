// Package wire implements the membership protocol's on-the-wire message
// framing: a prefix-length, flatbuffer-style table carrying a one-byte
// message kind and a vector of UTF-8 strings, per spec.md §6.
//
// The original implementation (File-Forklift, Rust) generated this layout
// from a .fbs schema compiled by flatc. We build and read the identical
// two-field table by hand against the flatbuffers Go runtime, since no
// .fbs/flatc toolchain is part of this module's build.
package wire

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// Kind identifies a membership message's purpose.
//
// Discriminants are fixed by the wire format's authoritative test vector
// (spec.md §8, scenario 3): a kind byte of 1 decodes to NODELIST, which
// only holds if GETLIST=0, NODELIST=1, HEARTBEAT=2.
type Kind byte

// Message kinds, per spec.md §6.
const (
	GETLIST Kind = iota
	NODELIST
	HEARTBEAT
)

func (k Kind) String() string {
	switch k {
	case GETLIST:
		return "GETLIST"
	case NODELIST:
		return "NODELIST"
	case HEARTBEAT:
		return "HEARTBEAT"
	default:
		return "UNKNOWN"
	}
}

const (
	kindFieldSlot = 0
	bodyFieldSlot = 1
)

// Encode builds the wire frame for a membership message. GETLIST and
// HEARTBEAT bodies carry the sender's ip:port as a single-element vector;
// NODELIST carries the sender's full roster.
func Encode(kind Kind, body []string) []byte {
	b := flatbuffers.NewBuilder(0)

	offsets := make([]flatbuffers.UOffsetT, len(body))
	for i := len(body) - 1; i >= 0; i-- {
		offsets[i] = b.CreateString(body[i])
	}

	b.StartVector(flatbuffers.SizeUOffsetT, len(body), flatbuffers.SizeUOffsetT)
	for i := len(body) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}
	bodyVec := b.EndVector(len(body))

	b.StartObject(2)
	b.PrependUOffsetTSlot(bodyFieldSlot, bodyVec, 0)
	b.PrependByteSlot(kindFieldSlot, byte(kind), 0)
	msg := b.EndObject()
	b.Finish(msg)
	return b.FinishedBytes()
}

// Decode reads a wire frame back into its kind and body. Decoding is pure
// and total: malformed or truncated input never panics, and yields a zero
// Kind with a nil body instead of an error, per spec.md §4.2.
func Decode(buf []byte) (kind Kind, body []string) {
	defer func() {
		if recover() != nil {
			kind, body = 0, nil
		}
	}()
	if len(buf) < flatbuffers.SizeUOffsetT {
		return 0, nil
	}

	root := flatbuffers.GetUOffsetT(buf)
	t := &flatbuffers.Table{Bytes: buf, Pos: root}

	kind = 0
	if o := t.Offset(4 + 2*kindFieldSlot); o != 0 {
		kind = Kind(buf[t.Pos+flatbuffers.UOffsetT(o)])
	}

	body = nil
	if o := t.Offset(4 + 2*bodyFieldSlot); o != 0 {
		vec := t.Vector(o)
		n := t.VectorLen(o)
		body = make([]string, n)
		for i := 0; i < n; i++ {
			elem := vec + flatbuffers.UOffsetT(i)*flatbuffers.SizeUOffsetT
			body[i] = string(t.ByteVector(elem))
		}
	}
	return kind, body
}
