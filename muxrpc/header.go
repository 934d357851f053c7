// Package muxrpc implements the application-agnostic, bidirectional
// multiplex-RPC layer: a 9-byte header + body wire codec, an
// incremental packet-stream parser, a client that correlates
// responses by request number, and a service registry + dispatcher
// driving four streaming disciplines (async, source, sink, duplex)
// over any reliable duplex byte transport (§4.5-§4.9).
package muxrpc

import "encoding/binary"

// BodyType is the low 2 bits of the header flags byte.
type BodyType uint8

const (
	BodyTypeBinary BodyType = 0
	BodyTypeString BodyType = 1
	BodyTypeJSON   BodyType = 2
)

func (t BodyType) String() string {
	switch t {
	case BodyTypeBinary:
		return "Binary"
	case BodyTypeString:
		return "Utf8String"
	case BodyTypeJSON:
		return "Json"
	default:
		return "Invalid"
	}
}

const (
	flagBodyTypeMask = 0b0000_0011
	flagEndOrError   = 0b0000_0100
	flagIsStream     = 0b0000_1000
)

// HeaderSize is the fixed 9-byte wire size of Header.
const HeaderSize = 9

// Header is the 9-byte RPC packet header (§3): flags(1) ||
// body_len(u32 BE) || request_number(i32 BE).
type Header struct {
	BodyType      BodyType
	IsStream      bool
	IsEndOrError  bool
	BodyLen       uint32
	RequestNumber int32
}

// ParseHeader decodes a 9-byte header. A zero return with ok=false and
// err=nil is the all-zeros "goodbye" sentinel (§3, §4.5).
func ParseHeader(data [HeaderSize]byte) (h Header, ok bool, err error) {
	if data == ([HeaderSize]byte{}) {
		return Header{}, false, nil
	}

	flags := data[0]
	bodyType := BodyType(flags & flagBodyTypeMask)
	if bodyType != BodyTypeBinary && bodyType != BodyTypeString && bodyType != BodyTypeJSON {
		return Header{}, false, &InvalidBodyTypeError{Value: flags & flagBodyTypeMask}
	}

	h = Header{
		BodyType:      bodyType,
		IsStream:      flags&flagIsStream != 0,
		IsEndOrError:  flags&flagEndOrError != 0,
		BodyLen:       binary.BigEndian.Uint32(data[1:5]),
		RequestNumber: int32(binary.BigEndian.Uint32(data[5:9])),
	}
	if h.RequestNumber == 0 {
		return Header{}, false, RequestNumberZeroError{}
	}
	return h, true, nil
}

// Build encodes the header back to its 9-byte wire form.
func (h Header) Build() [HeaderSize]byte {
	var out [HeaderSize]byte
	flags := byte(h.BodyType)
	if h.IsStream {
		flags |= flagIsStream
	}
	if h.IsEndOrError {
		flags |= flagEndOrError
	}
	out[0] = flags
	binary.BigEndian.PutUint32(out[1:5], h.BodyLen)
	binary.BigEndian.PutUint32(out[5:9], uint32(h.RequestNumber))
	return out
}

// GoodbyeHeader is the 9 zero bytes that end an RPC session.
var GoodbyeHeader [HeaderSize]byte
