package muxrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Body is a packet payload tagged with its wire body type (§3).
// Exactly one field is meaningful per BodyType; Kind reports which.
type Body struct {
	Kind BodyType
	Blob []byte // Kind == BodyTypeBinary
	Str  string // Kind == BodyTypeString
	JSON []byte // Kind == BodyTypeJSON, raw encoded JSON
}

// BlobBody wraps an opaque binary payload.
func BlobBody(data []byte) Body { return Body{Kind: BodyTypeBinary, Blob: data} }

// StringBody wraps a UTF-8 string payload.
func StringBody(s string) Body { return Body{Kind: BodyTypeString, Str: s} }

// JSONBody marshals value as a JSON body.
func JSONBody(value any) Body {
	data, err := json.Marshal(value)
	if err != nil {
		// Every value this module marshals here is an internal, fixed
		// shape (asyncRequestBody, StreamRequest, RPCError, bool); a marshal
		// failure means a programmer error, not a runtime condition.
		panic(fmt.Sprintf("muxrpc: failed to marshal JSON body: %v", err))
	}
	return Body{Kind: BodyTypeJSON, JSON: data}
}

// RawJSONBody wraps already-encoded JSON bytes.
func RawJSONBody(data []byte) Body { return Body{Kind: BodyTypeJSON, JSON: data} }

func parseBody(bodyType BodyType, data []byte) (Body, error) {
	switch bodyType {
	case BodyTypeBinary:
		return BlobBody(data), nil
	case BodyTypeString:
		if !utf8.Valid(data) {
			return Body{}, &StringPayloadEncodingError{Err: fmt.Errorf("invalid utf-8")}
		}
		return StringBody(string(data)), nil
	default: // BodyTypeJSON
		return RawJSONBody(data), nil
	}
}

// DecodeJSON unmarshals a JSON body into v. It errors if the body is
// not JSON-tagged.
func (b Body) DecodeJSON(v any) error {
	if b.Kind != BodyTypeJSON {
		return &UnexpectedBodyTypeError{Actual: b.Kind, Expected: BodyTypeJSON}
	}
	return json.Unmarshal(b.JSON, v)
}

func (b Body) intoJSON() ([]byte, error) {
	if b.Kind != BodyTypeJSON {
		return nil, &UnexpectedBodyTypeError{Actual: b.Kind, Expected: BodyTypeJSON}
	}
	return b.JSON, nil
}

func (b Body) wireBytes() []byte {
	switch b.Kind {
	case BodyTypeBinary:
		return b.Blob
	case BodyTypeString:
		return []byte(b.Str)
	default:
		return b.JSON
	}
}

// StreamMessage is one packet on an open stream id (§3): a data
// payload, a terminal error, or a clean end.
type StreamMessage struct {
	Kind streamMessageKind
	Data Body
	Err  *RPCError
}

type streamMessageKind int

const (
	streamData streamMessageKind = iota
	streamError
	streamEnd
)

func DataMessage(body Body) StreamMessage  { return StreamMessage{Kind: streamData, Data: body} }
func ErrorMessage(err RPCError) StreamMessage {
	return StreamMessage{Kind: streamError, Err: &err}
}
func EndMessage() StreamMessage { return StreamMessage{Kind: streamEnd} }

func (m StreamMessage) IsEnd() bool {
	return m.Kind == streamEnd || m.Kind == streamError
}

var jsonTrue = []byte("true")

func parseStreamMessage(flags Header, body Body) (StreamMessage, error) {
	if !flags.IsEndOrError {
		return DataMessage(body), nil
	}
	data, err := body.intoJSON()
	if err != nil {
		return StreamMessage{}, err
	}
	if bytes.Equal(bytes.TrimSpace(data), jsonTrue) {
		return EndMessage(), nil
	}
	rpcErr, err := decodeErrorJSON(data)
	if err != nil {
		return StreamMessage{}, err
	}
	return ErrorMessage(*rpcErr), nil
}

func (m StreamMessage) toBody() Body {
	switch m.Kind {
	case streamData:
		return m.Data
	case streamError:
		return JSONBody(m.Err)
	default: // streamEnd
		return JSONBody(true)
	}
}

func decodeErrorJSON(data []byte) (*RPCError, error) {
	var e RPCError
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, &ErrorResponseBodyError{Body: string(data), Err: err}
	}
	return &e, nil
}

// StreamRequestType names the streaming discipline a new stream
// negotiates (§3).
type StreamRequestType string

const (
	StreamRequestSource StreamRequestType = "source"
	StreamRequestSink   StreamRequestType = "sink"
	StreamRequestDuplex StreamRequestType = "duplex"
)

// StreamRequest is the JSON body carried by the first Stream.Data
// packet for a new stream id (§3).
type StreamRequest struct {
	Name []string          `json:"name"`
	Type StreamRequestType `json:"type"`
	Args []json.RawMessage `json:"args"`
}
