package muxrpc

import "encoding/json"

// Packet is either a Request or a Response (§3). Exactly one of
// Request/Response is set.
type Packet struct {
	Request  *Request
	Response *Response
}

// Request is one of the two request variants: a single-shot Async
// call, or a Stream packet on a (possibly new) stream id.
type Request struct {
	Async  *AsyncRequest
	Stream *StreamPacket
}

type AsyncRequest struct {
	Number uint32
	Method []string
	Args   []json.RawMessage
}

type StreamPacket struct {
	Number  uint32
	Message StreamMessage
}

// Response is one of the three response variants.
type Response struct {
	AsyncOk  *AsyncOkResponse
	AsyncErr *AsyncErrResponse
	Stream   *StreamPacket
}

type AsyncOkResponse struct {
	Number uint32
	Body   Body
}

type AsyncErrResponse struct {
	Number uint32
	Err    RPCError
}

type asyncRequestBody struct {
	Name []string          `json:"name"`
	Args []json.RawMessage `json:"args"`
}

func requestBody(method []string, args []json.RawMessage) Body {
	if args == nil {
		args = []json.RawMessage{}
	}
	return JSONBody(asyncRequestBody{Name: method, Args: args})
}

// ParsePacket builds a Packet from a decoded header and its body
// bytes (§4.5).
func ParsePacket(header Header, bodyData []byte) (Packet, error) {
	body, err := parseBody(header.BodyType, bodyData)
	if err != nil {
		return Packet{}, err
	}

	if header.RequestNumber > 0 {
		number := uint32(header.RequestNumber)
		if header.IsStream {
			msg, err := parseStreamMessage(header, body)
			if err != nil {
				return Packet{}, err
			}
			return Packet{Request: &Request{Stream: &StreamPacket{Number: number, Message: msg}}}, nil
		}
		// header.IsEndOrError on an async request is unspecified
		// upstream and is ignored on decode (§9).
		raw, err := body.intoJSON()
		if err != nil {
			return Packet{}, err
		}
		var decoded asyncRequestBody
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return Packet{}, &RequestBodyError{Body: string(raw), Err: err}
		}
		return Packet{Request: &Request{Async: &AsyncRequest{
			Number: number,
			Method: decoded.Name,
			Args:   decoded.Args,
		}}}, nil
	}

	number := uint32(-header.RequestNumber)
	if header.IsStream {
		msg, err := parseStreamMessage(header, body)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Response: &Response{Stream: &StreamPacket{Number: number, Message: msg}}}, nil
	}
	if header.IsEndOrError {
		raw, err := body.intoJSON()
		if err != nil {
			return Packet{}, err
		}
		rpcErr, err := decodeErrorJSON(raw)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Response: &Response{AsyncErr: &AsyncErrResponse{Number: number, Err: *rpcErr}}}, nil
	}
	return Packet{Response: &Response{AsyncOk: &AsyncOkResponse{Number: number, Body: body}}}, nil
}

// BuildPacket is the strict inverse of ParsePacket.
func BuildPacket(p Packet) []byte {
	var requestNumber int32
	var isStream, isEndOrError bool
	var body Body

	switch {
	case p.Request != nil && p.Request.Async != nil:
		r := p.Request.Async
		requestNumber = int32(r.Number)
		body = requestBody(r.Method, r.Args)
	case p.Request != nil && p.Request.Stream != nil:
		r := p.Request.Stream
		requestNumber = int32(r.Number)
		isStream = true
		isEndOrError = r.Message.IsEnd()
		body = r.Message.toBody()
	case p.Response != nil && p.Response.AsyncOk != nil:
		r := p.Response.AsyncOk
		requestNumber = -int32(r.Number)
		body = r.Body
	case p.Response != nil && p.Response.AsyncErr != nil:
		r := p.Response.AsyncErr
		requestNumber = -int32(r.Number)
		isEndOrError = true
		body = JSONBody(r.Err)
	case p.Response != nil && p.Response.Stream != nil:
		r := p.Response.Stream
		requestNumber = -int32(r.Number)
		isStream = true
		isEndOrError = r.Message.IsEnd()
		body = r.Message.toBody()
	default:
		panic("muxrpc: BuildPacket called on an incomplete Packet")
	}

	header := Header{
		BodyType:      body.Kind,
		IsStream:      isStream,
		IsEndOrError:  isEndOrError,
		BodyLen:       uint32(len(body.wireBytes())),
		RequestNumber: requestNumber,
	}
	headerBytes := header.Build()
	wire := body.wireBytes()
	out := make([]byte, 0, HeaderSize+len(wire))
	out = append(out, headerBytes[:]...)
	out = append(out, wire...)
	return out
}

// buildStreamPacket is a convenience for the common case of emitting
// one Stream message (response direction when asResponse is true,
// request direction otherwise).
func buildStreamPacket(number uint32, asResponse bool, msg StreamMessage) []byte {
	sp := &StreamPacket{Number: number, Message: msg}
	if asResponse {
		return BuildPacket(Packet{Response: &Response{Stream: sp}})
	}
	return BuildPacket(Packet{Request: &Request{Stream: sp}})
}
