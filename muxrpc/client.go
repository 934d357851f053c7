package muxrpc

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// AsyncResponse is what Client.SendAsync resolves to (§4.8).
type AsyncResponse struct {
	Kind  BodyType
	Blob  []byte
	Str   string
	JSON  []byte
	Error *RPCError
}

func asyncResponseFromBody(b Body) AsyncResponse {
	return AsyncResponse{Kind: b.Kind, Blob: b.Blob, Str: b.Str, JSON: b.JSON}
}

// Client issues requests over requestOut and correlates responses
// delivered by HandleResponse (called from the endpoint's single
// reader goroutine) by request number (§4.8).
type Client struct {
	requestOut chan<- []byte

	nextRequestNumber uint32 // atomic; starts at 1, incremented per send

	mu           sync.Mutex
	pendingAsync map[uint32]chan AsyncResponse
	streams      map[uint32]chan StreamResult
}

// NewClient builds a client that writes requests onto requestOut. The
// endpoint is responsible for delivering inbound Responses via
// HandleResponse.
func NewClient(requestOut chan<- []byte) *Client {
	return &Client{
		requestOut:   requestOut,
		pendingAsync: map[uint32]chan AsyncResponse{},
		streams:      map[uint32]chan StreamResult{},
	}
}

// allocateNumber returns the next request number, starting at 1 (§4.8).
func (c *Client) allocateNumber() uint32 {
	return atomic.AddUint32(&c.nextRequestNumber, 1)
}

// SendAsync issues an Async request and blocks until the matching
// response arrives.
func (c *Client) SendAsync(method []string, args []json.RawMessage) AsyncResponse {
	number := c.allocateNumber()
	ch := make(chan AsyncResponse, 1)
	c.mu.Lock()
	c.pendingAsync[number] = ch
	c.mu.Unlock()

	wire := BuildPacket(Packet{Request: &Request{Async: &AsyncRequest{Number: number, Method: method, Args: args}}})
	c.requestOut <- wire
	return <-ch
}

// Source is the caller-visible inbound half of a started stream. The
// Items channel yields Data/Error results and is closed on a clean
// End (mirroring the original's Stream<Item = Result<Body, Error>>
// ending on None).
type Source struct {
	Items <-chan StreamResult
}

// Sink is the caller-visible outbound half of a started stream. Close
// or Error must be called explicitly; dropping the Sink leaks the
// stream id on the remote side (§4.8).
type Sink struct {
	id         uint32
	requestOut chan<- []byte
}

func (s *Sink) Send(body Body) {
	s.requestOut <- buildStreamPacket(s.id, false, DataMessage(body))
}

func (s *Sink) Close() {
	s.requestOut <- buildStreamPacket(s.id, false, EndMessage())
}

func (s *Sink) Error(err RPCError) {
	s.requestOut <- buildStreamPacket(s.id, false, ErrorMessage(err))
}

// StartSource opens a server-to-client stream.
func (c *Client) StartSource(method []string, args []json.RawMessage) (*Source, *Sink) {
	return c.startStream(StreamRequestSource, method, args)
}

// StartSink opens a client-to-server stream.
func (c *Client) StartSink(method []string, args []json.RawMessage) (*Source, *Sink) {
	return c.startStream(StreamRequestSink, method, args)
}

// StartDuplex opens a bidirectional stream.
func (c *Client) StartDuplex(method []string, args []json.RawMessage) (*Source, *Sink) {
	return c.startStream(StreamRequestDuplex, method, args)
}

func (c *Client) startStream(kind StreamRequestType, method []string, args []json.RawMessage) (*Source, *Sink) {
	number := c.allocateNumber()
	if args == nil {
		args = []json.RawMessage{}
	}
	openBody := JSONBody(StreamRequest{Name: method, Type: kind, Args: args})

	ch := make(chan StreamResult, 64)
	c.mu.Lock()
	c.streams[number] = ch
	c.mu.Unlock()

	c.requestOut <- buildStreamPacket(number, false, DataMessage(openBody))

	return &Source{Items: ch}, &Sink{id: number, requestOut: c.requestOut}
}

// HandleResponse delivers one inbound Response to its waiting caller
// (§4.8 "Inbound correlation loop"). It is called from the endpoint's
// single reader goroutine.
func (c *Client) HandleResponse(resp *Response) {
	switch {
	case resp.AsyncOk != nil:
		c.completeAsync(resp.AsyncOk.Number, asyncResponseFromBody(resp.AsyncOk.Body))
	case resp.AsyncErr != nil:
		err := resp.AsyncErr.Err
		c.completeAsync(resp.AsyncErr.Number, AsyncResponse{Error: &err})
	case resp.Stream != nil:
		c.handleStreamResponse(resp.Stream)
	}
}

func (c *Client) completeAsync(number uint32, response AsyncResponse) {
	c.mu.Lock()
	ch, ok := c.pendingAsync[number]
	if ok {
		delete(c.pendingAsync, number)
	}
	c.mu.Unlock()
	if !ok {
		log.Warn().Uint32("number", number).Msg("muxrpc: no matching pending async request")
		return
	}
	ch <- response
}

func (c *Client) handleStreamResponse(sp *StreamPacket) {
	switch sp.Message.Kind {
	case streamData:
		c.mu.Lock()
		ch, ok := c.streams[sp.Number]
		c.mu.Unlock()
		if !ok {
			log.Warn().Uint32("number", sp.Number).Msg("muxrpc: data for unknown stream")
			return
		}
		ch <- StreamResult{Body: sp.Message.Data}
	case streamError:
		c.mu.Lock()
		ch, ok := c.streams[sp.Number]
		if ok {
			delete(c.streams, sp.Number)
		}
		c.mu.Unlock()
		if !ok {
			log.Warn().Uint32("number", sp.Number).Msg("muxrpc: error for unknown stream")
			return
		}
		ch <- StreamResult{Err: sp.Message.Err}
		close(ch)
	case streamEnd:
		c.mu.Lock()
		ch, ok := c.streams[sp.Number]
		if ok {
			delete(c.streams, sp.Number)
		}
		c.mu.Unlock()
		if !ok {
			log.Warn().Uint32("number", sp.Number).Msg("muxrpc: end for unknown stream")
			return
		}
		close(ch)
	}
}
