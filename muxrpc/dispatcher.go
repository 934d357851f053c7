package muxrpc

import (
	"encoding/json"
	"sync"
)

// Dispatcher is the server half of an Endpoint: it holds the
// per-request-number stream state and routes incoming Requests to
// the Registry (§4.9). It is driven by a single goroutine (the
// endpoint's reader); the streams map is guarded by mu because each
// stream's forwardOutbound goroutine also deletes its entry. Async
// handler results race back in on their own goroutines and only ever
// write to responseOut.
type Dispatcher struct {
	registry   *Registry
	responseOut chan<- []byte

	mu      sync.Mutex
	streams map[uint32]chan<- StreamMessage
}

// NewDispatcher builds a dispatcher over registry (nil or empty for
// "every request answered METHOD_NOT_FOUND", per client-only mode).
func NewDispatcher(registry *Registry, responseOut chan<- []byte) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{registry: registry, responseOut: responseOut, streams: map[uint32]chan<- StreamMessage{}}
}

// HandleRequest routes one incoming Request (§4.9 "Per-request
// handling"). It never blocks on handler work: async calls and
// stream forwarding run on their own goroutines.
func (d *Dispatcher) HandleRequest(req *Request) {
	switch {
	case req.Async != nil:
		d.handleAsync(req.Async)
	case req.Stream != nil:
		d.handleStream(req.Stream)
	}
}

func (d *Dispatcher) handleAsync(r *AsyncRequest) {
	handler, ok := d.registry.lookupAsync(r.Method)
	send := func(result AsyncResult) {
		var out []byte
		if result.Err != nil {
			out = BuildPacket(Packet{Response: &Response{AsyncErr: &AsyncErrResponse{Number: r.Number, Err: *result.Err}}})
		} else {
			out = BuildPacket(Packet{Response: &Response{AsyncOk: &AsyncOkResponse{Number: r.Number, Body: result.Body}}})
		}
		d.responseOut <- out
	}
	if !ok {
		send(ErrResult(*methodNotFoundError(r.Method)))
		return
	}
	go func() { send(handler(r.Args)) }()
}

func (d *Dispatcher) handleStream(sp *StreamPacket) {
	d.mu.Lock()
	in, known := d.streams[sp.Number]
	d.mu.Unlock()

	if known {
		if sp.Message.IsEnd() {
			d.mu.Lock()
			delete(d.streams, sp.Number)
			d.mu.Unlock()
			in <- sp.Message
			close(in)
		} else {
			in <- sp.Message
		}
		return
	}

	if sp.Message.IsEnd() {
		// End/Error for an id that was never opened (§4.9, §8
		// scenario 6): respond with STREAM_DOES_NOT_EXIST. Earlier
		// drafts of this protocol ignored this case; this
		// implementation follows the later, more debuggable draft.
		d.responseOut <- buildStreamPacket(sp.Number, true, ErrorMessage(*streamDoesNotExistError(sp.Number)))
		return
	}

	// First Data packet for a new stream id: it must carry the JSON
	// stream-request body.
	var streamReq StreamRequest
	if err := sp.Message.Data.DecodeJSON(&streamReq); err != nil {
		d.responseOut <- buildStreamPacket(sp.Number, true, ErrorMessage(*argumentError(err)))
		return
	}

	entry, ok := d.registry.lookupStream(streamReq.Name)
	if !ok {
		d.responseOut <- buildStreamPacket(sp.Number, true, ErrorMessage(*methodNotFoundError(streamReq.Name)))
		return
	}

	out, inbound := d.startHandler(entry, streamReq.Args)
	d.mu.Lock()
	d.streams[sp.Number] = inbound
	d.mu.Unlock()
	go d.forwardOutbound(sp.Number, out)
}

func (d *Dispatcher) startHandler(entry streamEntry, args []json.RawMessage) (<-chan StreamResult, chan<- StreamMessage) {
	switch entry.kind {
	case kindSource:
		return sourceEndpoint(entry.source(args))
	case kindSink:
		return sinkEndpoint(args, entry.sink)
	default: // kindDuplex
		return entry.duplex(args)
	}
}

// forwardOutbound streams a handler's outbound items to the peer as
// Response::Stream packets until the channel closes, then emits
// exactly one terminal End (or nothing further, if the last item
// already was an Error) per §4.9 "Handler-source termination".
func (d *Dispatcher) forwardOutbound(number uint32, out <-chan StreamResult) {
	defer func() {
		d.mu.Lock()
		delete(d.streams, number)
		d.mu.Unlock()
	}()

	erroredOut := false
	for item := range out {
		if item.Err != nil {
			erroredOut = true
			d.responseOut <- buildStreamPacket(number, true, ErrorMessage(*item.Err))
			continue
		}
		d.responseOut <- buildStreamPacket(number, true, DataMessage(item.Body))
	}
	if !erroredOut {
		d.responseOut <- buildStreamPacket(number, true, EndMessage())
	}
}

// sourceEndpoint adapts a server/source handler's outbound-only
// channel to the unified (source, sink) shape (§4.9): an inbound Data
// packet on a pure source is a protocol error.
func sourceEndpoint(raw <-chan StreamResult) (<-chan StreamResult, chan<- StreamMessage) {
	out := make(chan StreamResult, 1)
	inCh := make(chan StreamMessage, 8)
	go func() {
		defer close(out)
		in := (<-chan StreamMessage)(inCh)
		for {
			select {
			case item, ok := <-raw:
				if !ok {
					return
				}
				out <- item
				if item.Err != nil {
					return
				}
			case msg, ok := <-in:
				if !ok {
					in = nil
					continue
				}
				if msg.Kind == streamData {
					out <- StreamResult{Err: sentDataToSourceError()}
					return
				}
			}
		}
	}()
	return out, inCh
}

// sinkEndpoint runs a sink handler to completion on its own goroutine.
// A returned error becomes the sole outbound item; a clean finish
// closes the outbound channel with no item, which forwardOutbound
// turns into End (§4.9 "Handler-sink termination").
func sinkEndpoint(args []json.RawMessage, h SinkHandler) (<-chan StreamResult, chan<- StreamMessage) {
	in := make(chan StreamMessage, 64)
	out := make(chan StreamResult, 1)
	go func() {
		defer close(out)
		if err := h(args, in); err != nil {
			out <- StreamResult{Err: err}
		}
	}()
	return out, in
}
