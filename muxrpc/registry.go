package muxrpc

import (
	"encoding/json"
	"strings"
)

// AsyncResult is what an async handler resolves to: either a
// successful Body, or an RPCError (§4.1 AsyncResponse in the
// service-facing direction, §4.9 add_async).
type AsyncResult struct {
	Body Body
	Err  *RPCError
}

func OkResult(body Body) AsyncResult   { return AsyncResult{Body: body} }
func ErrResult(err RPCError) AsyncResult { return AsyncResult{Err: &err} }

// StreamResult is one item an outbound stream handler yields: a data
// Body, or (as the final item before the channel is closed) a
// terminal RPCError. A handler that finishes cleanly just closes its
// channel without ever sending an Err item.
type StreamResult struct {
	Body Body
	Err  *RPCError
}

// AsyncHandler answers a single request/response call.
type AsyncHandler func(args []json.RawMessage) AsyncResult

// SourceHandler streams zero or more items to the caller. The
// returned channel is read until closed; the dispatcher/client
// translates that into a Stream End (or Error, for a final Err item).
type SourceHandler func(args []json.RawMessage) <-chan StreamResult

// SinkHandler consumes inbound StreamMessages (Data/End/Error, as
// forwarded by the dispatcher) until the channel closes, then reports
// whether it finished cleanly (nil) or with an error.
type SinkHandler func(args []json.RawMessage, messages <-chan StreamMessage) *RPCError

// DuplexHandler passes both directions through unchanged: it returns
// an outbound item channel, which it closes when it is done producing,
// and an inbound message channel it reads from. The dispatcher closes
// the inbound channel after forwarding the peer's End or Error.
type DuplexHandler func(args []json.RawMessage) (<-chan StreamResult, chan<- StreamMessage)

type handlerKind int

const (
	kindSource handlerKind = iota
	kindSink
	kindDuplex
)

type streamEntry struct {
	kind   handlerKind
	source SourceHandler
	sink   SinkHandler
	duplex DuplexHandler
}

// Registry is a method-path -> handler table (§3 "Service registry").
// It is mutated only during setup; Dispatcher only ever reads it.
type Registry struct {
	async  map[string]AsyncHandler
	stream map[string]streamEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{async: map[string]AsyncHandler{}, stream: map[string]streamEntry{}}
}

func pathKey(path []string) string { return strings.Join(path, "\x1f") }

// AddAsync registers a single request/response handler under path.
func (r *Registry) AddAsync(path []string, h AsyncHandler) {
	r.async[pathKey(path)] = h
}

// AddSource registers a server-to-client-only stream handler.
func (r *Registry) AddSource(path []string, h SourceHandler) {
	r.stream[pathKey(path)] = streamEntry{kind: kindSource, source: h}
}

// AddSink registers a client-to-server-only stream handler.
func (r *Registry) AddSink(path []string, h SinkHandler) {
	r.stream[pathKey(path)] = streamEntry{kind: kindSink, sink: h}
}

// AddDuplex registers a bidirectional stream handler.
func (r *Registry) AddDuplex(path []string, h DuplexHandler) {
	r.stream[pathKey(path)] = streamEntry{kind: kindDuplex, duplex: h}
}

// AddService nests sub's handlers under [group, ...].
func (r *Registry) AddService(group string, sub *Registry) {
	for k, h := range sub.async {
		r.async[pathKey(append([]string{group}, splitKey(k)...))] = h
	}
	for k, e := range sub.stream {
		r.stream[pathKey(append([]string{group}, splitKey(k)...))] = e
	}
}

func splitKey(k string) []string { return strings.Split(k, "\x1f") }

func (r *Registry) lookupAsync(method []string) (AsyncHandler, bool) {
	h, ok := r.async[pathKey(method)]
	return h, ok
}

func (r *Registry) lookupStream(method []string) (streamEntry, bool) {
	e, ok := r.stream[pathKey(method)]
	return e, ok
}
