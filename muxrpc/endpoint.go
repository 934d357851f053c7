package muxrpc

import (
	"io"
	"sync"

	"github.com/rs/zerolog/log"
)

// Endpoint wires a duplex byte transport (a box-stream Conn, or any
// ordinary io.ReadWriteCloser for tests) to a Client and a Dispatcher
// (§4.9 "Endpoint"). Outbound bytes from both the Client's requests
// and the Dispatcher's responses are serialized onto a single writer
// goroutine; inbound packets are routed by a single reader goroutine.
type Endpoint struct {
	Client     *Client
	Dispatcher *Dispatcher

	transport io.ReadWriteCloser
	outbound  chan []byte
	quit      chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.Mutex
	firstErr  error
}

// New builds a peer endpoint: registry serves incoming requests, and
// the returned Endpoint's Client can simultaneously issue its own.
// Pass an empty Registry (NewRegistry()) for a client-only endpoint
// that answers every incoming request with METHOD_NOT_FOUND.
func New(transport io.ReadWriteCloser, registry *Registry) *Endpoint {
	outbound := make(chan []byte, 64)
	e := &Endpoint{
		transport: transport,
		outbound:  outbound,
		quit:      make(chan struct{}),
	}
	e.Client = NewClient(outbound)
	e.Dispatcher = NewDispatcher(registry, outbound)

	e.wg.Add(2)
	go e.readLoop()
	go e.writeLoop()
	return e
}

// NewClientEndpoint builds a client-only endpoint: there is no
// registry to serve, only requests this process initiates.
func NewClientEndpoint(transport io.ReadWriteCloser) *Endpoint {
	return New(transport, NewRegistry())
}

func (e *Endpoint) recordErr(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	if e.firstErr == nil {
		e.firstErr = err
	}
	e.mu.Unlock()
}

func (e *Endpoint) readLoop() {
	defer e.wg.Done()
	pr := NewPacketReader(e.transport)
	for {
		packet, err := pr.ReadPacket()
		if err != nil {
			if err != io.EOF {
				log.Debug().Err(err).Msg("muxrpc: endpoint read loop terminating")
				e.recordErr(err)
			}
			e.shutdown()
			return
		}
		switch {
		case packet.Request != nil:
			e.Dispatcher.HandleRequest(packet.Request)
		case packet.Response != nil:
			e.Client.HandleResponse(packet.Response)
		}
	}
}

func (e *Endpoint) writeLoop() {
	defer e.wg.Done()
	for {
		select {
		case wire := <-e.outbound:
			if _, err := e.transport.Write(wire); err != nil {
				log.Debug().Err(err).Msg("muxrpc: endpoint write loop terminating")
				e.recordErr(err)
				e.shutdown()
				return
			}
		case <-e.quit:
			return
		}
	}
}

// shutdown closes the transport and signals the write loop to stop,
// exactly once. e.outbound itself is never closed: Client/Dispatcher
// goroutines racing a shutdown (a reply computed just as the remote
// hangs up) still have somewhere harmless to send, rather than
// panicking on a send to a closed channel.
func (e *Endpoint) shutdown() {
	e.closeOnce.Do(func() {
		_ = e.transport.Close()
		close(e.quit)
	})
}

// Join blocks until both the reader and writer goroutines have
// stopped (i.e. the transport closed, locally or remotely) and
// returns the first error observed, or nil on a clean goodbye.
func (e *Endpoint) Join() error {
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.firstErr
}

// Close tears the endpoint down locally (sending a goodbye first, if
// the transport is a box-stream Conn); it is equivalent to the remote
// side observing a clean end of stream.
func (e *Endpoint) Close() error {
	e.shutdown()
	return nil
}
