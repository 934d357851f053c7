package muxrpc

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEndpointAsyncEcho(t *testing.T) {
	serverConn, clientConn := net.Pipe()

	reg := NewRegistry()
	reg.AddAsync([]string{"echo"}, func(args []json.RawMessage) AsyncResult {
		var s string
		_ = json.Unmarshal(args[0], &s)
		return OkResult(StringBody(s))
	})

	server := New(serverConn, reg)
	client := New(clientConn, NewRegistry())
	defer server.Close()
	defer client.Close()

	arg, _ := json.Marshal("ping")
	resp := client.Client.SendAsync([]string{"echo"}, []json.RawMessage{arg})
	require.Nil(t, resp.Error)
	require.Equal(t, "ping", resp.Str)
}

func TestEndpointAsyncErrorPropagates(t *testing.T) {
	serverConn, clientConn := net.Pipe()

	reg := NewRegistry()
	reg.AddAsync([]string{"fail"}, func(args []json.RawMessage) AsyncResult {
		return ErrResult(RPCError{Name: "BOOM", Message: "nope"})
	})

	server := New(serverConn, reg)
	client := New(clientConn, NewRegistry())
	defer server.Close()
	defer client.Close()

	resp := client.Client.SendAsync([]string{"fail"}, []json.RawMessage{})
	require.NotNil(t, resp.Error)
	require.Equal(t, "BOOM", resp.Error.Name)
}

func TestEndpointMethodNotFound(t *testing.T) {
	serverConn, clientConn := net.Pipe()

	server := New(serverConn, NewRegistry())
	client := New(clientConn, NewRegistry())
	defer server.Close()
	defer client.Close()

	resp := client.Client.SendAsync([]string{"nope"}, []json.RawMessage{})
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrNameMethodNotFound, resp.Error.Name)
}

func TestEndpointSourceStream(t *testing.T) {
	serverConn, clientConn := net.Pipe()

	reg := NewRegistry()
	reg.AddSource([]string{"count"}, func(args []json.RawMessage) <-chan StreamResult {
		ch := make(chan StreamResult, 2)
		ch <- StreamResult{Body: StringBody("one")}
		ch <- StreamResult{Body: StringBody("two")}
		close(ch)
		return ch
	})

	server := New(serverConn, reg)
	client := New(clientConn, NewRegistry())
	defer server.Close()
	defer client.Close()

	source, _ := client.Client.StartSource([]string{"count"}, nil)

	var got []string
	for item := range withTimeout(t, source.Items, 2) {
		require.Nil(t, item.Err)
		got = append(got, item.Body.Str)
	}
	require.Equal(t, []string{"one", "two"}, got)
}

func TestEndpointSinkStream(t *testing.T) {
	serverConn, clientConn := net.Pipe()

	receivedAll := make(chan []string, 1)
	reg := NewRegistry()
	reg.AddSink([]string{"collect"}, func(args []json.RawMessage, messages <-chan StreamMessage) *RPCError {
		var got []string
		for msg := range messages {
			if msg.Kind == streamData {
				got = append(got, msg.Data.Str)
			}
		}
		receivedAll <- got
		return nil
	})

	server := New(serverConn, reg)
	client := New(clientConn, NewRegistry())
	defer server.Close()
	defer client.Close()

	_, sink := client.Client.StartSink([]string{"collect"}, nil)
	sink.Send(StringBody("a"))
	sink.Send(StringBody("b"))
	sink.Close()

	select {
	case got := <-receivedAll:
		require.Equal(t, []string{"a", "b"}, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sink handler to finish")
	}
}

func TestEndpointDuplexEcho(t *testing.T) {
	serverConn, clientConn := net.Pipe()

	reg := NewRegistry()
	reg.AddDuplex([]string{"echoback"}, func(args []json.RawMessage) (<-chan StreamResult, chan<- StreamMessage) {
		out := make(chan StreamResult, 4)
		in := make(chan StreamMessage, 4)
		go func() {
			defer close(out)
			for msg := range in {
				if msg.Kind == streamData {
					out <- StreamResult{Body: msg.Data}
				}
			}
		}()
		return out, in
	})

	server := New(serverConn, reg)
	client := New(clientConn, NewRegistry())
	defer server.Close()
	defer client.Close()

	source, sink := client.Client.StartDuplex([]string{"echoback"}, nil)
	sink.Send(StringBody("hi"))

	select {
	case item := <-source.Items:
		require.Nil(t, item.Err)
		require.Equal(t, "hi", item.Body.Str)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for duplex echo")
	}
	sink.Close()
}

func withTimeout(t *testing.T, in <-chan StreamResult, want int) <-chan StreamResult {
	t.Helper()
	out := make(chan StreamResult, want)
	go func() {
		defer close(out)
		for i := 0; i < want; i++ {
			select {
			case item, ok := <-in:
				if !ok {
					return
				}
				out <- item
			case <-time.After(time.Second):
				return
			}
		}
	}()
	return out
}
