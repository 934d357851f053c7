package boxstream_test

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gosuda/ssbcore/boxstream"
	"github.com/gosuda/ssbcore/cryptoops"
	"github.com/gosuda/ssbcore/handshake"
)

func pairedParams() (a, b handshake.BoxStreamParams) {
	var k1, k2 handshake.CipherParams
	copy(k1.Key[:], cryptoops.Hash([]byte("direction 1")))
	copy(k2.Key[:], cryptoops.Hash([]byte("direction 2")))
	a = handshake.BoxStreamParams{Send: k1, Receive: k2}
	b = handshake.BoxStreamParams{Send: k2, Receive: k1}
	return a, b
}

func TestConnReadWriteRoundTrip(t *testing.T) {
	rawA, rawB := net.Pipe()
	pa, pb := pairedParams()
	connA := boxstream.NewConn(rawA, pa)
	connB := boxstream.NewConn(rawB, pb)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 64)
		n, err := connB.Read(buf)
		require.NoError(t, err)
		require.Equal(t, "hello peer", string(buf[:n]))
	}()

	_, err := connA.Write([]byte("hello peer"))
	require.NoError(t, err)
	<-done
}

func TestConnFragmentsLargeWrites(t *testing.T) {
	rawA, rawB := net.Pipe()
	pa, pb := pairedParams()
	connA := boxstream.NewConn(rawA, pa)
	connB := boxstream.NewConn(rawB, pb)

	payload := bytes.Repeat([]byte("x"), boxstream.MaxPacketSize*2+17)

	go func() {
		_, err := connA.Write(payload)
		require.NoError(t, err)
	}()

	received := make([]byte, 0, len(payload))
	buf := make([]byte, 4096)
	for len(received) < len(payload) {
		n, err := connB.Read(buf)
		require.NoError(t, err)
		received = append(received, buf[:n]...)
	}
	require.Equal(t, payload, received)
}

func TestConnCloseSendsGoodbye(t *testing.T) {
	rawA, rawB := net.Pipe()
	pa, pb := pairedParams()
	connA := boxstream.NewConn(rawA, pa)
	connB := boxstream.NewConn(rawB, pb)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, connA.Close())
	}()

	buf := make([]byte, 16)
	_, err := connB.Read(buf)
	require.ErrorIs(t, err, io.EOF)
	<-done
}

func TestConnTruncatedStreamIsUnexpectedEOF(t *testing.T) {
	rawA, rawB := net.Pipe()
	pa, pb := pairedParams()
	connA := boxstream.NewConn(rawA, pa)
	connB := boxstream.NewConn(rawB, pb)

	go func() {
		_, _ = connA.Write([]byte("partial"))
		_ = rawA.Close()
	}()

	buf := make([]byte, 16)
	_, err := connB.Read(buf)
	require.NoError(t, err)
	_, err = connB.Read(buf)
	require.Error(t, err)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
