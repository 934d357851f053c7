package handshake_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gosuda/ssbcore/cryptoops"
	"github.com/gosuda/ssbcore/handshake"
)

var testNetworkID = [32]byte{0x01, 0x02, 0x03, 0x04}

func TestHandshakeSymmetry(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	clientID, err := cryptoops.NewIdentity()
	require.NoError(t, err)
	serverID, err := cryptoops.NewIdentity()
	require.NoError(t, err)

	type clientResult struct {
		params *handshake.BoxStreamParams
		err    error
	}
	clientDone := make(chan clientResult, 1)
	go func() {
		params, err := handshake.ClientHandshake(clientConn, testNetworkID, clientID, serverID.PublicKey())
		clientDone <- clientResult{params, err}
	}()

	serverParams, clientPK, err := handshake.ServerHandshake(serverConn, testNetworkID, serverID)
	require.NoError(t, err)
	require.Equal(t, []byte(clientID.PublicKey()), []byte(clientPK))

	result := <-clientDone
	require.NoError(t, result.err)

	// Property G: client.Send == server.Receive and client.Receive ==
	// server.Send, as 32-byte keys and 24-byte nonces.
	require.Equal(t, result.params.Send.Key, serverParams.Receive.Key)
	require.Equal(t, result.params.Send.Nonce, serverParams.Receive.Nonce)
	require.Equal(t, result.params.Receive.Key, serverParams.Send.Key)
	require.Equal(t, result.params.Receive.Nonce, serverParams.Send.Nonce)
}

func TestHandshakeRejectsWrongServerIdentity(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	clientID, err := cryptoops.NewIdentity()
	require.NoError(t, err)
	serverID, err := cryptoops.NewIdentity()
	require.NoError(t, err)
	impostorID, err := cryptoops.NewIdentity()
	require.NoError(t, err)

	type clientResult struct {
		err error
	}
	clientDone := make(chan clientResult, 1)
	go func() {
		// The client believes it is talking to impostorID, not serverID.
		_, err := handshake.ClientHandshake(clientConn, testNetworkID, clientID, impostorID.PublicKey())
		clientDone <- clientResult{err}
	}()

	_, _, serverErr := handshake.ServerHandshake(serverConn, testNetworkID, serverID)
	require.ErrorIs(t, serverErr, handshake.ErrAuthenticateMessageDecryptFailed)
	require.NoError(t, serverConn.Close())

	result := <-clientDone
	require.ErrorIs(t, result.err, handshake.ErrAcceptConnectionClosed)
}

func TestHandshakeRejectsBadHelloMAC(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	serverID, err := cryptoops.NewIdentity()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		// Write a hello with a valid-looking 32-byte session key but a
		// garbage HMAC tag under a different network id.
		wrongNetwork := [32]byte{0xff}
		session, err := cryptoops.NewSessionKeyPair()
		require.NoError(t, err)
		tag := cryptoops.Auth(wrongNetwork[:], session.PublicKey[:])
		_, werr := clientConn.Write(append(tag, session.PublicKey[:]...))
		done <- werr
	}()

	_, _, err = handshake.ServerHandshake(serverConn, testNetworkID, serverID)
	require.ErrorIs(t, err, handshake.ErrHelloMessageInvalid)
	require.NoError(t, <-done)
}
