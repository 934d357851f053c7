// Package handshake implements the four-message mutual-authentication
// handshake: two HMAC-bound Curve25519 hello messages followed by
// signed, encrypted authenticate/accept messages, producing a pair of
// per-direction box-stream keys.
package handshake

import (
	"crypto/ed25519"
	"errors"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/ssbcore/cryptoops"
)

const (
	helloSize       = 64
	authenticateSize = 112
	acceptSize      = 80
)

// ClientHandshake runs the initiator side of the handshake over conn.
// serverIdentityPK is the long-term public key the client expects the
// server to hold; a mismatch surfaces as ErrAcceptConnectionClosed,
// mirroring the canonical "server rejected you" symptom.
func ClientHandshake(
	conn io.ReadWriter,
	networkID [32]byte,
	clientIdentity *cryptoops.Identity,
	serverIdentityPK ed25519.PublicKey,
) (*BoxStreamParams, error) {
	session, err := cryptoops.NewSessionKeyPair()
	if err != nil {
		return nil, err
	}
	defer session.Wipe()

	// Message 1: client hello.
	if err := writeHello(conn, networkID[:], session.PublicKey[:]); err != nil {
		return nil, errors.Join(ErrWriteFailed, err)
	}

	// Message 2: server hello.
	serverSessionPK, err := readHello(conn, networkID[:])
	if err != nil {
		return nil, err
	}

	ab, err := cryptoops.SharedSecret(session.SecretKey[:], serverSessionPK)
	if err != nil {
		return nil, err
	}

	serverIdentityBoxPK, err := cryptoops.SignToBoxPublic(serverIdentityPK)
	if err != nil {
		return nil, err
	}
	aB, err := cryptoops.SharedSecret(session.SecretKey[:], serverIdentityBoxPK)
	if err != nil {
		return nil, err
	}

	// Message 3: client authenticate.
	authKey := cryptoops.Hash(networkID[:], ab, aB)
	sigA := cryptoops.Sign(clientIdentity.PrivateKey(), concat(networkID[:], serverIdentityPK, cryptoops.Hash(ab)))
	authPlain := concat(sigA, clientIdentity.PublicKey())
	authBoxed := cryptoops.Seal(authKey, make([]byte, cryptoops.NonceSize), authPlain)
	if err := writeExact(conn, authBoxed); err != nil {
		return nil, errors.Join(ErrWriteFailed, err)
	}

	clientBoxSK := clientIdentity.BoxSecretKey()
	Ab, err := cryptoops.SharedSecret(clientBoxSK, serverSessionPK)
	if err != nil {
		return nil, err
	}

	// Message 4: server accept.
	acceptBoxed := make([]byte, acceptSize)
	if _, err := io.ReadFull(conn, acceptBoxed); err != nil {
		log.Debug().Err(err).Msg("[handshake] accept message not received")
		return nil, errors.Join(ErrAcceptConnectionClosed, err)
	}
	acceptKey := cryptoops.Hash(networkID[:], ab, aB, Ab)
	acceptPlain, err := cryptoops.Open(acceptKey, make([]byte, cryptoops.NonceSize), acceptBoxed)
	if err != nil {
		return nil, ErrAcceptMessageDecryptFailed
	}
	expected := concat(networkID[:], sigA, clientIdentity.PublicKey(), cryptoops.Hash(ab))
	if !cryptoops.Verify(serverIdentityPK, expected, acceptPlain) {
		return nil, ErrAcceptSignatureInvalid
	}

	k := acceptKey
	return &BoxStreamParams{
		Send:    deriveCipherParams(networkID[:], k, serverIdentityPK, serverSessionPK),
		Receive: deriveCipherParams(networkID[:], k, clientIdentity.PublicKey(), session.PublicKey[:]),
	}, nil
}

// ServerHandshake runs the responder side of the handshake. It returns
// the negotiated BoxStreamParams and the authenticated client identity
// public key.
func ServerHandshake(
	conn io.ReadWriter,
	networkID [32]byte,
	serverIdentity *cryptoops.Identity,
) (*BoxStreamParams, ed25519.PublicKey, error) {
	session, err := cryptoops.NewSessionKeyPair()
	if err != nil {
		return nil, nil, err
	}
	defer session.Wipe()

	// Message 1: client hello.
	clientSessionPK, err := readHello(conn, networkID[:])
	if err != nil {
		return nil, nil, err
	}

	// Message 2: server hello.
	if err := writeHello(conn, networkID[:], session.PublicKey[:]); err != nil {
		return nil, nil, errors.Join(ErrWriteFailed, err)
	}

	ab, err := cryptoops.SharedSecret(session.SecretKey[:], clientSessionPK)
	if err != nil {
		return nil, nil, err
	}
	serverBoxSK := serverIdentity.BoxSecretKey()
	aB, err := cryptoops.SharedSecret(serverBoxSK, clientSessionPK)
	if err != nil {
		return nil, nil, err
	}

	// Message 3: client authenticate.
	authBoxed := make([]byte, authenticateSize)
	if _, err := io.ReadFull(conn, authBoxed); err != nil {
		return nil, nil, errors.Join(ErrReadFailed, err)
	}
	authKey := cryptoops.Hash(networkID[:], ab, aB)
	authPlain, err := cryptoops.Open(authKey, make([]byte, cryptoops.NonceSize), authBoxed)
	if err != nil {
		log.Debug().Msg("[handshake] authenticate message decrypt failed")
		return nil, nil, ErrAuthenticateMessageDecryptFailed
	}
	if len(authPlain) != ed25519.SignatureSize+ed25519.PublicKeySize {
		return nil, nil, ErrAuthenticateMessageDecryptFailed
	}
	sigA := authPlain[:ed25519.SignatureSize]
	clientIdentityPK := ed25519.PublicKey(authPlain[ed25519.SignatureSize:])

	signed := concat(networkID[:], serverIdentity.PublicKey(), cryptoops.Hash(ab))
	if !cryptoops.Verify(clientIdentityPK, signed, sigA) {
		return nil, nil, ErrAuthenticateSignatureInvalid
	}

	clientBoxPK, err := cryptoops.SignToBoxPublic(clientIdentityPK)
	if err != nil {
		return nil, nil, err
	}
	Ab, err := cryptoops.SharedSecret(session.SecretKey[:], clientBoxPK)
	if err != nil {
		return nil, nil, err
	}

	// Message 4: server accept.
	acceptKey := cryptoops.Hash(networkID[:], ab, aB, Ab)
	acceptPlain := cryptoops.Sign(serverIdentity.PrivateKey(), concat(networkID[:], sigA, clientIdentityPK, cryptoops.Hash(ab)))
	acceptBoxed := cryptoops.Seal(acceptKey, make([]byte, cryptoops.NonceSize), acceptPlain)
	if err := writeExact(conn, acceptBoxed); err != nil {
		return nil, nil, errors.Join(ErrWriteFailed, err)
	}

	k := acceptKey
	params := &BoxStreamParams{
		Send:    deriveCipherParams(networkID[:], k, clientIdentityPK, clientSessionPK),
		Receive: deriveCipherParams(networkID[:], k, serverIdentity.PublicKey(), session.PublicKey[:]),
	}
	return params, clientIdentityPK, nil
}

func writeHello(conn io.Writer, networkID, sessionPK []byte) error {
	tag := cryptoops.Auth(networkID, sessionPK)
	return writeExact(conn, concat(tag, sessionPK))
}

func readHello(conn io.Reader, networkID []byte) ([]byte, error) {
	buf := make([]byte, helloSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	tag, sessionPK := buf[:32], buf[32:]
	if !cryptoops.AuthVerify(networkID, sessionPK, tag) {
		return nil, ErrHelloMessageInvalid
	}
	return sessionPK, nil
}

func writeExact(conn io.Writer, data []byte) error {
	_, err := conn.Write(data)
	return err
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
