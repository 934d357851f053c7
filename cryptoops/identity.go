package cryptoops

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
)

// Identity is a long-lived Ed25519 keypair naming a peer. It is also
// usable for Curve25519 key agreement via BoxPublicKey/BoxSecretKey.
type Identity struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewIdentityFromPrivateKey wraps an existing Ed25519 private key.
func NewIdentityFromPrivateKey(privateKey ed25519.PrivateKey) (*Identity, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("cryptoops: invalid private key length")
	}
	return &Identity{
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
	}, nil
}

// NewIdentity generates a fresh Ed25519 identity keypair.
func NewIdentity() (*Identity, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewIdentityFromPrivateKey(privateKey)
}

func (id *Identity) PublicKey() ed25519.PublicKey  { return id.publicKey }
func (id *Identity) PrivateKey() ed25519.PrivateKey { return id.privateKey }

func (id *Identity) Sign(data []byte) []byte {
	return Sign(id.privateKey, data)
}

func (id *Identity) Verify(data, sig []byte) bool {
	return Verify(id.publicKey, data, sig)
}

// BoxSecretKey is this identity's secret key converted to Curve25519,
// used during the handshake for the aB/Ab Diffie-Hellman terms.
func (id *Identity) BoxSecretKey() []byte {
	return SignToBoxSecret(id.privateKey)
}

// BoxPublicKey is the Curve25519 public key corresponding to
// BoxSecretKey.
func (id *Identity) BoxPublicKey() ([]byte, error) {
	return SignToBoxPublic(id.publicKey)
}

// SessionKeyPair is an ephemeral Curve25519 keypair used for exactly
// one handshake and discarded afterward.
type SessionKeyPair struct {
	PublicKey [KeySize]byte
	SecretKey [KeySize]byte
}

// NewSessionKeyPair generates a fresh ephemeral session keypair.
func NewSessionKeyPair() (*SessionKeyPair, error) {
	var sk [KeySize]byte
	if _, err := rand.Read(sk[:]); err != nil {
		return nil, err
	}
	pub, err := curveScalarBaseMult(sk[:])
	if err != nil {
		return nil, err
	}
	kp := &SessionKeyPair{SecretKey: sk}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// Wipe zeroes the ephemeral secret key. Handshake implementations call
// this once BoxStreamParams have been derived.
func (kp *SessionKeyPair) Wipe() {
	wipeMemory(kp.SecretKey[:])
}

func curveScalarBaseMult(sec []byte) ([]byte, error) {
	return sharedSecretWithBasepoint(sec)
}
