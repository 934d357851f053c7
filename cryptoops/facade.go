// Package cryptoops wraps the primitives the rest of this module
// builds on: Curve25519 Diffie-Hellman, Ed25519 signing, SHA-256,
// keyed HMAC-SHA-512/256 ("auth"), and XSalsa20-Poly1305 ("secretbox").
// It also carries the Ed25519<->Curve25519 key conversions the
// handshake needs to reuse one identity keypair for both signing and
// key agreement.
package cryptoops

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"errors"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrAuthFailed is returned by Open/OpenDetached on any decryption
// failure. It deliberately does not distinguish a bad key from a
// corrupted tag.
var ErrAuthFailed = errors.New("cryptoops: authentication failed")

const (
	KeySize   = 32
	NonceSize = 24
	TagSize   = secretbox.Overhead
)

// Hash is SHA-256.
func Hash(data ...[]byte) []byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Auth computes HMAC-SHA-512/256 over data keyed by key, truncated (by
// the hash itself) to 32 bytes. This is the "auth" primitive used to
// authenticate the handshake hello messages.
func Auth(key, data []byte) []byte {
	h := hmac.New(sha512.New512_256, key)
	h.Write(data)
	return h.Sum(nil)
}

// AuthVerify reports whether tag is the correct Auth(key, data).
func AuthVerify(key, data, tag []byte) bool {
	return hmac.Equal(Auth(key, data), tag)
}

func asKey(key []byte) *[KeySize]byte {
	var k [KeySize]byte
	copy(k[:], key)
	return &k
}

func asNonce(nonce []byte) *[NonceSize]byte {
	var n [NonceSize]byte
	copy(n[:], nonce)
	return &n
}

// Seal encrypts and authenticates data under (key, nonce), returning
// tag‖ciphertext.
func Seal(key, nonce, data []byte) []byte {
	return secretbox.Seal(nil, data, asNonce(nonce), asKey(key))
}

// Open decrypts a Seal-produced blob. It returns ErrAuthFailed on any
// failure, never identifying the cause.
func Open(key, nonce, boxed []byte) ([]byte, error) {
	out, ok := secretbox.Open(nil, boxed, asNonce(nonce), asKey(key))
	if !ok {
		return nil, ErrAuthFailed
	}
	return out, nil
}

// SealDetached encrypts data under (key, nonce) and returns the
// ciphertext and its 16-byte authentication tag separately, for
// callers (the box-stream cipher) that need to place the tag inside a
// fixed-size header distinct from the body.
func SealDetached(key, nonce, data []byte) (ciphertext, tag []byte) {
	combined := secretbox.Seal(nil, data, asNonce(nonce), asKey(key))
	return combined[TagSize:], combined[:TagSize]
}

// OpenDetached is the inverse of SealDetached.
func OpenDetached(key, nonce, ciphertext, tag []byte) ([]byte, error) {
	combined := make([]byte, 0, len(tag)+len(ciphertext))
	combined = append(combined, tag...)
	combined = append(combined, ciphertext...)
	out, ok := secretbox.Open(nil, combined, asNonce(nonce), asKey(key))
	if !ok {
		return nil, ErrAuthFailed
	}
	return out, nil
}

// SharedSecret performs a Curve25519 scalar multiplication:
// scalarmult(sec, pub).
func SharedSecret(sec, pub []byte) ([]byte, error) {
	return curve25519.X25519(sec, pub)
}

// sharedSecretWithBasepoint computes the Curve25519 public key
// corresponding to secret key sec.
func sharedSecretWithBasepoint(sec []byte) ([]byte, error) {
	return curve25519.X25519(sec, curve25519.Basepoint)
}

// Sign produces an Ed25519 signature.
func Sign(sk ed25519.PrivateKey, data []byte) []byte {
	return ed25519.Sign(sk, data)
}

// Verify checks an Ed25519 signature.
func Verify(pk ed25519.PublicKey, data, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pk, data, sig)
}

// SignToBoxSecret converts an Ed25519 private key to its corresponding
// Curve25519 secret key via SHA-512(seed) with RFC 7748 clamping.
func SignToBoxSecret(sk ed25519.PrivateKey) []byte {
	h := sha512.Sum512(sk.Seed())
	defer wipeMemory(h[:])

	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	out := make([]byte, KeySize)
	copy(out, h[:KeySize])
	return out
}

// SignToBoxPublic converts an Ed25519 public key to its corresponding
// Curve25519 public key via the birational map between the twisted
// Edwards curve and its Montgomery form.
func SignToBoxPublic(pk ed25519.PublicKey) ([]byte, error) {
	p, err := new(edwards25519.Point).SetBytes(pk)
	if err != nil {
		return nil, errors.New("cryptoops: invalid ed25519 public key")
	}
	return p.BytesMontgomery(), nil
}
