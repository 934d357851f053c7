// Package boxstream implements the framed, encrypted, authenticated
// byte channel ("box stream") produced by the handshake: a 34-byte
// boxed header (§3) followed by a ≤4096-byte boxed body, with
// per-direction nonce counters advanced in lockstep by sender and
// receiver, and a zero-header goodbye sentinel.
package boxstream

import (
	"github.com/gosuda/ssbcore/cryptoops"
	"github.com/gosuda/ssbcore/handshake"
)

const (
	// MaxPacketSize is the largest plaintext body one packet may carry.
	MaxPacketSize = 4096
	// HeaderSize is the plaintext header: u16 body length + 16-byte tag.
	HeaderSize = 18
	// BoxedHeaderSize is HeaderSize plus the secretbox authentication tag.
	BoxedHeaderSize = HeaderSize + cryptoops.TagSize
)

// goodbyeHeader is the 18 zero bytes that, once boxed, signal clean
// end-of-stream to the peer.
var goodbyeHeader = [HeaderSize]byte{}

// cipher holds one direction's symmetric key and running nonce
// counter. It is owned exclusively by either an encoder or a decoder;
// nothing else mutates the counter.
type cipher struct {
	key   [cryptoops.KeySize]byte
	nonce [cryptoops.NonceSize]byte
}

func newCipher(p handshake.CipherParams) *cipher {
	c := &cipher{key: p.Key, nonce: p.Nonce}
	return c
}

// incrementBE treats b as a big-endian unsigned integer and adds one,
// wrapping silently on overflow (Property A).
func incrementBE(b []byte) {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == 0xff {
			b[i] = 0
			continue
		}
		b[i]++
		return
	}
}

func (c *cipher) advance() {
	incrementBE(c.nonce[:])
}

// encryptPacket boxes one payload (≤ MaxPacketSize) into a boxed
// header followed by the boxed body, per §4.3 step 1-5.
func (c *cipher) encryptPacket(payload []byte) []byte {
	headerNonce := c.nonce
	bodyNonce := headerNonce
	incrementBE(bodyNonce[:])

	bodyCipher, tag := cryptoops.SealDetached(c.key[:], bodyNonce[:], payload)

	var plainHeader [HeaderSize]byte
	plainHeader[0] = byte(len(payload) >> 8)
	plainHeader[1] = byte(len(payload))
	copy(plainHeader[2:], tag)
	boxedHeader := cryptoops.Seal(c.key[:], headerNonce[:], plainHeader[:])

	c.nonce = bodyNonce
	c.advance() // counter now at b_n + 1 for the next packet

	out := make([]byte, 0, len(boxedHeader)+len(bodyCipher))
	out = append(out, boxedHeader...)
	out = append(out, bodyCipher...)
	return out
}

// encryptGoodbye boxes the zero sentinel header. The caller must not
// encrypt anything after this.
func (c *cipher) encryptGoodbye() []byte {
	return cryptoops.Seal(c.key[:], c.nonce[:], goodbyeHeader[:])
}

// decryptHeader opens a boxed header. ok=false with err=nil means the
// plaintext was the goodbye sentinel; err != nil is fatal.
func (c *cipher) decryptHeader(boxed []byte) (bodyLen uint16, tag []byte, ok bool, err error) {
	headerNonce := c.nonce
	plain, openErr := cryptoops.Open(c.key[:], headerNonce[:], boxed)
	if openErr != nil {
		return 0, nil, false, ErrUnboxHeader
	}
	c.advance()
	if isZero(plain) {
		return 0, nil, false, nil
	}
	bodyLen = uint16(plain[0])<<8 | uint16(plain[1])
	tag = append([]byte(nil), plain[2:]...)
	return bodyLen, tag, true, nil
}

// decryptBody opens a boxed body given the tag extracted from the
// preceding header.
func (c *cipher) decryptBody(tag, cipherBody []byte) ([]byte, error) {
	bodyNonce := c.nonce
	plain, err := cryptoops.OpenDetached(c.key[:], bodyNonce[:], cipherBody, tag)
	if err != nil {
		return nil, ErrUnboxBody
	}
	c.advance()
	return plain, nil
}

func isZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
