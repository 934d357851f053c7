package boxstream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gosuda/ssbcore/cryptoops"
	"github.com/gosuda/ssbcore/handshake"
)

func testParams() handshake.CipherParams {
	var p handshake.CipherParams
	copy(p.Key[:], cryptoops.Hash([]byte("cipher test key")))
	return p
}

func TestIncrementBEWrapsSilently(t *testing.T) {
	b := []byte{0xff, 0xff, 0xff}
	incrementBE(b)
	require.Equal(t, []byte{0, 0, 0}, b)

	b2 := []byte{0x00, 0x00, 0xfe}
	incrementBE(b2)
	require.Equal(t, []byte{0x00, 0x00, 0xff}, b2)
}

func TestEncryptDecryptPacketRoundTrip(t *testing.T) {
	params := testParams()
	enc := newCipher(params)
	dec := newCipher(params)

	payload := []byte("hello box stream")
	wire := enc.encryptPacket(payload)

	bodyLen, tag, ok, err := dec.decryptHeader(wire[:BoxedHeaderSize])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint16(len(payload)), bodyLen)

	plain, err := dec.decryptBody(tag, wire[BoxedHeaderSize:])
	require.NoError(t, err)
	require.Equal(t, payload, plain)
}

func TestEncryptDecryptMultiplePacketsAdvanceNonceInLockstep(t *testing.T) {
	params := testParams()
	enc := newCipher(params)
	dec := newCipher(params)

	for i := 0; i < 5; i++ {
		payload := []byte{byte(i), byte(i + 1), byte(i + 2)}
		wire := enc.encryptPacket(payload)

		bodyLen, tag, ok, err := dec.decryptHeader(wire[:BoxedHeaderSize])
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, len(payload), bodyLen)

		plain, err := dec.decryptBody(tag, wire[BoxedHeaderSize:])
		require.NoError(t, err)
		require.Equal(t, payload, plain)
	}
	require.Equal(t, enc.nonce, dec.nonce)
}

func TestDecryptHeaderObservesGoodbye(t *testing.T) {
	params := testParams()
	enc := newCipher(params)
	dec := newCipher(params)

	goodbye := enc.encryptGoodbye()
	_, _, ok, err := dec.decryptHeader(goodbye)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecryptHeaderRejectsTamperedCiphertext(t *testing.T) {
	params := testParams()
	enc := newCipher(params)
	dec := newCipher(params)

	wire := enc.encryptPacket([]byte("payload"))
	wire[0] ^= 0xff

	_, _, _, err := dec.decryptHeader(wire[:BoxedHeaderSize])
	require.ErrorIs(t, err, ErrUnboxHeader)
}
