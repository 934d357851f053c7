package handshake

import "github.com/gosuda/ssbcore/cryptoops"

// CipherParams is the symmetric key and starting nonce counter for one
// direction of a box stream.
type CipherParams struct {
	Key   [cryptoops.KeySize]byte
	Nonce [cryptoops.NonceSize]byte
}

// BoxStreamParams is produced by a completed handshake and consumed by
// the box-stream cipher. Send and Receive are symmetric across peers:
// client.Send == server.Receive and client.Receive == server.Send.
type BoxStreamParams struct {
	Send    CipherParams
	Receive CipherParams
}

// deriveCipherParams computes dir_key = hash(hash(K) || R_pk) and
// dir_nonce = first 24 bytes of hmac_N(R_sess_pk) for one direction.
func deriveCipherParams(networkID, k, remoteIdentityPK, remoteSessionPK []byte) CipherParams {
	dirKey := cryptoops.Hash(cryptoops.Hash(k), remoteIdentityPK)
	dirNonce := cryptoops.Auth(networkID, remoteSessionPK)

	var params CipherParams
	copy(params.Key[:], dirKey)
	copy(params.Nonce[:], dirNonce[:cryptoops.NonceSize])
	return params
}
