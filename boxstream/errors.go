package boxstream

import "errors"

// Error taxonomy for the box-stream cipher (§4.3, §7).
var (
	// ErrUnboxHeader is fatal: the boxed header failed to authenticate.
	ErrUnboxHeader = errors.New("boxstream: failed to decrypt and authenticate packet header")
	// ErrUnboxBody is fatal: the boxed body failed to authenticate.
	ErrUnboxBody = errors.New("boxstream: failed to decrypt and authenticate packet body")
	// ErrExceededMaxPacketSize is fatal: a decoded header claimed a body
	// larger than MaxPacketSize.
	ErrExceededMaxPacketSize = errors.New("boxstream: packet body exceeds maximum size")
)
