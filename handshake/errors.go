package handshake

import "errors"

// Error taxonomy for the four-message mutual-authentication handshake.
var (
	ErrReadFailed                      = errors.New("handshake: read failed")
	ErrWriteFailed                     = errors.New("handshake: write failed")
	ErrHelloMessageInvalid             = errors.New("handshake: hello message invalid")
	ErrAuthenticateMessageDecryptFailed = errors.New("handshake: authenticate message decrypt failed")
	ErrAuthenticateSignatureInvalid    = errors.New("handshake: authenticate signature invalid")
	ErrAcceptConnectionClosed          = errors.New("handshake: connection closed before accept message")
	ErrAcceptMessageDecryptFailed      = errors.New("handshake: accept message decrypt failed")
	ErrAcceptSignatureInvalid          = errors.New("handshake: accept signature invalid")
)
