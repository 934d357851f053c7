package muxrpc

import "fmt"

// RPCError is the {name, message} pair carried by AsyncErr responses
// and by Error stream messages (§3). It also backs the dispatcher's
// own protocol errors (METHOD_NOT_FOUND, ArgumentError,
// SENT_DATA_TO_SOURCE, STREAM_DOES_NOT_EXIST — §7).
type RPCError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// InvalidBodyTypeError is returned when the low 2 flag bits encode the
// reserved value 3.
type InvalidBodyTypeError struct{ Value byte }

func (e *InvalidBodyTypeError) Error() string {
	return fmt.Sprintf("muxrpc: invalid body type %d", e.Value)
}

// RequestNumberZeroError is returned by ParseHeader for any non-goodbye
// header whose request number decodes to zero.
type RequestNumberZeroError struct{}

func (RequestNumberZeroError) Error() string { return "muxrpc: request number is zero" }

// RequestBodyError wraps a failure to decode an async request's
// {name, args} JSON body.
type RequestBodyError struct {
	Body string
	Err  error
}

func (e *RequestBodyError) Error() string {
	return fmt.Sprintf("muxrpc: failed to decode request body %q: %v", e.Body, e.Err)
}
func (e *RequestBodyError) Unwrap() error { return e.Err }

// ErrorResponseBodyError wraps a failure to decode an {name, message}
// error body (AsyncErr or a Stream Error message).
type ErrorResponseBodyError struct {
	Body string
	Err  error
}

func (e *ErrorResponseBodyError) Error() string {
	return fmt.Sprintf("muxrpc: failed to decode error body %q: %v", e.Body, e.Err)
}
func (e *ErrorResponseBodyError) Unwrap() error { return e.Err }

// StringPayloadEncodingError is returned when a BodyType=Utf8String
// payload is not valid UTF-8.
type StringPayloadEncodingError struct{ Err error }

func (e *StringPayloadEncodingError) Error() string {
	return fmt.Sprintf("muxrpc: invalid string payload: %v", e.Err)
}
func (e *StringPayloadEncodingError) Unwrap() error { return e.Err }

// UnexpectedBodyTypeError is returned when a body of one type is asked
// to decode as another (e.g. a Blob body where JSON was required).
type UnexpectedBodyTypeError struct {
	Actual, Expected BodyType
}

func (e *UnexpectedBodyTypeError) Error() string {
	return fmt.Sprintf("muxrpc: unexpected body type %v, expected %v", e.Actual, e.Expected)
}

// UnexpectedEndOfStreamError is returned by the packet stream reader
// when the underlying transport reaches EOF in the middle of a
// packet, as opposed to cleanly between packets. It also wraps any
// other read error from the transport.
type UnexpectedEndOfStreamError struct{ Err error }

func (e *UnexpectedEndOfStreamError) Error() string {
	return fmt.Sprintf("muxrpc: unexpected end of stream: %v", e.Err)
}
func (e *UnexpectedEndOfStreamError) Unwrap() error { return e.Err }

// Well-known protocol error names the dispatcher emits over the wire
// (§7).
const (
	ErrNameMethodNotFound    = "METHOD_NOT_FOUND"
	ErrNameArgumentError     = "ArgumentError"
	ErrNameSentDataToSource  = "SENT_DATA_TO_SOURCE"
	ErrNameStreamDoesNotExist = "STREAM_DOES_NOT_EXIST"
)

func methodNotFoundError(method []string) *RPCError {
	return &RPCError{Name: ErrNameMethodNotFound, Message: fmt.Sprintf("Method %q not found", joinMethod(method))}
}

func argumentError(err error) *RPCError {
	return &RPCError{Name: ErrNameArgumentError, Message: fmt.Sprintf("Failed to deserialize arguments: %v", err)}
}

func sentDataToSourceError() *RPCError {
	return &RPCError{Name: ErrNameSentDataToSource, Message: `Cannot send data to a "source" stream`}
}

func streamDoesNotExistError(number uint32) *RPCError {
	return &RPCError{Name: ErrNameStreamDoesNotExist, Message: fmt.Sprintf("Stream with ID %d does not exist", number)}
}

func joinMethod(method []string) string {
	out := ""
	for i, m := range method {
		if i > 0 {
			out += "."
		}
		out += m
	}
	return out
}
