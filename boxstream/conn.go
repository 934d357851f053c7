package boxstream

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"github.com/gosuda/ssbcore/cryptoops"
	"github.com/gosuda/ssbcore/handshake"
)

// Conn adapts the box-stream cipher (§4.3) to any duplex byte stream
// (§4.4), exposing ordinary Read/Write/Close. Writes larger than
// MaxPacketSize are fragmented into consecutive packets transparently.
// Close sends the goodbye sentinel before closing the underlying
// stream. Reads return io.EOF once a goodbye has been observed, and a
// fatal decode error on any authentication failure.
type Conn struct {
	raw io.ReadWriteCloser
	br  *bufio.Reader

	writeMu sync.Mutex
	send    *cipher

	readMu  sync.Mutex
	receive *cipher
	leftover []byte
	closed  bool
	readErr error

	closeOnce sync.Once
}

// NewConn wraps raw with the per-direction cipher parameters a
// completed handshake produced.
func NewConn(raw io.ReadWriteCloser, params handshake.BoxStreamParams) *Conn {
	return &Conn{
		raw:     raw,
		br:      bufio.NewReaderSize(raw, BoxedHeaderSize+MaxPacketSize),
		send:    newCipher(params.Send),
		receive: newCipher(params.Receive),
	}
}

// Write frames p into one or more box-stream packets (§4.3
// "Encrypt larger payloads").
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}
	total := 0
	for len(p) > 0 {
		n := len(p)
		if n > MaxPacketSize {
			n = MaxPacketSize
		}
		packet := c.send.encryptPacket(p[:n])
		if _, err := c.raw.Write(packet); err != nil {
			return total, err
		}
		total += n
		p = p[n:]
	}
	return total, nil
}

// Read returns decrypted payload bytes from the next packet(s),
// buffering any portion that does not fit in p.
func (c *Conn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.leftover) > 0 {
		n := copy(p, c.leftover)
		c.leftover = c.leftover[n:]
		return n, nil
	}
	if c.closed {
		if c.readErr != nil {
			return 0, c.readErr
		}
		return 0, io.EOF
	}

	payload, err := c.readPacket()
	if err != nil {
		c.closed = true
		if !errors.Is(err, io.EOF) {
			c.readErr = err
		}
		return 0, err
	}
	if payload == nil { // goodbye
		c.closed = true
		return 0, io.EOF
	}

	n := copy(p, payload)
	if n < len(payload) {
		c.leftover = payload[n:]
	}
	return n, nil
}

// readPacket reads and decrypts exactly one box-stream packet.
// payload == nil, err == nil signals a clean goodbye.
func (c *Conn) readPacket() ([]byte, error) {
	headerBuf := cryptoops.AcquireBuffer(BoxedHeaderSize)
	defer cryptoops.ReleaseBuffer(headerBuf)
	headerBuf.B = headerBuf.B[:BoxedHeaderSize]
	if _, err := io.ReadFull(c.br, headerBuf.B); err != nil {
		return nil, wrapReadErr(err)
	}

	bodyLen, tag, ok, err := c.receive.decryptHeader(headerBuf.B)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if bodyLen > MaxPacketSize {
		return nil, ErrExceededMaxPacketSize
	}

	bodyBuf := cryptoops.AcquireBuffer(int(bodyLen))
	defer cryptoops.ReleaseBuffer(bodyBuf)
	bodyBuf.B = bodyBuf.B[:bodyLen]
	if bodyLen > 0 {
		if _, err := io.ReadFull(c.br, bodyBuf.B); err != nil {
			return nil, wrapReadErr(err)
		}
	}

	plain, err := c.receive.decryptBody(tag, bodyBuf.B)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

func wrapReadErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return errors.Join(io.ErrUnexpectedEOF, err)
	}
	return err
}

// Close sends the goodbye sentinel and closes the underlying stream.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_, werr := c.raw.Write(c.send.encryptGoodbye())
		c.writeMu.Unlock()
		cerr := c.raw.Close()
		if werr != nil {
			err = werr
		} else {
			err = cerr
		}
	})
	return err
}
