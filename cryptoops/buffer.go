package cryptoops

import "github.com/valyala/bytebufferpool"

var secureMemoryPool bytebufferpool.Pool

// wipeMemory zeroes the full capacity of b, not just its current length.
func wipeMemory(b []byte) {
	b = b[:cap(b)]
	for i := range b {
		b[i] = 0
	}
}

func bufferGrow(buffer *bytebufferpool.ByteBuffer, n int) {
	currentCap := cap(buffer.B)
	if n > currentCap {
		wipeMemory(buffer.B)
		newSize := (n + 4095) &^ 4095
		buffer.B = make([]byte, 0, newSize)
	}
	buffer.B = buffer.B[:0]
}

// AcquireBuffer returns a pooled byte buffer with at least n bytes of
// capacity. Callers must call ReleaseBuffer when done; it is wiped
// before returning to the pool since these buffers hold key material
// and plaintext.
func AcquireBuffer(n int) *bytebufferpool.ByteBuffer {
	buffer := secureMemoryPool.Get()
	if buffer.B == nil {
		buffer.B = make([]byte, 0)
	}
	bufferGrow(buffer, n)
	return buffer
}

// ReleaseBuffer wipes buffer and returns it to the pool.
func ReleaseBuffer(buffer *bytebufferpool.ByteBuffer) {
	wipeMemory(buffer.B)
	secureMemoryPool.Put(buffer)
}
