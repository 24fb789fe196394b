package util

import "github.com/valyala/bytebufferpool"

// ReadSize is the most a session reads from its inbound connection.
const ReadSize = 1024

// ByteBuffer is the alias of bytebufferpool.ByteBuffer.
type ByteBuffer = bytebufferpool.ByteBuffer

// GetBuf retrieves a buffer from the pool with at least ReadSize bytes
// of length ready for a single Read.  Callers must return it with
// [PutBuf] when finished.
func GetBuf() *ByteBuffer {
	buf := bytebufferpool.Get()
	if cap(buf.B) < ReadSize {
		buf.B = make([]byte, ReadSize)
	}
	buf.B = buf.B[:ReadSize]
	return buf
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *ByteBuffer) {
	if buf == nil {
		return
	}
	bytebufferpool.Put(buf)
}
