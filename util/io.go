package util

import (
	"bytes"
	"errors"
	"io"
	"net"
)

// WriteAll writes p to w, retrying short writes until every byte is
// sent or an error occurs.  It returns the number of bytes written.
func WriteAll(w io.Writer, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := w.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// asciiSpace is the set TrimTrailingSpace removes.
const asciiSpace = " \t\n\r\v\f"

// TrimTrailingSpace strips trailing ASCII whitespace from b without
// copying.
func TrimTrailingSpace(b []byte) []byte {
	return bytes.TrimRight(b, asciiSpace)
}

// IsHarmless returns true for errors that are expected during shutdown.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
