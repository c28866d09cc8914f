package vcd

import (
	"bufio"
	"fmt"
	"io"
)

// sink is the buffered output stream owned by a Writer.
// The first write error sticks: later writes are dropped and the error is
// reported by flush and close.
type sink struct {
	buf    *bufio.Writer
	closer io.Closer
	err    error
}

func newSink(w io.Writer) *sink {
	s := &sink{buf: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *sink) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.buf, format, args...)
}

func (s *sink) flush() error {
	if s.err != nil {
		return s.err
	}
	s.err = s.buf.Flush()
	return s.err
}

// close flushes and releases the underlying stream. Safe to call twice.
func (s *sink) close() error {
	err := s.flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}
