package invoker

import (
	"bufio"
	"bytes"
	"strings"
)

// lineWriter splits a byte stream into lines and hands each one to fn.
// It is installed as both Stdout and Stderr of the child, so os/exec
// copies the merged stream through a single goroutine.
type lineWriter struct {
	fn    func(string)
	buf   []byte
	lines int
	err   error
}

func newLineWriter(fn func(string)) *lineWriter {
	return &lineWriter{fn: fn}
}

// Write never fails: once a line grows past maxLineBytes the rest of the
// stream is discarded so the child never blocks on a full pipe.
func (w *lineWriter) Write(p []byte) (int, error) {
	n := len(p)
	if w.err != nil {
		return n, nil
	}

	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		chunk := p
		if i >= 0 {
			chunk = p[:i]
		}
		if len(w.buf)+len(chunk) > maxLineBytes {
			w.buf = nil
			w.err = bufio.ErrTooLong
			return n, nil
		}
		w.buf = append(w.buf, chunk...)
		if i < 0 {
			break
		}
		w.emit()
		p = p[i+1:]
	}
	return n, nil
}

// Close flushes a final line that has no trailing newline.
func (w *lineWriter) Close() error {
	if w.err == nil && len(w.buf) > 0 {
		w.emit()
	}
	return nil
}

func (w *lineWriter) emit() {
	w.lines++
	w.fn(strings.TrimRight(string(w.buf), "\r"))
	w.buf = w.buf[:0]
}
