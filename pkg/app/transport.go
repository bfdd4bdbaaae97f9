package app

import (
	"errors"
	"io"
	"net/http"
	"sync"
)

// ErrTransportClosed is returned by writes attempted after the client went
// away or after the response was finalized.
var ErrTransportClosed = errors.New("transport closed")

// responseWriter wraps the transport's http.ResponseWriter.
// It keeps the pending status code until the headers go out, tracks whether
// headers were sent and whether the response ended, and serializes writes so
// the completion hook can mark the transport closed from its own goroutine.
type responseWriter struct {
	http.ResponseWriter
	mu           sync.Mutex
	statusCode   int
	headersSent  bool
	ended        bool
	closed       bool
	bytesWritten int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader sends the headers with statusCode unless they are already out.
func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.statusCode = statusCode
	rw.writeHeaderLocked()
}

func (rw *responseWriter) writeHeaderLocked() {
	if rw.headersSent {
		return
	}
	rw.headersSent = true
	rw.ResponseWriter.WriteHeader(rw.statusCode)
}

// Write sends the headers if needed and writes b.
// Writing to an ended or closed transport is a no-op returning ErrTransportClosed.
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.ended || rw.closed {
		return 0, ErrTransportClosed
	}
	rw.writeHeaderLocked()
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush calls the underlying ResponseWriter.Flush if it implements http.Flusher.
func (rw *responseWriter) Flush() {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.closed {
		return
	}
	rw.writeHeaderLocked()
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the transport's writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) status() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.statusCode
}

// setStatus changes the pending status. It has no effect once headers are out.
func (rw *responseWriter) setStatus(code int) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if !rw.headersSent {
		rw.statusCode = code
	}
}

func (rw *responseWriter) sent() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.headersSent
}

func (rw *responseWriter) writable() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return !rw.ended && !rw.closed
}

func (rw *responseWriter) markClosed() {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.closed = true
}

func (rw *responseWriter) written() int64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.bytesWritten
}

// end sends the headers, writes payload and finishes the response.
func (rw *responseWriter) end(payload []byte) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.ended {
		return nil
	}
	rw.ended = true
	if rw.closed {
		return ErrTransportClosed
	}
	rw.writeHeaderLocked()
	if len(payload) == 0 {
		return nil
	}
	n, err := rw.ResponseWriter.Write(payload)
	rw.bytesWritten += int64(n)
	return err
}

// pipe copies src into the response and then finishes it.
// The lock is only held per write, so the transport can be closed mid-copy.
func (rw *responseWriter) pipe(src io.Reader) error {
	_, err := io.Copy(rw, src)
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.ended = true
	if !rw.closed {
		rw.writeHeaderLocked()
	}
	return err
}
