package app

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// Response is the response half of a Context. It buffers the status, body
// and headers that the responder turns into the transport response once the
// pipeline settles.
type Response struct {
	App     *App
	Ctx     *Context
	Request *Request
	Req     *http.Request
	Res     http.ResponseWriter

	rw               *responseWriter
	body             any
	explicitStatus   bool
	explicitNullBody bool
	message          string
}

// Status returns the response status code.
func (r *Response) Status() int {
	return r.rw.status()
}

// SetStatus sets the response status code.
// It panics on codes outside 100-999, like http.ResponseWriter.WriteHeader.
// Setting a status that forbids a body drops the current body.
func (r *Response) SetStatus(code int) {
	if code < 100 || code > 999 {
		panic(fmt.Sprintf("invalid status code %d", code))
	}
	r.explicitStatus = true
	r.rw.setStatus(code)
	if r.body != nil && emptyStatuses[code] {
		r.body = nil
		r.stripBodyHeaders()
	}
}

// Message returns the status message, or "" when none was set.
func (r *Response) Message() string {
	return r.message
}

// SetMessage sets the status message used when no body is sent.
func (r *Response) SetMessage(msg string) {
	r.message = msg
}

// Body returns the current body.
func (r *Response) Body() any {
	return r.body
}

// SetBody sets the response body. Accepted kinds are string, []byte,
// io.Reader, and any structured value, which is serialized to JSON.
//
// A non-nil body switches an unset status to 200 and fills in default
// Content-Type and Content-Length headers. A nil body marks the body as
// explicitly empty and sets 204 unless the status already forbids a body.
func (r *Response) SetBody(v any) {
	r.body = v

	if v == nil {
		if !emptyStatuses[r.Status()] {
			r.setStatus(http.StatusNoContent)
		}
		r.explicitNullBody = true
		r.stripBodyHeaders()
		return
	}

	if !r.explicitStatus {
		r.setStatus(http.StatusOK)
	}
	r.explicitNullBody = false

	setType := !r.Has("Content-Type")

	switch b := v.(type) {
	case string:
		if setType {
			if strings.HasPrefix(strings.TrimSpace(b), "<") {
				r.SetType("html")
			} else {
				r.SetType("text")
			}
		}
		r.SetLength(int64(len(b)))
	case []byte:
		if setType {
			r.SetType("bin")
		}
		r.SetLength(int64(len(b)))
	case io.Reader:
		if setType {
			r.SetType("bin")
		}
		r.Remove("Content-Length")
	default:
		r.Remove("Content-Length")
		if setType {
			r.SetType("json")
		}
	}
}

// Length returns the response length when it is well defined: an explicit
// Content-Length header, or the size of a string, []byte or structured body.
// Streams have no defined length.
func (r *Response) Length() (int64, bool) {
	if cl := r.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}

	switch b := r.body.(type) {
	case nil:
		return 0, false
	case string:
		return int64(len(b)), true
	case []byte:
		return int64(len(b)), true
	case io.Reader:
		return 0, false
	default:
		payload, _, err := r.App.marshal(b)
		if err != nil {
			return 0, false
		}
		return int64(len(payload)), true
	}
}

// stripBodyHeaders removes the headers that describe a body.
func (r *Response) stripBodyHeaders() {
	r.Remove("Content-Type")
	r.Remove("Content-Length")
	r.Remove("Transfer-Encoding")
}

// SetLength sets the Content-Length header.
func (r *Response) SetLength(n int64) {
	r.Set("Content-Length", strconv.FormatInt(n, 10))
}

// Type returns the Content-Type without parameters.
func (r *Response) Type() string {
	ct := r.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// SetType sets the Content-Type. A value without a slash is treated as a file
// extension or shorthand ("json", "html", "text", "bin").
func (r *Response) SetType(t string) {
	if !strings.Contains(t, "/") {
		switch t {
		case "text":
			t = "text/plain; charset=utf-8"
		case "bin":
			t = "application/octet-stream"
		default:
			ext := t
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			t = mime.TypeByExtension(ext)
		}
	}
	if t == "" {
		r.Remove("Content-Type")
		return
	}
	r.Set("Content-Type", t)
}

// Get returns a response header.
func (r *Response) Get(name string) string {
	return r.rw.Header().Get(name)
}

// Set sets a response header.
func (r *Response) Set(name, value string) {
	r.rw.Header().Set(name, value)
}

// Append adds a value to a response header.
func (r *Response) Append(name, value string) {
	r.rw.Header().Add(name, value)
}

// Has reports whether a response header is present.
func (r *Response) Has(name string) bool {
	_, ok := r.rw.Header()[http.CanonicalHeaderKey(name)]
	return ok
}

// Remove deletes a response header.
func (r *Response) Remove(name string) {
	r.rw.Header().Del(name)
}

// HeadersSent reports whether the headers already went out.
func (r *Response) HeadersSent() bool {
	return r.rw.sent()
}

// Writable reports whether the response can still be written.
func (r *Response) Writable() bool {
	return r.rw.writable()
}

// setStatus changes the status without marking it as explicitly set.
func (r *Response) setStatus(code int) {
	r.rw.setStatus(code)
}

// resetHeaders drops every header set so far.
func (r *Response) resetHeaders() {
	h := r.rw.Header()
	for k := range h {
		delete(h, k)
	}
}
