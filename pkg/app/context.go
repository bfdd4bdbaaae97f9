package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Suhaibinator/SOnion/pkg/compose"
	"go.uber.org/zap"
)

// Context is the per-request state threaded through every middleware of the
// pipeline. A Context belongs to exactly one request and is dropped once the
// response is finalized; middleware only borrows it for the duration of its call.
type Context struct {
	App      *App
	Req      *http.Request
	Res      http.ResponseWriter
	Request  *Request
	Response *Response

	// State carries values between middleware for the lifetime of the request.
	State map[string]any

	// Respond, when set to false, skips response finalization entirely; the
	// middleware is then responsible for writing to Res itself.
	Respond bool

	rw             *responseWriter
	originalURL    string
	originalMethod string
}

// createContext stamps a new Context out of the App's template and wires the
// request and response halves to each other and to the transport handles.
func (a *App) createContext(req *http.Request, w http.ResponseWriter) *Context {
	rw := newResponseWriter(w)

	c := new(Context)
	*c = a.context

	request := &Request{}
	response := &Response{rw: rw}

	c.Request, c.Response = request, response
	c.App, request.App, response.App = a, a, a
	c.Req, request.Req, response.Req = req, req, req
	c.Res, request.Res, response.Res = rw, rw, rw
	request.Ctx, response.Ctx = c, c
	request.Response = response
	response.Request = request

	c.rw = rw
	c.originalURL = req.URL.RequestURI()
	c.originalMethod = req.Method
	request.originalURL = c.originalURL
	c.State = make(map[string]any)

	return c
}

// Context returns the request's context.Context.
func (c *Context) Context() context.Context {
	return c.Req.Context()
}

// SetRequest replaces the request handle on the context and both of its halves,
// typically with req.WithContext(...).
func (c *Context) SetRequest(req *http.Request) {
	c.Req = req
	c.Request.Req = req
	c.Response.Req = req
}

// Logger returns the App's logger.
func (c *Context) Logger() *zap.Logger {
	return c.App.logger
}

// OriginalMethod returns the request method as received.
func (c *Context) OriginalMethod() string {
	return c.originalMethod
}

// OriginalURL returns the request URI as received.
func (c *Context) OriginalURL() string {
	return c.originalURL
}

// Method returns the request method.
func (c *Context) Method() string { return c.Request.Method() }

// Path returns the request path.
func (c *Context) Path() string { return c.Request.Path() }

// Query returns the parsed query string.
func (c *Context) Query() url.Values { return c.Request.Query() }

// ProtoMajor returns the HTTP major version of the request.
func (c *Context) ProtoMajor() int { return c.Request.ProtoMajor() }

// Status returns the response status code.
func (c *Context) Status() int { return c.Response.Status() }

// SetStatus sets the response status code.
func (c *Context) SetStatus(code int) { c.Response.SetStatus(code) }

// Message returns the response status message.
func (c *Context) Message() string { return c.Response.Message() }

// SetMessage sets the response status message.
func (c *Context) SetMessage(msg string) { c.Response.SetMessage(msg) }

// Body returns the response body.
func (c *Context) Body() any { return c.Response.Body() }

// SetBody sets the response body.
func (c *Context) SetBody(v any) { c.Response.SetBody(v) }

// Length returns the response length when it is well defined.
func (c *Context) Length() (int64, bool) { return c.Response.Length() }

// SetLength sets the Content-Length header.
func (c *Context) SetLength(n int64) { c.Response.SetLength(n) }

// SetType sets the response Content-Type.
func (c *Context) SetType(t string) { c.Response.SetType(t) }

// Get returns a request header.
func (c *Context) Get(name string) string { return c.Request.Header(name) }

// Set sets a response header.
func (c *Context) Set(name, value string) { c.Response.Set(name, value) }

// Append adds a value to a response header.
func (c *Context) Append(name, value string) { c.Response.Append(name, value) }

// Has reports whether the response header is set.
func (c *Context) Has(name string) bool { return c.Response.Has(name) }

// Remove deletes a response header.
func (c *Context) Remove(name string) { c.Response.Remove(name) }

// HeadersSent reports whether the response headers already went out.
func (c *Context) HeadersSent() bool { return c.Response.HeadersSent() }

// Writable reports whether the response can still be written.
func (c *Context) Writable() bool { return c.Response.Writable() }

// Throw returns an *HTTPError for the given status; return it from the middleware.
func (c *Context) Throw(status int, message string) error {
	return NewHTTPError(status, message)
}

// Assert returns an *HTTPError when ok is false, nil otherwise.
func (c *Context) Assert(ok bool, status int, message string) error {
	if ok {
		return nil
	}
	return NewHTTPError(status, message)
}

// OnError is the context's error hook. It reports err to the App and, when
// the response is still uncommitted, replaces it with an error response
// derived from err. A nil err is ignored.
//
// OnError is also called from the transport's completion goroutine when the
// client goes away, in which case the response is no longer writable and only
// the report happens.
func (c *Context) OnError(err error) {
	if err == nil {
		return
	}
	err = normalizeError(err)

	c.App.reportError(err, c)

	if c.rw.sent() || !c.rw.writable() {
		return
	}

	status, expose := ErrorStatus(err)
	message := http.StatusText(status)
	if expose {
		message = exposedMessage(err)
	}

	res := c.Response
	res.resetHeaders()
	res.explicitStatus = true
	res.setStatus(status)
	res.body = nil
	res.explicitNullBody = false
	res.message = message

	finalize(c)
}

// normalizeError turns a recovered non-error panic value into a TypeError.
func normalizeError(err error) error {
	var panicErr *compose.PanicError
	if errors.As(err, &panicErr) && panicErr.IsNonError() {
		return compose.TypeErrorf("non-error thrown: %s", formatValue(panicErr.Value))
	}
	return err
}

func formatValue(v any) string {
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

func exposedMessage(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return err.Error()
}
