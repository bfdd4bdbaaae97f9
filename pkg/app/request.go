package app

import (
	"context"
	"net/http"
	"net/url"
)

// Request is the request half of a Context.
type Request struct {
	App      *App
	Ctx      *Context
	Response *Response
	Req      *http.Request
	Res      http.ResponseWriter

	originalURL string
}

// Method returns the request method.
func (r *Request) Method() string {
	return r.Req.Method
}

// URL returns the parsed request URL.
func (r *Request) URL() *url.URL {
	return r.Req.URL
}

// Path returns the request path.
func (r *Request) Path() string {
	return r.Req.URL.Path
}

// Query returns the parsed query string.
func (r *Request) Query() url.Values {
	return r.Req.URL.Query()
}

// Header returns the named request header.
func (r *Request) Header(name string) string {
	return r.Req.Header.Get(name)
}

// ProtoMajor returns the HTTP major version of the request.
func (r *Request) ProtoMajor() int {
	return r.Req.ProtoMajor
}

// OriginalURL returns the request URI as received, before any middleware rewrote it.
func (r *Request) OriginalURL() string {
	return r.originalURL
}

// Context returns the request's context.Context.
func (r *Request) Context() context.Context {
	return r.Req.Context()
}
