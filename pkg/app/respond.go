package app

import (
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// emptyStatuses are the status codes that never carry a body.
var emptyStatuses = map[int]bool{
	http.StatusNoContent:    true,
	http.StatusResetContent: true,
	http.StatusNotModified:  true,
}

// respond finalizes the transport response from the final state of c.
// Respond == false leaves the response to the middleware.
func respond(c *Context) {
	if !c.Respond {
		return
	}
	finalize(c)
}

// finalize writes the response from c's state. Error responses call it
// directly, so they are written even when Respond is false.
func finalize(c *Context) {
	if !c.Writable() {
		return
	}

	res := c.Response
	rw := c.rw
	body := res.body
	code := res.Status()

	if emptyStatuses[code] {
		res.body = nil
		if !rw.sent() {
			res.stripBodyHeaders()
		}
		endResponse(c, nil)
		return
	}

	if c.Method() == http.MethodHead {
		if !rw.sent() && !res.Has("Content-Length") {
			if n, ok := res.Length(); ok && n >= 0 {
				res.SetLength(n)
			}
		}
		endResponse(c, nil)
		return
	}

	if body == nil {
		if res.explicitNullBody {
			res.Remove("Content-Type")
			res.Remove("Transfer-Encoding")
			endResponse(c, nil)
			return
		}

		var text string
		if c.ProtoMajor() >= 2 {
			text = strconv.Itoa(code)
		} else {
			text = res.message
			if text == "" {
				text = strconv.Itoa(code)
			}
		}
		if !rw.sent() {
			res.SetType("text")
			res.SetLength(int64(len(text)))
		}
		endResponse(c, []byte(text))
		return
	}

	switch b := body.(type) {
	case []byte:
		endResponse(c, b)
	case string:
		endResponse(c, []byte(b))
	case io.Reader:
		if closer, ok := b.(io.Closer); ok {
			defer closer.Close()
		}
		if err := rw.pipe(b); err != nil {
			c.OnError(err)
		}
	default:
		payload, _, err := c.App.marshal(b)
		if err != nil {
			c.OnError(err)
			return
		}
		if !rw.sent() {
			res.SetLength(int64(len(payload)))
		}
		endResponse(c, payload)
	}
}

// endResponse finishes the transport response. Failures here mean the client
// is gone, so they are only logged.
func endResponse(c *Context, payload []byte) {
	if err := c.rw.end(payload); err != nil {
		c.App.logger.Debug("Failed to write response",
			zap.Error(err),
			zap.String("method", c.originalMethod),
			zap.String("url", c.originalURL),
		)
	}
}
