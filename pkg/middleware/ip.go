package middleware

import (
	"net"
	"strings"

	"github.com/Suhaibinator/SOnion/pkg/app"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the name of the custom header to use when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For.
	// If false, RemoteAddr is used for every source.
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// ClientIPStateKey is the Context.State key holding the client IP.
const ClientIPStateKey = "client_ip"

// ClientIP returns the client IP stored by ClientIPMiddleware, or the
// request's remote address without its port when the middleware did not run.
func ClientIP(c *app.Context) string {
	if ip, ok := c.State[ClientIPStateKey].(string); ok {
		return ip
	}
	return cleanIP(c.Req.RemoteAddr)
}

// ClientIPMiddleware creates a middleware that extracts the client IP from the
// request and stores it in Context.State.
func ClientIPMiddleware(config *IPConfig) app.Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return func(c *app.Context, next app.Next) error {
		c.State[ClientIPStateKey] = extractClientIP(c, config)
		return next()
	}
}

// extractClientIP extracts the client IP from the request based on the configuration
func extractClientIP(c *app.Context, config *IPConfig) string {
	var ip string

	switch config.Source {
	case IPSourceXRealIP:
		ip = c.Get("X-Real-IP")
	case IPSourceCustomHeader:
		ip = c.Get(config.CustomHeader)
	case IPSourceRemoteAddr:
		ip = c.Req.RemoteAddr
	default:
		ip = firstForwardedFor(c.Get("X-Forwarded-For"))
	}

	// If we don't trust proxy headers or couldn't extract an IP, fall back to RemoteAddr
	if !config.TrustProxy || ip == "" {
		ip = c.Req.RemoteAddr
	}

	return cleanIP(strings.TrimSpace(ip))
}

// firstForwardedFor returns the leftmost address of an X-Forwarded-For value,
// which is the original client.
func firstForwardedFor(xff string) string {
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP removes the port from an address if present.
func cleanIP(ip string) string {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(ip, "["), "]")
}
