package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/Suhaibinator/SOnion/pkg/app"
)

// TestClientIPMiddleware tests the IP sources supported by ClientIPMiddleware
func TestClientIPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		config     *IPConfig
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{
			name:       "default config uses X-Forwarded-For",
			config:     nil,
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "203.0.113.7",
		},
		{
			name:       "X-Forwarded-For missing falls back to RemoteAddr",
			config:     DefaultIPConfig(),
			remoteAddr: "192.0.2.1:5678",
			expected:   "192.0.2.1",
		},
		{
			name:       "X-Real-IP",
			config:     &IPConfig{Source: IPSourceXRealIP, TrustProxy: true},
			headers:    map[string]string{"X-Real-IP": "198.51.100.2"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "198.51.100.2",
		},
		{
			name:       "custom header",
			config:     &IPConfig{Source: IPSourceCustomHeader, CustomHeader: "CF-Connecting-IP", TrustProxy: true},
			headers:    map[string]string{"CF-Connecting-IP": "198.51.100.3"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "198.51.100.3",
		},
		{
			name:       "remote addr",
			config:     &IPConfig{Source: IPSourceRemoteAddr, TrustProxy: true},
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			remoteAddr: "192.0.2.9:80",
			expected:   "192.0.2.9",
		},
		{
			name:       "untrusted proxy headers are ignored",
			config:     &IPConfig{Source: IPSourceXForwardedFor, TrustProxy: false},
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			remoteAddr: "192.0.2.10:80",
			expected:   "192.0.2.10",
		},
		{
			name:       "IPv6 with port",
			config:     &IPConfig{Source: IPSourceRemoteAddr},
			remoteAddr: "[2001:db8::1]:443",
			expected:   "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			var got string
			serve(t, req, ClientIPMiddleware(tt.config), func(c *app.Context, next app.Next) error {
				got = ClientIP(c)
				return nil
			})

			if got != tt.expected {
				t.Errorf("Expected client IP %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestClientIPWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.50:9000"

	var got string
	serve(t, req, func(c *app.Context, next app.Next) error {
		got = ClientIP(c)
		return nil
	})

	if got != "192.0.2.50" {
		t.Errorf("Expected client IP %q, got %q", "192.0.2.50", got)
	}
}

func TestCleanIP(t *testing.T) {
	tests := map[string]string{
		"192.168.1.1:8080": "192.168.1.1",
		"192.168.1.1":      "192.168.1.1",
		"[::1]:80":         "::1",
		"[::1]":            "::1",
		"2001:db8::1":      "2001:db8::1",
		"":                 "",
	}
	for in, expected := range tests {
		if got := cleanIP(in); got != expected {
			t.Errorf("cleanIP(%q): expected %q, got %q", in, expected, got)
		}
	}
}
