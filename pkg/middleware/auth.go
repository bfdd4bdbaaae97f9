package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SOnion/pkg/app"
	"go.uber.org/zap"
)

// AuthProvider defines an interface for authentication providers.
// The package includes BasicAuthProvider, BearerTokenProvider and APIKeyProvider.
type AuthProvider interface {
	// Authenticate examines the request for credentials and reports whether
	// they are valid.
	Authenticate(r *http.Request) bool
}

// BasicAuthProvider provides HTTP Basic Authentication.
// It validates username and password credentials against a predefined map.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
}

// Authenticate authenticates a request using HTTP Basic Authentication.
func (p *BasicAuthProvider) Authenticate(r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}

	expectedPassword, exists := p.Credentials[username]
	if !exists {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(password), []byte(expectedPassword)) == 1
}

// BearerTokenProvider provides Bearer Token Authentication.
// It can validate tokens against a predefined map or using a custom validator function.
type BearerTokenProvider struct {
	ValidTokens map[string]bool         // token -> valid
	Validator   func(token string) bool // optional token validator
}

// Authenticate authenticates a request using Bearer Token Authentication.
// The validator takes precedence over ValidTokens when both are set.
func (p *BearerTokenProvider) Authenticate(r *http.Request) bool {
	token, ok := bearerToken(r)
	if !ok {
		return false
	}

	if p.Validator != nil {
		return p.Validator(token)
	}
	return p.ValidTokens[token]
}

// APIKeyProvider provides API Key Authentication.
// It can validate API keys provided in a header or query parameter.
type APIKeyProvider struct {
	ValidKeys map[string]bool // key -> valid
	Header    string          // header name (e.g., "X-API-Key")
	Query     string          // query parameter name (e.g., "api_key")
}

// Authenticate authenticates a request using API Key Authentication.
func (p *APIKeyProvider) Authenticate(r *http.Request) bool {
	key := apiKey(r, p.Header, p.Query)
	return key != "" && p.ValidKeys[key]
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func apiKey(r *http.Request, header, query string) string {
	if header != "" {
		if key := r.Header.Get(header); key != "" {
			return key
		}
	}
	if query != "" {
		return r.URL.Query().Get(query)
	}
	return ""
}

// Authentication is a middleware that checks if a request is authenticated
// using the provided auth provider. Unauthenticated requests fail with an
// exposed 401 and never reach the inner layers.
func Authentication(provider AuthProvider, logger *zap.Logger) app.Middleware {
	return func(c *app.Context, next app.Next) error {
		if !provider.Authenticate(c.Req) {
			logger.Warn("Authentication failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("remote_addr", c.Req.RemoteAddr),
			)
			return app.NewHTTPError(http.StatusUnauthorized, "")
		}

		return next()
	}
}

// NewBasicAuthMiddleware creates a middleware that uses HTTP Basic Authentication.
func NewBasicAuthMiddleware(credentials map[string]string, logger *zap.Logger) app.Middleware {
	return Authentication(&BasicAuthProvider{Credentials: credentials}, logger)
}

// NewBearerTokenMiddleware creates a middleware that uses Bearer Token Authentication.
func NewBearerTokenMiddleware(validTokens map[string]bool, logger *zap.Logger) app.Middleware {
	return Authentication(&BearerTokenProvider{ValidTokens: validTokens}, logger)
}

// NewBearerTokenValidatorMiddleware creates a middleware that uses Bearer Token
// Authentication with a custom validator function.
func NewBearerTokenValidatorMiddleware(validator func(string) bool, logger *zap.Logger) app.Middleware {
	return Authentication(&BearerTokenProvider{Validator: validator}, logger)
}

// NewAPIKeyMiddleware creates a middleware that uses API Key Authentication.
func NewAPIKeyMiddleware(validKeys map[string]bool, header, query string, logger *zap.Logger) app.Middleware {
	return Authentication(&APIKeyProvider{ValidKeys: validKeys, Header: header, Query: query}, logger)
}

// UserAuthProvider defines an interface for authentication providers that
// resolve the caller to a user object.
type UserAuthProvider[T any] interface {
	// AuthenticateUser returns the user for the request's credentials, or an
	// error when they are missing or invalid.
	AuthenticateUser(r *http.Request) (*T, error)
}

// BasicUserAuthProvider provides HTTP Basic Authentication with user object return.
type BasicUserAuthProvider[T any] struct {
	GetUserFunc func(username, password string) (*T, error)
}

// AuthenticateUser authenticates a request using HTTP Basic Authentication.
func (p *BasicUserAuthProvider[T]) AuthenticateUser(r *http.Request) (*T, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, errors.New("no basic auth credentials")
	}
	return p.GetUserFunc(username, password)
}

// BearerTokenUserAuthProvider provides Bearer Token Authentication with user object return.
type BearerTokenUserAuthProvider[T any] struct {
	GetUserFunc func(token string) (*T, error)
}

// AuthenticateUser authenticates a request using Bearer Token Authentication.
func (p *BearerTokenUserAuthProvider[T]) AuthenticateUser(r *http.Request) (*T, error) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, errors.New("no bearer token")
	}
	return p.GetUserFunc(token)
}

// APIKeyUserAuthProvider provides API Key Authentication with user object return.
type APIKeyUserAuthProvider[T any] struct {
	GetUserFunc func(key string) (*T, error)
	Header      string // header name (e.g., "X-API-Key")
	Query       string // query parameter name (e.g., "api_key")
}

// AuthenticateUser authenticates a request using API Key Authentication.
func (p *APIKeyUserAuthProvider[T]) AuthenticateUser(r *http.Request) (*T, error) {
	key := apiKey(r, p.Header, p.Query)
	if key == "" {
		return nil, errors.New("no API key found")
	}
	return p.GetUserFunc(key)
}

// UserStateKey is the Context.State key holding the authenticated user.
const UserStateKey = "user"

// AuthenticationWithUser is a middleware that resolves the caller through
// provider and stores the user in Context.State for the inner layers.
func AuthenticationWithUser[T any](provider UserAuthProvider[T], logger *zap.Logger) app.Middleware {
	return func(c *app.Context, next app.Next) error {
		user, err := provider.AuthenticateUser(c.Req)
		if err != nil || user == nil {
			logger.Warn("Authentication failed",
				zap.Error(err),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("remote_addr", c.Req.RemoteAddr),
			)
			return app.NewHTTPError(http.StatusUnauthorized, "")
		}

		c.State[UserStateKey] = user
		return next()
	}
}

// GetUser retrieves the authenticated user from the context.
// Returns nil if no user of type T is present.
func GetUser[T any](c *app.Context) *T {
	user, ok := c.State[UserStateKey].(*T)
	if !ok {
		return nil
	}
	return user
}
