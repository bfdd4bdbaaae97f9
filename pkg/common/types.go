// Package common provides shared types and utilities used across the SOnion framework.
package common

// Next invokes the remainder of the pipeline. A middleware may call it at most
// once; the error it returns is whatever the downstream layers failed with.
type Next func() error

// Middleware is one layer of the onion.
// It runs its pre-processing code, optionally delegates to the inner layers by
// calling next, and then runs its post-processing code once next returns.
// The context value C is shared by every layer of one pipeline invocation.
type Middleware[C any] func(c C, next Next) error
