// Package common provides common utilities and interfaces for the SOnion framework.
package common

// MiddlewareChain represents an ordered chain of middleware
type MiddlewareChain[C any] []Middleware[C]

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain[C any](middlewares ...Middleware[C]) MiddlewareChain[C] {
	return middlewares
}

// Append adds middleware to the end of the chain.
// The receiver is never modified, so a chain can be safely shared as a base.
func (c MiddlewareChain[C]) Append(middlewares ...Middleware[C]) MiddlewareChain[C] {
	result := make(MiddlewareChain[C], 0, len(c)+len(middlewares))
	result = append(result, c...)
	return append(result, middlewares...)
}

// Prepend adds middleware to the beginning of the chain
func (c MiddlewareChain[C]) Prepend(middlewares ...Middleware[C]) MiddlewareChain[C] {
	result := make(MiddlewareChain[C], len(middlewares)+len(c))
	copy(result, middlewares)
	copy(result[len(middlewares):], c)
	return result
}

// Len returns the number of middleware in the chain
func (c MiddlewareChain[C]) Len() int {
	return len(c)
}

// Then wraps the chain around a terminal middleware and returns a single
// middleware that runs the whole chain as one layer.
// The returned middleware does not guard against next being called twice;
// use compose.Compose when the single-invocation guarantee is needed.
func (c MiddlewareChain[C]) Then(h Middleware[C]) Middleware[C] {
	return func(ctx C, next Next) error {
		var run func(i int) error
		run = func(i int) error {
			if i == len(c) {
				if h == nil {
					if next == nil {
						return nil
					}
					return next()
				}
				return h(ctx, next)
			}
			return c[i](ctx, func() error { return run(i + 1) })
		}
		return run(0)
	}
}
