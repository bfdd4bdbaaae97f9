// Package compose turns an ordered list of middleware into a single pipeline
// entry point with onion-model semantics.
//
// For middleware M0..Mn-1 that each call next exactly once and return after
// it, the execution trace is pre(M0) .. pre(Mn-1), terminal, post(Mn-1) ..
// post(M0). Any error returned (or panic raised) by a middleware, before or
// after it calls next, travels outwards through the enclosing layers and is
// returned by the pipeline unless a layer handles it.
package compose

import (
	"reflect"
	"runtime/debug"
	"sync/atomic"

	"github.com/Suhaibinator/SOnion/pkg/common"
	"github.com/pkg/errors"
)

// Pipeline is the entry point produced by Compose. next, when non-nil, is
// called after the last middleware calls its own next.
type Pipeline[C any] func(c C, next common.Next) error

// Compose validates the middleware list and returns its pipeline entry point.
// The list is copied, so later changes to the caller's slice do not leak into
// the pipeline.
func Compose[C any](middlewares []common.Middleware[C]) (Pipeline[C], error) {
	for i, mw := range middlewares {
		if mw == nil {
			return nil, TypeErrorf("every middleware must be a function (index %d is nil)", i)
		}
	}

	stack := make([]common.Middleware[C], len(middlewares))
	copy(stack, middlewares)

	return func(c C, next common.Next) error {
		// cursor is scoped to this invocation only.
		var cursor atomic.Int64
		cursor.Store(-1)

		var dispatch func(index int) error
		dispatch = func(index int) error {
			for {
				cur := cursor.Load()
				if int64(index) <= cur {
					return errors.WithStack(ErrNextCalledMultipleTimes)
				}
				if cursor.CompareAndSwap(cur, int64(index)) {
					break
				}
			}

			if index == len(stack) {
				if next == nil {
					return nil
				}
				return invoke(func() error { return next() })
			}

			mw := stack[index]
			return invoke(func() error {
				return mw(c, func() error { return dispatch(index + 1) })
			})
		}

		return dispatch(0)
	}, nil
}

// Of composes a dynamically typed middleware list. It accepts
// []common.Middleware[C], common.MiddlewareChain[C] or []func(C, common.Next) error
// and fails with a *TypeError for anything else.
func Of[C any](v any) (Pipeline[C], error) {
	switch mws := v.(type) {
	case []common.Middleware[C]:
		return Compose(mws)
	case common.MiddlewareChain[C]:
		return Compose([]common.Middleware[C](mws))
	case []func(C, common.Next) error:
		converted := make([]common.Middleware[C], len(mws))
		for i, fn := range mws {
			converted[i] = fn
		}
		return Compose(converted)
	case nil:
		return nil, TypeErrorf("middlewares must be a slice, got nil")
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return nil, TypeErrorf("every middleware must be a function, got elements of %s", rv.Type().Elem())
	}
	return nil, TypeErrorf("middlewares must be a slice, got %T", v)
}

// invoke runs fn, turning a panic into a *PanicError so that panics and
// returned errors reach the caller through the same channel.
func invoke(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return fn()
}
