package customdata

import (
	"context"
	"time"
)

// DefaultMaxDepth bounds nested data construction when no WithMaxDepth is set.
const DefaultMaxDepth = 32

// Observer receives instrumentation callbacks. Implementations must be safe
// for concurrent use when shared between goroutines.
type Observer interface {
	// Audited is called once per audit run, with the owning type name.
	Audited(typeName string, took time.Duration, err error)
	// Dispatched is called once per dispatch, after the handler returned or
	// the task was submitted.
	Dispatched(handler, method string, deferred bool, err error)
}

type nopObserver struct{}

func (nopObserver) Audited(string, time.Duration, error)      {}
func (nopObserver) Dispatched(string, string, bool, error) {}

// ---- construction-time context options ----

type contextKey int

const (
	_ctxKeyMaxDepth contextKey = iota
	_ctxKeyDepth
	_ctxKeyObserver
)

// WithMaxDepth returns a child context bounding nested data construction.
// Values <= 0 restore DefaultMaxDepth.
func WithMaxDepth(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, _ctxKeyMaxDepth, n)
}

// MaxDepth reports the nesting bound for the current construction.
func MaxDepth(ctx context.Context) int {
	if n, _ := ctx.Value(_ctxKeyMaxDepth).(int); n > 0 {
		return n
	}
	return DefaultMaxDepth
}

func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, _ctxKeyDepth, depth)
}

func depthOf(ctx context.Context) int {
	n, _ := ctx.Value(_ctxKeyDepth).(int)
	return n
}

// WithObserver attaches an Observer to every construction and dispatch
// running under ctx.
func WithObserver(ctx context.Context, o Observer) context.Context {
	return context.WithValue(ctx, _ctxKeyObserver, o)
}

func observerOf(ctx context.Context) Observer {
	if o, ok := ctx.Value(_ctxKeyObserver).(Observer); ok && o != nil {
		return o
	}
	return nopObserver{}
}
