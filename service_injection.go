package customdata

import "context"

// serviceKey is a unique key per type parameter T for context storage.
type serviceKey[T any] struct{}

// WithService stores a typed service instance in the context for use by
// hooks such as CastToRecord.
func WithService[T any](ctx context.Context, svc T) context.Context {
	return context.WithValue(ctx, serviceKey[T]{}, any(svc))
}

// Service retrieves a typed service instance from context.
func Service[T any](ctx context.Context) (T, bool) {
	var zero T
	v := ctx.Value(serviceKey[T]{})
	if v == nil {
		return zero, false
	}
	if tv, ok := v.(T); ok {
		return tv, true
	}
	return zero, false
}

// Record is an opaque persisted record. Only its identity is used, both for
// identity keys and for payload filling.
type Record interface {
	RecordID() any
}

// RecordFinder resolves records for CastToRecord. Provide one with
// WithService[RecordFinder].
type RecordFinder interface {
	FindRecord(ctx context.Context, kind string, id any) (Record, error)
}
