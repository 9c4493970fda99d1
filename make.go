package customdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Make builds a T from raw: the payload is audited against T's schema, the
// beforeBoot callbacks run, then T's Boot hook. On failure the object is not
// returned.
//
//	user, err := customdata.Make[UserData](ctx, map[string]any{"name": "Ann"})
func Make[T any, PT interface {
	*T
	Data
}](ctx context.Context, raw map[string]any, beforeBoot ...func(PT) error) (PT, error) {
	d := PT(new(T))
	hooks := make([]func(Data) error, len(beforeBoot))
	for i, fn := range beforeBoot {
		hooks[i] = func(Data) error { return fn(d) }
	}
	if err := construct(ctx, d, raw, hooks); err != nil {
		return nil, err
	}
	return d, nil
}

// MakeFrom decodes p and builds a T from it.
func MakeFrom[T any, PT interface {
	*T
	Data
}](ctx context.Context, p Payload, beforeBoot ...func(PT) error) (PT, error) {
	raw, err := p.Values()
	if err != nil {
		return nil, err
	}
	return Make[T, PT](ctx, raw, beforeBoot...)
}

// MustMake is like Make but panics on error. Intended for tests and static
// fixtures.
func MustMake[T any, PT interface {
	*T
	Data
}](ctx context.Context, raw map[string]any) PT {
	d, err := Make[T, PT](ctx, raw)
	if err != nil {
		panic(fmt.Sprintf("customdata: MustMake %T: %v", d, err))
	}
	return d
}

// Restore returns a fresh instance of t holding values as its validated
// content, in the order given by fields. It reverses ValidatedMap and
// ValidatedFields for data audited elsewhere, such as a queued task: the
// audit is skipped and Boot runs. Nested data stays in map form.
func Restore(ctx context.Context, t DataType, values map[string]any, fields []string) (Data, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	d := t.New()
	b := d.dataBase()
	b.init(d, values)
	for _, name := range fields {
		if v, ok := values[name]; ok {
			b.validated[name] = v
			b.order = append(b.order, name)
		}
	}
	b.state = StateAudited
	if bt, ok := d.(Booter); ok {
		if err := bt.Boot(withDepth(ctx, depthOf(ctx)+1)); err != nil {
			return nil, fmt.Errorf("customdata: boot %s: %w", b.typeName, err)
		}
	}
	b.state = StateBooted
	return d, nil
}

// construct runs the lifecycle on an already allocated object.
func construct(ctx context.Context, d Data, raw map[string]any, beforeBoot []func(Data) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b := d.dataBase()
	b.init(d, raw)

	depth := depthOf(ctx) + 1
	if limit := MaxDepth(ctx); depth > limit {
		err := newError(errorInfo{
			kind:  ErrNestingTooDeep,
			code:  CodeNestingTooDeep,
			owner: b.typeName,
			extra: map[string]string{"max": strconv.Itoa(limit)},
		})
		sink, ok := d.(ErrorSink)
		if !ok {
			return err
		}
		// a swallowed overflow leaves d constructed but neither audited nor booted
		return sink.HandleError(err.Error(), err)
	}
	ctx = withDepth(ctx, depth)

	if v, ok := d.(Validator); !ok || v.ShouldValidate() {
		start := time.Now()
		err := newAuditor(ctx, d, d.ExpectedProperties()).run()
		took := time.Since(start)
		observerOf(ctx).Audited(b.typeName, took, err)
		zerolog.Ctx(ctx).Debug().
			Str("type", b.typeName).
			Int("depth", depth).
			Dur("took", took).
			Err(err).
			Msg("customdata: audit")
		if err != nil {
			return err
		}
	}
	b.state = StateAudited

	for _, fn := range beforeBoot {
		if fn == nil {
			continue
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	if bt, ok := d.(Booter); ok {
		if err := bt.Boot(ctx); err != nil {
			return fmt.Errorf("customdata: boot %s: %w", b.typeName, err)
		}
	}
	b.state = StateBooted
	return nil
}
