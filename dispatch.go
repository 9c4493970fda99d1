package customdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMethod is the handler method dispatched when On is not used.
const DefaultMethod = "handle"

// ErrNoQueue is returned when a deferred dispatch has no queue to submit to.
var ErrNoQueue = errors.New("customdata: deferred dispatch without a queue")

// Handler is an action handler. Its method table is declared explicitly:
//
//	func (h *Mailer) Methods() customdata.Methods {
//		return customdata.Methods{
//			"handle": customdata.Handle(h.send),
//		}
//	}
type Handler interface {
	Methods() Methods
}

// Methods maps method names to their declaration.
type Methods map[string]Method

// Method is one dispatchable handler method and its declared input type.
type Method struct {
	input TypeRef
	call  func(context.Context, Data) (any, error)
}

// Input returns the declared input type, or nil when none was declared.
func (m Method) Input() TypeRef { return m.input }

// Handle declares a method taking a *T.
func Handle[T any, PT interface {
	*T
	Data
}](fn func(context.Context, PT) (any, error)) Method {
	m := Method{input: TypeOf[T, PT]()}
	if fn == nil {
		return m
	}
	m.call = func(ctx context.Context, d Data) (any, error) {
		p, ok := d.(PT)
		if !ok {
			return nil, newError(errorInfo{
				kind:     ErrActionArgumentNotCustomData,
				code:     CodeActionArgumentNotData,
				expected: m.input.typeName(),
				actual:   kindOf(d),
			})
		}
		return fn(ctx, p)
	}
	return m
}

// Func declares a method with an explicitly registered input type. Only
// DataType inputs can be dispatched; other inputs are reported as not
// being data types.
func Func(input TypeRef, fn func(context.Context, Data) (any, error)) Method {
	return Method{input: input, call: fn}
}

// Dispatcher routes data to a handler method. Every builder method returns
// a new Dispatcher; a configured Dispatcher may be shared.
type Dispatcher struct {
	factory  func() Handler
	prepared Handler
	method   string
	queue    Queue
	deferred bool
	queueN   string
	logger   zerolog.Logger
}

// NewDispatcher returns a Dispatcher creating a fresh handler from factory
// for every dispatch unless With provides one.
func NewDispatcher(factory func() Handler, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{factory: factory, method: DefaultMethod, logger: logger}
}

// With dispatches to the prepared handler h instead of a fresh one.
func (d *Dispatcher) With(h Handler) *Dispatcher {
	c := *d
	c.prepared = h
	return &c
}

// On selects the handler method.
func (d *Dispatcher) On(method string) *Dispatcher {
	c := *d
	c.method = method
	return &c
}

// Defer submits the invocation to q instead of running it.
func (d *Dispatcher) Defer(q Queue) *Dispatcher {
	c := *d
	c.queue = q
	c.deferred = true
	return &c
}

// OnQueue names the queue deferred tasks are submitted to.
func (d *Dispatcher) OnQueue(name string) *Dispatcher {
	c := *d
	c.queueN = name
	return &c
}

// Outcome is the result of a dispatch: the handler's return value, or the
// task handle when deferred.
type Outcome struct {
	Value    any
	Task     TaskHandle
	Deferred bool
}

// Dispatch resolves the handler method, builds its input from payload and
// invokes it. A payload that already is a data object is passed as is.
// Other payloads may be a map[string]any, a Payload or nil.
func (d *Dispatcher) Dispatch(ctx context.Context, payload any, beforeBoot ...func(Data) error) (out Outcome, err error) {
	h := d.prepared
	if h == nil && d.factory != nil {
		h = d.factory()
	}
	handler := typeNameOf(h)
	defer func() {
		observerOf(ctx).Dispatched(handler, d.method, d.deferred, err)
		ev := d.logger.Debug()
		if err != nil {
			ev = d.logger.Warn().Err(err)
		}
		ev.Str("handler", handler).Str("method", d.method).Bool("deferred", d.deferred).Msg("customdata: dispatch")
	}()

	info := errorInfo{extra: map[string]string{"handler": handler, "method": d.method}}
	var methods Methods
	if h != nil {
		methods = h.Methods()
	}
	m, ok := methods[d.method]
	if !ok {
		info.kind, info.code = ErrActionHandlerMethodNotFound, CodeHandlerMethodNotFound
		return out, newError(info)
	}
	if m.call == nil {
		info.kind, info.code = ErrUncallableValue, CodeUncallable
		info.field, info.extra["detail"] = d.method, "handler method"
		return out, newError(info)
	}

	data, isData := payload.(Data)
	if !isData || isNilData(data) {
		data, err = d.build(ctx, m, payload, info, beforeBoot)
		if err != nil {
			return out, err
		}
	}

	if d.deferred {
		if d.queue == nil {
			return out, ErrNoQueue
		}
		task := Task{ID: uuid.New(), Queue: d.queueN, Handler: h, Method: d.method, Data: data}
		th, err := d.queue.Submit(ctx, task)
		if err != nil {
			return out, fmt.Errorf("customdata: submit %s.%s: %w", handler, d.method, err)
		}
		return Outcome{Task: th, Deferred: true}, nil
	}

	v, err := m.call(ctx, data)
	if err != nil {
		return out, err
	}
	return Outcome{Value: v}, nil
}

func (d *Dispatcher) build(ctx context.Context, m Method, payload any, info errorInfo, beforeBoot []func(Data) error) (Data, error) {
	switch in := m.input.(type) {
	case nil:
		info.kind, info.code = ErrActionWithNoArgument, CodeActionNoArgument
		return nil, newError(info)
	case DataType:
		raw, err := payloadValues(payload)
		if err != nil {
			return nil, err
		}
		data := in.New()
		if err := construct(ctx, data, raw, beforeBoot); err != nil {
			return nil, err
		}
		return data, nil
	default:
		info.kind, info.code, info.expected = ErrActionArgumentNotCustomData, CodeActionArgumentNotData, in.typeName()
		return nil, newError(info)
	}
}

func payloadValues(payload any) (map[string]any, error) {
	switch p := payload.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return p, nil
	case Payload:
		return p.Values()
	default:
		return nil, payloadError("dispatch", fmt.Errorf("unsupported payload %T", payload))
	}
}

// Queue accepts deferred tasks. Submission success ends the dispatcher's
// responsibility for the task.
type Queue interface {
	Submit(ctx context.Context, t Task) (TaskHandle, error)
}

// TaskHandle identifies a submitted task.
type TaskHandle struct {
	ID    uuid.UUID
	Queue string
}

// Task is a deferred handler invocation.
type Task struct {
	ID      uuid.UUID
	Queue   string
	Handler Handler
	Method  string
	Data    Data
}

// HandlerName returns the qualified type name of the task's handler.
func (t Task) HandlerName() string { return typeNameOf(t.Handler) }

// Run invokes the task's handler method on its data.
func (t Task) Run(ctx context.Context) (any, error) {
	m, err := t.method()
	if err != nil {
		return nil, err
	}
	return m.call(ctx, t.Data)
}

// Input returns the data type the task's method takes.
func (t Task) Input() (DataType, error) {
	m, err := t.method()
	if err != nil {
		return nil, err
	}
	info := errorInfo{extra: map[string]string{"handler": t.HandlerName(), "method": t.Method}}
	switch in := m.input.(type) {
	case DataType:
		return in, nil
	case nil:
		info.kind, info.code = ErrActionWithNoArgument, CodeActionNoArgument
	default:
		info.kind, info.code, info.expected = ErrActionArgumentNotCustomData, CodeActionArgumentNotData, in.typeName()
	}
	return nil, newError(info)
}

func (t Task) method() (Method, error) {
	if t.Handler == nil {
		return Method{}, newError(errorInfo{kind: ErrActionHandlerMethodNotFound, code: CodeHandlerMethodNotFound,
			extra: map[string]string{"handler": "<nil>", "method": t.Method}})
	}
	m, ok := t.Handler.Methods()[t.Method]
	if !ok || m.call == nil {
		return Method{}, newError(errorInfo{kind: ErrActionHandlerMethodNotFound, code: CodeHandlerMethodNotFound,
			extra: map[string]string{"handler": t.HandlerName(), "method": t.Method}})
	}
	return m, nil
}
