// Package queue provides an in-process Queue for deferred dispatch.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reoring/customdata"
	"github.com/reoring/customdata/codec"
)

// ErrClosed is returned by Submit once Close was called.
var ErrClosed = errors.New("queue: closed")

// Descriptor is the serializable form of a task. Submit encodes it with the
// codec package and workers run the task from the decoded form; only the
// handler itself stays in process.
type Descriptor struct {
	ID       string         `cbor:"id"`
	Queue    string         `cbor:"queue"`
	Handler  string         `cbor:"handler"`
	Method   string         `cbor:"method"`
	DataType string         `cbor:"data_type"`
	Fields   []string       `cbor:"fields"`
	Values   map[string]any `cbor:"values"`
}

// Describe projects t onto its Descriptor.
func Describe(t customdata.Task) Descriptor {
	d := Descriptor{
		ID:      t.ID.String(),
		Queue:   t.Queue,
		Handler: t.HandlerName(),
		Method:  t.Method,
	}
	if b, ok := t.Data.(interface {
		TypeName() string
		ValidatedFields() []string
		ValidatedMap() map[string]any
	}); ok && t.Data != nil {
		d.DataType = b.TypeName()
		d.Fields = b.ValidatedFields()
		d.Values = b.ValidatedMap()
	}
	return d
}

// Encode returns the deterministic CBOR encoding of t's Descriptor.
func Encode(t customdata.Task) ([]byte, error) {
	return codec.Marshal(Describe(t))
}

// Decode reads a Descriptor written by Encode.
func Decode(b []byte) (Descriptor, error) {
	var d Descriptor
	if err := codec.Unmarshal(b, &d); err != nil {
		return Descriptor{}, fmt.Errorf("queue: decode task: %w", err)
	}
	return d, nil
}

// Restore rebuilds the task described by d around h, the in-process
// handler. The data is restored through the method's input type without a
// second audit.
func Restore(ctx context.Context, d Descriptor, h customdata.Handler) (customdata.Task, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return customdata.Task{}, fmt.Errorf("queue: task id %q: %w", d.ID, err)
	}
	t := customdata.Task{ID: id, Queue: d.Queue, Handler: h, Method: d.Method}
	if t.HandlerName() != d.Handler {
		return customdata.Task{}, fmt.Errorf("queue: task %s: handler %s, want %s", d.ID, t.HandlerName(), d.Handler)
	}
	if d.DataType == "" {
		return t, nil
	}
	in, err := t.Input()
	if err != nil {
		return customdata.Task{}, err
	}
	if in.Name() != d.DataType {
		return customdata.Task{}, fmt.Errorf("queue: task %s carries %s, %s takes %s", d.ID, d.DataType, d.Method, in.Name())
	}
	t.Data, err = customdata.Restore(ctx, in, d.Values, d.Fields)
	if err != nil {
		return customdata.Task{}, err
	}
	return t, nil
}

// Result reports the outcome of a task after its last attempt. Attempts is
// zero when the task could not be restored from its encoding.
type Result struct {
	Handle   customdata.TaskHandle
	Value    any
	Err      error
	Attempts int
}

// Options configures a Memory queue.
type Options struct {
	Workers     int           // default 1
	Buffer      int           // pending task capacity, default 64
	MaxAttempts int           // default 3
	Backoff     time.Duration // pause between attempts
	Logger      zerolog.Logger
	// OnResult is called from the worker goroutine once a task is done.
	OnResult func(Result)
}

// Memory runs tasks on a pool of goroutines. A failing task is retried up to
// MaxAttempts times, so tasks must tolerate running more than once.
type Memory struct {
	opts   Options
	jobs   chan job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

type job struct {
	handler customdata.Handler
	handle  customdata.TaskHandle
	encoded []byte
}

// NewMemory starts the worker pool.
func NewMemory(opts Options) *Memory {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Memory{opts: opts, jobs: make(chan job, opts.Buffer), ctx: ctx, cancel: cancel}
	for i := 0; i < opts.Workers; i++ {
		m.wg.Add(1)
		go m.work(i)
	}
	return m
}

// Submit accepts t. It blocks while the buffer is full, until ctx is done.
func (m *Memory) Submit(ctx context.Context, t customdata.Task) (customdata.TaskHandle, error) {
	encoded, err := Encode(t)
	if err != nil {
		return customdata.TaskHandle{}, fmt.Errorf("queue: encode task %s: %w", t.ID, err)
	}
	h := customdata.TaskHandle{ID: t.ID, Queue: t.Queue}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return customdata.TaskHandle{}, ErrClosed
	}
	select {
	case m.jobs <- job{handler: t.Handler, handle: h, encoded: encoded}:
	case <-ctx.Done():
		return customdata.TaskHandle{}, ctx.Err()
	}
	if ev := m.opts.Logger.Debug(); ev.Enabled() {
		diag, _ := codec.Diagnose(encoded)
		ev.Str("task", t.ID.String()).
			Str("queue", t.Queue).
			Int("bytes", len(encoded)).
			Str("descriptor", diag).
			Msg("queue: task accepted")
	}
	return h, nil
}

// Close stops accepting tasks and waits for queued ones to finish. When ctx
// ends first, running tasks are cancelled and ctx's error is returned.
func (m *Memory) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

func (m *Memory) work(id int) {
	defer m.wg.Done()
	log := m.opts.Logger.With().Int("worker", id).Logger()
	for j := range m.jobs {
		res := m.run(log, j)
		if m.opts.OnResult != nil {
			m.opts.OnResult(res)
		}
	}
}

func (m *Memory) run(log zerolog.Logger, j job) Result {
	res := Result{Handle: j.handle}
	desc, err := Decode(j.encoded)
	if err != nil {
		res.Err = err
		log.Error().Err(err).Str("task", j.handle.ID.String()).Msg("queue: task dropped")
		return res
	}
	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		// every attempt gets a fresh copy of the data
		task, err := Restore(m.ctx, desc, j.handler)
		if err != nil {
			res.Err = err
			log.Error().Err(err).Str("task", j.handle.ID.String()).Msg("queue: task dropped")
			return res
		}
		res.Attempts = attempt
		res.Value, res.Err = task.Run(m.ctx)
		if res.Err == nil {
			log.Debug().Str("task", j.handle.ID.String()).Int("attempt", attempt).Msg("queue: task done")
			return res
		}
		log.Warn().Err(res.Err).Str("task", j.handle.ID.String()).Int("attempt", attempt).Msg("queue: task failed")
		if attempt == m.opts.MaxAttempts || m.ctx.Err() != nil {
			break
		}
		if m.opts.Backoff > 0 {
			select {
			case <-time.After(m.opts.Backoff):
			case <-m.ctx.Done():
				return res
			}
		}
	}
	return res
}
