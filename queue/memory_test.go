package queue_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reoring/customdata"
	"github.com/reoring/customdata/queue"
)

type mail struct{ customdata.Base }

func (*mail) ExpectedProperties() customdata.Schema {
	return customdata.Schema{
		customdata.Expect("to", customdata.String()),
		customdata.Expect("retries?", customdata.Integer().Default(0)),
	}
}

type mailer struct {
	failures atomic.Int32
	sent     atomic.Int32
	block    chan struct{}
}

func (m *mailer) Methods() customdata.Methods {
	return customdata.Methods{
		"handle": customdata.Handle(func(ctx context.Context, d *mail) (any, error) {
			if m.block != nil {
				select {
				case <-m.block:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			if m.failures.Add(-1) >= 0 {
				return nil, errors.New("smtp unavailable")
			}
			m.sent.Add(1)
			return "sent to " + d.GetString("to"), nil
		}),
	}
}

type collector struct {
	mu      sync.Mutex
	results []queue.Result
	done    chan struct{}
}

func newCollector() *collector { return &collector{done: make(chan struct{}, 16)} }

func (c *collector) add(r queue.Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.done <- struct{}{}
}

func (c *collector) wait(t *testing.T) queue.Result {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a result")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[len(c.results)-1]
}

func dispatcher(h *mailer, q customdata.Queue) *customdata.Dispatcher {
	return customdata.NewDispatcher(func() customdata.Handler { return h }, zerolog.Nop()).Defer(q).OnQueue("mail")
}

func TestMemory_RetriesUntilSuccess(t *testing.T) {
	c := newCollector()
	q := queue.NewMemory(queue.Options{MaxAttempts: 3, Backoff: time.Millisecond, OnResult: c.add, Logger: zerolog.Nop()})
	defer q.Close(context.Background())

	h := &mailer{}
	h.failures.Store(2)
	out, err := dispatcher(h, q).Dispatch(context.Background(), map[string]any{"to": "amy@example.com"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	res := c.wait(t)
	if res.Err != nil || res.Attempts != 3 || res.Value != "sent to amy@example.com" {
		t.Fatalf("result=%+v", res)
	}
	if res.Handle != out.Task {
		t.Fatalf("handle mismatch: %+v vs %+v", res.Handle, out.Task)
	}
}

func TestMemory_GivesUpAfterMaxAttempts(t *testing.T) {
	c := newCollector()
	q := queue.NewMemory(queue.Options{MaxAttempts: 2, OnResult: c.add})
	defer q.Close(context.Background())

	h := &mailer{}
	h.failures.Store(10)
	if _, err := dispatcher(h, q).Dispatch(context.Background(), map[string]any{"to": "amy@example.com"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	res := c.wait(t)
	if res.Err == nil || res.Attempts != 2 || h.sent.Load() != 0 {
		t.Fatalf("result=%+v sent=%d", res, h.sent.Load())
	}
}

func TestMemory_SubmitAfterClose(t *testing.T) {
	q := queue.NewMemory(queue.Options{})
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := dispatcher(&mailer{}, q).Dispatch(context.Background(), map[string]any{"to": "amy@example.com"})
	if !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestMemory_CloseCancelsOnDeadline(t *testing.T) {
	c := newCollector()
	q := queue.NewMemory(queue.Options{MaxAttempts: 1, OnResult: c.add})
	h := &mailer{block: make(chan struct{})}
	if _, err := dispatcher(h, q).Dispatch(context.Background(), map[string]any{"to": "amy@example.com"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if res := c.wait(t); !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("running task should observe cancellation: %+v", res)
	}
}

func TestDescribe_Deterministic(t *testing.T) {
	d := customdata.MustMake[mail](context.Background(), map[string]any{"to": "amy@example.com", "note": "dropped"})
	task := customdata.Task{ID: uuid.MustParse("0b6c1d2e-3f40-4a5b-8c6d-7e8f90a1b2c3"), Queue: "mail", Handler: &mailer{}, Method: "handle", Data: d}

	desc := queue.Describe(task)
	if desc.DataType != "queue_test.mail" || desc.Handler != "queue_test.mailer" {
		t.Fatalf("descriptor=%+v", desc)
	}
	if _, ok := desc.Values["note"]; ok {
		t.Fatalf("descriptor must carry validated values only: %v", desc.Values)
	}
	a, err := queue.Encode(task)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 0; i < 5; i++ {
		b, _ := queue.Encode(task)
		if !bytes.Equal(a, b) {
			t.Fatalf("encoding is not deterministic")
		}
	}
}

type inbox struct{ got chan *mail }

func (i *inbox) Methods() customdata.Methods {
	return customdata.Methods{
		"handle": customdata.Handle(func(_ context.Context, d *mail) (any, error) {
			i.got <- d
			return nil, nil
		}),
	}
}

func TestMemory_RunsFromEncodedTask(t *testing.T) {
	q := queue.NewMemory(queue.Options{})
	defer q.Close(context.Background())

	sent := customdata.MustMake[mail](context.Background(), map[string]any{"to": "amy@example.com", "note": "local only"})
	h := &inbox{got: make(chan *mail, 1)}
	d := customdata.NewDispatcher(func() customdata.Handler { return h }, zerolog.Nop()).Defer(q)
	if _, err := d.Dispatch(context.Background(), sent); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	var got *mail
	select {
	case got = <-h.got:
	case <-time.After(5 * time.Second):
		t.Fatalf("task did not run")
	}
	if got == sent {
		t.Fatalf("worker must run on data restored from the encoding")
	}
	if got.GetString("to") != "amy@example.com" || got.Has("note") {
		t.Fatalf("restored data=%v", got.All())
	}
	if !reflect.DeepEqual(got.ValidatedFields(), []string{"to"}) || got.State() != customdata.StateBooted {
		t.Fatalf("fields=%v state=%v", got.ValidatedFields(), got.State())
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	d := customdata.MustMake[mail](context.Background(), map[string]any{"to": "amy@example.com", "retries": 2})
	task := customdata.Task{ID: uuid.New(), Queue: "mail", Handler: &mailer{}, Method: "handle", Data: d}
	b, err := queue.Encode(task)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	desc, err := queue.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if desc.ID != task.ID.String() || desc.DataType != "queue_test.mail" || !reflect.DeepEqual(desc.Fields, []string{"to", "retries"}) {
		t.Fatalf("descriptor=%+v", desc)
	}

	back, err := queue.Restore(context.Background(), desc, &mailer{})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if back.ID != task.ID || back.Queue != "mail" {
		t.Fatalf("task=%+v", back)
	}
	m, ok := back.Data.(*mail)
	if !ok || m.GetInt("retries") != 2 || m.GetString("to") != "amy@example.com" {
		t.Fatalf("data=%#v", back.Data)
	}

	desc.DataType = "queue_test.other"
	if _, err := queue.Restore(context.Background(), desc, &mailer{}); err == nil {
		t.Fatalf("expected data type mismatch")
	}
	if _, err := queue.Decode([]byte{0xff}); err == nil {
		t.Fatalf("expected decode error")
	}
}
