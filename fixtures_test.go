package customdata_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/reoring/customdata"
)

type UserData struct{ customdata.Base }

func (*UserData) ExpectedProperties() customdata.Schema {
	return customdata.Schema{
		customdata.Expect("name", customdata.String()),
		customdata.Expect("age", customdata.Numeric().Default(18)),
		customdata.Expect("tags?", customdata.ArrayOf(customdata.TypeString)),
	}
}

type AddressData struct{ customdata.Base }

func (*AddressData) ExpectedProperties() customdata.Schema {
	return customdata.Schema{
		customdata.Expect("city", customdata.String()),
		customdata.Expect("zip?", nil),
	}
}

type ShipmentData struct{ customdata.Base }

func (*ShipmentData) ExpectedProperties() customdata.Schema {
	return customdata.Schema{
		customdata.Expect("ref", nil),
		customdata.Expect("origin", customdata.OfType(customdata.TypeOf[AddressData]())),
		customdata.Expect("stops?", customdata.ArrayOf(customdata.TypeOf[AddressData]())),
	}
}

type NodeData struct{ customdata.Base }

func (*NodeData) ExpectedProperties() customdata.Schema {
	return customdata.Schema{
		customdata.Expect("id", customdata.Integer()),
		customdata.Expect("child?", customdata.OfType(customdata.TypeOf[NodeData]())),
	}
}

// SessionData leaves its token out of the identity key.
type SessionData struct{ customdata.Base }

func (*SessionData) ExpectedProperties() customdata.Schema {
	return customdata.Schema{
		customdata.Expect("user", customdata.String()),
		customdata.Expect("token", customdata.String()),
	}
}

func (*SessionData) IgnoreForKey() []string { return []string{"token"} }

// LenientData collects errors instead of failing.
type LenientData struct {
	customdata.Base
	errs []error
}

func (*LenientData) ExpectedProperties() customdata.Schema {
	return customdata.Schema{
		customdata.Expect("name", customdata.String()),
		customdata.Expect("count", customdata.Integer()),
		customdata.Expect("email", customdata.String().NotEmpty()),
	}
}

func (d *LenientData) HandleError(_ string, err error) error {
	d.errs = append(d.errs, err)
	return nil
}

// BootedData records the lifecycle order.
type BootedData struct {
	customdata.Base
	steps []string
}

func (*BootedData) ExpectedProperties() customdata.Schema {
	return customdata.Schema{customdata.Expect("first", customdata.String())}
}

func (d *BootedData) Boot(context.Context) error {
	d.steps = append(d.steps, "boot:"+d.State().String())
	d.Set("initial", d.GetString("first")[:1])
	return nil
}

// TrustedData skips auditing.
type TrustedData struct{ customdata.Base }

func (*TrustedData) ExpectedProperties() customdata.Schema {
	return customdata.Schema{customdata.Expect("name", customdata.String())}
}

func (*TrustedData) ShouldValidate() bool { return false }

type countingObserver struct {
	mu         sync.Mutex
	audits     int
	dispatches int
	lastErr    error
}

func (o *countingObserver) Audited(string, time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audits++
}

func (o *countingObserver) Dispatched(_, _ string, _ bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatches++
	o.lastErr = err
}

type product struct{ id int }

func (p product) RecordID() any { return p.id }

type productFinder map[int]product

func (f productFinder) FindRecord(_ context.Context, kind string, id any) (customdata.Record, error) {
	if kind != "product" {
		return nil, errors.New("unknown record kind")
	}
	n, ok := id.(int)
	if !ok {
		return nil, nil
	}
	p, ok := f[n]
	if !ok {
		return nil, nil
	}
	return p, nil
}

// LenientNodeData nests itself and collects errors.
type LenientNodeData struct {
	customdata.Base
	errs []error
}

func (*LenientNodeData) ExpectedProperties() customdata.Schema {
	return customdata.Schema{
		customdata.Expect("id", customdata.Integer()),
		customdata.Expect("child?", customdata.OfType(customdata.TypeOf[LenientNodeData]())),
	}
}

func (d *LenientNodeData) HandleError(_ string, err error) error {
	d.errs = append(d.errs, err)
	return nil
}
