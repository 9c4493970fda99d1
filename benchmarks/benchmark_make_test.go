package customdata_test

import (
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/reoring/customdata"
)

// ---- Fixtures ----

type lineItem struct{ customdata.Base }

func (*lineItem) ExpectedProperties() customdata.Schema {
	return customdata.Schema{
		customdata.Expect("sku", customdata.String().NotEmpty()),
		customdata.Expect("qty", customdata.Integer()),
		customdata.Expect("price", customdata.Numeric()),
	}
}

type order struct{ customdata.Base }

func (*order) ExpectedProperties() customdata.Schema {
	return customdata.Schema{
		customdata.Expect("id", customdata.String()),
		customdata.Expect("status", customdata.String().InArray("QUOTE", "CONFIRMED")),
		customdata.Expect("items", customdata.ArrayOf(customdata.TypeOf[lineItem]())),
		customdata.Expect("note?", customdata.String()),
	}
}

// orderJSON returns an order with n line items:
// {"id":"o_1","status":"CONFIRMED","items":[{"sku":"sku_0","qty":1,"price":0.5},...]}
func orderJSON(n int) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"id":"o_1","status":"CONFIRMED","items":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"sku":"sku_`)
		buf.WriteString(strconv.Itoa(i))
		buf.WriteString(`","qty":`)
		buf.WriteString(strconv.Itoa(i%5 + 1))
		buf.WriteString(`,"price":`)
		buf.WriteString(strconv.Itoa(i))
		buf.WriteString(`.5}`)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

func orderMap(tb testing.TB, n int) map[string]any {
	tb.Helper()
	m, err := customdata.JSON(orderJSON(n)).Values()
	if err != nil {
		tb.Fatalf("decode: %v", err)
	}
	return m
}

// ---- Benchmarks ----

func BenchmarkMake_Flat(b *testing.B) {
	ctx := context.Background()
	raw := map[string]any{"id": "o_1", "status": "QUOTE", "items": []any{}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := customdata.Make[order](ctx, raw); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMake_Items(b *testing.B) {
	ctx := context.Background()
	for _, n := range []int{10, 100, 1000} {
		raw := orderMap(b, n)
		b.Run(strconv.Itoa(n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := customdata.Make[order](ctx, raw); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkMakeFrom_JSON(b *testing.B) {
	ctx := context.Background()
	data := orderJSON(100)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := customdata.MakeFrom[order](ctx, customdata.JSON(data)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkKey(b *testing.B) {
	raw := orderMap(b, 100)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		// Key is memoized per object, so each iteration builds a fresh one.
		b.StopTimer()
		o := customdata.MustMake[order](context.Background(), raw)
		b.StartTimer()
		if _, err := o.Digest(); err != nil {
			b.Fatal(err)
		}
	}
}
