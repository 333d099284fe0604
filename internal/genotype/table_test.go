package genotype

import (
	"errors"
	"math"
	"testing"

	"polyfit/internal/model"
)

func TestBuildTableSizeAndDelta(t *testing.T) {
	ranges := []model.Range{{Min: -10, Max: 10}, {Min: 0, Max: 1}, {Min: -3.5, Max: 120}}
	for _, r := range ranges {
		for _, bits := range []int{1, 4, 8, 12} {
			table, err := BuildTable(r, bits)
			if err != nil {
				t.Fatalf("build table %+v bits=%d: %v", r, bits, err)
			}
			if table.Size() != 1<<bits {
				t.Fatalf("table %+v bits=%d: size=%d want=%d", r, bits, table.Size(), 1<<bits)
			}
			span := table.Delta * float64(int(1)<<bits-1)
			if math.Abs(span-r.Width()) > 1e-9 {
				t.Fatalf("delta*(2^bits-1)=%g want %g", span, r.Width())
			}
			if table.Value(0) != Round(r.Min, 6) || table.Value(table.Size()-1) != Round(r.Max, 6) {
				t.Fatalf("table endpoints mismatch: %g..%g", table.Value(0), table.Value(table.Size()-1))
			}
			if table.Code(table.Size()-1) != FormatCode((1<<bits)-1, bits) || len(table.Code(0)) != bits {
				t.Fatalf("unexpected code layout for bits=%d", bits)
			}
		}
	}
}

func TestBuildTableRejectsInvalidRange(t *testing.T) {
	for _, r := range []model.Range{{Min: 1, Max: 1}, {Min: 2, Max: -2}} {
		_, err := BuildTable(r, DefaultBits)
		if !errors.Is(err, model.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange for %+v, got %v", r, err)
		}
	}
}

func TestBuildTableRejectsBits(t *testing.T) {
	if _, err := BuildTable(model.Range{Min: 0, Max: 1}, 0); err == nil {
		t.Fatal("expected error for zero bits")
	}
	if _, err := BuildTable(model.Range{Min: 0, Max: 1}, MaxBits+1); err == nil {
		t.Fatal("expected error for oversized bits")
	}
}

func TestZeroMapsToMiddleCode(t *testing.T) {
	r := model.Range{Min: -10, Max: 10}
	table, err := BuildTable(r, 8)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	if math.Abs(table.Delta-0.078431) > 1e-6 {
		t.Fatalf("delta=%g want ~0.078431", table.Delta)
	}
	code := table.NearestCode(0.0)
	if code != "10000000" {
		t.Fatalf("code for 0.0=%s want 10000000", code)
	}
	got, err := Decode(code, r, 8)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if math.Abs(got) > table.Delta/2+1e-6 {
		t.Fatalf("decoded %g, want ~0", got)
	}
}

func TestRoundTripOfEveryTableEntry(t *testing.T) {
	r := model.Range{Min: -7.25, Max: 31}
	table, err := BuildTable(r, 8)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	for i := 0; i < table.Size(); i++ {
		v := table.Value(i)
		got, err := Decode(table.NearestCode(v), r, 8)
		if err != nil {
			t.Fatalf("decode entry %d: %v", i, err)
		}
		if got != v {
			t.Fatalf("entry %d: round trip %g -> %g", i, v, got)
		}
	}
}

func TestNearestCodeWithinHalfDelta(t *testing.T) {
	r := model.Range{Min: -5, Max: 5}
	table, err := BuildTable(r, 6)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	for _, v := range []float64{-5, -4.99, -1.2345678, 0.017, 3.14159, 4.9999, 5} {
		got, err := table.Decode(table.NearestCode(v))
		if err != nil {
			t.Fatalf("decode %g: %v", v, err)
		}
		if math.Abs(got-v) > table.Delta/2+1e-6 {
			t.Fatalf("value %g decoded to %g, beyond delta/2=%g", v, got, table.Delta/2)
		}
	}
}

func TestNearestCodeClampsOutOfRange(t *testing.T) {
	table, err := BuildTable(model.Range{Min: 0, Max: 1}, 4)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	if got := table.NearestCode(-3); got != "0000" {
		t.Fatalf("below range: %s", got)
	}
	if got := table.NearestCode(9); got != "1111" {
		t.Fatalf("above range: %s", got)
	}
}

func TestDecodeRejectsMalformedCode(t *testing.T) {
	r := model.Range{Min: 0, Max: 1}
	if _, err := Decode("0101", r, 8); err == nil {
		t.Fatal("expected width error")
	}
	if _, err := Decode("0101012a", r, 8); err == nil {
		t.Fatal("expected parse error")
	}
}
