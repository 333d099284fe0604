package genotype

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"polyfit/internal/model"
)

const (
	DefaultBits = 8
	MaxBits     = 16
)

// Table quantizes one coefficient range into 2^bits evenly spaced values,
// each addressed by the bits-wide binary code of its index.
type Table struct {
	Range  model.Range
	Bits   int
	Delta  float64
	values []float64
}

// BuildTable quantizes r into 2^bits levels. Values are rounded to 6 decimals.
func BuildTable(r model.Range, bits int) (Table, error) {
	if err := r.Validate(); err != nil {
		return Table{}, err
	}
	if bits <= 0 || bits > MaxBits {
		return Table{}, fmt.Errorf("%w: bits must be in [1, %d], got %d", model.ErrConfiguration, MaxBits, bits)
	}

	levels := 1 << bits
	delta := quantumOf(r, bits)
	values := make([]float64, levels)
	for i := range values {
		values[i] = Round(r.Min+float64(i)*delta, 6)
	}
	return Table{Range: r, Bits: bits, Delta: delta, values: values}, nil
}

func (t Table) Size() int {
	return len(t.values)
}

// Value returns the quantized value at index i.
func (t Table) Value(i int) float64 {
	return t.values[i]
}

// Values returns a copy of the quantized values in code order.
func (t Table) Values() []float64 {
	return append([]float64(nil), t.values...)
}

// Code formats index i as a bits-wide binary string.
func (t Table) Code(i int) string {
	return FormatCode(i, t.Bits)
}

// NearestIndex returns the index of the quantized value closest to v after
// rounding v to 6 decimals. An exact tie between two neighbours resolves to
// the higher index, matching round((v-min)/delta) with halves rounded up.
func (t Table) NearestIndex(v float64) int {
	v = Round(v, 6)
	n := len(t.values)
	i := sort.SearchFloat64s(t.values, v)
	switch {
	case i == 0:
		return 0
	case i == n:
		return n - 1
	case t.values[i] == v:
		return i
	}
	below := v - t.values[i-1]
	above := t.values[i] - v
	if above <= below {
		return i
	}
	return i - 1
}

// NearestCode returns the binary code of the quantized value closest to v.
func (t Table) NearestCode(v float64) string {
	return t.Code(t.NearestIndex(v))
}

// Decode maps a bits-wide binary code back to its quantized value.
func (t Table) Decode(code string) (float64, error) {
	return Decode(code, t.Range, t.Bits)
}

// Decode maps a binary code to min + index*delta rounded to 6 decimals, using
// the same delta as BuildTable.
func Decode(code string, r model.Range, bits int) (float64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	index, err := ParseCode(code, bits)
	if err != nil {
		return 0, err
	}
	return Round(r.Min+float64(index)*quantumOf(r, bits), 6), nil
}

// ParseCode parses a bits-wide binary string.
func ParseCode(code string, bits int) (int, error) {
	if len(code) != bits {
		return 0, fmt.Errorf("code %q has width %d, want %d", code, len(code), bits)
	}
	index, err := strconv.ParseUint(code, 2, bits)
	if err != nil {
		return 0, fmt.Errorf("parse code %q: %w", code, err)
	}
	return int(index), nil
}

func FormatCode(index, bits int) string {
	return fmt.Sprintf("%0*b", bits, index)
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}

func quantumOf(r model.Range, bits int) float64 {
	return r.Width() / float64(int(1)<<bits-1)
}
