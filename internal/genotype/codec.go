package genotype

import (
	"fmt"
	"strings"

	"polyfit/internal/model"
)

// Codec converts between a genotype and the coefficient values it encodes.
// Segment i of a genotype is decoded with table i.
type Codec struct {
	bits   int
	tables []Table
}

func NewCodec(ranges []model.Range, bits int) (*Codec, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: coefficient ranges are required", model.ErrConfiguration)
	}
	if bits == 0 {
		bits = DefaultBits
	}
	tables := make([]Table, 0, len(ranges))
	for i, r := range ranges {
		table, err := BuildTable(r, bits)
		if err != nil {
			return nil, fmt.Errorf("coefficient %d: %w", i, err)
		}
		tables = append(tables, table)
	}
	return &Codec{bits: bits, tables: tables}, nil
}

func (c *Codec) Bits() int {
	return c.bits
}

// Coefficients is the number of segments in a genotype.
func (c *Codec) Coefficients() int {
	return len(c.tables)
}

// Length is the genotype width in bits.
func (c *Codec) Length() int {
	return c.bits * len(c.tables)
}

func (c *Codec) Table(i int) Table {
	return c.tables[i]
}

// Encode snaps each value to its nearest quantized level and concatenates the
// codes. It also returns the snapped values.
func (c *Codec) Encode(values []float64) (model.Genotype, []float64, error) {
	if len(values) != len(c.tables) {
		return "", nil, fmt.Errorf("encode: got %d values, want %d", len(values), len(c.tables))
	}
	codes := make([]string, len(values))
	snapped := make([]float64, len(values))
	for i, v := range values {
		idx := c.tables[i].NearestIndex(v)
		codes[i] = c.tables[i].Code(idx)
		snapped[i] = c.tables[i].Value(idx)
	}
	return Join(codes...), snapped, nil
}

// Decode splits g into segments and decodes each with its table.
func (c *Codec) Decode(g model.Genotype) ([]float64, error) {
	segments, err := Split(g, c.bits)
	if err != nil {
		return nil, err
	}
	if len(segments) != len(c.tables) {
		return nil, fmt.Errorf("decode: genotype has %d segments, want %d", len(segments), len(c.tables))
	}
	values := make([]float64, len(segments))
	for i, segment := range segments {
		v, err := c.tables[i].Decode(segment)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

func Join(codes ...string) model.Genotype {
	return model.Genotype(strings.Join(codes, ""))
}

// Split cuts g into bits-wide segments. The length of g must be a multiple of bits.
func Split(g model.Genotype, bits int) ([]string, error) {
	if bits <= 0 {
		return nil, fmt.Errorf("split: bits must be > 0")
	}
	if len(g) == 0 || len(g)%bits != 0 {
		return nil, fmt.Errorf("split: genotype length %d is not a multiple of %d", len(g), bits)
	}
	segments := make([]string, 0, len(g)/bits)
	for start := 0; start < len(g); start += bits {
		segments = append(segments, string(g[start:start+bits]))
	}
	return segments, nil
}
