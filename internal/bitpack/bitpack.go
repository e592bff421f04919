// Package bitpack reads and writes the packed bit fields shared by GRIB
// editions 1 and 2.
package bitpack

import (
	"fmt"
	"math"
)

// Reader reads big-endian bit fields.
type Reader struct {
	data []byte
	bit  int
}

// NewReader returns a Reader positioned at the first bit of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Read returns the next n bits as an unsigned integer.
func (r *Reader) Read(n int) (uint64, error) {
	if r.bit+n > 8*len(r.data) {
		return 0, fmt.Errorf("need %d bits at bit %d of %d", n, r.bit, 8*len(r.data))
	}
	var v uint64
	for i := 0; i < n; i++ {
		byteIdx, shift := r.bit/8, 7-r.bit%8
		v = v<<1 | uint64(r.data[byteIdx]>>uint(shift)&1)
		r.bit++
	}
	return v, nil
}

// Bits reads n single-bit flags.
func (r *Reader) Bits(n int) ([]int64, error) {
	out := make([]int64, n)
	for i := range out {
		b, err := r.Read(1)
		if err != nil {
			return nil, err
		}
		out[i] = int64(b)
	}
	return out, nil
}

// Writer writes big-endian bit fields, padding the last octet with zeros.
type Writer struct {
	data []byte
	bit  int
}

// Write appends the low n bits of v.
func (w *Writer) Write(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.bit%8 == 0 {
			w.data = append(w.data, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.data[len(w.data)-1] |= 1 << uint(7-w.bit%8)
		}
		w.bit++
	}
}

// Bytes returns the octets written so far.
func (w *Writer) Bytes() []byte { return w.data }

// Params holds the simple packing parameters of a field.
type Params struct {
	Reference    float64
	BinaryScale  int
	DecimalScale int
	BitsPerValue int
}

// Unpack decodes n values: Y × 10^D = R + X × 2^E.
func Unpack(p Params, data []byte, n int) ([]float64, error) {
	out := make([]float64, n)
	dscale := math.Pow(10, float64(-p.DecimalScale))
	if p.BitsPerValue == 0 {
		for i := range out {
			out[i] = p.Reference * dscale
		}
		return out, nil
	}
	r := NewReader(data)
	escale := math.Pow(2, float64(p.BinaryScale))
	for i := range out {
		x, err := r.Read(p.BitsPerValue)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = (p.Reference + float64(x)*escale) * dscale
	}
	return out, nil
}

// Pack chooses a reference value and binary scale that cover values with the
// given number of bits, and packs them. A constant field packs to zero bits.
func Pack(values []float64, bits int) (Params, []byte) {
	p := Params{BitsPerValue: bits}
	if len(values) == 0 {
		p.BitsPerValue = 0
		return p, nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	// The reference is stored as a float32; it must not exceed the minimum.
	ref := float32(lo)
	if float64(ref) > lo {
		ref = math.Nextafter32(ref, float32(math.Inf(-1)))
	}
	p.Reference = float64(ref)
	span := hi - p.Reference
	if span == 0 {
		p.BitsPerValue = 0
		return p, nil
	}
	maxCoded := math.Pow(2, float64(bits)) - 1
	p.BinaryScale = int(math.Ceil(math.Log2(span / maxCoded)))
	escale := math.Pow(2, float64(-p.BinaryScale))
	w := &Writer{}
	for _, v := range values {
		x := math.Round((v - p.Reference) * escale)
		x = math.Max(0, math.Min(x, maxCoded))
		w.Write(uint64(x), bits)
	}
	return p, w.Bytes()
}
