package cube

import (
	"fmt"
)

// Data is the value array of a cube. It may be resident in memory
// (*MaskedArray) or loaded on demand.
type Data interface {
	Shape() []int
	// Materialize returns the values, reading them if necessary.
	Materialize() (*MaskedArray, error)
}

// MaskedArray is a row-major array with an optional element mask.
type MaskedArray struct {
	shape  []int
	Values []float64
	// Mask is nil when no element is masked; true marks a masked element.
	Mask []bool
}

// NewMaskedArray checks that values and mask match shape.
func NewMaskedArray(shape []int, values []float64, mask []bool) (*MaskedArray, error) {
	n := Size(shape)
	if len(values) != n {
		return nil, fmt.Errorf("%d values do not fill shape %v", len(values), shape)
	}
	if mask != nil && len(mask) != n {
		return nil, fmt.Errorf("mask of length %d does not match shape %v", len(mask), shape)
	}
	return &MaskedArray{shape: append([]int(nil), shape...), Values: values, Mask: mask}, nil
}

// Zeros returns an unmasked array of zeros.
func Zeros(shape []int) *MaskedArray {
	return &MaskedArray{shape: append([]int(nil), shape...), Values: make([]float64, Size(shape))}
}

func (a *MaskedArray) Shape() []int { return a.shape }

func (a *MaskedArray) Materialize() (*MaskedArray, error) { return a, nil }

// Masked reports whether element i is masked.
func (a *MaskedArray) Masked(i int) bool {
	return a.Mask != nil && a.Mask[i]
}

// AnyMasked reports whether at least one element is masked.
func (a *MaskedArray) AnyMasked() bool {
	for _, m := range a.Mask {
		if m {
			return true
		}
	}
	return false
}

// Reshape returns a view of a with a new shape of the same size.
func (a *MaskedArray) Reshape(shape []int) (*MaskedArray, error) {
	return NewMaskedArray(shape, a.Values, a.Mask)
}

// Extract returns the sub-array obtained by fixing every dimension listed in
// fixed to the given index. The remaining dimensions keep their order.
func (a *MaskedArray) Extract(fixed map[int]int) (*MaskedArray, error) {
	var shape []int
	for d, n := range a.shape {
		if i, ok := fixed[d]; ok {
			if i < 0 || i >= n {
				return nil, fmt.Errorf("index %d out of range for dimension %d of length %d", i, d, n)
			}
			continue
		}
		shape = append(shape, n)
	}
	strides := Strides(a.shape)
	out := &MaskedArray{shape: shape, Values: make([]float64, Size(shape))}
	if a.Mask != nil {
		out.Mask = make([]bool, len(out.Values))
	}
	idx := make([]int, len(a.shape))
	for d, i := range fixed {
		idx[d] = i
	}
	free := make([]int, 0, len(shape))
	for d := range a.shape {
		if _, ok := fixed[d]; !ok {
			free = append(free, d)
		}
	}
	for k := range out.Values {
		rem := k
		for j := len(free) - 1; j >= 0; j-- {
			d := free[j]
			idx[d] = rem % a.shape[d]
			rem /= a.shape[d]
		}
		src := 0
		for d, i := range idx {
			src += i * strides[d]
		}
		out.Values[k] = a.Values[src]
		if a.Mask != nil {
			out.Mask[k] = a.Mask[src]
		}
	}
	return out, nil
}

// Transpose2D swaps the axes of a two dimensional array.
func (a *MaskedArray) Transpose2D() (*MaskedArray, error) {
	if len(a.shape) != 2 {
		return nil, fmt.Errorf("cannot transpose array of shape %v", a.shape)
	}
	rows, cols := a.shape[0], a.shape[1]
	out := &MaskedArray{shape: []int{cols, rows}, Values: make([]float64, len(a.Values))}
	if a.Mask != nil {
		out.Mask = make([]bool, len(a.Mask))
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Values[c*rows+r] = a.Values[r*cols+c]
			if a.Mask != nil {
				out.Mask[c*rows+r] = a.Mask[r*cols+c]
			}
		}
	}
	return out, nil
}

// Size is the number of elements in shape.
func Size(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Strides returns row-major element strides for shape.
func Strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for d := len(shape) - 1; d >= 0; d-- {
		s[d] = acc
		acc *= shape[d]
	}
	return s
}

// stacked joins equally shaped parts along a new leading dimension without
// reading them.
type stacked struct {
	parts []Data
}

func (s *stacked) Shape() []int {
	return append([]int{len(s.parts)}, s.parts[0].Shape()...)
}

func (s *stacked) Materialize() (*MaskedArray, error) {
	var values []float64
	var mask []bool
	for i, p := range s.parts {
		a, err := p.Materialize()
		if err != nil {
			return nil, fmt.Errorf("materializing part %d: %w", i, err)
		}
		if a.Mask != nil && mask == nil {
			mask = make([]bool, len(values), len(values)+len(a.Values))
		}
		values = append(values, a.Values...)
		if mask != nil {
			if a.Mask != nil {
				mask = append(mask, a.Mask...)
			} else {
				mask = append(mask, make([]bool, len(a.Values))...)
			}
		}
	}
	return NewMaskedArray(s.Shape(), values, mask)
}
