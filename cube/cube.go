// Package cube is an in-memory model of gridded data: an N-dimensional value
// array described by named coordinates, cell methods and attributes.
package cube

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brunoga/deep"
)

// AuxCoord is a coordinate attached to zero or more dimensions. A scalar
// coordinate has no dimensions.
type AuxCoord struct {
	*Coord
	Dims []int
}

// Cube is a field of values with its metadata.
type Cube struct {
	StandardName string
	LongName     string
	VarName      string
	Units        string
	Attributes   map[string]interface{}
	CellMethods  []CellMethod

	// DimCoords holds one entry per dimension; a nil entry is an anonymous
	// dimension.
	DimCoords []*Coord
	AuxCoords []AuxCoord
	Factory   *HybridFactory

	Data Data
}

// New returns a cube over data with anonymous dimensions.
func New(data Data) *Cube {
	return &Cube{
		Attributes: map[string]interface{}{},
		DimCoords:  make([]*Coord, len(data.Shape())),
		Data:       data,
	}
}

// Name returns the most descriptive name of the cube.
func (c *Cube) Name() string {
	switch {
	case c.StandardName != "":
		return c.StandardName
	case c.LongName != "":
		return c.LongName
	case c.VarName != "":
		return c.VarName
	}
	return "unknown"
}

// Shape returns the data shape.
func (c *Cube) Shape() []int { return c.Data.Shape() }

// AddDimCoord binds coord to dimension dim.
func (c *Cube) AddDimCoord(coord *Coord, dim int) error {
	shape := c.Shape()
	if dim < 0 || dim >= len(shape) {
		return fmt.Errorf("dimension %d out of range for shape %v", dim, shape)
	}
	if c.DimCoords[dim] != nil {
		return fmt.Errorf("dimension %d already described by %q", dim, c.DimCoords[dim].Name())
	}
	if coord.Len() != shape[dim] {
		return fmt.Errorf("coordinate %q has %d points, dimension %d has length %d", coord.Name(), coord.Len(), dim, shape[dim])
	}
	if !coord.IsMonotonic() {
		return fmt.Errorf("dimension coordinate %q is not monotonic", coord.Name())
	}
	if err := coord.Validate(); err != nil {
		return err
	}
	c.DimCoords[dim] = coord
	return nil
}

// AddAuxCoord binds coord to dims, which may be empty for a scalar.
func (c *Cube) AddAuxCoord(coord *Coord, dims ...int) error {
	if err := coord.Validate(); err != nil {
		return err
	}
	shape := c.Shape()
	want := 1
	for _, d := range dims {
		if d < 0 || d >= len(shape) {
			return fmt.Errorf("dimension %d out of range for shape %v", d, shape)
		}
		want *= shape[d]
	}
	if coord.Len() != want {
		return fmt.Errorf("coordinate %q has %d points, want %d", coord.Name(), coord.Len(), want)
	}
	c.AuxCoords = append(c.AuxCoords, AuxCoord{Coord: coord, Dims: dims})
	return nil
}

// Coord finds a coordinate by name. The dimensions it spans are returned
// with it.
func (c *Cube) Coord(name string) (*Coord, []int, bool) {
	for d, dc := range c.DimCoords {
		if dc != nil && dc.Name() == name {
			return dc, []int{d}, true
		}
	}
	for _, ac := range c.AuxCoords {
		if ac.Name() == name {
			return ac.Coord, ac.Dims, true
		}
	}
	return nil, nil, false
}

// ScalarCoord returns the single-point value of the named scalar coordinate.
func (c *Cube) ScalarCoord(name string) (*Coord, bool) {
	coord, dims, ok := c.Coord(name)
	if !ok || len(dims) != 0 {
		return nil, false
	}
	return coord, true
}

// RemoveCoord drops the named coordinate. It reports whether one was found.
func (c *Cube) RemoveCoord(name string) bool {
	for d, dc := range c.DimCoords {
		if dc != nil && dc.Name() == name {
			c.DimCoords[d] = nil
			return true
		}
	}
	for i, ac := range c.AuxCoords {
		if ac.Name() == name {
			c.AuxCoords = append(c.AuxCoords[:i], c.AuxCoords[i+1:]...)
			return true
		}
	}
	return false
}

// AxisCoords returns the coordinates guessed to run along axis, dimension
// coordinates first.
func (c *Cube) AxisCoords(axis string) []AuxCoord {
	var out []AuxCoord
	for d, dc := range c.DimCoords {
		if dc != nil && Axis(dc) == axis {
			out = append(out, AuxCoord{Coord: dc, Dims: []int{d}})
		}
	}
	for _, ac := range c.AuxCoords {
		if Axis(ac.Coord) == axis {
			out = append(out, ac)
		}
	}
	return out
}

// DimCoordOf returns the dimension index of coord if it is a dimension
// coordinate of c, else -1.
func (c *Cube) DimCoordOf(coord *Coord) int {
	for d, dc := range c.DimCoords {
		if dc == coord {
			return d
		}
	}
	return -1
}

// Validate checks the shape invariants.
func (c *Cube) Validate() error {
	shape := c.Shape()
	if len(c.DimCoords) != len(shape) {
		return fmt.Errorf("cube %q has %d dimension slots for shape %v", c.Name(), len(c.DimCoords), shape)
	}
	for d, dc := range c.DimCoords {
		if dc != nil && dc.Len() != shape[d] {
			return fmt.Errorf("dimension coordinate %q has %d points, dimension %d has length %d", dc.Name(), dc.Len(), d, shape[d])
		}
	}
	return nil
}

// Copy returns a copy of c with independent metadata. The data is shared.
func (c *Cube) Copy() *Cube {
	data := c.Data
	meta := *c
	meta.Data = nil
	out := deep.MustCopy(&meta)
	out.Data = data
	return out
}

// Summary is a one line description of c.
func (c *Cube) Summary() string {
	var dims []string
	for d, n := range c.Shape() {
		name := "--"
		if c.DimCoords[d] != nil {
			name = c.DimCoords[d].Name()
		}
		dims = append(dims, fmt.Sprintf("%s: %d", name, n))
	}
	return fmt.Sprintf("%s / (%s) (%s)", c.Name(), c.Units, strings.Join(dims, "; "))
}

// String describes c and its coordinates.
func (c *Cube) String() string {
	var b strings.Builder
	b.WriteString(c.Summary())
	b.WriteString("\n")
	for _, dc := range c.DimCoords {
		if dc != nil {
			fmt.Fprintf(&b, "    dim: %v\n", dc)
		}
	}
	for _, ac := range c.AuxCoords {
		kind := "aux"
		if len(ac.Dims) == 0 {
			kind = "scalar"
		}
		fmt.Fprintf(&b, "    %s: %v\n", kind, ac.Coord)
	}
	for _, m := range c.CellMethods {
		fmt.Fprintf(&b, "    cell method: %v\n", m)
	}
	keys := make([]string, 0, len(c.Attributes))
	for k := range c.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "    attribute %s: %v\n", k, c.Attributes[k])
	}
	return b.String()
}
