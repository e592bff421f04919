package cube

import (
	"fmt"
	"strings"

	"github.com/gonum/floats"
)

// Merge combines cubes that are identical except for the values of their
// scalar coordinates into cubes with one extra leading dimension. Cubes that
// cannot be combined are returned unchanged. Order of first appearance is
// kept.
func Merge(cubes []*Cube) ([]*Cube, error) {
	var order []string
	groups := map[string][]*Cube{}
	for _, c := range cubes {
		sig := c.signature()
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], c)
	}
	var out []*Cube
	for _, sig := range order {
		g := groups[sig]
		if len(g) == 1 {
			out = append(out, g[0])
			continue
		}
		merged, err := mergeGroup(g)
		if err != nil {
			return nil, err
		}
		out = append(out, merged...)
	}
	return out, nil
}

// signature describes everything but the values of scalar coordinates.
func (c *Cube) signature() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s|%s|%v|%+v|%v\n", c.StandardName, c.LongName, c.VarName, c.Units,
		attrString(c.Attributes), c.CellMethods, c.Factory, c.Shape())
	for d, dc := range c.DimCoords {
		if dc == nil {
			fmt.Fprintf(&b, "dim %d anonymous\n", d)
			continue
		}
		fmt.Fprintf(&b, "dim %d %s %v %v %v\n", d, coordMeta(dc), dc.Points, dc.Bounds, dc.BoundsMask)
	}
	for _, ac := range c.AuxCoords {
		if len(ac.Dims) == 0 {
			fmt.Fprintf(&b, "scalar %s bounded=%v\n", coordMeta(ac.Coord), ac.HasBounds())
			continue
		}
		fmt.Fprintf(&b, "aux %v %s %v %v\n", ac.Dims, coordMeta(ac.Coord), ac.Points, ac.Bounds)
	}
	return b.String()
}

func coordMeta(c *Coord) string {
	return fmt.Sprintf("%s/%s/%s/%s/%v/%s", c.StandardName, c.LongName, c.VarName, c.Units, c.System, attrString(c.Attributes))
}

func mergeGroup(g []*Cube) ([]*Cube, error) {
	first := g[0]
	var varying []int
	for i, ac := range first.AuxCoords {
		if len(ac.Dims) != 0 {
			continue
		}
		for _, other := range g[1:] {
			if !ac.Coord.Equal(other.AuxCoords[i].Coord) {
				varying = append(varying, i)
				break
			}
		}
	}
	if len(varying) == 0 {
		return g, nil
	}

	lead := -1
	for _, i := range varying {
		if uniquePoints(g, i) {
			lead = i
			break
		}
	}
	if lead < 0 {
		return g, nil
	}

	keys := make([]float64, len(g))
	for k, c := range g {
		keys[k] = c.AuxCoords[lead].Points[0]
	}
	inds := make([]int, len(g))
	floats.Argsort(keys, inds)

	parts := make([]Data, len(g))
	for k, idx := range inds {
		parts[k] = g[idx].Data
	}
	shape := parts[0].Shape()
	for _, p := range parts[1:] {
		if fmt.Sprint(p.Shape()) != fmt.Sprint(shape) {
			return nil, fmt.Errorf("cannot merge %q: shapes %v and %v differ", first.Name(), shape, p.Shape())
		}
	}

	out := first.Copy()
	out.Data = &stacked{parts: parts}
	out.DimCoords = append([]*Coord{nil}, out.DimCoords...)
	out.AuxCoords = nil
	isVarying := map[int]bool{}
	for _, i := range varying {
		isVarying[i] = true
	}
	for i, ac := range first.AuxCoords {
		if !isVarying[i] {
			dims := make([]int, len(ac.Dims))
			for k, d := range ac.Dims {
				dims[k] = d + 1
			}
			out.AuxCoords = append(out.AuxCoords, AuxCoord{Coord: ac.Coord.Copy(), Dims: dims})
			continue
		}
		stackedCoord := ac.Coord.copyMetadata()
		for _, idx := range inds {
			src := g[idx].AuxCoords[i].Coord
			stackedCoord.Points = append(stackedCoord.Points, src.Points[0])
			if src.HasBounds() {
				stackedCoord.Bounds = append(stackedCoord.Bounds, src.Bounds[0])
				if src.BoundsMask != nil {
					if stackedCoord.BoundsMask == nil {
						stackedCoord.BoundsMask = make([][2]bool, len(stackedCoord.Bounds)-1)
					}
					stackedCoord.BoundsMask = append(stackedCoord.BoundsMask, src.BoundsMask[0])
				} else if stackedCoord.BoundsMask != nil {
					stackedCoord.BoundsMask = append(stackedCoord.BoundsMask, [2]bool{})
				}
			}
		}
		if i == lead {
			out.DimCoords[0] = stackedCoord
			continue
		}
		out.AuxCoords = append(out.AuxCoords, AuxCoord{Coord: stackedCoord, Dims: []int{0}})
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return []*Cube{out}, nil
}

func uniquePoints(g []*Cube, i int) bool {
	seen := map[float64]bool{}
	for _, c := range g {
		p := c.AuxCoords[i].Points[0]
		if seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}
