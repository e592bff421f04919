package cube

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/brunoga/deep"
)

// Coord is a named, unit-bearing coordinate.
type Coord struct {
	StandardName string
	LongName     string
	VarName      string
	Units        string

	Points []float64
	// Bounds holds one [lower, upper] pair per point, or nil.
	Bounds [][2]float64
	// BoundsMask marks individually masked bound ends. Nil means nothing is
	// masked.
	BoundsMask [][2]bool

	System     CoordSystem
	Attributes map[string]interface{}
	Circular   bool
}

// Name returns the most descriptive name of the coordinate.
func (c *Coord) Name() string {
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

// Len returns the number of points.
func (c *Coord) Len() int { return len(c.Points) }

// HasBounds reports whether bounds are present.
func (c *Coord) HasBounds() bool { return len(c.Bounds) > 0 }

// BoundMasked reports whether end j (0 or 1) of bound i is masked.
func (c *Coord) BoundMasked(i, j int) bool {
	if c.BoundsMask == nil {
		return false
	}
	return c.BoundsMask[i][j]
}

// Validate checks internal consistency.
func (c *Coord) Validate() error {
	if len(c.Points) == 0 {
		return fmt.Errorf("coordinate %q has no points", c.Name())
	}
	if c.Bounds != nil && len(c.Bounds) != len(c.Points) {
		return fmt.Errorf("coordinate %q has %d bounds for %d points", c.Name(), len(c.Bounds), len(c.Points))
	}
	if c.BoundsMask != nil && len(c.BoundsMask) != len(c.Bounds) {
		return fmt.Errorf("coordinate %q has %d bound masks for %d bounds", c.Name(), len(c.BoundsMask), len(c.Bounds))
	}
	return nil
}

// IsMonotonic reports whether the points strictly increase or strictly
// decrease.
func (c *Coord) IsMonotonic() bool {
	if len(c.Points) < 2 {
		return true
	}
	inc := c.Points[1] > c.Points[0]
	for i := 1; i < len(c.Points); i++ {
		d := c.Points[i] - c.Points[i-1]
		if d == 0 || math.IsNaN(d) || (d > 0) != inc {
			return false
		}
	}
	return true
}

// Copy returns a deep copy of c.
func (c *Coord) Copy() *Coord {
	return deep.MustCopy(c)
}

// Index returns a single-point copy of c at point i.
func (c *Coord) Index(i int) *Coord {
	out := c.copyMetadata()
	out.Points = []float64{c.Points[i]}
	if c.HasBounds() {
		out.Bounds = [][2]float64{c.Bounds[i]}
		if c.BoundsMask != nil {
			out.BoundsMask = [][2]bool{c.BoundsMask[i]}
		}
	}
	out.Circular = false
	return out
}

func (c *Coord) copyMetadata() *Coord {
	meta := *c
	meta.Points, meta.Bounds, meta.BoundsMask = nil, nil, nil
	return deep.MustCopy(&meta)
}

// SameMetadata reports whether c and o differ only in points and bounds.
func (c *Coord) SameMetadata(o *Coord) bool {
	return c.StandardName == o.StandardName && c.LongName == o.LongName && c.VarName == o.VarName &&
		c.Units == o.Units && SameSystem(c.System, o.System) && attrString(c.Attributes) == attrString(o.Attributes)
}

// Equal reports whether c and o have the same metadata, points and bounds.
func (c *Coord) Equal(o *Coord) bool {
	if !c.SameMetadata(o) || len(c.Points) != len(o.Points) || len(c.Bounds) != len(o.Bounds) {
		return false
	}
	for i := range c.Points {
		if c.Points[i] != o.Points[i] {
			return false
		}
	}
	for i := range c.Bounds {
		for j := 0; j < 2; j++ {
			if c.BoundMasked(i, j) != o.BoundMasked(i, j) {
				return false
			}
			if !c.BoundMasked(i, j) && c.Bounds[i][j] != o.Bounds[i][j] {
				return false
			}
		}
	}
	return true
}

func (c *Coord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", c.Name())
	if c.Units != "" {
		fmt.Fprintf(&b, " / (%s)", c.Units)
	}
	if len(c.Points) == 1 {
		fmt.Fprintf(&b, ": %v", c.Points[0])
	} else {
		fmt.Fprintf(&b, ": [%v .. %v] (%d)", c.Points[0], c.Points[len(c.Points)-1], len(c.Points))
	}
	if c.HasBounds() && len(c.Points) == 1 {
		fmt.Fprintf(&b, ", bounds=%v", c.Bounds[0])
	}
	return b.String()
}

func attrString(attrs map[string]interface{}) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, attrs[k])
	}
	return b.String()
}

// Axis guesses the spatial or temporal axis a coordinate runs along: "X",
// "Y", "Z", "T" or "".
func Axis(c *Coord) string {
	switch c.Name() {
	case "longitude", "grid_longitude", "projection_x_coordinate":
		return "X"
	case "latitude", "grid_latitude", "projection_y_coordinate":
		return "Y"
	case "time", "forecast_reference_time":
		return "T"
	case "pressure", "air_pressure", "height", "altitude", "depth", "model_level_number",
		"air_potential_temperature", "level_pressure", "level_height":
		return "Z"
	}
	if c.System != nil {
		switch c.VarName {
		case "x":
			return "X"
		case "y":
			return "Y"
		}
	}
	return ""
}

// CellMethod records a statistic applied over one or more coordinates.
type CellMethod struct {
	Method    string
	Coords    []string
	Intervals []string
	Comments  []string
}

func (m CellMethod) String() string {
	s := fmt.Sprintf("%s: %s", m.Method, strings.Join(m.Coords, ", "))
	var extra []string
	for _, i := range m.Intervals {
		extra = append(extra, "interval: "+i)
	}
	for _, c := range m.Comments {
		extra = append(extra, "comment: "+c)
	}
	if len(extra) > 0 {
		s += " (" + strings.Join(extra, " ") + ")"
	}
	return s
}

// HybridFactory derives a vertical coordinate from hybrid coefficients.
type HybridFactory struct {
	// Kind is "hybrid_pressure" or "hybrid_height".
	Kind string
	// Delta names the level_pressure or level_height coordinate.
	Delta string
	// Sigma names the sigma coordinate.
	Sigma string
	// Surface names the surface pressure or orography field, if known.
	Surface string
}
