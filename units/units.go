// Package units converts between the unit strings carried by cube coordinates.
//
// Only the small vocabulary the GRIB translators need is understood. Dimension
// checking is delegated to github.com/ctessum/unit so that, for example,
// converting "hPa" to "m" fails instead of silently scaling.
package units

import (
	"strings"

	"github.com/ctessum/unit"
	"github.com/pkg/errors"
)

var angle unit.Dimension

func init() {
	angle = unit.NewDimension("angle")
}

// Unit is a parsed unit string: a value v in this unit is scale*v+offset in
// SI base units.
type Unit struct {
	Name   string
	scale  float64
	offset float64
	dims   unit.Dimensions
}

type def struct {
	scale, offset float64
	dims          func() unit.Dimensions
}

func length() unit.Dimensions   { return unit.Meter }
func pressure() unit.Dimensions { return unit.Pascal }
func temp() unit.Dimensions     { return unit.Kelvin }
func duration() unit.Dimensions { return unit.Second }
func dimless() unit.Dimensions  { return unit.Dimless }
func angular() unit.Dimensions  { return unit.Dimensions{angle: 1} }

var known = map[string]def{
	"m":             {1, 0, length},
	"km":            {1000, 0, length},
	"cm":            {0.01, 0, length},
	"mm":            {0.001, 0, length},
	"Pa":            {1, 0, pressure},
	"hPa":           {100, 0, pressure},
	"mbar":          {100, 0, pressure},
	"K":             {1, 0, temp},
	"Celsius":       {1, 273.15, temp},
	"degC":          {1, 273.15, temp},
	"s":             {1, 0, duration},
	"second":        {1, 0, duration},
	"seconds":       {1, 0, duration},
	"minutes":       {60, 0, duration},
	"hours":         {3600, 0, duration},
	"days":          {86400, 0, duration},
	"1":             {1, 0, dimless},
	"%":             {0.01, 0, dimless},
	"degrees":       {1, 0, angular},
	"degrees_east":  {1, 0, angular},
	"degrees_north": {1, 0, angular},
	"radians":       {57.29577951308232, 0, angular},
}

// Parse resolves a unit string. Reference-time units such as
// "hours since 1970-01-01 00:00:00" resolve to their interval unit.
func Parse(s string) (Unit, error) {
	name := strings.TrimSpace(s)
	base := name
	if i := strings.Index(name, " since "); i >= 0 {
		base = name[:i]
	}
	d, ok := known[base]
	if !ok {
		return Unit{}, errors.Errorf("unknown unit %q", s)
	}
	return Unit{Name: name, scale: d.scale, offset: d.offset, dims: d.dims()}, nil
}

// Convert expresses v, given in from, in the unit to.
func Convert(v float64, from, to string) (float64, error) {
	if from == to {
		return v, nil
	}
	f, err := Parse(from)
	if err != nil {
		return 0, err
	}
	t, err := Parse(to)
	if err != nil {
		return 0, err
	}
	return f.ConvertTo(v, t)
}

// ConvertTo expresses v, given in u, in the unit to.
func (u Unit) ConvertTo(v float64, to Unit) (float64, error) {
	si := unit.New(v*u.scale+u.offset, u.dims)
	if err := si.Check(to.dims); err != nil {
		return 0, errors.Wrapf(err, "converting %s to %s", u.Name, to.Name)
	}
	return (si.Value() - to.offset) / to.scale, nil
}

// ConvertAll converts every value of vs in place.
func ConvertAll(vs []float64, from, to string) error {
	if from == to {
		return nil
	}
	f, err := Parse(from)
	if err != nil {
		return err
	}
	t, err := Parse(to)
	if err != nil {
		return err
	}
	for i, v := range vs {
		if vs[i], err = f.ConvertTo(v, t); err != nil {
			return err
		}
	}
	return nil
}

// Compatible reports whether a and b measure the same dimension.
func Compatible(a, b string) bool {
	ua, err := Parse(a)
	if err != nil {
		return false
	}
	ub, err := Parse(b)
	if err != nil {
		return false
	}
	return ua.dims.Matches(ub.dims)
}
