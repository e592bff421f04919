package vertical

import (
	"math"
	"strings"

	"github.com/golang/glog"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
	"github.com/sdifrance/gribcube/units"
	"github.com/spf13/cast"
)

// maxModelLevel is the largest model level number that can be saved.
const maxModelLevel = 9999

// savable is a coordinate that can be written as a fixed surface.
type savable struct {
	coord *cube.Coord
	kind  int64
	units string
}

// byName lists the coordinates written as fixed surfaces, in order of
// preference.
var byName = []struct {
	names []string
	kind  int64
	units string
}{
	{[]string{"air_pressure", "pressure"}, Isobaric, "Pa"},
	{[]string{"altitude"}, MeanSeaLevelHeight, "m"},
	{[]string{"height"}, HeightAboveGround, "m"},
	{[]string{"depth"}, DepthBelowLand, "m"},
	{[]string{"air_potential_temperature"}, Isentropic, "K"},
}

// Save writes the fixed surfaces of the 2-D field slice into sec. Hybrid
// coefficients for every model level are taken from full, the cube slice was
// cut from; full may be nil when it is slice itself.
func Save(slice, full *cube.Cube, sec *message.Section) error {
	if full == nil {
		full = slice
	}
	if slice.Factory != nil {
		return saveHybrid(slice, full, sec)
	}
	found, err := surfaceCoords(slice)
	if err != nil {
		return err
	}
	switch len(found) {
	case 0:
		if err := noVerticalCoords(slice); err != nil {
			return err
		}
		if code, ok := slice.Attributes[SurfaceTypeAttribute]; ok {
			kind, err := cast.ToInt64E(code)
			if err != nil {
				return griberr.Unsupportedf("cube %q has fixed surface type %v: %v", slice.Name(), code, err)
			}
			sec.Set("typeOfFirstFixedSurface", kind)
			sec.SetMissing("scaleFactorOfFirstFixedSurface")
			sec.SetMissing("scaledValueOfFirstFixedSurface")
			setMissingSurface(sec, "Second")
			return nil
		}
		setSurface(sec, "First", GroundOrWater, 0)
		setMissingSurface(sec, "Second")
		return nil
	case 1:
		return saveSingle(sec, found[0])
	case 2:
		return saveSplitLayer(sec, found[0], found[1])
	}
	names := make([]string, len(found))
	for i, s := range found {
		names[i] = s.coord.Name()
	}
	return griberr.Unsupportedf("cube %q has more than two vertical coordinates: %s", slice.Name(), strings.Join(names, ", "))
}

// surfaceCoords finds the scalar coordinates of slice that map onto a fixed
// surface type.
func surfaceCoords(slice *cube.Cube) ([]savable, error) {
	var found []savable
	seen := map[*cube.Coord]bool{}
	add := func(c *cube.Coord, kind int64, unit string) error {
		if seen[c] {
			return nil
		}
		seen[c] = true
		if c.Len() != 1 {
			return griberr.Unsupportedf("vertical coordinate %q has %d points, want a scalar", c.Name(), c.Len())
		}
		found = append(found, savable{coord: c, kind: kind, units: unit})
		return nil
	}
	for _, entry := range byName {
		for _, name := range entry.names {
			if c, _, ok := slice.Coord(name); ok {
				if err := add(c, entry.kind, entry.units); err != nil {
					return nil, err
				}
				break
			}
		}
	}
	if c, _, ok := slice.Coord("air_temperature"); ok && c.Units == "Celsius" {
		if err := add(c, ZeroIsotherm, "Celsius"); err != nil {
			return nil, err
		}
	}
	for _, ac := range slice.AuxCoords {
		code, ok := ac.Attributes[SurfaceTypeAttribute]
		if !ok {
			continue
		}
		kind, err := cast.ToInt64E(code)
		if err != nil {
			return nil, griberr.Unsupportedf("coordinate %q has fixed surface type %v: %v", ac.Name(), code, err)
		}
		if err := add(ac.Coord, kind, ""); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// noVerticalCoords fails when slice has vertical coordinates that are not
// understood.
func noVerticalCoords(slice *cube.Cube) error {
	var names []string
	for _, c := range slice.AxisCoords("Z") {
		names = append(names, "'"+c.Name()+"'")
	}
	if len(names) > 0 {
		return griberr.Unsupportedf("the vertical-axis coordinate(s) (%s) are not recognised or handled", strings.Join(names, ", "))
	}
	return nil
}

func (s savable) values() (point float64, bounds []float64, err error) {
	vals := []float64{s.coord.Points[0]}
	if s.coord.HasBounds() {
		vals = append(vals, s.coord.Bounds[0][0], s.coord.Bounds[0][1])
	}
	if s.units != "" && s.coord.Units != "" {
		if err := units.ConvertAll(vals, s.coord.Units, s.units); err != nil {
			return 0, nil, griberr.Unsupportedf("vertical coordinate %q: %v", s.coord.Name(), err)
		}
	}
	return vals[0], vals[1:], nil
}

func saveSingle(sec *message.Section, s savable) error {
	point, bounds, err := s.values()
	if err != nil {
		return err
	}
	switch {
	case len(bounds) == 0:
		setSurface(sec, "First", s.kind, point)
		setMissingSurface(sec, "Second")
	case s.coord.BoundMasked(0, 0) || s.coord.BoundMasked(0, 1):
		return griberr.Unsupportedf("vertical coordinate %q has a partly masked bound and no matching coordinate", s.coord.Name())
	default:
		setSurface(sec, "First", s.kind, bounds[0])
		setSurface(sec, "Second", s.kind, bounds[1])
	}
	return nil
}

// saveSplitLayer writes a layer between surfaces of different types, held as
// two coordinates whose bounds mask the other end.
func saveSplitLayer(sec *message.Section, a, b savable) error {
	if a.coord.BoundMasked(0, 0) {
		a, b = b, a
	}
	if !a.coord.BoundMasked(0, 1) || !b.coord.BoundMasked(0, 0) {
		return griberr.Unsupportedf("vertical coordinates %q and %q do not describe one layer", a.coord.Name(), b.coord.Name())
	}
	_, lower, err := a.values()
	if err != nil {
		return err
	}
	_, upper, err := b.values()
	if err != nil {
		return err
	}
	setSurface(sec, "First", a.kind, lower[0])
	setSurface(sec, "Second", b.kind, upper[1])
	return nil
}

// scaled returns the smallest decimal scale factor that holds v exactly, and
// the scaled value. Values needing more than six decimals are rounded.
func scaled(v float64) (factor, value int64) {
	for f := int64(0); f <= 6; f++ {
		s := v * math.Pow(10, float64(f))
		if r := math.Round(s); math.Abs(s-r) <= 1e-9*math.Max(1, math.Abs(s)) {
			return f, int64(r)
		}
	}
	glog.Warningf("vertical level %v rounded to 6 decimals", v)
	return 6, int64(math.Round(v * 1e6))
}

func setSurface(sec *message.Section, which string, kind int64, v float64) {
	factor, value := scaled(v)
	sec.Set("typeOf"+which+"FixedSurface", kind)
	sec.Set("scaleFactorOf"+which+"FixedSurface", factor)
	sec.Set("scaledValueOf"+which+"FixedSurface", value)
}

func setMissingSurface(sec *message.Section, which string) {
	sec.Set("typeOf"+which+"FixedSurface", Missing)
	sec.SetMissing("scaleFactorOf" + which + "FixedSurface")
	sec.SetMissing("scaledValueOf" + which + "FixedSurface")
}

// saveHybrid writes the model level of slice and the coefficients of every
// level of full. Level N is stored at index N+1 of each half of pv.
func saveHybrid(slice, full *cube.Cube, sec *message.Section) error {
	f := slice.Factory
	var kind int64
	switch f.Kind {
	case "hybrid_height":
		kind = HybridHeight
	case "hybrid_pressure":
		kind = HybridPressure
	default:
		return griberr.Unsupportedf("unrecognised vertical coordinate factory %q", f.Kind)
	}
	level, _, ok := slice.Coord(modelLevelNumber)
	if !ok || level.Len() != 1 {
		return griberr.Unsupportedf("cube %q with a %s factory needs a scalar %s coordinate", slice.Name(), f.Kind, modelLevelNumber)
	}

	levels, _, ok := full.Coord(modelLevelNumber)
	if !ok {
		return griberr.Unsupportedf("cube %q has no %s coordinate", full.Name(), modelLevelNumber)
	}
	delta, _, ok := full.Coord(f.Delta)
	if !ok {
		return griberr.Unsupportedf("cube %q has no %s coordinate", full.Name(), f.Delta)
	}
	sig, _, ok := full.Coord(f.Sigma)
	if !ok {
		return griberr.Unsupportedf("cube %q has no %s coordinate", full.Name(), f.Sigma)
	}
	if delta.Len() != levels.Len() || sig.Len() != levels.Len() {
		return griberr.Unsupportedf("%s, %s and %s have %d, %d and %d points",
			modelLevelNumber, f.Delta, f.Sigma, levels.Len(), delta.Len(), sig.Len())
	}
	maxLevel := 0
	for _, p := range levels.Points {
		n := int(p)
		if float64(n) != p {
			return griberr.Unsupportedf("%s %v is not an integer", modelLevelNumber, p)
		}
		if n < 1 {
			return griberr.Unsupportedf("%s must be > 0: minimum value = %d", modelLevelNumber, n)
		}
		if n > maxModelLevel {
			return griberr.Unsupportedf("%s values are > %d: maximum value = %d", modelLevelNumber, maxModelLevel, n)
		}
		if n > maxLevel {
			maxLevel = n
		}
	}
	half := maxLevel + 2
	pv := make([]float64, 2*half)
	for i, p := range levels.Points {
		pv[int(p)+1] = delta.Points[i]
		pv[half+int(p)+1] = sig.Points[i]
	}

	setSurface(sec, "First", kind, level.Points[0])
	setMissingSurface(sec, "Second")
	sec.Set("NV", len(pv))
	sec.Set("pv", pv)
	return nil
}
