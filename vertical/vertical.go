// Package vertical translates the fixed surfaces of a product definition
// section into level coordinates, and back.
package vertical

import (
	"math"

	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
)

// Levels is the vertical description of one field.
type Levels struct {
	// Coords are scalar coordinates of the field.
	Coords  []*cube.Coord
	Factory *cube.HybridFactory
	// Attributes are cube attributes, set for surfaces that have no
	// coordinate.
	Attributes map[string]interface{}
	// Unsupported records a surface that was skipped rather than
	// translated. It is of kind griberr.ErrUnsupportedSurfaceType and is
	// meant to be logged, not returned.
	Unsupported error
}

// Apply adds the level coordinates and factory to c.
func (l *Levels) Apply(c *cube.Cube) error {
	for _, coord := range l.Coords {
		if err := c.AddAuxCoord(coord); err != nil {
			return err
		}
	}
	if l.Factory != nil {
		c.Factory = l.Factory
	}
	for k, v := range l.Attributes {
		if c.Attributes == nil {
			c.Attributes = map[string]interface{}{}
		}
		c.Attributes[k] = v
	}
	return nil
}

// SurfaceTypeAttribute holds the code of a fixed surface type that has no
// coordinate.
const SurfaceTypeAttribute = "GRIB_fixed_surface_type"

// Code table 4.5 - Fixed surface types.
const (
	GroundOrWater      = 1
	ZeroIsotherm       = 4
	Isobaric           = 100
	MeanSeaLevelHeight = 102
	HeightAboveGround  = 103
	HybridLevel        = 105
	DepthBelowLand     = 106
	Isentropic         = 107
	HybridHeight       = 118
	HybridPressure     = 119
	Missing            = 255
)

// surface names the coordinate of a fixed surface type.
type surface struct {
	standardName string
	longName     string
	units        string
}

var surfaces = map[int64]surface{
	ZeroIsotherm:       {longName: "air_temperature", units: "Celsius"},
	Isobaric:           {longName: "pressure", units: "Pa"},
	MeanSeaLevelHeight: {standardName: "altitude", units: "m"},
	HeightAboveGround:  {longName: "height", units: "m"},
	DepthBelowLand:     {standardName: "depth", units: "m"},
	Isentropic:         {standardName: "air_potential_temperature", units: "K"},
}

func isHybrid(t int64) bool {
	return t == HybridLevel || t == HybridPressure || t == HybridHeight
}

// fixedSurface is one end of a level. value is NaN when the scaled value is
// missing.
type fixedSurface struct {
	kind  int64
	value float64
}

func readSurface(sec *message.Section, which string) (fixedSurface, error) {
	fs := fixedSurface{kind: sec.IntOr("typeOf"+which+"FixedSurface", Missing), value: math.NaN()}
	v, ok, err := sec.OptInt("scaledValueOf" + which + "FixedSurface")
	if err != nil {
		return fs, err
	}
	if !ok {
		return fs, nil
	}
	fs.value = unscale(v, sec.IntOr("scaleFactorOf"+which+"FixedSurface", 0))
	return fs, nil
}

// unscale returns value / 10^factor.
func unscale(value, factor int64) float64 {
	if factor < 0 {
		return float64(value) * math.Pow10(int(-factor))
	}
	return float64(value) / math.Pow10(int(factor))
}

func (fs fixedSurface) missing() bool { return math.IsNaN(fs.value) }

// Load translates the fixed surfaces of a GRIB2 product definition section.
func Load(sec *message.Section) (*Levels, error) {
	first, err := readSurface(sec, "First")
	if err != nil {
		return nil, err
	}
	second, err := readSurface(sec, "Second")
	if err != nil {
		return nil, err
	}
	nv := sec.IntOr("NV", 0)

	if isHybrid(first.kind) {
		if second.kind != Missing {
			return nil, griberr.Unsupportedf("product definition section 4 has a hybrid first fixed surface [%d] with a second fixed surface [%d]",
				first.kind, second.kind)
		}
		return loadHybrid(sec, first, nv)
	}
	if nv > 0 {
		return nil, griberr.Unsupportedf("product definition section 4 has %d vertical coordinate values for fixed surface type %d", nv, first.kind)
	}

	if first.kind == ZeroIsotherm && first.missing() {
		first.value = 0
	}
	if second.kind == GroundOrWater && first.kind != GroundOrWater && first.kind != Missing {
		second = fixedSurface{kind: HeightAboveGround, value: 0}
	}
	if second.kind != Missing && second.kind != GroundOrWater && second.missing() {
		return nil, griberr.MalformedSectionf("product definition section 4 has a missing scaled value of second fixed surface [type %d]", second.kind)
	}

	l := &Levels{}
	firstCoord, unsupported, err := surfaceCoord(first)
	if err != nil {
		return nil, err
	}
	l.Unsupported = unsupported
	switch {
	case second.kind == Missing || second.kind == GroundOrWater:
		if firstCoord != nil {
			l.Coords = append(l.Coords, firstCoord)
		}
	case first.kind == GroundOrWater || first.kind == Missing:
		c, unsupported, err := surfaceCoord(second)
		if err != nil {
			return nil, err
		}
		if c != nil {
			// The layer starts at the ground.
			if first.kind == GroundOrWater && second.kind == HeightAboveGround {
				c.Bounds = [][2]float64{{0, second.value}}
				c.Points[0] = second.value / 2
			}
			l.Coords = append(l.Coords, c)
		}
		if l.Unsupported == nil {
			l.Unsupported = unsupported
		}
	case first.kind == second.kind:
		if firstCoord == nil {
			break
		}
		firstCoord.Points[0] = (first.value + second.value) / 2
		firstCoord.Bounds = [][2]float64{{first.value, second.value}}
		l.Coords = append(l.Coords, firstCoord)
	default:
		secondCoord, unsupported, err := surfaceCoord(second)
		if err != nil {
			return nil, err
		}
		if l.Unsupported == nil {
			l.Unsupported = unsupported
		}
		if firstCoord != nil {
			firstCoord.Bounds = [][2]float64{{first.value, math.NaN()}}
			firstCoord.BoundsMask = [][2]bool{{false, true}}
			l.Coords = append(l.Coords, firstCoord)
		}
		if secondCoord != nil {
			secondCoord.Bounds = [][2]float64{{math.NaN(), second.value}}
			secondCoord.BoundsMask = [][2]bool{{true, false}}
			l.Coords = append(l.Coords, secondCoord)
		}
	}
	if len(l.Coords) == 0 {
		for _, fs := range []fixedSurface{first, second} {
			if _, known := surfaces[fs.kind]; !known && fs.kind != Missing && fs.kind != GroundOrWater && fs.missing() {
				l.Attributes = map[string]interface{}{SurfaceTypeAttribute: fs.kind}
				break
			}
		}
	}
	return l, nil
}

// surfaceCoord returns the scalar coordinate of one fixed surface, or nil
// when the surface has none. A skipped unknown surface is reported through
// unsupported.
func surfaceCoord(fs fixedSurface) (c *cube.Coord, unsupported error, err error) {
	if fs.kind == Missing || fs.kind == GroundOrWater {
		return nil, nil, nil
	}
	s, known := surfaces[fs.kind]
	if !known {
		if fs.missing() {
			return nil, griberr.UnsupportedSurfaceType(fs.kind), nil
		}
		return &cube.Coord{
			Units:      "1",
			Points:     []float64{fs.value},
			Attributes: map[string]interface{}{SurfaceTypeAttribute: fs.kind},
		}, nil, nil
	}
	if fs.missing() {
		return nil, nil, griberr.MalformedSectionf("product definition section 4 has a missing scaled value of fixed surface [type %d]", fs.kind)
	}
	return &cube.Coord{
		StandardName: s.standardName,
		LongName:     s.longName,
		Units:        s.units,
		Points:       []float64{fs.value},
	}, nil, nil
}

// Hybrid coordinate and factory names.
const (
	modelLevelNumber = "model_level_number"
	levelPressure    = "level_pressure"
	levelHeight      = "level_height"
	sigma            = "sigma"
)

// loadHybrid reads the a and b coefficients of model level N from pv, where
// they sit at index N+1 of each half.
func loadHybrid(sec *message.Section, first fixedSurface, nv int64) (*Levels, error) {
	if first.missing() {
		return nil, griberr.MalformedSectionf("product definition section 4 has a missing hybrid level number")
	}
	pv, err := sec.Floats("pv")
	if err != nil {
		return nil, err
	}
	if int64(len(pv)) != nv || nv%2 != 0 {
		return nil, griberr.MalformedSectionf("product definition section 4 has %d vertical coordinate values, NV = %d", len(pv), nv)
	}
	level := int(first.value)
	return hybridLevels(first.kind, level, pv, level+1)
}

func hybridLevels(kind int64, level int, pv []float64, index int) (*Levels, error) {
	half := len(pv) / 2
	if index < 0 || index >= half {
		return nil, griberr.MalformedSectionf("model level %d needs vertical coordinate %d of %d", level, index, half)
	}
	a, b := pv[index], pv[half+index]

	delta := &cube.Coord{LongName: levelPressure, Units: "Pa", Points: []float64{a}}
	factory := &cube.HybridFactory{Kind: "hybrid_pressure", Delta: levelPressure, Sigma: sigma, Surface: "surface_air_pressure"}
	if kind == HybridHeight {
		delta = &cube.Coord{LongName: levelHeight, Units: "m", Points: []float64{a},
			Attributes: map[string]interface{}{"positive": "up"}}
		factory = &cube.HybridFactory{Kind: "hybrid_height", Delta: levelHeight, Sigma: sigma, Surface: "surface_altitude"}
	}
	return &Levels{
		Coords: []*cube.Coord{
			{StandardName: modelLevelNumber, Units: "1", Points: []float64{float64(level)},
				Attributes: map[string]interface{}{"positive": "up"}},
			delta,
			{LongName: sigma, Units: "1", Points: []float64{b}},
		},
		Factory: factory,
	}, nil
}
