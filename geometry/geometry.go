// Package geometry translates the grid definition of a GRIB message into the
// horizontal coordinates of a cube, and back.
package geometry

import (
	"fmt"
	"math"

	"github.com/gonum/floats"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
)

// Template is a grid definition template number (Code table 3.1).
type Template int64

// Supported grid definition templates.
const (
	LatLon                    Template = 0
	RotatedLatLon             Template = 1
	IrregularLatLon           Template = 4
	RotatedIrregularLatLon    Template = 5
	Mercator                  Template = 10
	TransverseMercator        Template = 12
	PolarStereographic        Template = 20
	LambertConformal          Template = 30
	Gaussian                  Template = 40
	SpaceView                 Template = 90
	LambertAzimuthalEqualArea Template = 140
)

func (t Template) String() string {
	switch t {
	case LatLon:
		return "latitude/longitude"
	case RotatedLatLon:
		return "rotated latitude/longitude"
	case IrregularLatLon:
		return "variable resolution latitude/longitude"
	case RotatedIrregularLatLon:
		return "variable resolution rotated latitude/longitude"
	case Mercator:
		return "Mercator"
	case TransverseMercator:
		return "transverse Mercator"
	case PolarStereographic:
		return "polar stereographic"
	case LambertConformal:
		return "Lambert conformal"
	case Gaussian:
		return "Gaussian latitude/longitude"
	case SpaceView:
		return "space view perspective"
	case LambertAzimuthalEqualArea:
		return "Lambert azimuthal equal area"
	}
	return fmt.Sprintf("template %d", int64(t))
}

// Grid is the horizontal description of one field.
type Grid struct {
	Template Template
	X, Y     *cube.Coord
	// XDim and YDim are the data dimensions spanned by X and Y. On a reduced
	// grid both are 0: X and Y are auxiliary coordinates of the single data
	// dimension.
	XDim, YDim int
	Reduced    bool
	Shape      []int
	System     cube.CoordSystem
	// GridWinds is set when vector components are resolved relative to the
	// grid rather than to easterly and northerly directions.
	GridWinds bool
}

// Size is the number of grid points.
func (g *Grid) Size() int { return cube.Size(g.Shape) }

// Apply attaches the grid coordinates to c, whose data must have g.Shape.
func (g *Grid) Apply(c *cube.Cube) error {
	if g.Reduced {
		if err := c.AddAuxCoord(g.Y, 0); err != nil {
			return err
		}
		return c.AddAuxCoord(g.X, 0)
	}
	if err := c.AddDimCoord(g.Y, g.YDim); err != nil {
		return err
	}
	return c.AddDimCoord(g.X, g.XDim)
}

type loader func(sec *message.Section) (*Grid, error)

var loaders map[Template]loader

func init() {
	loaders = map[Template]loader{
		LatLon:                    loadLatLon,
		RotatedLatLon:             loadLatLon,
		IrregularLatLon:           loadIrregular,
		RotatedIrregularLatLon:    loadIrregular,
		Mercator:                  loadMercator,
		TransverseMercator:        loadTransverseMercator,
		PolarStereographic:        loadPolarStereographic,
		LambertConformal:          loadLambertConformal,
		Gaussian:                  loadLatLon,
		SpaceView:                 loadSpaceView,
		LambertAzimuthalEqualArea: loadLambertAzimuthalEqualArea,
	}
}

// Load translates a GRIB2 grid definition section.
func Load(sec *message.Section) (*Grid, error) {
	source, err := sec.Int("sourceOfGridDefinition")
	if err != nil {
		return nil, err
	}
	if source != 0 {
		return nil, griberr.Unsupportedf("grid definition section 3 contains unsupported source of grid definition [%d]", source)
	}
	number, err := sec.Int("gridDefinitionTemplateNumber")
	if err != nil {
		return nil, err
	}
	t := Template(number)
	load, ok := loaders[t]
	if !ok {
		return nil, griberr.UnsupportedGridKind(number)
	}
	if quasiRegular(sec) && t != Gaussian {
		return nil, griberr.Unsupportedf("grid definition section 3 contains unsupported quasi-regular grid")
	}
	g, err := load(sec)
	if err != nil {
		return nil, err
	}
	g.Template = t
	return g, nil
}

func quasiRegular(sec *message.Section) bool {
	return sec.IntOr("numberOfOctectsForNumberOfPoints", 0) != 0 ||
		sec.IntOr("interpretationOfNumberOfPoints", 0) != 0
}

/*
Flag table 3.4 - Scanning mode

Bit  Value  Meaning
1    0/1    Points of first row or column scan in the +i / -i (x) direction
2    0/1    Points of first row or column scan in the -j / +j (y) direction
3    0/1    Adjacent points in the i / j direction are consecutive
4    0/1    All rows scan in the same / opposite direction
*/

// scanning holds the flags of Flag table 3.4.
type scanning int64

const (
	scanINegative    scanning = 0x80
	scanJPositive    scanning = 0x40
	scanJConsecutive scanning = 0x20
	scanAlternating  scanning = 0x10
)

func scanningMode(sec *message.Section) (scanning, error) {
	v, err := sec.Int("scanningMode")
	if err != nil {
		return 0, err
	}
	s := scanning(v)
	if s&scanAlternating != 0 {
		return 0, griberr.Unsupportedf("grid definition section 3 contains unsupported alternative row scanning mode")
	}
	return s, nil
}

func (s scanning) iSign() float64 {
	if s&scanINegative != 0 {
		return -1
	}
	return 1
}

func (s scanning) jSign() float64 {
	if s&scanJPositive != 0 {
		return 1
	}
	return -1
}

// dims returns the data dimensions of y and x and the data shape.
func (s scanning) dims(nx, ny int) (yDim, xDim int, shape []int) {
	if s&scanJConsecutive != 0 {
		return 1, 0, []int{nx, ny}
	}
	return 0, 1, []int{ny, nx}
}

/*
Flag table 3.3 - Resolution and component flags

Bit  Value  Meaning
3    1      i direction increments given
4    1      j direction increments given
5    0      Resolved u and v components of vector quantities relative to easterly and northerly directions

	1      Resolved u and v components of vector quantities relative to the defined grid
*/
const (
	iIncrementGiven  = 0x20
	jIncrementGiven  = 0x10
	uvRelativeToGrid = 0x08
)

// Earth radii and axes used by Code table 3.2.
const (
	radiusGRIB1Default = 6367470.0
	radiusShape6       = 6371229.0
	iau1965Major       = 6378160.0
	iau1965Minor       = 6356775.0
	grs80Major         = 6378137.0
	grs80Minor         = 6356752.314140356
	wgs84Major         = 6378137.0
	wgs84Minor         = 6356752.314245179
)

// earthShape reads Code table 3.2 and the radius or axes it needs.
func earthShape(sec *message.Section) (*cube.GeogCS, error) {
	shape, ok, err := sec.OptInt("shapeOfTheEarth")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, griberr.Unsupportedf("grid definition section 3 contains an unsupported shape of the earth [missing]")
	}
	switch shape {
	case 0:
		return cube.Sphere(radiusGRIB1Default), nil
	case 1:
		r, err := scaled(sec, shape, "scaleFactorOfRadiusOfSphericalEarth", "scaledValueOfRadiusOfSphericalEarth")
		if err != nil {
			return nil, err
		}
		return cube.Sphere(r), nil
	case 2:
		return cube.Ellipsoid(iau1965Major, iau1965Minor), nil
	case 3, 7:
		major, err := scaled(sec, shape, "scaleFactorOfEarthMajorAxis", "scaledValueOfEarthMajorAxis")
		if err != nil {
			return nil, err
		}
		minor, err := scaled(sec, shape, "scaleFactorOfEarthMinorAxis", "scaledValueOfEarthMinorAxis")
		if err != nil {
			return nil, err
		}
		if shape == 3 {
			// Axes in km.
			major, minor = major*1000, minor*1000
		}
		return cube.Ellipsoid(major, minor), nil
	case 4:
		return cube.Ellipsoid(grs80Major, grs80Minor), nil
	case 5:
		return cube.Ellipsoid(wgs84Major, wgs84Minor), nil
	case 6:
		return cube.Sphere(radiusShape6), nil
	}
	return nil, griberr.Unsupportedf("grid definition section 3 contains an unsupported shape of the earth [%d]", shape)
}

func scaled(sec *message.Section, shape int64, factorKey, valueKey string) (float64, error) {
	factor, okF, err := sec.OptInt(factorKey)
	if err != nil {
		return 0, err
	}
	value, okV, err := sec.OptInt(valueKey)
	if err != nil {
		return 0, err
	}
	if !okF || !okV {
		return 0, griberr.MalformedSectionf("section 3: shape of the earth %d needs %s, which is missing", shape, valueKey)
	}
	return float64(value) / math.Pow(10, float64(factor)), nil
}

// setEarthShape writes the shape of the earth keys for e.
func setEarthShape(sec *message.Section, e *cube.GeogCS) {
	for _, k := range []string{
		"scaleFactorOfRadiusOfSphericalEarth", "scaledValueOfRadiusOfSphericalEarth",
		"scaleFactorOfEarthMajorAxis", "scaledValueOfEarthMajorAxis",
		"scaleFactorOfEarthMinorAxis", "scaledValueOfEarthMinorAxis",
	} {
		sec.SetMissing(k)
	}
	if e.IsSphere() {
		sec.Set("shapeOfTheEarth", 1)
		sec.Set("scaleFactorOfRadiusOfSphericalEarth", 0)
		sec.Set("scaledValueOfRadiusOfSphericalEarth", int64(math.Round(e.SemiMajorAxis)))
		return
	}
	sec.Set("shapeOfTheEarth", 7)
	sec.Set("scaleFactorOfEarthMajorAxis", 0)
	sec.Set("scaledValueOfEarthMajorAxis", int64(math.Round(e.SemiMajorAxis)))
	sec.Set("scaleFactorOfEarthMinorAxis", 0)
	sec.Set("scaledValueOfEarthMinorAxis", int64(math.Round(e.SemiMinorAxis)))
}

// count reads a positive number of points.
func count(sec *message.Section, key string) (int, error) {
	n, err := sec.Int(key)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, griberr.InvalidGridParameterf("section 3: %s = %d, want a positive count", key, n)
	}
	return int(n), nil
}

// micro reads an angle stored in micro-degrees.
func micro(sec *message.Section, key string) (float64, error) {
	v, err := sec.Int(key)
	if err != nil {
		return 0, err
	}
	return float64(v) / 1e6, nil
}

// arange returns n points from start, step apart.
func arange(start, step float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, start+float64(n-1)*step)
}

// circular reports whether n points step apart wrap around the globe.
func circular(step float64, n int) bool {
	total := math.Abs(step * float64(n))
	if total < 1e-6 {
		return false
	}
	r := math.Mod(total, 360)
	return floats.EqualWithinAbs(r, 0, 1e-6) || floats.EqualWithinAbs(r, 360, 1e-6)
}

func geogCoords(cs cube.CoordSystem, x, y []float64) (*cube.Coord, *cube.Coord) {
	xName, yName := "longitude", "latitude"
	if _, ok := cs.(*cube.RotatedGeogCS); ok {
		xName, yName = "grid_longitude", "grid_latitude"
	}
	return &cube.Coord{StandardName: xName, Units: "degrees", Points: x, System: cs},
		&cube.Coord{StandardName: yName, Units: "degrees", Points: y, System: cs}
}

func projectionCoords(cs cube.CoordSystem, units string, x, y []float64) (*cube.Coord, *cube.Coord) {
	return &cube.Coord{StandardName: "projection_x_coordinate", Units: units, Points: x, System: cs},
		&cube.Coord{StandardName: "projection_y_coordinate", Units: units, Points: y, System: cs}
}

func gridWinds(sec *message.Section) bool {
	return sec.IntOr("resolutionAndComponentFlags", 0)&uvRelativeToGrid != 0
}
