package geometry

import (
	"math"

	"github.com/golang/glog"
	"github.com/gonum/floats"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
	"github.com/sdifrance/gribcube/units"
)

// horizontal holds the x and y dimension coordinates of a cube being saved.
type horizontal struct {
	x, y       *cube.Coord
	xDim, yDim int
}

// Save writes the grid definition of c into sec.
func Save(c *cube.Cube, sec *message.Section) error {
	h, err := horizontalCoords(c)
	if err != nil {
		return err
	}
	if !cube.SameSystem(h.x.System, h.y.System) {
		return griberr.Unsupportedf("x and y coordinates have different coordinate systems: %v and %v", h.x.System, h.y.System)
	}
	cs := h.x.System
	if cs == nil || cs.Earth() == nil {
		return griberr.Unsupportedf("could not determine the shape of the earth from the coordinate system of the horizontal grid")
	}
	t, err := h.template(cs)
	if err != nil {
		return err
	}
	sec.Set("sourceOfGridDefinition", 0)
	sec.Set("numberOfDataPoints", h.x.Len()*h.y.Len())
	sec.Set("numberOfOctectsForNumberOfPoints", 0)
	sec.Set("interpretationOfNumberOfPoints", 0)
	sec.Set("gridDefinitionTemplateNumber", int64(t))
	setEarthShape(sec, cs.Earth())

	switch t {
	case LatLon, RotatedLatLon:
		err = h.saveLatLon(sec, cs)
	case Gaussian:
		err = h.saveGaussian(sec)
	case IrregularLatLon, RotatedIrregularLatLon:
		err = h.saveIrregular(sec, cs, isGridWind(c))
	case Mercator:
		err = h.saveMercator(sec, cs.(*cube.Mercator))
	case TransverseMercator:
		err = h.saveTransverseMercator(sec, cs.(*cube.TransverseMercator))
	case PolarStereographic:
		err = h.savePolarStereographic(sec, cs.(*cube.Stereographic))
	case LambertConformal:
		err = h.saveLambertConformal(sec, cs.(*cube.LambertConformal))
	case LambertAzimuthalEqualArea:
		err = h.saveLambertAzimuthal(sec, cs.(*cube.LambertAzimuthalEqualArea))
	case SpaceView:
		err = h.saveSpaceView(sec, cs.(*cube.Geostationary))
	}
	return err
}

func horizontalCoords(c *cube.Cube) (*horizontal, error) {
	var h horizontal
	for _, axis := range []string{"X", "Y"} {
		coords := c.AxisCoords(axis)
		if len(coords) != 1 {
			return nil, griberr.Unsupportedf("cube %q has %d %s coordinates, want exactly one", c.Name(), len(coords), axis)
		}
		dim := c.DimCoordOf(coords[0].Coord)
		if dim < 0 {
			return nil, griberr.Unsupportedf("%s coordinate %q must be a dimension coordinate", axis, coords[0].Name())
		}
		if axis == "X" {
			h.x, h.xDim = coords[0].Coord, dim
		} else {
			h.y, h.yDim = coords[0].Coord, dim
		}
	}
	return &h, nil
}

func (h *horizontal) template(cs cube.CoordSystem) (Template, error) {
	switch cs.(type) {
	case *cube.GeogCS, *cube.RotatedGeogCS:
		x, err := pointsIn(h.x, "degrees")
		if err != nil {
			return 0, err
		}
		y, err := pointsIn(h.y, "degrees")
		if err != nil {
			return 0, err
		}
		_, xRegular := regularStep(x, 1e-5)
		_, yRegular := regularStep(y, 1e-5)
		_, rotated := cs.(*cube.RotatedGeogCS)
		switch {
		case xRegular && yRegular && rotated:
			return RotatedLatLon, nil
		case xRegular && yRegular:
			return LatLon, nil
		case rotated:
			return RotatedIrregularLatLon, nil
		case xRegular && gaussianN(y) > 0:
			return Gaussian, nil
		}
		return IrregularLatLon, nil
	case *cube.Mercator:
		return Mercator, nil
	case *cube.TransverseMercator:
		return TransverseMercator, nil
	case *cube.Stereographic:
		return PolarStereographic, nil
	case *cube.LambertConformal:
		return LambertConformal, nil
	case *cube.LambertAzimuthalEqualArea:
		return LambertAzimuthalEqualArea, nil
	case *cube.Geostationary:
		return SpaceView, nil
	}
	return 0, griberr.Unsupportedf("saving is not supported for coordinate system %v", cs)
}

// scanning derives the scanning mode from the order of the points.
func (h *horizontal) scanning() scanning {
	var s scanning
	if p := h.x.Points; len(p) > 1 && p[1] < p[0] {
		s |= scanINegative
	}
	if p := h.y.Points; len(p) < 2 || p[1] > p[0] {
		s |= scanJPositive
	}
	if h.xDim < h.yDim {
		s |= scanJConsecutive
	}
	return s
}

// pointsIn returns a copy of the points of c converted to unit. Unitless
// coordinates are taken to be in unit already.
func pointsIn(c *cube.Coord, unit string) ([]float64, error) {
	out := append([]float64(nil), c.Points...)
	if c.Units == "" {
		return out, nil
	}
	if err := units.ConvertAll(out, c.Units, unit); err != nil {
		return nil, griberr.Unsupportedf("coordinate %q: %v", c.Name(), err)
	}
	return out, nil
}

// regularStep returns the mean step of points and whether every step is
// within tol of it.
func regularStep(points []float64, tol float64) (float64, bool) {
	if len(points) < 2 {
		return 0, true
	}
	diffs := make([]float64, len(points)-1)
	for i := range diffs {
		diffs[i] = points[i+1] - points[i]
	}
	mean := floats.Sum(diffs) / float64(len(diffs))
	for _, d := range diffs {
		if !floats.EqualWithinAbs(d, mean, tol) {
			return mean, false
		}
	}
	return mean, true
}

// steps returns the x and y steps of a regular grid, in unit.
func (h *horizontal) steps(unit string, tol float64, kind Template) (x, y []float64, dx, dy float64, err error) {
	if x, err = pointsIn(h.x, unit); err != nil {
		return
	}
	if y, err = pointsIn(h.y, unit); err != nil {
		return
	}
	var okX, okY bool
	dx, okX = regularStep(x, tol)
	dy, okY = regularStep(y, tol)
	if !okX || !okY {
		err = griberr.Unsupportedf("irregular coordinates are not supported for %v grids", kind)
	}
	return
}

func round(v float64) int64 { return int64(math.Round(v)) }

func toMicro(deg float64) int64 { return round(deg * 1e6) }

func wrap360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func isGridWind(c *cube.Cube) bool {
	switch c.Name() {
	case "x_wind", "y_wind", "grid_eastward_wind", "grid_northward_wind":
		return true
	}
	return false
}

func setRotatedPole(sec *message.Section, cs *cube.RotatedGeogCS) error {
	if cs.NorthPoleGridLongitude != 0 {
		return griberr.Unsupportedf("rotated pole coordinates with a rotated prime meridian cannot be saved")
	}
	sec.Set("latitudeOfSouthernPole", toMicro(-cs.GridNorthPoleLatitude))
	sec.Set("longitudeOfSouthernPole", toMicro(math.Mod(cs.GridNorthPoleLongitude+180, 360)))
	sec.Set("angleOfRotation", 0.0)
	return nil
}

func (h *horizontal) saveLatLon(sec *message.Section, cs cube.CoordSystem) error {
	x, y, dx, dy, err := h.steps("degrees", 1e-5, LatLon)
	if err != nil {
		return err
	}
	if h.x.HasBounds() || h.y.HasBounds() {
		glog.Warningf("ignoring bounds of %s and %s", h.x.Name(), h.y.Name())
	}
	sec.Set("Ni", len(x))
	sec.Set("Nj", len(y))
	sec.Set("basicAngleOfTheInitialProductionDomain", 0)
	sec.SetMissing("subdivisionsOfBasicAngle")
	sec.Set("latitudeOfFirstGridPoint", toMicro(y[0]))
	sec.Set("longitudeOfFirstGridPoint", toMicro(wrap360(x[0])))
	sec.Set("resolutionAndComponentFlags", iIncrementGiven|jIncrementGiven)
	sec.Set("latitudeOfLastGridPoint", toMicro(y[len(y)-1]))
	sec.Set("longitudeOfLastGridPoint", toMicro(wrap360(x[len(x)-1])))
	sec.Set("iDirectionIncrement", toMicro(math.Abs(dx)))
	sec.Set("jDirectionIncrement", toMicro(math.Abs(dy)))
	sec.Set("scanningMode", int64(h.scanning()))
	if rotated, ok := cs.(*cube.RotatedGeogCS); ok {
		return setRotatedPole(sec, rotated)
	}
	return nil
}

// gaussianN returns N of the global Gaussian grid whose latitudes, in either
// order, are lats, or 0 if there is none.
func gaussianN(lats []float64) int {
	if len(lats) < 2 || len(lats)%2 != 0 {
		return 0
	}
	n := len(lats) / 2
	want := GaussianLatitudes(n)
	forward, backward := true, true
	for i, lat := range lats {
		forward = forward && math.Abs(lat-want[i]) <= 1e-5
		backward = backward && math.Abs(lat-want[len(want)-1-i]) <= 1e-5
	}
	if forward || backward {
		return n
	}
	return 0
}

// saveGaussian writes a regular global Gaussian grid. Regional Gaussian grids
// are saved as irregular grids.
func (h *horizontal) saveGaussian(sec *message.Section) error {
	x, err := pointsIn(h.x, "degrees")
	if err != nil {
		return err
	}
	y, err := pointsIn(h.y, "degrees")
	if err != nil {
		return err
	}
	dx, _ := regularStep(x, 1e-5)
	if h.x.HasBounds() || h.y.HasBounds() {
		glog.Warningf("ignoring bounds of %s and %s", h.x.Name(), h.y.Name())
	}
	sec.Set("Ni", len(x))
	sec.Set("Nj", len(y))
	sec.Set("basicAngleOfTheInitialProductionDomain", 0)
	sec.SetMissing("subdivisionsOfBasicAngle")
	sec.Set("latitudeOfFirstGridPoint", toMicro(y[0]))
	sec.Set("longitudeOfFirstGridPoint", toMicro(wrap360(x[0])))
	sec.Set("resolutionAndComponentFlags", iIncrementGiven)
	sec.Set("latitudeOfLastGridPoint", toMicro(y[len(y)-1]))
	sec.Set("longitudeOfLastGridPoint", toMicro(wrap360(x[len(x)-1])))
	sec.Set("iDirectionIncrement", toMicro(math.Abs(dx)))
	sec.Set("N", gaussianN(y))
	sec.Set("scanningMode", int64(h.scanning()))
	return nil
}

func (h *horizontal) saveIrregular(sec *message.Section, cs cube.CoordSystem, gridWind bool) error {
	x, err := pointsIn(h.x, "degrees")
	if err != nil {
		return err
	}
	y, err := pointsIn(h.y, "degrees")
	if err != nil {
		return err
	}
	flags := 0
	if gridWind {
		flags |= uvRelativeToGrid
	}
	sec.Set("Ni", len(x))
	sec.Set("Nj", len(y))
	sec.Set("basicAngleOfTheInitialProductionDomain", 0)
	sec.SetMissing("subdivisionsOfBasicAngle")
	sec.Set("resolutionAndComponentFlags", flags)
	sec.Set("scanningMode", int64(h.scanning()))
	if rotated, ok := cs.(*cube.RotatedGeogCS); ok {
		if err := setRotatedPole(sec, rotated); err != nil {
			return err
		}
	}
	lons := make([]int64, len(x))
	for i, v := range x {
		lons[i] = toMicro(v)
	}
	lats := make([]int64, len(y))
	for i, v := range y {
		lats[i] = toMicro(v)
	}
	sec.Set("longitude", lons)
	sec.Set("latitude", lats)
	return nil
}

// firstPoint returns the geographic position of the first grid point.
func (h *horizontal) firstPoint(cs cube.CoordSystem, x, y []float64) (lat, lon float64, err error) {
	p, err := projectionFor(cs)
	if err != nil {
		return 0, 0, err
	}
	lon, lat, err = p.inverse(x[0], y[0])
	if err != nil {
		return 0, 0, griberr.InvalidGridParameterf("first grid point (%v, %v): %v", x[0], y[0], err)
	}
	return lat, lon, nil
}

func noFalseOrigin(kind Template, easting, northing float64) error {
	if easting != 0 || northing != 0 {
		return griberr.Unsupportedf("%v grids with a false easting or northing cannot be saved", kind)
	}
	return nil
}

func (h *horizontal) saveMercator(sec *message.Section, cs *cube.Mercator) error {
	if err := noFalseOrigin(Mercator, cs.FalseEasting, cs.FalseNorthing); err != nil {
		return err
	}
	if cs.LongitudeOfProjectionOrigin != 0 {
		return griberr.Unsupportedf("Mercator grids with a non-zero longitude of projection origin cannot be saved")
	}
	x, y, dx, dy, err := h.steps("mm", 1, Mercator)
	if err != nil {
		return err
	}
	xm := append([]float64(nil), x...)
	ym := append([]float64(nil), y...)
	floats.Scale(1e-3, xm)
	floats.Scale(1e-3, ym)
	p, err := projectionFor(cs)
	if err != nil {
		return err
	}
	lon1, lat1, err := p.inverse(xm[0], ym[0])
	if err != nil {
		return griberr.InvalidGridParameterf("first grid point: %v", err)
	}
	lon2, lat2, err := p.inverse(xm[len(xm)-1], ym[len(ym)-1])
	if err != nil {
		return griberr.InvalidGridParameterf("last grid point: %v", err)
	}
	sec.Set("Ni", len(x))
	sec.Set("Nj", len(y))
	sec.Set("latitudeOfFirstGridPoint", toMicro(lat1))
	sec.Set("longitudeOfFirstGridPoint", toMicro(wrap360(lon1)))
	sec.Set("resolutionAndComponentFlags", uvRelativeToGrid)
	sec.Set("LaD", toMicro(cs.StandardParallel))
	sec.Set("latitudeOfLastGridPoint", toMicro(lat2))
	sec.Set("longitudeOfLastGridPoint", toMicro(wrap360(lon2)))
	sec.Set("scanningMode", int64(h.scanning()))
	sec.Set("orientationOfTheGrid", 0)
	sec.Set("Di", round(math.Abs(dx)))
	sec.Set("Dj", round(math.Abs(dy)))
	return nil
}

func (h *horizontal) saveTransverseMercator(sec *message.Section, cs *cube.TransverseMercator) error {
	x, y, dx, dy, err := h.steps("cm", 1, TransverseMercator)
	if err != nil {
		return err
	}
	s := h.scanning()
	if s.iSign() < 0 || s.jSign() < 0 {
		return griberr.Unsupportedf("transverse Mercator grids must scan in the +x and +y directions")
	}
	sec.Set("Ni", len(x))
	sec.Set("Nj", len(y))
	sec.Set("latitudeOfReferencePoint", toMicro(cs.LatitudeOfProjectionOrigin))
	sec.Set("longitudeOfReferencePoint", toMicro(cs.LongitudeOfCentralMeridian))
	sec.Set("resolutionAndComponentFlags", 0)
	sec.Set("scaleFactorAtReferencePoint", cs.ScaleFactorAtCentralMeridian)
	sec.Set("XR", round(cs.FalseEasting*100))
	sec.Set("YR", round(cs.FalseNorthing*100))
	sec.Set("scanningMode", int64(s))
	sec.Set("Di", round(math.Abs(dx)))
	sec.Set("Dj", round(math.Abs(dy)))
	sec.Set("X1", round(x[0]))
	sec.Set("Y1", round(y[0]))
	sec.Set("X2", round(x[len(x)-1]))
	sec.Set("Y2", round(y[len(y)-1]))
	return nil
}

// planarSteps returns the points in metres and the steps in millimetres of
// a regular projected grid.
func (h *horizontal) planarSteps(kind Template) (x, y []float64, dxMM, dyMM int64, err error) {
	xmm, ymm, dx, dy, err := h.steps("mm", 1, kind)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	floats.Scale(1e-3, xmm)
	floats.Scale(1e-3, ymm)
	return xmm, ymm, round(math.Abs(dx)), round(math.Abs(dy)), nil
}

func (h *horizontal) savePolarStereographic(sec *message.Section, cs *cube.Stereographic) error {
	if err := noFalseOrigin(PolarStereographic, cs.FalseEasting, cs.FalseNorthing); err != nil {
		return err
	}
	x, y, dx, dy, err := h.planarSteps(PolarStereographic)
	if err != nil {
		return err
	}
	lat1, lon1, err := h.firstPoint(cs, x, y)
	if err != nil {
		return err
	}
	lad := cs.TrueScaleLat
	if math.IsNaN(lad) {
		lad = cs.CentralLat
	}
	flag := 0
	if cs.CentralLat < 0 {
		flag = southPoleOnPlane
	}
	sec.Set("Nx", len(x))
	sec.Set("Ny", len(y))
	sec.Set("latitudeOfFirstGridPoint", toMicro(lat1))
	sec.Set("longitudeOfFirstGridPoint", toMicro(wrap360(lon1)))
	sec.Set("resolutionAndComponentFlags", uvRelativeToGrid)
	sec.Set("LaD", toMicro(lad))
	sec.Set("orientationOfTheGrid", toMicro(wrap360(cs.CentralLon)))
	sec.Set("Dx", dx)
	sec.Set("Dy", dy)
	sec.Set("projectionCentreFlag", flag)
	sec.Set("scanningMode", int64(h.scanning()))
	return nil
}

func (h *horizontal) saveLambertConformal(sec *message.Section, cs *cube.LambertConformal) error {
	if err := noFalseOrigin(LambertConformal, cs.FalseEasting, cs.FalseNorthing); err != nil {
		return err
	}
	x, y, dx, dy, err := h.planarSteps(LambertConformal)
	if err != nil {
		return err
	}
	lat1, lon1, err := h.firstPoint(cs, x, y)
	if err != nil {
		return err
	}
	latin1, latin2 := cs.CentralLat, cs.CentralLat
	switch len(cs.SecantLatitudes) {
	case 1:
		latin1, latin2 = cs.SecantLatitudes[0], cs.SecantLatitudes[0]
	case 2:
		latin1, latin2 = cs.SecantLatitudes[0], cs.SecantLatitudes[1]
	}
	// The cone converges towards the pole nearest the secant latitudes.
	poleward := latin1
	if math.Abs(latin2) > math.Abs(latin1) {
		poleward = latin2
	}
	flag := 0
	if poleward < 0 {
		flag = southPoleOnPlane
	}
	sec.Set("Nx", len(x))
	sec.Set("Ny", len(y))
	sec.Set("latitudeOfFirstGridPoint", toMicro(lat1))
	sec.Set("longitudeOfFirstGridPoint", toMicro(wrap360(lon1)))
	sec.Set("resolutionAndComponentFlags", uvRelativeToGrid)
	sec.Set("LaD", toMicro(cs.CentralLat))
	sec.Set("LoV", toMicro(wrap360(cs.CentralLon)))
	sec.Set("Dx", dx)
	sec.Set("Dy", dy)
	sec.Set("projectionCentreFlag", flag)
	sec.Set("scanningMode", int64(h.scanning()))
	sec.Set("Latin1", toMicro(latin1))
	sec.Set("Latin2", toMicro(latin2))
	sec.Set("latitudeOfSouthernPole", 0)
	sec.Set("longitudeOfSouthernPole", 0)
	return nil
}

func (h *horizontal) saveLambertAzimuthal(sec *message.Section, cs *cube.LambertAzimuthalEqualArea) error {
	if err := noFalseOrigin(LambertAzimuthalEqualArea, cs.FalseEasting, cs.FalseNorthing); err != nil {
		return err
	}
	x, y, dx, dy, err := h.planarSteps(LambertAzimuthalEqualArea)
	if err != nil {
		return err
	}
	lat1, lon1, err := h.firstPoint(cs, x, y)
	if err != nil {
		return err
	}
	sec.Set("numberOfPointsAlongXAxis", len(x))
	sec.Set("numberOfPointsAlongYAxis", len(y))
	sec.Set("latitudeOfFirstGridPoint", toMicro(lat1))
	sec.Set("longitudeOfFirstGridPoint", toMicro(wrap360(lon1)))
	sec.Set("standardParallelInMicrodegrees", toMicro(cs.LatitudeOfProjectionOrigin))
	sec.Set("centralLongitudeInMicrodegrees", toMicro(wrap360(cs.LongitudeOfProjectionOrigin)))
	sec.Set("resolutionAndComponentFlags", 0)
	sec.Set("xDirectionGridLengthInMillimetres", dx)
	sec.Set("yDirectionGridLengthInMillimetres", dy)
	sec.Set("scanningMode", int64(h.scanning()))
	return nil
}

func (h *horizontal) saveSpaceView(sec *message.Section, cs *cube.Geostationary) error {
	if cs.LatitudeOfProjectionOrigin != 0 {
		return griberr.Unsupportedf("space view grids with a non-zero sub-satellite latitude cannot be saved")
	}
	if err := noFalseOrigin(SpaceView, cs.FalseEasting, cs.FalseNorthing); err != nil {
		return err
	}
	x, err := pointsIn(h.x, "radians")
	if err != nil {
		return err
	}
	y, err := pointsIn(h.y, "radians")
	if err != nil {
		return err
	}
	if len(x) < 2 || len(y) < 2 {
		return griberr.Unsupportedf("space view grids need at least two points along each axis")
	}
	xStep, okX := regularStep(x, math.Abs(x[1]-x[0])*1e-6)
	yStep, okY := regularStep(y, math.Abs(y[1]-y[0])*1e-6)
	if !okX || !okY {
		return griberr.Unsupportedf("irregular coordinates are not supported for %v grids", SpaceView)
	}
	if xStep >= 0 || yStep <= 0 {
		return griberr.Unsupportedf("space view grids must scan in the -x and +y directions")
	}
	xStep = -xStep
	earth := cs.Earth()
	a := earth.SemiMajorAxis
	dist := cs.PerspectivePointHeight + a
	eq, polar := apparentHalfAngles(earth, dist)
	xp, yp := round(x[0]/xStep*1000), round(-y[0]/yStep*1000)
	if xp < 0 || yp < 0 {
		return griberr.InvalidGridParameterf("space view grid does not contain the sub-satellite point")
	}
	sec.Set("Nx", len(x))
	sec.Set("Ny", len(y))
	sec.Set("latitudeOfSubSatellitePoint", 0)
	sec.Set("longitudeOfSubSatellitePoint", toMicro(cs.LongitudeOfProjectionOrigin))
	sec.Set("resolutionAndComponentFlags", 0)
	sec.Set("dx", round(2*eq/xStep))
	sec.Set("dy", round(2*polar/yStep))
	sec.Set("Xp", xp)
	sec.Set("Yp", yp)
	sec.Set("scanningMode", int64(h.scanning()))
	sec.Set("orientationOfTheGrid", 0)
	sec.Set("Nr", round(dist/a*spaceViewAltitudeScale))
	sec.Set("Xo", 0)
	sec.Set("Yo", 0)
	return nil
}
