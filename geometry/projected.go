package geometry

import (
	"math"

	"github.com/golang/glog"
	"github.com/gonum/floats"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
)

// Projection centre flag (Flag table 3.5).
const (
	southPoleOnPlane = 0x80
	bipolar          = 0x40
)

// planar is a regular grid in projection coordinates. Steps are in metres.
type planar struct {
	nx, ny     int
	lat1, lon1 float64
	dx, dy     float64
	scan       scanning
}

func (pl planar) grid(cs cube.CoordSystem) (*Grid, error) {
	p, err := projectionFor(cs)
	if err != nil {
		return nil, err
	}
	x0, y0, err := p.forward(pl.lon1, pl.lat1)
	if err != nil {
		return nil, griberr.InvalidGridParameterf("first grid point (%v, %v): %v", pl.lat1, pl.lon1, err)
	}
	x := arange(x0, pl.dx*pl.scan.iSign(), pl.nx)
	y := arange(y0, pl.dy*pl.scan.jSign(), pl.ny)
	yDim, xDim, shape := pl.scan.dims(pl.nx, pl.ny)
	xc, yc := projectionCoords(cs, "m", x, y)
	return &Grid{X: xc, Y: yc, XDim: xDim, YDim: yDim, Shape: shape, System: cs}, nil
}

// readPlanar reads the counts, first point and steps shared by the projected
// templates. Steps are stored in millimetres.
func readPlanar(sec *message.Section, nx, ny, dx, dy string) (planar, error) {
	var pl planar
	var err error
	if pl.scan, err = scanningMode(sec); err != nil {
		return pl, err
	}
	if pl.nx, err = count(sec, nx); err != nil {
		return pl, err
	}
	if pl.ny, err = count(sec, ny); err != nil {
		return pl, err
	}
	if pl.lat1, err = micro(sec, "latitudeOfFirstGridPoint"); err != nil {
		return pl, err
	}
	if pl.lon1, err = micro(sec, "longitudeOfFirstGridPoint"); err != nil {
		return pl, err
	}
	dxMM, err := sec.Int(dx)
	if err != nil {
		return pl, err
	}
	dyMM, err := sec.Int(dy)
	if err != nil {
		return pl, err
	}
	pl.dx, pl.dy = float64(dxMM)/1e3, float64(dyMM)/1e3
	return pl, nil
}

func loadMercator(sec *message.Section) (*Grid, error) {
	earth, err := earthShape(sec)
	if err != nil {
		return nil, err
	}
	pl, err := readPlanar(sec, "Ni", "Nj", "Di", "Dj")
	if err != nil {
		return nil, err
	}
	orientation, err := sec.Int("orientationOfTheGrid")
	if err != nil {
		return nil, err
	}
	if orientation != 0 {
		return nil, griberr.Unsupportedf("grid definition section 3 contains unsupported Mercator orientation [%d]", orientation)
	}
	lad, err := micro(sec, "LaD")
	if err != nil {
		return nil, err
	}
	cs := &cube.Mercator{StandardParallel: lad, Ellipsoid: earth}
	g, err := pl.grid(cs)
	if err != nil {
		return nil, err
	}
	checkMercatorLastPoint(sec, cs, g, pl)
	g.GridWinds = gridWinds(sec)
	return g, nil
}

// checkMercatorLastPoint warns when the declared last grid point is not where
// the increments put it.
func checkMercatorLastPoint(sec *message.Section, cs *cube.Mercator, g *Grid, pl planar) {
	lat2, err := micro(sec, "latitudeOfLastGridPoint")
	if err != nil {
		return
	}
	lon2, err := micro(sec, "longitudeOfLastGridPoint")
	if err != nil {
		return
	}
	p, err := projectionFor(cs)
	if err != nil {
		return
	}
	x2, y2, err := p.forward(lon2, lat2)
	if err != nil {
		glog.Warningf("Mercator last grid point (%v, %v) cannot be projected: %v", lat2, lon2, err)
		return
	}
	gx, gy := g.X.Points[len(g.X.Points)-1], g.Y.Points[len(g.Y.Points)-1]
	if !floats.EqualWithinAbs(x2, gx, pl.dx/2+1) || !floats.EqualWithinAbs(y2, gy, pl.dy/2+1) {
		glog.Warningf("inconsistent Mercator grid: last grid point (%v, %v) projects to (%v, %v) but the points end at (%v, %v)",
			lat2, lon2, x2, y2, gx, gy)
	}
}

func loadTransverseMercator(sec *message.Section) (*Grid, error) {
	earth, err := earthShape(sec)
	if err != nil {
		return nil, err
	}
	scan, err := scanningMode(sec)
	if err != nil {
		return nil, err
	}
	if scan.iSign() < 0 || scan.jSign() < 0 {
		return nil, griberr.Unsupportedf("grid definition section 3 contains unsupported transverse Mercator scanning mode [%#x]", int64(scan))
	}
	ni, err := count(sec, "Ni")
	if err != nil {
		return nil, err
	}
	nj, err := count(sec, "Nj")
	if err != nil {
		return nil, err
	}
	v := map[string]float64{}
	for _, key := range []string{"X1", "X2", "Y1", "Y2", "Di", "Dj", "XR", "YR"} {
		n, err := sec.Int(key)
		if err != nil {
			return nil, err
		}
		v[key] = float64(n)
	}
	x, err := spanCentimetres(v["X1"], v["X2"], v["Di"], ni, "x")
	if err != nil {
		return nil, err
	}
	y, err := spanCentimetres(v["Y1"], v["Y2"], v["Dj"], nj, "y")
	if err != nil {
		return nil, err
	}
	lat0, err := micro(sec, "latitudeOfReferencePoint")
	if err != nil {
		return nil, err
	}
	lon0, err := micro(sec, "longitudeOfReferencePoint")
	if err != nil {
		return nil, err
	}
	k, err := sec.Float("scaleFactorAtReferencePoint")
	if err != nil {
		return nil, err
	}
	cs := &cube.TransverseMercator{
		LatitudeOfProjectionOrigin:   lat0,
		LongitudeOfCentralMeridian:   lon0,
		FalseEasting:                 v["XR"] / 100,
		FalseNorthing:                v["YR"] / 100,
		ScaleFactorAtCentralMeridian: k,
		Ellipsoid:                    earth,
	}
	yDim, xDim, shape := scan.dims(ni, nj)
	xc, yc := projectionCoords(cs, "m", x, y)
	return &Grid{X: xc, Y: yc, XDim: xDim, YDim: yDim, Shape: shape, System: cs, GridWinds: gridWinds(sec)}, nil
}

// spanCentimetres returns n points in metres from first to last, both in cm,
// checking that their spacing agrees with step to within a centimetre.
func spanCentimetres(first, last, step float64, n int, axis string) ([]float64, error) {
	if n == 1 {
		return []float64{first / 100}, nil
	}
	if got := (last - first) / float64(n-1); math.Abs(got-step) > 1 {
		return nil, griberr.InvalidGridParameterf("%s points from %v to %v cm are %v cm apart, increment is %v cm", axis, first, last, got, step)
	}
	return floats.Span(make([]float64, n), first/100, last/100), nil
}

// projectionCentre reads Flag table 3.5 and reports whether the south pole
// is on the projection plane.
func projectionCentre(sec *message.Section) (south bool, err error) {
	flag, err := sec.Int("projectionCentreFlag")
	if err != nil {
		return false, err
	}
	if flag&bipolar != 0 {
		return false, griberr.Unsupportedf("grid definition section 3 contains unsupported bipolar projection [%#x]", flag)
	}
	return flag&southPoleOnPlane != 0, nil
}

func loadPolarStereographic(sec *message.Section) (*Grid, error) {
	earth, err := earthShape(sec)
	if err != nil {
		return nil, err
	}
	pl, err := readPlanar(sec, "Nx", "Ny", "Dx", "Dy")
	if err != nil {
		return nil, err
	}
	south, err := projectionCentre(sec)
	if err != nil {
		return nil, err
	}
	lad, err := micro(sec, "LaD")
	if err != nil {
		return nil, err
	}
	lov, err := micro(sec, "orientationOfTheGrid")
	if err != nil {
		return nil, err
	}
	pole := 90.0
	if south {
		pole = -90
	}
	cs := &cube.Stereographic{CentralLat: pole, CentralLon: lov, TrueScaleLat: lad, Ellipsoid: earth}
	g, err := pl.grid(cs)
	if err != nil {
		return nil, err
	}
	g.GridWinds = gridWinds(sec)
	return g, nil
}

func loadLambertConformal(sec *message.Section) (*Grid, error) {
	earth, err := earthShape(sec)
	if err != nil {
		return nil, err
	}
	pl, err := readPlanar(sec, "Nx", "Ny", "Dx", "Dy")
	if err != nil {
		return nil, err
	}
	if _, err := projectionCentre(sec); err != nil {
		return nil, err
	}
	v := map[string]float64{}
	for _, key := range []string{"LaD", "LoV", "Latin1", "Latin2"} {
		if v[key], err = micro(sec, key); err != nil {
			return nil, err
		}
	}
	cs := &cube.LambertConformal{
		CentralLat:      v["LaD"],
		CentralLon:      v["LoV"],
		SecantLatitudes: secants(v["Latin1"], v["Latin2"]),
		Ellipsoid:       earth,
	}
	g, err := pl.grid(cs)
	if err != nil {
		return nil, err
	}
	g.GridWinds = gridWinds(sec)
	return g, nil
}

func secants(lat1, lat2 float64) []float64 {
	if lat1 == lat2 {
		return []float64{lat1}
	}
	return []float64{lat1, lat2}
}

func loadLambertAzimuthalEqualArea(sec *message.Section) (*Grid, error) {
	earth, err := earthShape(sec)
	if err != nil {
		return nil, err
	}
	pl, err := readPlanar(sec, "numberOfPointsAlongXAxis", "numberOfPointsAlongYAxis",
		"xDirectionGridLengthInMillimetres", "yDirectionGridLengthInMillimetres")
	if err != nil {
		return nil, err
	}
	lat0, err := micro(sec, "standardParallelInMicrodegrees")
	if err != nil {
		return nil, err
	}
	lon0, err := micro(sec, "centralLongitudeInMicrodegrees")
	if err != nil {
		return nil, err
	}
	cs := &cube.LambertAzimuthalEqualArea{LatitudeOfProjectionOrigin: lat0, LongitudeOfProjectionOrigin: lon0, Ellipsoid: earth}
	g, err := pl.grid(cs)
	if err != nil {
		return nil, err
	}
	g.GridWinds = gridWinds(sec)
	return g, nil
}

// Nr is the distance of the satellite from the centre of the earth in units
// of 10^-6 earth radii.
const spaceViewAltitudeScale = 1e6

func loadSpaceView(sec *message.Section) (*Grid, error) {
	earth, err := earthShape(sec)
	if err != nil {
		return nil, err
	}
	nr, ok, err := sec.OptInt("Nr")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, griberr.Unsupportedf("grid definition section 3 contains an unsupported orthographic grid")
	}
	if nr == 0 {
		return nil, griberr.Unsupportedf("grid definition section 3 contains an unsupported zero altitude space view")
	}
	if lat, err := sec.Int("latitudeOfSubSatellitePoint"); err != nil {
		return nil, err
	} else if lat != 0 {
		return nil, griberr.Unsupportedf("grid definition section 3 contains an unsupported non-zero sub-satellite latitude [%d]", lat)
	}
	if o, err := sec.Int("orientationOfTheGrid"); err != nil {
		return nil, err
	} else if o != 0 {
		return nil, griberr.Unsupportedf("grid definition section 3 contains an unsupported space view orientation [%d]", o)
	}
	scan, err := scanningMode(sec)
	if err != nil {
		return nil, err
	}
	if scan.iSign() > 0 || scan.jSign() < 0 {
		return nil, griberr.Unsupportedf("grid definition section 3 contains an unsupported space view scanning mode [%#x]", int64(scan))
	}
	lon0, err := micro(sec, "longitudeOfSubSatellitePoint")
	if err != nil {
		return nil, err
	}
	v := map[string]float64{}
	for _, key := range []string{"Nx", "Ny", "dx", "dy", "Xp", "Yp", "Xo", "Yo"} {
		n, err := sec.Int(key)
		if err != nil {
			return nil, err
		}
		v[key] = float64(n)
	}
	if v["Nx"] <= 0 || v["Ny"] <= 0 || v["dx"] <= 0 || v["dy"] <= 0 {
		return nil, griberr.InvalidGridParameterf("space view grid has non-positive counts or apparent diameters")
	}
	a := earth.SemiMajorAxis
	h := float64(nr) / spaceViewAltitudeScale * a
	if h <= a {
		return nil, griberr.InvalidGridParameterf("space view altitude Nr = %d is inside the earth", nr)
	}
	eq, polar := apparentHalfAngles(earth, h)
	xStep, yStep := 2*eq/v["dx"], 2*polar/v["dy"]
	x := arange(xStep*(v["Xp"]/1000-v["Xo"]), -xStep, int(v["Nx"]))
	y := arange(yStep*(v["Yo"]-v["Yp"]/1000), yStep, int(v["Ny"]))

	cs := &cube.Geostationary{
		LongitudeOfProjectionOrigin: lon0,
		PerspectivePointHeight:      h - a,
		SweepAngleAxis:              "y",
		Ellipsoid:                   earth,
	}
	yDim, xDim, shape := scan.dims(len(x), len(y))
	xc, yc := projectionCoords(cs, "radians", x, y)
	return &Grid{X: xc, Y: yc, XDim: xDim, YDim: yDim, Shape: shape, System: cs, GridWinds: gridWinds(sec)}, nil
}

// apparentHalfAngles returns half the angles the earth subtends across the
// equator and between the poles, seen from distance h above the centre of
// the equator.
func apparentHalfAngles(earth *cube.GeogCS, h float64) (eq, polar float64) {
	a, b := earth.SemiMajorAxis, earth.SemiMinorAxis
	return math.Asin(a / h), math.Atan(b / math.Sqrt(h*h-a*a))
}
