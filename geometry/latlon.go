package geometry

import (
	"math"
	"sort"

	"github.com/gonum/floats"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
)

// regular is a latitude/longitude grid in degrees. Increments are NaN when
// they are not given. A Gaussian grid has n > 0; a reduced grid has row
// lengths in pl and ni == 0.
type regular struct {
	ni, nj     int
	lat1, lon1 float64
	lat2, lon2 float64
	di, dj     float64
	n          int
	pl         []int64
	scan       scanning
}

// loadLatLon handles templates 0, 1 and 40.
func loadLatLon(sec *message.Section) (*Grid, error) {
	earth, err := earthShape(sec)
	if err != nil {
		return nil, err
	}
	scan, err := scanningMode(sec)
	if err != nil {
		return nil, err
	}
	r := regular{di: math.NaN(), dj: math.NaN(), scan: scan}
	reduced := quasiRegular(sec)
	if reduced {
		if r.pl, err = sec.Ints("pl"); err != nil {
			return nil, err
		}
		r.nj = len(r.pl)
	} else {
		if r.ni, err = count(sec, "Ni"); err != nil {
			return nil, err
		}
		if r.nj, err = count(sec, "Nj"); err != nil {
			return nil, err
		}
	}
	for key, dst := range map[string]*float64{
		"latitudeOfFirstGridPoint":  &r.lat1,
		"longitudeOfFirstGridPoint": &r.lon1,
		"latitudeOfLastGridPoint":   &r.lat2,
		"longitudeOfLastGridPoint":  &r.lon2,
	} {
		if *dst, err = micro(sec, key); err != nil {
			return nil, err
		}
	}
	flags := sec.IntOr("resolutionAndComponentFlags", 0)
	if flags&iIncrementGiven != 0 {
		if v, ok, _ := sec.OptInt("iDirectionIncrement"); ok {
			r.di = float64(v) / 1e6
		}
	}
	if sec.Has("N") {
		if r.n, err = count(sec, "N"); err != nil {
			return nil, err
		}
	} else if flags&jIncrementGiven != 0 {
		if v, ok, _ := sec.OptInt("jDirectionIncrement"); ok {
			r.dj = float64(v) / 1e6
		}
	}

	var cs cube.CoordSystem = earth
	if sec.Has("latitudeOfSouthernPole") {
		if cs, err = rotatedPole(sec, earth, 1e6); err != nil {
			return nil, err
		}
	}
	g, err := r.grid(cs)
	if err != nil {
		return nil, err
	}
	g.GridWinds = flags&uvRelativeToGrid != 0
	return g, nil
}

// rotatedPole reads the southern pole of a rotated grid, stored in units of
// 1/perDegree degrees.
func rotatedPole(sec *message.Section, earth *cube.GeogCS, perDegree float64) (*cube.RotatedGeogCS, error) {
	lat, err := sec.Int("latitudeOfSouthernPole")
	if err != nil {
		return nil, err
	}
	lon, err := sec.Int("longitudeOfSouthernPole")
	if err != nil {
		return nil, err
	}
	angle := 0.0
	for _, key := range []string{"angleOfRotation", "angleOfRotationInDegrees"} {
		if v, ok, err := sec.OptFloat(key); err == nil && ok {
			angle = v
		}
	}
	return &cube.RotatedGeogCS{
		GridNorthPoleLatitude:  -float64(lat) / perDegree,
		GridNorthPoleLongitude: math.Mod(float64(lon)/perDegree+180, 360),
		NorthPoleGridLongitude: angle,
		Ellipsoid:              earth,
	}, nil
}

func (r regular) grid(cs cube.CoordSystem) (*Grid, error) {
	for _, lat := range []float64{r.lat1, r.lat2} {
		if lat < -90 || lat > 90 {
			return nil, griberr.InvalidGridParameterf("latitude %v is outside [-90, 90]", lat)
		}
	}
	var lats []float64
	if r.n > 0 {
		var err error
		if lats, err = r.gaussianLatitudes(); err != nil {
			return nil, err
		}
	} else {
		dj := r.dj
		if math.IsNaN(dj) {
			dj = derivedStep(r.lat1, r.lat2, r.nj)
		}
		lats = arange(r.lat1, dj*r.scan.jSign(), r.nj)
	}

	if r.pl != nil {
		return r.reducedGrid(cs, lats)
	}

	lon2 := r.unwrappedLastLongitude()
	di := r.di
	if math.IsNaN(di) {
		if r.ni > 1 && lon2 == r.lon1 {
			return nil, griberr.InvalidGridParameterf("last longitude %v equals the first longitude of %d points", lon2, r.ni)
		}
		di = derivedStep(r.lon1, lon2, r.ni)
	}
	lons := arange(r.lon1, di*r.scan.iSign(), r.ni)

	yDim, xDim, shape := r.scan.dims(r.ni, r.nj)
	x, y := geogCoords(cs, lons, lats)
	x.Circular = circular(di, r.ni)
	return &Grid{X: x, Y: y, XDim: xDim, YDim: yDim, Shape: shape, System: cs}, nil
}

// unwrappedLastLongitude moves a last longitude west of the first one by a
// turn when points scan eastwards.
func (r regular) unwrappedLastLongitude() float64 {
	if r.lon2 < r.lon1 && r.scan.iSign() > 0 {
		return r.lon2 + 360
	}
	return r.lon2
}

func derivedStep(first, last float64, n int) float64 {
	if n < 2 {
		return 0
	}
	return math.Abs(last-first) / float64(n-1)
}

// gaussianLatitudes picks the latitudes of the global Gaussian grid of r.n
// that lie between the first and last latitude, in scan order.
func (r regular) gaussianLatitudes() ([]float64, error) {
	all := GaussianLatitudes(r.n)
	lo, hi := math.Min(r.lat1, r.lat2), math.Max(r.lat1, r.lat2)
	const tol = 1e-5
	var lats []float64
	for _, lat := range all {
		if lat >= lo-tol && lat <= hi+tol {
			lats = append(lats, lat)
		}
	}
	if r.scan.jSign() > 0 {
		sort.Float64s(lats)
	}
	if len(lats) != r.nj {
		return nil, griberr.InvalidGridParameterf("Gaussian grid N=%d has %d latitudes between %v and %v, want %d",
			r.n, len(lats), r.lat1, r.lat2, r.nj)
	}
	return lats, nil
}

// reducedGrid lays out the rows of a quasi-regular grid one after the other
// on a single data dimension.
func (r regular) reducedGrid(cs cube.CoordSystem, lats []float64) (*Grid, error) {
	lon2 := r.unwrappedLastLongitude()
	plMax := int64(0)
	total := 0
	for _, n := range r.pl {
		if n > plMax {
			plMax = n
		}
		total += int(n)
	}
	if total == 0 {
		return nil, griberr.InvalidGridParameterf("quasi-regular grid has no points")
	}
	// A global row spans the full turn; the last longitude is then one step
	// short of it on the longest row.
	global := floats.EqualWithinAbs(lon2-r.lon1, 360-360/float64(plMax), 1e-3)
	x := make([]float64, 0, total)
	y := make([]float64, 0, total)
	for j, n := range r.pl {
		if n == 0 {
			continue
		}
		step := 360 / float64(n)
		if !global {
			step = derivedStep(r.lon1, lon2, int(n))
		}
		x = append(x, arange(r.lon1, step*r.scan.iSign(), int(n))...)
		for i := int64(0); i < n; i++ {
			y = append(y, lats[j])
		}
	}
	xc, yc := geogCoords(cs, x, y)
	return &Grid{X: xc, Y: yc, Reduced: true, Shape: []int{total}, System: cs}, nil
}

// loadIrregular handles templates 4 and 5.
func loadIrregular(sec *message.Section) (*Grid, error) {
	earth, err := earthShape(sec)
	if err != nil {
		return nil, err
	}
	scan, err := scanningMode(sec)
	if err != nil {
		return nil, err
	}
	lons, err := sec.Floats("longitude")
	if err != nil {
		return nil, err
	}
	lats, err := sec.Floats("latitude")
	if err != nil {
		return nil, err
	}
	if len(lons) == 0 || len(lats) == 0 {
		return nil, griberr.InvalidGridParameterf("variable resolution grid has %d longitudes and %d latitudes", len(lons), len(lats))
	}
	lons, lats = fromMicro(lons), fromMicro(lats)

	var cs cube.CoordSystem = earth
	if sec.Has("latitudeOfSouthernPole") {
		if cs, err = rotatedPole(sec, earth, 1e6); err != nil {
			return nil, err
		}
	}
	yDim, xDim, shape := scan.dims(len(lons), len(lats))
	x, y := geogCoords(cs, lons, lats)
	return &Grid{X: x, Y: y, XDim: xDim, YDim: yDim, Shape: shape, System: cs, GridWinds: gridWinds(sec)}, nil
}

func fromMicro(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / 1e6
	}
	return out
}
