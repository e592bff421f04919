package geometry

import (
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"
	"github.com/pkg/errors"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
)

const deg2rad = math.Pi / 180

// projection maps geographic longitude and latitude in degrees to projection
// coordinates in metres, and back.
type projection interface {
	forward(lon, lat float64) (x, y float64, err error)
	inverse(x, y float64) (lon, lat float64, err error)
}

// projectionFor returns the projection of a projected coordinate system.
func projectionFor(cs cube.CoordSystem) (projection, error) {
	switch cs := cs.(type) {
	case *cube.Mercator:
		return newSRProjection(fmt.Sprintf("+proj=merc +lon_0=%v +lat_ts=%v +x_0=%v +y_0=%v",
			cs.LongitudeOfProjectionOrigin, cs.StandardParallel, cs.FalseEasting, cs.FalseNorthing), cs.Ellipsoid)
	case *cube.LambertConformal:
		lat1, lat2 := cs.CentralLat, cs.CentralLat
		switch len(cs.SecantLatitudes) {
		case 1:
			lat1, lat2 = cs.SecantLatitudes[0], cs.SecantLatitudes[0]
		case 2:
			lat1, lat2 = cs.SecantLatitudes[0], cs.SecantLatitudes[1]
		}
		return newSRProjection(fmt.Sprintf("+proj=lcc +lat_1=%v +lat_2=%v +lat_0=%v +lon_0=%v +x_0=%v +y_0=%v",
			lat1, lat2, cs.CentralLat, cs.CentralLon, cs.FalseEasting, cs.FalseNorthing), cs.Ellipsoid)
	// proj has no stere or laea transform.
	case *cube.Stereographic:
		return newPolarStereographic(cs)
	case *cube.LambertAzimuthalEqualArea:
		return newLambertAzimuthal(cs), nil
	}
	return nil, griberr.Unsupportedf("no projection for coordinate system %v", cs)
}

// srProjection delegates to a proj4 definition.
type srProjection struct {
	fwd, inv proj.Transformer
}

func newSRProjection(def string, earth *cube.GeogCS) (*srProjection, error) {
	ellps := fmt.Sprintf(" +a=%v +b=%v", earth.SemiMajorAxis, earth.SemiMinorAxis)
	geog, err := proj.Parse("+proj=longlat" + ellps)
	if err != nil {
		return nil, errors.Wrap(err, "parsing geographic system")
	}
	sr, err := proj.Parse(def + ellps)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q", def)
	}
	fwd, err := geog.NewTransform(sr)
	if err != nil {
		return nil, errors.Wrapf(err, "projecting to %q", def)
	}
	inv, err := sr.NewTransform(geog)
	if err != nil {
		return nil, errors.Wrapf(err, "projecting from %q", def)
	}
	return &srProjection{fwd: fwd, inv: inv}, nil
}

func (p *srProjection) forward(lon, lat float64) (float64, float64, error) {
	return p.fwd(math.Remainder(lon, 360), lat)
}

func (p *srProjection) inverse(x, y float64) (float64, float64, error) {
	return p.inv(x, y)
}

func eccentricity(earth *cube.GeogCS) float64 {
	r := earth.SemiMinorAxis / earth.SemiMajorAxis
	return math.Sqrt(1 - r*r)
}

// polarStereographic is the polar aspect of the stereographic projection on
// an ellipsoid (Snyder, Map Projections: A Working Manual, eqs 21-33 to
// 21-40). The south polar aspect is computed in its north polar mirror.
type polarStereographic struct {
	a, e  float64
	south bool
	lon0  float64
	// rhoScale turns t(lat) into the distance from the pole.
	rhoScale float64
}

func newPolarStereographic(cs *cube.Stereographic) (*polarStereographic, error) {
	if math.Abs(cs.CentralLat) != 90 {
		return nil, griberr.Unsupportedf("stereographic projection centred on latitude %v is not polar", cs.CentralLat)
	}
	p := &polarStereographic{
		a:     cs.Ellipsoid.SemiMajorAxis,
		e:     eccentricity(cs.Ellipsoid),
		south: cs.CentralLat < 0,
		lon0:  cs.CentralLon * deg2rad,
	}
	if p.south {
		p.lon0 = -p.lon0
	}
	latTS := cs.TrueScaleLat
	if p.south {
		latTS = -latTS
	}
	if math.IsNaN(latTS) || math.Abs(latTS) == 90 {
		e := p.e
		p.rhoScale = 2 * p.a / math.Sqrt(math.Pow(1+e, 1+e)*math.Pow(1-e, 1-e))
	} else {
		phi := latTS * deg2rad
		p.rhoScale = p.a * p.m(phi) / p.t(phi)
	}
	return p, nil
}

func (p *polarStereographic) t(phi float64) float64 {
	s := p.e * math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-s)/(1+s), p.e/2)
}

func (p *polarStereographic) m(phi float64) float64 {
	s := p.e * math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-s*s)
}

func (p *polarStereographic) forward(lon, lat float64) (float64, float64, error) {
	phi, lam := lat*deg2rad, lon*deg2rad
	if p.south {
		phi, lam = -phi, -lam
	}
	if phi <= -math.Pi/2 {
		return 0, 0, errors.Errorf("latitude %v cannot be projected from the opposite pole", lat)
	}
	rho := p.rhoScale * p.t(phi)
	x, y := rho*math.Sin(lam-p.lon0), -rho*math.Cos(lam-p.lon0)
	if p.south {
		x, y = -x, -y
	}
	return x, y, nil
}

func (p *polarStereographic) inverse(x, y float64) (float64, float64, error) {
	if p.south {
		x, y = -x, -y
	}
	t := math.Hypot(x, y) / p.rhoScale
	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 50; i++ {
		s := p.e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-s)/(1+s), p.e/2))
		if math.Abs(next-phi) < 1e-14 {
			phi = next
			break
		}
		phi = next
	}
	lam := p.lon0 + math.Atan2(x, -y)
	if p.south {
		phi, lam = -phi, -lam
	}
	return lam / deg2rad, phi / deg2rad, nil
}

// lambertAzimuthal is the Lambert azimuthal equal-area projection on an
// ellipsoid (Snyder, eqs 24-2 to 24-29). A sphere has e = 0.
type lambertAzimuthal struct {
	e, e2      float64
	lat0, lon0 float64
	qp, rq     float64
	sinB1      float64
	cosB1      float64
	d          float64
}

func newLambertAzimuthal(cs *cube.LambertAzimuthalEqualArea) *lambertAzimuthal {
	a := cs.Ellipsoid.SemiMajorAxis
	e := eccentricity(cs.Ellipsoid)
	p := &lambertAzimuthal{
		e:    e,
		e2:   e * e,
		lat0: cs.LatitudeOfProjectionOrigin * deg2rad,
		lon0: cs.LongitudeOfProjectionOrigin * deg2rad,
	}
	p.qp = p.q(math.Pi / 2)
	p.rq = a * math.Sqrt(p.qp/2)
	b1 := math.Asin(clamp(p.q(p.lat0) / p.qp))
	p.sinB1, p.cosB1 = math.Sin(b1), math.Cos(b1)
	p.d = 1
	if p.cosB1 > 1e-12 {
		s := math.Sin(p.lat0)
		m1 := math.Cos(p.lat0) / math.Sqrt(1-p.e2*s*s)
		p.d = a * m1 / (p.rq * p.cosB1)
	}
	return p
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func (p *lambertAzimuthal) q(phi float64) float64 {
	s := math.Sin(phi)
	if p.e == 0 {
		return 2 * s
	}
	return (1 - p.e2) * (s/(1-p.e2*s*s) - math.Log((1-p.e*s)/(1+p.e*s))/(2*p.e))
}

func (p *lambertAzimuthal) forward(lon, lat float64) (float64, float64, error) {
	beta := math.Asin(clamp(p.q(lat*deg2rad) / p.qp))
	dl := lon*deg2rad - p.lon0
	sinB, cosB := math.Sin(beta), math.Cos(beta)
	denom := 1 + p.sinB1*sinB + p.cosB1*cosB*math.Cos(dl)
	if denom < 1e-12 {
		return 0, 0, errors.Errorf("point (%v, %v) is antipodal to the projection origin", lon, lat)
	}
	b := p.rq * math.Sqrt(2/denom)
	x := b * p.d * cosB * math.Sin(dl)
	y := (b / p.d) * (p.cosB1*sinB - p.sinB1*cosB*math.Cos(dl))
	return x, y, nil
}

func (p *lambertAzimuthal) inverse(x, y float64) (float64, float64, error) {
	rho := math.Hypot(x/p.d, p.d*y)
	if rho < 1e-9 {
		return p.lon0 / deg2rad, p.lat0 / deg2rad, nil
	}
	ce := 2 * math.Asin(clamp(rho/(2*p.rq)))
	sinCe, cosCe := math.Sin(ce), math.Cos(ce)
	q := p.qp * (cosCe*p.sinB1 + p.d*y*sinCe*p.cosB1/rho)
	lam := p.lon0 + math.Atan2(x*sinCe, p.d*p.cosB1*rho*cosCe-p.d*p.d*y*p.sinB1*sinCe)
	return lam / deg2rad, p.latitude(q) / deg2rad, nil
}

// latitude inverts q by iteration.
func (p *lambertAzimuthal) latitude(q float64) float64 {
	if math.Abs(math.Abs(q)-p.qp) < 1e-12 {
		return math.Copysign(math.Pi/2, q)
	}
	phi := math.Asin(clamp(q / 2))
	if p.e == 0 {
		return phi
	}
	for i := 0; i < 50; i++ {
		s := math.Sin(phi)
		es := p.e * s
		w := 1 - p.e2*s*s
		dphi := w * w / (2 * math.Cos(phi)) *
			(q/(1-p.e2) - s/w + math.Log((1-es)/(1+es))/(2*p.e))
		phi += dphi
		if math.Abs(dphi) < 1e-14 {
			break
		}
	}
	return phi
}
