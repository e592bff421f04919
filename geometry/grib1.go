package geometry

import (
	"math"

	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/grib1"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
)

// GRIB1 polar stereographic grids are true at 60 degrees.
const grib1TrueScaleLatitude = 60.0

// LoadGRIB1 translates a GRIB1 grid description section.
func LoadGRIB1(sec *message.Section) (*Grid, error) {
	drt, err := sec.Int("dataRepresentationType")
	if err != nil {
		return nil, err
	}
	flags := sec.IntOr("resolutionAndComponentFlags", 0)
	if flags&grib1.EarthAssumedOblateSpheroidal != 0 {
		return nil, griberr.UnsupportedEditionFeaturef("GRIB1 grids on an oblate spheroidal earth are not supported")
	}
	earth := cube.Sphere(radiusGRIB1Default)
	mode, err := sec.Int("scanningMode")
	if err != nil {
		return nil, err
	}
	scan := scanning(mode) &^ scanAlternating

	var g *Grid
	switch drt {
	case grib1.DataRepresentationTypeLL, grib1.DataRepresentationTypeGG, grib1.DataRepresentationType10:
		g, err = loadGRIB1LatLon(sec, drt, flags, scan, earth)
	case grib1.DataRepresentationTypeLC, grib1.DataRepresentationTypePS:
		g, err = loadGRIB1Projected(sec, drt, scan, earth)
	default:
		return nil, griberr.UnsupportedGridKind(drt)
	}
	if err != nil {
		return nil, err
	}
	g.GridWinds = flags&grib1.UVResolvedGrid != 0
	return g, nil
}

func milli(sec *message.Section, key string) (float64, error) {
	v, err := sec.Int(key)
	if err != nil {
		return 0, err
	}
	return float64(v) / 1e3, nil
}

func loadGRIB1LatLon(sec *message.Section, drt, flags int64, scan scanning, earth *cube.GeogCS) (*Grid, error) {
	r := regular{di: math.NaN(), dj: math.NaN(), scan: scan}
	var err error
	if sec.IsMissing("Ni") {
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
		if *dst, err = milli(sec, key); err != nil {
			return nil, err
		}
	}
	if flags&grib1.DirectionIncrementsGiven != 0 {
		if v, ok, _ := sec.OptInt("iDirectionIncrement"); ok {
			r.di = float64(v) / 1e3
		}
		if v, ok, _ := sec.OptInt("jDirectionIncrement"); ok {
			r.dj = float64(v) / 1e3
		}
	}
	template := LatLon
	var cs cube.CoordSystem = earth
	switch drt {
	case grib1.DataRepresentationTypeGG:
		template = Gaussian
		if r.n, err = count(sec, "N"); err != nil {
			return nil, err
		}
	case grib1.DataRepresentationType10:
		template = RotatedLatLon
		if cs, err = rotatedPole(sec, earth, 1e3); err != nil {
			return nil, err
		}
	}
	g, err := r.grid(cs)
	if err != nil {
		return nil, err
	}
	g.Template = template
	return g, nil
}

func loadGRIB1Projected(sec *message.Section, drt int64, scan scanning, earth *cube.GeogCS) (*Grid, error) {
	pl := planar{scan: scan}
	var err error
	if pl.nx, err = count(sec, "Nx"); err != nil {
		return nil, err
	}
	if pl.ny, err = count(sec, "Ny"); err != nil {
		return nil, err
	}
	if pl.lat1, err = milli(sec, "latitudeOfFirstGridPoint"); err != nil {
		return nil, err
	}
	if pl.lon1, err = milli(sec, "longitudeOfFirstGridPoint"); err != nil {
		return nil, err
	}
	dx, err := sec.Int("DxInMetres")
	if err != nil {
		return nil, err
	}
	dy, err := sec.Int("DyInMetres")
	if err != nil {
		return nil, err
	}
	pl.dx, pl.dy = float64(dx), float64(dy)
	lov, err := milli(sec, "LoV")
	if err != nil {
		return nil, err
	}
	south, err := projectionCentre(sec)
	if err != nil {
		return nil, err
	}

	var cs cube.CoordSystem
	template := PolarStereographic
	if drt == grib1.DataRepresentationTypeLC {
		template = LambertConformal
		latin1, err := milli(sec, "Latin1")
		if err != nil {
			return nil, err
		}
		latin2, err := milli(sec, "Latin2")
		if err != nil {
			return nil, err
		}
		cs = &cube.LambertConformal{CentralLat: latin1, CentralLon: lov, SecantLatitudes: secants(latin1, latin2), Ellipsoid: earth}
	} else {
		pole, ts := 90.0, grib1TrueScaleLatitude
		if south {
			pole, ts = -90, -grib1TrueScaleLatitude
		}
		cs = &cube.Stereographic{CentralLat: pole, CentralLon: lov, TrueScaleLat: ts, Ellipsoid: earth}
	}
	g, err := pl.grid(cs)
	if err != nil {
		return nil, err
	}
	g.Template = template
	return g, nil
}
