package vertical

import (
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
	"github.com/sdifrance/gribcube/units"
)

// GRIB1 Code table 3 - Type of level.
const (
	grib1Surface           = 1
	grib1Isobaric          = 100
	grib1Altitude          = 103
	grib1HeightAboveGround = 105
	grib1Hybrid            = 109
)

// LoadGRIB1 translates the level of a GRIB1 product definition section. The
// grid description section supplies the hybrid coefficients; it may be nil
// for other level types.
func LoadGRIB1(pds, gds *message.Section) (*Levels, error) {
	kind, err := pds.Int("indicatorOfTypeOfLevel")
	if err != nil {
		return nil, err
	}
	if kind == grib1Surface {
		return &Levels{}, nil
	}
	if !pds.Has("level") {
		// A layer between two levels.
		return &Levels{Unsupported: griberr.UnsupportedSurfaceType(kind)}, nil
	}
	level, err := pds.Int("level")
	if err != nil {
		return nil, err
	}
	switch kind {
	case grib1Isobaric:
		pa, err := units.Convert(float64(level), "hPa", "Pa")
		if err != nil {
			return nil, err
		}
		return single(surfaces[Isobaric], pa), nil
	case grib1Altitude:
		return single(surfaces[MeanSeaLevelHeight], float64(level)), nil
	case grib1HeightAboveGround:
		return single(surfaces[HeightAboveGround], float64(level)), nil
	case grib1Hybrid:
		if gds == nil || !gds.Has("pv") {
			return nil, griberr.MalformedSectionf("GRIB1 hybrid level %d has no vertical coordinate parameters", level)
		}
		pv, err := gds.Floats("pv")
		if err != nil {
			return nil, err
		}
		// GRIB1 keeps the coefficients of level N at index N of each half.
		l, err := hybridLevels(HybridLevel, int(level), pv, int(level))
		if err != nil {
			return nil, err
		}
		l.Factory.Surface = "surface_pressure"
		return l, nil
	}
	return &Levels{Unsupported: griberr.UnsupportedSurfaceType(kind)}, nil
}

func single(s surface, v float64) *Levels {
	return &Levels{Coords: []*cube.Coord{{StandardName: s.standardName, LongName: s.longName, Units: s.units, Points: []float64{v}}}}
}
