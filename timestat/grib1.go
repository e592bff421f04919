package timestat

import (
	"time"

	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
	"github.com/sdifrance/gribcube/units"
)

// GRIB1 Code table 4 - Unit of time.
var grib1TimeUnits = map[int64]timeUnit{
	0:   {"minutes", "minutes", 1},
	1:   {"hours", "hours", 1},
	2:   {"days", "days", 1},
	10:  {"3 hours", "hours", 3},
	11:  {"6 hours", "hours", 6},
	12:  {"12 hours", "hours", 12},
	254: {"seconds", "seconds", 1},
}

// GRIB1 Code table 5 - Time range indicator.
const (
	grib1Forecast     = 0
	grib1Initialized  = 1
	grib1Range        = 2
	grib1Average      = 3
	grib1Accumulation = 4
	grib1LongForecast = 10
)

// LoadGRIB1 translates the time keys of a GRIB1 product definition section
// with the default options.
func LoadGRIB1(pds *message.Section) (*Times, error) {
	return Defaults.LoadGRIB1(pds)
}

// LoadGRIB1 translates the reference time, unit of time and time range
// indicator of a GRIB1 product definition section. Fields over a time range
// are valid at its end.
func (o Options) LoadGRIB1(pds *message.Section) (*Times, error) {
	century, err := pds.Int("centuryOfReferenceTimeOfData")
	if err != nil {
		return nil, err
	}
	yearOfCentury, err := pds.Int("yearOfCentury")
	if err != nil {
		return nil, err
	}
	var v [4]int64
	for i, k := range []string{"month", "day", "hour", "minute"} {
		if v[i], err = pds.Int(k); err != nil {
			return nil, err
		}
	}
	year := (century-1)*100 + yearOfCentury
	frt := hoursSinceEpoch(time.Date(int(year), time.Month(v[0]), int(v[1]), int(v[2]), int(v[3]), 0, 0, time.UTC))

	unit, err := pds.Int("unitOfTimeRange")
	if err != nil {
		return nil, err
	}
	tu, ok := grib1TimeUnits[unit]
	if !ok {
		return nil, griberr.Unsupportedf("product definition section 1 contains an unsupported unit of time [%d]", unit)
	}
	hours := func(key string) (float64, error) {
		n, err := pds.Int(key)
		if err != nil {
			return 0, err
		}
		return units.Convert(float64(n)*tu.scale, tu.units, "hours")
	}
	p1, err := hours("P1")
	if err != nil {
		return nil, err
	}

	indicator, err := pds.Int("timeRangeIndicator")
	if err != nil {
		return nil, err
	}
	t := &Times{}
	fp := &cube.Coord{StandardName: ForecastPeriod, Units: "hours"}
	switch indicator {
	case grib1Forecast, grib1LongForecast:
		fp.Points = []float64{p1}
	case grib1Initialized:
		fp.Points = []float64{0}
	case grib1Range, grib1Average, grib1Accumulation:
		p2, err := hours("P2")
		if err != nil {
			return nil, err
		}
		fp.Points = []float64{p2}
		fp.Bounds = [][2]float64{{p1, p2}}
		switch indicator {
		case grib1Average:
			t.CellMethods = []cube.CellMethod{{Method: "mean", Coords: []string{Time}}}
		case grib1Accumulation:
			t.CellMethods = []cube.CellMethod{{Method: "sum", Coords: []string{Time}}}
		}
	default:
		return nil, griberr.Unsupportedf("product definition section 1 contains an unsupported time range indicator [%d]", indicator)
	}

	validity := epochCoord(Time, frt+fp.Points[0])
	if fp.HasBounds() {
		validity.Bounds = [][2]float64{{frt + fp.Bounds[0][0], frt + fp.Bounds[0][1]}}
	}
	t.Coords = []*cube.Coord{fp, epochCoord(ForecastReferenceTime, frt), validity}
	return t, nil
}
