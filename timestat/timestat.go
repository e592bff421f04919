// Package timestat translates the reference time of the identification
// section and the time and statistical processing keys of a product
// definition section into time coordinates, cell methods and the scalar
// ensemble, percentile and probability metadata of a field.
package timestat

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/glog"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
	"github.com/sdifrance/gribcube/units"
)

// EpochUnits are the units of every time coordinate produced on load.
const EpochUnits = "hours since 1970-01-01 00:00:00"

// Coordinate names.
const (
	ForecastReferenceTime = "forecast_reference_time"
	ForecastPeriod        = "forecast_period"
	Time                  = "time"
	Realization           = "realization"
	Percentile            = "percentile"
	PercentileOverTime    = "percentile_over_time"
)

// Options tune the translation.
type Options struct {
	// SupportHindcastValues re-interprets forecast times that were written
	// as unsigned values but mean negative offsets.
	SupportHindcastValues bool
	// WarnOnUnsupported logs keys that are ignored.
	WarnOnUnsupported bool
}

// Defaults are the options used by Load and LoadGRIB1.
var Defaults = Options{SupportHindcastValues: true}

// Times is the time description of one field.
type Times struct {
	// Coords are scalar coordinates of the field.
	Coords      []*cube.Coord
	CellMethods []cube.CellMethod
	Attributes  map[string]interface{}
	// Probability is set for probability forecasts. The phenomenon has to be
	// known before it can be applied.
	Probability *Probability
}

// Coord finds a coordinate by name.
func (t *Times) Coord(name string) (*cube.Coord, bool) {
	for _, c := range t.Coords {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Apply adds the coordinates, cell methods and attributes to c. The
// probability, if any, is not applied.
func (t *Times) Apply(c *cube.Cube) error {
	for _, coord := range t.Coords {
		if err := c.AddAuxCoord(coord); err != nil {
			return err
		}
	}
	c.CellMethods = append(c.CellMethods, t.CellMethods...)
	if len(t.Attributes) > 0 && c.Attributes == nil {
		c.Attributes = map[string]interface{}{}
	}
	for k, v := range t.Attributes {
		c.Attributes[k] = v
	}
	return nil
}

func (t *Times) setAttribute(key string, v interface{}) {
	if t.Attributes == nil {
		t.Attributes = map[string]interface{}{}
	}
	t.Attributes[key] = v
}

// Code table 1.2 - Significance of reference time.
const (
	analysis        = 0
	startOfForecast = 1
	verifyingTime   = 2
	observationTime = 3
)

// timeUnit is an entry of Code table 4.4 - Indicator of unit of time range.
type timeUnit struct {
	name  string
	units string
	scale float64
}

var timeUnits = map[int64]timeUnit{
	0:  {"minutes", "minutes", 1},
	1:  {"hours", "hours", 1},
	2:  {"days", "days", 1},
	10: {"3 hours", "hours", 3},
	11: {"6 hours", "hours", 6},
	12: {"12 hours", "hours", 12},
	13: {"seconds", "seconds", 1},
}

// toHours expresses v, counted in the time unit code, in hours.
func toHours(v float64, code int64) (float64, error) {
	u, ok := timeUnits[code]
	if !ok {
		return 0, griberr.Unsupportedf("product definition section 4 contains an unsupported time range unit [%d]", code)
	}
	return units.Convert(v*u.scale, u.units, "hours")
}

// hoursSinceEpoch returns t as hours since 1970-01-01 00:00:00 UTC.
func hoursSinceEpoch(t time.Time) float64 {
	return float64(t.Unix()) / 3600
}

// fromHours returns the time h hours after 1970-01-01 00:00:00 UTC, rounded
// to the second.
func fromHours(h float64) time.Time {
	return time.Unix(int64(math.Round(h*3600)), 0).UTC()
}

func epochCoord(name string, h float64) *cube.Coord {
	return &cube.Coord{StandardName: name, Units: EpochUnits, Points: []float64{h}}
}

// readDate reads a date and time stored as prefix+"year" ... prefix+"second"
// style keys, named by the keys argument in that order.
func readDate(sec *message.Section, keys [6]string) (time.Time, error) {
	var v [6]int64
	for i, k := range keys {
		n, err := sec.Int(k)
		if err != nil {
			return time.Time{}, err
		}
		v[i] = n
	}
	return time.Date(int(v[0]), time.Month(v[1]), int(v[2]), int(v[3]), int(v[4]), int(v[5]), 0, time.UTC), nil
}

var referenceKeys = [6]string{"year", "month", "day", "hour", "minute", "second"}

var endOfIntervalKeys = [6]string{
	"yearOfEndOfOverallTimeInterval",
	"monthOfEndOfOverallTimeInterval",
	"dayOfEndOfOverallTimeInterval",
	"hourOfEndOfOverallTimeInterval",
	"minuteOfEndOfOverallTimeInterval",
	"secondOfEndOfOverallTimeInterval",
}

// referenceTime returns the reference time of section 1 in hours since the
// epoch and whether it is the forecast reference time rather than the
// validity time.
func referenceTime(sec1 *message.Section) (hours float64, isForecastReference bool, err error) {
	t, err := readDate(sec1, referenceKeys)
	if err != nil {
		return 0, false, err
	}
	sig, err := sec1.Int("significanceOfReferenceTime")
	if err != nil {
		return 0, false, err
	}
	switch sig {
	case analysis, startOfForecast:
		return hoursSinceEpoch(t), true, nil
	case verifyingTime, observationTime:
		return hoursSinceEpoch(t), false, nil
	}
	return 0, false, griberr.Unsupportedf("identification section 1 contains an unsupported significance of reference time [%d]", sig)
}

// hindcastFix re-interprets forecast times in (2^31, 3*2^30) as the negative
// offsets they encode.
func (o Options) hindcastFix(v int64) int64 {
	const lower, upper = 2 << 30, 3 << 30
	if v <= lower || v >= upper {
		return v
	}
	fixed := lower - v
	if o.WarnOnUnsupported {
		glog.Warningf("Re-interpreting large grib forecastTime from %d to %d.", v, fixed)
	}
	return fixed
}

// forecastTime returns the forecastTime key of sec4 in hours.
func (o Options) forecastTime(sec4 *message.Section) (float64, error) {
	v, err := sec4.Int("forecastTime")
	if err != nil {
		return 0, err
	}
	if o.SupportHindcastValues {
		v = o.hindcastFix(v)
	}
	code, err := sec4.Int("indicatorOfUnitOfTimeRange")
	if err != nil {
		return 0, err
	}
	return toHours(float64(v), code)
}

// Load translates the time keys of a GRIB2 message with the default options.
func Load(sec1, sec4 *message.Section) (*Times, error) {
	return Defaults.Load(sec1, sec4)
}

// Load translates the reference time of sec1 and the product definition
// template of sec4.
func (o Options) Load(sec1, sec4 *message.Section) (*Times, error) {
	rt, isForecastReference, err := referenceTime(sec1)
	if err != nil {
		return nil, err
	}
	template, err := sec4.Int("productDefinitionTemplateNumber")
	if err != nil {
		return nil, err
	}
	t := &Times{}
	o.dataCutoff(sec4)

	switch template {
	case 0, 1, 5, 6, 15, 40:
		if err := o.pointInTime(t, sec4, rt, isForecastReference); err != nil {
			return nil, err
		}
	case 8, 9, 10, 11:
		if err := intervalReference(sec1); err != nil && o.WarnOnUnsupported {
			glog.Warningf("%v", err)
		}
		if err := o.overInterval(t, sec4, rt); err != nil {
			return nil, err
		}
	default:
		return nil, griberr.Unsupportedf("product definition template [%d] is not supported", template)
	}

	switch template {
	case 1, 11:
		if err := ensemble(t, sec4); err != nil {
			return nil, err
		}
	case 5, 9:
		p, err := probability(sec4)
		if err != nil {
			return nil, err
		}
		t.Probability = p
		// A probability is not a statistic of the phenomenon.
		t.CellMethods = nil
	case 6, 10:
		name := Percentile
		if template == 10 {
			name = PercentileOverTime
		}
		v, err := sec4.Int("percentileValue")
		if err != nil {
			return nil, err
		}
		t.Coords = append(t.Coords, &cube.Coord{LongName: name, Units: "%", Points: []float64{float64(v)}})
	case 15:
		if err := spatialStatistic(t, sec4); err != nil {
			return nil, err
		}
	case 40:
		v, err := sec4.Int("constituentType")
		if err != nil {
			return nil, err
		}
		t.setAttribute("WMO_constituent_type", v)
	}
	return t, nil
}

func (o Options) dataCutoff(sec4 *message.Section) {
	if !o.WarnOnUnsupported {
		return
	}
	for _, k := range []string{"hoursAfterDataCutoff", "minutesAfterDataCutoff"} {
		if sec4.Has(k) && !sec4.IsMissing(k) {
			glog.Warningf("Unable to translate %s of %d.", k, sec4.IntOr(k, 0))
		}
	}
}

// pointInTime adds the reference, forecast period and validity time of a
// field valid at one instant.
func (o Options) pointInTime(t *Times, sec4 *message.Section, rt float64, isForecastReference bool) error {
	fp, err := o.forecastTime(sec4)
	if err != nil {
		return err
	}
	frt, validity := rt, rt+fp
	if !isForecastReference {
		frt, validity = rt-fp, rt
	}
	t.Coords = append(t.Coords,
		&cube.Coord{StandardName: ForecastPeriod, Units: "hours", Points: []float64{fp}},
		epochCoord(ForecastReferenceTime, frt),
		epochCoord(Time, validity),
	)
	return nil
}

// intervalReference reports a reference time that is not the start of the
// forecast. Statistics over an interval are read as if it were.
func intervalReference(sec1 *message.Section) error {
	if sig := sec1.IntOr("significanceOfReferenceTime", startOfForecast); sig != startOfForecast {
		return griberr.Unsupportedf("identification section 1 has a significance of reference time [%d] other than start of forecast for a statistic over an interval", sig)
	}
	return nil
}

// overInterval adds the bounded forecast period and time of a statistic
// processed over the interval ending at the end-of-interval keys.
func (o Options) overInterval(t *Times, sec4 *message.Section, frt float64) error {
	start, err := o.forecastTime(sec4)
	if err != nil {
		return err
	}
	endTime, err := readDate(sec4, endOfIntervalKeys)
	if err != nil {
		return err
	}
	end := hoursSinceEpoch(endTime) - frt
	fp := &cube.Coord{
		StandardName: ForecastPeriod,
		Units:        "hours",
		Points:       []float64{(start + end) / 2},
		Bounds:       [][2]float64{{start, end}},
	}
	validity := epochCoord(Time, frt+fp.Points[0])
	validity.Bounds = [][2]float64{{frt + start, frt + end}}
	t.Coords = append(t.Coords, fp, epochCoord(ForecastReferenceTime, frt), validity)

	method, err := statisticalCellMethod(sec4)
	if err != nil {
		return err
	}
	t.CellMethods = append(t.CellMethods, method)
	return nil
}

// Code table 4.10 - Type of statistical processing.
var statisticNames = map[int64]string{
	0: "mean",
	1: "sum",
	2: "maximum",
	3: "minimum",
	6: "standard_deviation",
}

func statisticName(code int64) (string, error) {
	name, ok := statisticNames[code]
	if !ok {
		return "", griberr.Unsupportedf("product definition section 4 contains an unsupported statistical process type [%d]", code)
	}
	return name, nil
}

func statisticCode(name string) (int64, bool) {
	for code, n := range statisticNames {
		if n == name {
			return code, true
		}
	}
	return 0, false
}

// statisticalCellMethod returns the cell method over time of the single
// time range of an interval template.
func statisticalCellMethod(sec4 *message.Section) (cube.CellMethod, error) {
	n, err := sec4.Int("numberOfTimeRange")
	if err != nil {
		return cube.CellMethod{}, err
	}
	switch {
	case n < 1:
		return cube.CellMethod{}, griberr.Unsupportedf("a statistical cell method is not valid for an aggregation over \"%d time ranges\"", n)
	case n > 1:
		return cube.CellMethod{}, griberr.Unsupportedf("product definition section 4 specifies aggregation over multiple time ranges [%d], which is not yet supported", n)
	}
	code, err := sec4.Int("typeOfStatisticalProcessing")
	if err != nil {
		return cube.CellMethod{}, err
	}
	name, err := statisticName(code)
	if err != nil {
		return cube.CellMethod{}, err
	}
	incrementType := sec4.IntOr("typeOfTimeIncrement", 255)
	if incrementType != 2 && incrementType != 255 {
		return cube.CellMethod{}, griberr.Unsupportedf("product definition section 4 time-increment type [%d] is not supported", incrementType)
	}
	method := cube.CellMethod{Method: name, Coords: []string{Time}}
	if interval, ok := timeIncrement(sec4); ok {
		method.Intervals = []string{interval}
	}
	return method, nil
}

// timeIncrement returns the increment between the fields a statistic was
// computed from. A zero or missing increment has no interval.
func timeIncrement(sec4 *message.Section) (string, bool) {
	inc, ok, err := sec4.OptInt("timeIncrement")
	if err != nil || !ok || inc == 0 {
		return "", false
	}
	u, known := timeUnits[sec4.IntOr("indicatorOfUnitForTimeIncrement", 255)]
	if !known {
		return "", false
	}
	return fmt.Sprintf("%d %s", inc, u.name), true
}

func ensemble(t *Times, sec4 *message.Section) error {
	n, err := sec4.Int("perturbationNumber")
	if err != nil {
		return err
	}
	t.Coords = append(t.Coords, &cube.Coord{StandardName: Realization, Units: "1", Points: []float64{float64(n)}})
	return nil
}
