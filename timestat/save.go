package timestat

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
	"github.com/sdifrance/gribcube/units"
	"github.com/spf13/cast"
)

// referenceLayouts are the date layouts accepted after "since" in time
// units.
var referenceLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// epochHours converts v, in time units of the form "<unit> since <date>", to
// hours since 1970-01-01 00:00:00 UTC.
func epochHours(v float64, u string) (float64, error) {
	i := strings.Index(u, " since ")
	if i < 0 {
		return 0, griberr.Unsupportedf("time units %q have no reference date", u)
	}
	h, err := units.Convert(v, u[:i], "hours")
	if err != nil {
		return 0, griberr.Unsupportedf("time units %q: %v", u, err)
	}
	ref := strings.TrimSpace(u[i+len(" since "):])
	if ref == "epoch" {
		return h, nil
	}
	ref = strings.TrimSuffix(strings.TrimSuffix(ref, " UTC"), "Z")
	for _, layout := range referenceLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return h + hoursSinceEpoch(t), nil
		}
	}
	return 0, griberr.Unsupportedf("time units %q have an unrecognised reference date", u)
}

// scalarTime returns the point and bounds, if any, of the scalar time
// coordinate name in hours since the epoch.
func scalarTime(c *cube.Cube, name string) (point float64, bounds []float64, err error) {
	coord, _, ok := c.Coord(name)
	if !ok {
		return 0, nil, griberr.Unsupportedf("cube %q has no %s coordinate", c.Name(), name)
	}
	if coord.Len() != 1 {
		return 0, nil, griberr.Unsupportedf("expected length one %s coordinate, got %d points", name, coord.Len())
	}
	vals := []float64{coord.Points[0]}
	if coord.HasBounds() {
		vals = append(vals, coord.Bounds[0][0], coord.Bounds[0][1])
	}
	for i, v := range vals {
		if vals[i], err = epochHours(v, coord.Units); err != nil {
			return 0, nil, err
		}
	}
	return vals[0], vals[1:], nil
}

// forecastUnits chooses the largest of hours, minutes and seconds that holds
// a forecast time of secs seconds exactly.
func forecastUnits(secs float64) (code, value int64) {
	r := math.Round(secs)
	if math.Abs(secs-r) > 1e-6 {
		glog.Warningf("Truncating forecast period of %v seconds to %v", secs, r)
	}
	n := int64(r)
	switch {
	case n%3600 == 0:
		return 1, n / 3600
	case n%60 == 0:
		return 0, n / 60
	}
	return 13, n
}

// reference works out the reference time, its significance and the encoded
// forecast time of c, whose time coordinate is point and bounds.
func reference(c *cube.Cube, point float64, bounds []float64) (rt float64, significance, unit, fp int64, err error) {
	start := point
	if len(bounds) > 0 {
		start = bounds[0]
	}
	if fpc, _, ok := c.Coord(ForecastPeriod); ok {
		if fpc.Len() != 1 {
			return 0, 0, 0, 0, griberr.Unsupportedf("expected length one %s coordinate, got %d points", ForecastPeriod, fpc.Len())
		}
		hours, err := units.Convert(fpc.Points[0], fpc.Units, "hours")
		if err != nil {
			return 0, 0, 0, 0, griberr.Unsupportedf("unexpected units for %q: %v", ForecastPeriod, err)
		}
		v := fpc.Points[0]
		if len(bounds) > 0 {
			if !fpc.HasBounds() {
				return 0, 0, 0, 0, griberr.Unsupportedf("bounds on %q coordinate requires bounds on %q", Time, ForecastPeriod)
			}
			v = fpc.Bounds[0][0]
		}
		secs, err := units.Convert(v, fpc.Units, "seconds")
		if err != nil {
			return 0, 0, 0, 0, griberr.Unsupportedf("unexpected units for %q: %v", ForecastPeriod, err)
		}
		unit, fp = forecastUnits(secs)
		return point - hours, startOfForecast, unit, fp, nil
	}
	if _, _, ok := c.Coord(ForecastReferenceTime); ok {
		frt, _, err := scalarTime(c, ForecastReferenceTime)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		unit, fp = forecastUnits((start - frt) * 3600)
		return frt, startOfForecast, unit, fp, nil
	}
	return start, observationTime, 1, 0, nil
}

// Save writes the reference time of c into the identification section sec1,
// and chooses and fills the product definition template of sec4. The
// parameter and fixed surface keys are left to other translators.
func Save(c *cube.Cube, sec1, sec4 *message.Section) error {
	point, bounds, err := scalarTime(c, Time)
	if err != nil {
		return err
	}
	rt, significance, unit, fp, err := reference(c, point, bounds)
	if err != nil {
		return err
	}
	t := fromHours(rt)
	sec1.Set("significanceOfReferenceTime", significance)
	for i, v := range []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second()} {
		sec1.Set(referenceKeys[i], v)
	}

	template, err := chooseTemplate(c, len(bounds) > 0)
	if err != nil {
		return err
	}
	sec4.Set("productDefinitionTemplateNumber", template)
	sec4.Set("typeOfGeneratingProcess", 255)
	sec4.Set("backgroundProcess", 255)
	sec4.Set("generatingProcessIdentifier", 255)
	sec4.SetMissing("hoursAfterDataCutoff")
	sec4.SetMissing("minutesAfterDataCutoff")
	sec4.Set("indicatorOfUnitOfTimeRange", unit)
	sec4.Set("forecastTime", fp)

	switch template {
	case 1, 11:
		if err := saveEnsemble(c, sec4); err != nil {
			return err
		}
	case 6:
		if err := savePercentile(c, sec4, Percentile); err != nil {
			return err
		}
	case 10:
		if err := savePercentile(c, sec4, PercentileOverTime); err != nil {
			return err
		}
	case 15:
		if err := saveSpatialStatistic(c, sec4); err != nil {
			return err
		}
	case 40:
		v, err := cast.ToInt64E(c.Attributes["WMO_constituent_type"])
		if err != nil {
			return griberr.Unsupportedf("WMO_constituent_type %v: %v", c.Attributes["WMO_constituent_type"], err)
		}
		sec4.Set("constituentType", v)
	}
	if len(bounds) > 0 {
		if err := saveInterval(c, sec4, bounds); err != nil {
			return griberr.Unsupportedf("the cube is not suitable for saving as a time processed statistic: %v", err)
		}
	}
	return nil
}

func hasCoord(c *cube.Cube, name string) bool {
	_, _, ok := c.Coord(name)
	return ok
}

// chooseTemplate picks the product definition template of c.
func chooseTemplate(c *cube.Cube, bounded bool) (int64, error) {
	if !bounded {
		switch {
		case hasCoord(c, Realization):
			return 1, nil
		case c.Attributes["WMO_constituent_type"] != nil:
			return 40, nil
		case c.Attributes["spatial_processing_type"] != nil:
			return 15, nil
		case hasCoord(c, Percentile):
			return 6, nil
		}
		return 0, nil
	}
	if !isTimeStatistic(c) {
		return 0, griberr.Unsupportedf("a suitable product template could not be deduced for cube %q", c.Name())
	}
	switch {
	case hasCoord(c, Realization):
		return 11, nil
	case hasCoord(c, PercentileOverTime):
		return 10, nil
	}
	return 8, nil
}

// timeNames are the coordinates a statistic over time may be recorded
// against.
var timeNames = map[string]bool{Time: true, "year": true, "month": true, "day": true, "weekday": true, "season": true}

func isTimeStatistic(c *cube.Cube) bool {
	if hasCoord(c, PercentileOverTime) {
		return true
	}
	if len(c.CellMethods) == 0 {
		return false
	}
	last := c.CellMethods[len(c.CellMethods)-1]
	return len(last.Coords) == 1 && timeNames[last.Coords[0]]
}

func saveEnsemble(c *cube.Cube, sec4 *message.Section) error {
	r, _, ok := c.Coord(Realization)
	if !ok || r.Len() != 1 {
		return griberr.Unsupportedf("a cube %q coordinate with one point is required, but not present", Realization)
	}
	sec4.Set("perturbationNumber", int64(r.Points[0]))
	sec4.Set("numberOfForecastsInEnsemble", 255)
	sec4.Set("typeOfEnsembleForecast", 255)
	return nil
}

func savePercentile(c *cube.Cube, sec4 *message.Section, name string) error {
	p, _, ok := c.Coord(name)
	if !ok || p.Len() != 1 {
		return griberr.Unsupportedf("a cube %q coordinate with one point is required, but not present", name)
	}
	sec4.Set("percentileValue", int64(p.Points[0]))
	return nil
}

func saveSpatialStatistic(c *cube.Cube, sec4 *message.Section) error {
	name, err := cast.ToStringE(c.Attributes["spatial_processing_type"])
	if err != nil {
		return griberr.Unsupportedf("spatial_processing_type %v: %v", c.Attributes["spatial_processing_type"], err)
	}
	code, sp, ok := spatialProcessCode(name)
	if !ok {
		return griberr.Unsupportedf("product definition section 4 contains an unsupported spatial processing or interpolation type: %s", name)
	}
	stat := int64(255)
	if sp.statistic {
		var area []cube.CellMethod
		for _, m := range c.CellMethods {
			for _, coord := range m.Coords {
				if coord == "area" {
					area = append(area, m)
					break
				}
			}
		}
		switch {
		case len(area) == 0:
			return griberr.Unsupportedf("could not find a suitable cell method to save as a spatial statistical process")
		case len(area) > 1:
			return griberr.Unsupportedf("cannot handle multiple 'area' cell methods")
		case len(area[0].Coords) > 1:
			return griberr.Unsupportedf("cannot handle multiple coordinate names in the spatial processing related cell method, got %v", area[0].Coords)
		}
		statCode, ok := statisticCode(area[0].Method)
		if !ok {
			return griberr.Unsupportedf("product definition section 4 contains an unsupported statistical process type [%s]", area[0].Method)
		}
		stat = statCode
	}
	sec4.Set("spatialProcessing", code)
	sec4.Set("numberOfPointsUsed", sp.points)
	sec4.Set("statisticalProcess", stat)
	return nil
}

// saveInterval writes the end of the overall interval, its length in hours
// and the statistic recorded by the time cell method of c.
func saveInterval(c *cube.Cube, sec4 *message.Section, bounds []float64) error {
	end := fromHours(bounds[1])
	for i, v := range []int{end.Year(), int(end.Month()), end.Day(), end.Hour(), end.Minute(), end.Second()} {
		sec4.Set(endOfIntervalKeys[i], v)
	}
	sec4.Set("numberOfTimeRange", 1)
	sec4.Set("numberOfMissingInStatisticalProcess", 0)

	length := bounds[1] - bounds[0]
	hours := int64(length)
	if float64(hours) != length {
		glog.Warningf("Truncating floating point lengthOfTimeRange %v to integer value %d", length, hours)
	}
	sec4.Set("indicatorOfUnitForTimeRange", 1)
	sec4.Set("lengthOfTimeRange", hours)

	stat, incUnit, inc := int64(255), int64(255), int64(0)
	if len(c.CellMethods) > 0 {
		var methods []cube.CellMethod
		for _, m := range c.CellMethods {
			for _, coord := range m.Coords {
				if coord == Time {
					methods = append(methods, m)
					break
				}
			}
		}
		switch {
		case len(methods) == 0:
			return griberr.Unsupportedf("expected a cell method with a coordinate name of %q", Time)
		case len(methods) > 1:
			return griberr.Unsupportedf("cannot handle multiple %q cell methods", Time)
		case len(methods[0].Coords) > 1:
			return griberr.Unsupportedf("cannot handle multiple coordinate names in the time related cell method, got %v", methods[0].Coords)
		}
		if code, ok := statisticCode(methods[0].Method); ok {
			stat = code
		}
		if len(methods[0].Intervals) == 1 {
			incUnit, inc = parseIncrement(methods[0].Intervals[0])
		}
	}
	sec4.Set("typeOfStatisticalProcessing", stat)
	sec4.Set("typeOfTimeIncrement", 255)
	sec4.Set("indicatorOfUnitForTimeIncrement", incUnit)
	sec4.Set("timeIncrement", inc)
	return nil
}

// incrementUnits maps the unit names of cell method intervals to Code table
// 4.4, the inverse of timeUnits plus the short forms.
var incrementUnits = func() map[string]int64 {
	m := map[string]int64{"hr": 1, "hour": 1, "min": 0, "minute": 0, "day": 2, "s": 13, "second": 13}
	for code, u := range timeUnits {
		m[u.name] = code
	}
	return m
}()

// parseIncrement reads a cell method interval such as "3 hours" or
// "2 3 hours". Intervals in units with no code are not recorded.
func parseIncrement(interval string) (unit, inc int64) {
	parts := strings.Fields(interval)
	if len(parts) < 2 {
		return 255, 0
	}
	code, ok := incrementUnits[strings.Join(parts[1:], " ")]
	if !ok {
		return 255, 0
	}
	v, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 255, 0
	}
	n := int64(v)
	if float64(n) != v {
		glog.Warningf("Truncating floating point timeIncrement %v to integer value %d", v, n)
	}
	return code, n
}
