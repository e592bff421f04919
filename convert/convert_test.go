package convert

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kr/pretty"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
	"github.com/sdifrance/gribcube/phenom"
	"github.com/sdifrance/gribcube/timestat"
)

func epoch(y, m, d, h int) float64 {
	return float64(time.Date(y, time.Month(m), d, h, 0, 0, 0, time.UTC).Unix()) / 3600
}

// temperatureMessage is a 6 hour forecast of the 850 hPa temperature on a
// 3 x 2 lat/lon grid.
func temperatureMessage() *message.Message {
	m := message.NewTemplate()
	m.Location = message.Location{Path: "test.grib2", Offset: 100, Length: 200}
	m.Section(0).Set("discipline", 0)
	s1 := m.Section(1)
	s1.Set("centre", 74)
	s1.Set("significanceOfReferenceTime", 1)
	for k, v := range map[string]int{"year": 2010, "month": 2, "day": 3, "hour": 0, "minute": 0, "second": 0} {
		s1.Set(k, v)
	}

	s3 := m.Section(3)
	s3.Set("sourceOfGridDefinition", 0)
	s3.Set("numberOfDataPoints", 6)
	s3.Set("numberOfOctectsForNumberOfPoints", 0)
	s3.Set("interpretationOfNumberOfPoints", 0)
	s3.Set("gridDefinitionTemplateNumber", 0)
	s3.Set("shapeOfTheEarth", 6)
	s3.Set("Ni", 3)
	s3.Set("Nj", 2)
	s3.Set("latitudeOfFirstGridPoint", 10000000)
	s3.Set("longitudeOfFirstGridPoint", 0)
	s3.Set("resolutionAndComponentFlags", 0x30)
	s3.Set("latitudeOfLastGridPoint", -10000000)
	s3.Set("longitudeOfLastGridPoint", 20000000)
	s3.Set("iDirectionIncrement", 10000000)
	s3.Set("jDirectionIncrement", 20000000)
	s3.Set("scanningMode", 0)

	s4 := m.Section(4)
	s4.Set("NV", 0)
	s4.Set("productDefinitionTemplateNumber", 0)
	s4.Set("parameterCategory", 0)
	s4.Set("parameterNumber", 0)
	s4.SetMissing("hoursAfterDataCutoff")
	s4.SetMissing("minutesAfterDataCutoff")
	s4.Set("indicatorOfUnitOfTimeRange", 1)
	s4.Set("forecastTime", 6)
	s4.Set("typeOfFirstFixedSurface", 100)
	s4.Set("scaleFactorOfFirstFixedSurface", -2)
	s4.Set("scaledValueOfFirstFixedSurface", 850)
	s4.SetMissing("typeOfSecondFixedSurface")
	s4.SetMissing("scaleFactorOfSecondFixedSurface")
	s4.SetMissing("scaledValueOfSecondFixedSurface")

	m.Section(5).Set("numberOfValues", 6)
	m.Section(5).Set("dataRepresentationTemplateNumber", 0)
	m.Section(6).Set("bitMapIndicator", 255)
	m.Section(7).Set("codedValues", []float64{270, 271, 272, 280, 281, 282})
	return m
}

func scalar(t *testing.T, c *cube.Cube, name string) float64 {
	t.Helper()
	coord, ok := c.ScalarCoord(name)
	if !ok {
		t.Fatalf("cube has no scalar %q coordinate:\n%v", name, c)
	}
	return coord.Points[0]
}

func TestMessageToCube(t *testing.T) {
	c, err := MessageToCube(temperatureMessage(), Defaults)
	if err != nil {
		t.Fatal(err)
	}
	if c.StandardName != "air_temperature" || c.Units != "K" {
		t.Errorf("phenomenon = %q [%s], want air_temperature [K]", c.StandardName, c.Units)
	}
	if got, want := c.Attributes[ParamAttribute], phenom.GRIB2(0, 0, 0); got != want {
		t.Errorf("%s = %v, want %v", ParamAttribute, got, want)
	}
	if got := c.Attributes["centre"]; got != "U.K. Met Office - Exeter" {
		t.Errorf("centre = %v", got)
	}
	if diff := pretty.Diff(c.Shape(), []int{2, 3}); len(diff) > 0 {
		t.Errorf("shape: %v", diff)
	}
	lat, _, _ := c.Coord("latitude")
	lon, _, _ := c.Coord("longitude")
	if diff := pretty.Diff([][]float64{lat.Points, lon.Points}, [][]float64{{10, -10}, {0, 10, 20}}); len(diff) > 0 {
		t.Errorf("horizontal coordinates: %v", diff)
	}
	if got := scalar(t, c, "pressure"); got != 85000 {
		t.Errorf("pressure = %v, want 85000", got)
	}
	if got := scalar(t, c, timestat.ForecastPeriod); got != 6 {
		t.Errorf("forecast_period = %v, want 6", got)
	}
	if got, want := scalar(t, c, timestat.Time), epoch(2010, 2, 3, 6); got != want {
		t.Errorf("time = %v, want %v", got, want)
	}

	if _, ok := c.Data.(*message.DataProxy); !ok {
		t.Errorf("data is %T, want a lazy proxy", c.Data)
	}
	a, err := c.Data.Materialize()
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(a.Values, []float64{270, 271, 272, 280, 281, 282}); len(diff) > 0 {
		t.Errorf("values: %v", diff)
	}
}

func TestMessageToCubeBitmap(t *testing.T) {
	m := temperatureMessage()
	m.Section(6).Set("bitMapIndicator", 0)
	m.Section(6).Set("bitmap", []int64{1, 0, 1, 1, 1, 0})
	m.Section(7).Set("codedValues", []float64{270, 272, 280, 281})
	c, err := MessageToCube(m, Defaults)
	if err != nil {
		t.Fatal(err)
	}
	a, err := c.Data.Materialize()
	if err != nil {
		t.Fatal(err)
	}
	var masked []int
	for i := range a.Values {
		if a.Masked(i) {
			masked = append(masked, i)
		}
	}
	if diff := pretty.Diff(masked, []int{1, 5}); len(diff) > 0 {
		t.Errorf("masked points: %v", diff)
	}
	if a.Values[2] != 272 || a.Values[4] != 281 {
		t.Errorf("values = %v", a.Values)
	}

	msgs, err := CubeToMessages(c, Defaults)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("saved %d messages, want 1", len(msgs))
	}
	bitmap, err := msgs[0].Section(6).Ints("bitmap")
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(bitmap, []int64{1, 0, 1, 1, 1, 0}); len(diff) > 0 {
		t.Errorf("saved bitmap: %v", diff)
	}
	if ind := msgs[0].Section(6).IntOr("bitMapIndicator", -1); ind != message.BitmapPresent {
		t.Errorf("bitMapIndicator = %d, want %d", ind, message.BitmapPresent)
	}
}

func TestMessageToCubeProbability(t *testing.T) {
	m := temperatureMessage()
	s4 := m.Section(4)
	s4.Set("productDefinitionTemplateNumber", 5)
	s4.Set("perturbationNumber", 0)
	s4.Set("numberOfForecastProbabilities", 1)
	s4.Set("probabilityType", 1)
	s4.Set("scaleFactorOfLowerLimit", 0)
	s4.Set("scaledValueOfLowerLimit", 0)
	s4.Set("scaleFactorOfUpperLimit", 0)
	s4.Set("scaledValueOfUpperLimit", 273)
	c, err := MessageToCube(m, Defaults)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != "probability_of_air_temperature_above_threshold" || c.Units != "1" {
		t.Errorf("phenomenon = %q [%s]", c.Name(), c.Units)
	}
	threshold, ok := c.ScalarCoord("air_temperature")
	if !ok || threshold.Points[0] != 273 || threshold.Units != "K" {
		t.Errorf("threshold = %v", threshold)
	}
}

func TestMessageToCubeErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		modify func(m *message.Message)
		want   error
	}{
		{"unsupported edition", func(m *message.Message) { m.Edition = 3 }, griberr.ErrUnsupportedEditionFeature},
		{"empty grid section", func(m *message.Message) {
			m.SetSection(message.NewSection(3))
		}, griberr.ErrMalformedSection},
		{"unsupported grid template", func(m *message.Message) {
			m.Section(3).Set("gridDefinitionTemplateNumber", 999)
		}, griberr.ErrUnsupportedGridKind},
		{"unsupported data representation", func(m *message.Message) {
			m.Section(5).Set("dataRepresentationTemplateNumber", 200)
		}, griberr.ErrUnsupportedTranslation},
		{"unsupported bitmap indicator", func(m *message.Message) {
			m.Section(6).Set("bitMapIndicator", 254)
		}, griberr.ErrUnsupportedTranslation},
		{"unsupported product template", func(m *message.Message) {
			m.Section(4).Set("productDefinitionTemplateNumber", 30)
		}, griberr.ErrUnsupportedTranslation},
		{"missing parameter", func(m *message.Message) {
			m.Section(4).Delete("parameterNumber")
		}, griberr.ErrMalformedSection},
	} {
		t.Run(tt.name, func(t *testing.T) {
			m := temperatureMessage()
			tt.modify(m)
			_, err := MessageToCube(m, Defaults)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			var te *griberr.TranslationError
			if !errors.As(err, &te) || te.Message != "test.grib2@100" {
				t.Errorf("error %v does not name the message", err)
			}
		})
	}
}

// grib1Message is a 6 hour forecast of the ECMWF 2 m temperature.
func grib1Message() *message.Message {
	m := message.New(1)
	m.Location = message.Location{Path: "test.grib1"}
	pds := message.NewSection(1)
	for k, v := range map[string]int{
		"table2Version": 128, "centre": 98, "indicatorOfParameter": 167,
		"indicatorOfTypeOfLevel":       1,
		"centuryOfReferenceTimeOfData": 21, "yearOfCentury": 10, "month": 2, "day": 3, "hour": 0, "minute": 0,
		"unitOfTimeRange": 1, "P1": 6, "P2": 0, "timeRangeIndicator": 0,
	} {
		pds.Set(k, v)
	}
	m.SetSection(pds)
	gds := message.NewSection(2)
	for k, v := range map[string]int{
		"dataRepresentationType": 0, "Ni": 3, "Nj": 2,
		"latitudeOfFirstGridPoint": 10000, "longitudeOfFirstGridPoint": 0,
		"latitudeOfLastGridPoint": -10000, "longitudeOfLastGridPoint": 20000,
		"resolutionAndComponentFlags": 0x80,
		"iDirectionIncrement":         10000, "jDirectionIncrement": 20000,
		"scanningMode": 0,
	} {
		gds.Set(k, v)
	}
	m.SetSection(gds)
	bds := message.NewSection(4)
	bds.Set("bitsPerValue", 16)
	bds.Set("codedValues", []float64{1, 2, 3, 4, 5, 6})
	m.SetSection(bds)
	return m
}

func TestMessageToCubeGRIB1(t *testing.T) {
	c, err := MessageToCube(grib1Message(), Defaults)
	if err != nil {
		t.Fatal(err)
	}
	if c.StandardName != "air_temperature" {
		t.Errorf("standard name = %q", c.StandardName)
	}
	if got, want := c.Attributes[ParamAttribute], phenom.GRIB1(128, 98, 167); got != want {
		t.Errorf("%s = %v, want %v", ParamAttribute, got, want)
	}
	if got := c.Attributes["centre"]; got != "European Centre for Medium Range Weather Forecasts" {
		t.Errorf("centre = %v", got)
	}
	if got := scalar(t, c, "height"); got != 2 {
		t.Errorf("height = %v, want 2", got)
	}
	if got, want := scalar(t, c, timestat.ForecastReferenceTime), epoch(2010, 2, 3, 0); got != want {
		t.Errorf("forecast_reference_time = %v, want %v", got, want)
	}
	a, err := c.Data.Materialize()
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(a.Values, []float64{1, 2, 3, 4, 5, 6}); len(diff) > 0 {
		t.Errorf("values: %v", diff)
	}
}

func TestMessageToCubeGRIB1NoGrid(t *testing.T) {
	m := message.New(1)
	for _, n := range []int{1, 4} {
		m.SetSection(grib1Message().Section(n))
	}
	if _, err := MessageToCube(m, Defaults); !errors.Is(err, griberr.ErrUnsupportedEditionFeature) {
		t.Errorf("got %v, want %v", err, griberr.ErrUnsupportedEditionFeature)
	}
}

// latLonCube is a 2 x 3 air temperature field at 2010-02-03 06:00, with no
// GRIB_PARAM attribute.
func latLonCube(t *testing.T, shape []int) *cube.Cube {
	t.Helper()
	c := cube.New(cube.Zeros(shape))
	c.StandardName = "air_temperature"
	c.Units = "K"
	n := len(shape)
	cs := cube.Sphere(6371229)
	lat := &cube.Coord{StandardName: "latitude", Units: "degrees", Points: []float64{10, -10}, System: cs}
	lon := &cube.Coord{StandardName: "longitude", Units: "degrees", Points: []float64{0, 10, 20}, System: cs}
	if err := c.AddDimCoord(lat, n-2); err != nil {
		t.Fatal(err)
	}
	if err := c.AddDimCoord(lon, n-1); err != nil {
		t.Fatal(err)
	}
	rt := epoch(2010, 2, 3, 0)
	for _, coord := range []*cube.Coord{
		{StandardName: timestat.ForecastPeriod, Units: "hours", Points: []float64{6}},
		{StandardName: timestat.ForecastReferenceTime, Units: timestat.EpochUnits, Points: []float64{rt}},
		{StandardName: timestat.Time, Units: timestat.EpochUnits, Points: []float64{rt + 6}},
	} {
		if err := c.AddAuxCoord(coord); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func TestSaveAirTemperature(t *testing.T) {
	msgs, err := CubeToMessages(latLonCube(t, []int{2, 3}), Defaults)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("saved %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	got := map[string]int64{
		"discipline":        m.Section(0).IntOr("discipline", -1),
		"parameterCategory": m.Section(4).IntOr("parameterCategory", -1),
		"parameterNumber":   m.Section(4).IntOr("parameterNumber", -1),
		"centre":            m.Section(1).IntOr("centre", -1),
		"typeOfProcessed":   m.Section(1).IntOr("typeOfProcessedData", -1),
		"productionStatus":  m.Section(1).IntOr("productionStatusOfProcessedData", -1),
		"surface":           m.Section(4).IntOr("typeOfFirstFixedSurface", -1),
		"bitMapIndicator":   m.Section(6).IntOr("bitMapIndicator", -1),
	}
	want := map[string]int64{
		"discipline":        0,
		"parameterCategory": 0,
		"parameterNumber":   0,
		"centre":            74,
		"typeOfProcessed":   2,
		"productionStatus":  255,
		"surface":           1,
		"bitMapIndicator":   255,
	}
	if diff := pretty.Diff(got, want); len(diff) > 0 {
		t.Errorf("saved keys: %v", diff)
	}
}

func TestSaveRealization(t *testing.T) {
	for _, tt := range []struct {
		member float64
		want   int64
	}{
		{0, controlForecast},
		{3, perturbedForecast},
	} {
		c := latLonCube(t, []int{2, 3})
		if err := c.AddAuxCoord(&cube.Coord{StandardName: timestat.Realization, Units: "1", Points: []float64{tt.member}}); err != nil {
			t.Fatal(err)
		}
		msgs, err := CubeToMessages(c, Defaults)
		if err != nil {
			t.Fatal(err)
		}
		if got := msgs[0].Section(1).IntOr("typeOfProcessedData", -1); got != tt.want {
			t.Errorf("member %v: typeOfProcessedData = %d, want %d", tt.member, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	loaded, err := MessageToCube(temperatureMessage(), Defaults)
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := CubeToMessages(loaded, Options{PackingBits: 16})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("saved %d messages, want 1", len(msgs))
	}
	if bits := msgs[0].Section(5).IntOr("bitsPerValue", 0); bits != 16 {
		t.Errorf("bitsPerValue = %d, want 16", bits)
	}
	// Section 5 of the saved message carries only the packing request; the
	// values are still unpacked.
	reloaded, err := MessageToCube(msgs[0], Defaults)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Name() != loaded.Name() || reloaded.Units != loaded.Units {
		t.Errorf("reloaded %q [%s], want %q [%s]", reloaded.Name(), reloaded.Units, loaded.Name(), loaded.Units)
	}
	if got, want := reloaded.Attributes[ParamAttribute], loaded.Attributes[ParamAttribute]; got != want {
		t.Errorf("%s = %v, want %v", ParamAttribute, got, want)
	}
	for _, name := range []string{"pressure", timestat.ForecastPeriod, timestat.ForecastReferenceTime, timestat.Time} {
		if got, want := scalar(t, reloaded, name), scalar(t, loaded, name); math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	a, err := reloaded.Data.Materialize()
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(a.Values, []float64{270, 271, 272, 280, 281, 282}); len(diff) > 0 {
		t.Errorf("values: %v", diff)
	}
}

func TestSlices(t *testing.T) {
	c := latLonCube(t, []int{2, 2, 3})
	a, err := c.Data.Materialize()
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Values {
		a.Values[i] = float64(i)
	}
	levels := &cube.Coord{LongName: "pressure", Units: "hPa", Points: []float64{850, 500}}
	if err := c.AddDimCoord(levels, 0); err != nil {
		t.Fatal(err)
	}
	fields, err := Slices(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	for i, f := range fields {
		if diff := pretty.Diff(f.Shape(), []int{2, 3}); len(diff) > 0 {
			t.Errorf("field %d shape: %v", i, diff)
		}
		if got := scalar(t, f, "pressure"); got != levels.Points[i] {
			t.Errorf("field %d pressure = %v, want %v", i, got, levels.Points[i])
		}
		fa, err := f.Data.Materialize()
		if err != nil {
			t.Fatal(err)
		}
		if fa.Values[0] != float64(6*i) {
			t.Errorf("field %d starts with %v, want %v", i, fa.Values[0], 6*i)
		}
	}

	msgs, err := CubeToMessages(c, Defaults)
	if err != nil {
		t.Fatal(err)
	}
	var got []int64
	for _, m := range msgs {
		got = append(got, m.Section(4).IntOr("scaledValueOfFirstFixedSurface", -1))
	}
	if diff := pretty.Diff(got, []int64{85000, 50000}); len(diff) > 0 {
		t.Errorf("saved levels: %v", diff)
	}
}

func TestSaveErrors(t *testing.T) {
	c := latLonCube(t, []int{2, 3})
	if _, err := CubeToMessages(c, Options{Edition: 1}); !errors.Is(err, griberr.ErrUnsupportedEditionFeature) {
		t.Errorf("edition 1: got %v, want %v", err, griberr.ErrUnsupportedEditionFeature)
	}

	c = cube.New(cube.Zeros([]int{2, 3}))
	if _, err := CubeToMessages(c, Defaults); !errors.Is(err, griberr.ErrUnsupportedTranslation) {
		t.Errorf("no horizontal coordinates: got %v, want %v", err, griberr.ErrUnsupportedTranslation)
	}

	c = latLonCube(t, []int{2, 3})
	c.RemoveCoord(timestat.Time)
	if _, err := CubeToMessages(c, Defaults); err == nil {
		t.Error("saved a cube without a time coordinate")
	}
}
