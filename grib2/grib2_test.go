package grib2

import (
	"errors"
	"math"
	"testing"

	"github.com/kr/pretty"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
)

func latLonMessage() *message.Message {
	m := message.NewTemplate()
	m.Section(0).Set("discipline", 0)
	s1 := m.Section(1)
	s1.Set("centre", 74)
	s1.Set("significanceOfReferenceTime", 1)
	s1.Set("year", 2024)
	s1.Set("month", 2)
	s1.Set("day", 29)
	s1.Set("hour", 12)

	s3 := m.Section(3)
	s3.Set("sourceOfGridDefinition", 0)
	s3.Set("numberOfDataPoints", 6)
	s3.Set("gridDefinitionTemplateNumber", 0)
	s3.Set("shapeOfTheEarth", 6)
	s3.Set("Ni", 3)
	s3.Set("Nj", 2)
	s3.Set("latitudeOfFirstGridPoint", 10000000)
	s3.Set("longitudeOfFirstGridPoint", 350000000)
	s3.Set("resolutionAndComponentFlags", 0x30)
	s3.Set("latitudeOfLastGridPoint", -10000000)
	s3.Set("longitudeOfLastGridPoint", 10000000)
	s3.Set("iDirectionIncrement", 10000000)
	s3.Set("jDirectionIncrement", 20000000)
	s3.Set("scanningMode", 0)

	s4 := m.Section(4)
	s4.Set("productDefinitionTemplateNumber", 0)
	s4.Set("parameterCategory", 0)
	s4.Set("parameterNumber", 0)
	s4.Set("indicatorOfUnitOfTimeRange", 1)
	s4.Set("forecastTime", 6)
	s4.Set("typeOfFirstFixedSurface", 100)
	s4.Set("scaleFactorOfFirstFixedSurface", -2)
	s4.Set("scaledValueOfFirstFixedSurface", 850)
	s4.SetMissing("typeOfSecondFixedSurface")
	s4.SetMissing("scaleFactorOfSecondFixedSurface")
	s4.SetMissing("scaledValueOfSecondFixedSurface")

	m.Section(6).Set("bitMapIndicator", 255)
	m.Section(7).Set("codedValues", []float64{270.5, 271.25, 280, 285.125, 290, 300})
	return m
}

func TestRoundTripLatLon(t *testing.T) {
	data, err := Encode(latLonMessage())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, n, err := Decode(append(data, 0, 0), DecodeOptions{Values: true})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(data) {
		t.Errorf("consumed %d bytes, want %d", n, len(data))
	}
	s3 := got.Section(3)
	for key, want := range map[string]int64{
		"Ni":                        3,
		"Nj":                        2,
		"latitudeOfLastGridPoint":   -10000000,
		"longitudeOfFirstGridPoint": 350000000,
		"jDirectionIncrement":       20000000,
		"shapeOfTheEarth":           6,
	} {
		if v, err := s3.Int(key); err != nil || v != want {
			t.Errorf("section 3 %s = %v, %v; want %v", key, v, err, want)
		}
	}
	if !s3.IsMissing("scaledValueOfRadiusOfSphericalEarth") {
		t.Errorf("unset earth radius should decode as missing")
	}
	s4 := got.Section(4)
	if v, _ := s4.Int("scaleFactorOfFirstFixedSurface"); v != -2 {
		t.Errorf("scaleFactorOfFirstFixedSurface = %v, want -2", v)
	}
	if !s4.IsMissing("typeOfSecondFixedSurface") {
		t.Errorf("typeOfSecondFixedSurface should be missing")
	}
	if v, _ := got.Section(1).Int("year"); v != 2024 {
		t.Errorf("year = %v", v)
	}
	values, err := got.Section(7).Floats("codedValues")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{270.5, 271.25, 280, 285.125, 290, 300}
	for i := range want {
		if math.Abs(values[i]-want[i]) > 1e-4 {
			t.Errorf("value %d = %v, want %v", i, values[i], want[i])
		}
	}
}

func TestRoundTripBitmap(t *testing.T) {
	m := latLonMessage()
	m.Section(6).Set("bitMapIndicator", 0)
	m.Section(6).Set("bitmap", []int64{1, 0, 1, 1, 0, 1})
	m.Section(7).Set("codedValues", []float64{1, 2, 3, 4})
	data, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Decode(data, DecodeOptions{Values: true})
	if err != nil {
		t.Fatal(err)
	}
	values, mask, err := message.DecodeValues(got, 6)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(mask, []bool{false, true, false, false, true, false}); len(diff) > 0 {
		t.Errorf("mask diff: %v", diff)
	}
	if math.Abs(values[5]-4) > 1e-5 {
		t.Errorf("last value = %v, want 4", values[5])
	}
}

func TestHeadersOnly(t *testing.T) {
	data, err := Encode(latLonMessage())
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Decode(data, DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Section(7).Has("codedValues") {
		t.Errorf("values decoded without being requested")
	}
	if v, _ := got.Section(5).Int("bitsPerValue"); v != DefaultBitsPerValue {
		t.Errorf("bitsPerValue = %v, want %d", v, DefaultBitsPerValue)
	}
}

func TestRoundTripStatisticalHybrid(t *testing.T) {
	m := latLonMessage()
	s4 := m.Section(4)
	s4.Set("productDefinitionTemplateNumber", 8)
	s4.Set("typeOfFirstFixedSurface", 105)
	s4.Set("scaleFactorOfFirstFixedSurface", 0)
	s4.Set("scaledValueOfFirstFixedSurface", 3)
	s4.Set("NV", 4)
	s4.Set("pv", []float64{0, 100.5, 0, 0.25})
	s4.Set("yearOfEndOfOverallTimeInterval", 2024)
	s4.Set("monthOfEndOfOverallTimeInterval", 3)
	s4.Set("dayOfEndOfOverallTimeInterval", 1)
	s4.Set("numberOfTimeRange", 1)
	s4.Set("typeOfStatisticalProcessing", 2)
	s4.Set("typeOfTimeIncrement", 2)
	s4.Set("indicatorOfUnitForTimeRange", 1)
	s4.Set("lengthOfTimeRange", 12)
	s4.Set("indicatorOfUnitForTimeIncrement", 255)
	s4.SetMissing("timeIncrement")
	data, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Decode(data, DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	g4 := got.Section(4)
	pv, err := g4.Floats("pv")
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(pv, []float64{0, 100.5, 0, 0.25}); len(diff) > 0 {
		t.Errorf("pv diff: %v", diff)
	}
	if v, _ := g4.Int("typeOfStatisticalProcessing"); v != 2 {
		t.Errorf("typeOfStatisticalProcessing = %v", v)
	}
	if v, _ := g4.Int("lengthOfTimeRange"); v != 12 {
		t.Errorf("lengthOfTimeRange = %v", v)
	}
	if !g4.IsMissing("timeIncrement") {
		t.Errorf("timeIncrement should be missing")
	}
	// numberOfTimeRange has an alias with a trailing s.
	if v, _ := g4.Int("numberOfTimeRanges"); v != 1 {
		t.Errorf("numberOfTimeRanges = %v", v)
	}
}

func TestRoundTripLambert(t *testing.T) {
	m := latLonMessage()
	s3 := message.NewSection(3)
	for k, v := range map[string]int64{
		"sourceOfGridDefinition":       0,
		"numberOfDataPoints":           6,
		"gridDefinitionTemplateNumber": 30,
		"shapeOfTheEarth":              7,
		"Nx":                           3,
		"Ny":                           2,
		"latitudeOfFirstGridPoint":     71676530,
		"longitudeOfFirstGridPoint":    287218188,
		"LaD":                          39000000,
		"LoV":                          264000000,
		"Dx":                           2000000000,
		"Dy":                           500000000,
		"Latin1":                       -33000000,
		"Latin2":                       45000000,
		"projectionCentreFlag":         128,
	} {
		s3.Set(k, v)
	}
	s3.Set("scaleFactorOfEarthMajorAxis", 0)
	s3.Set("scaledValueOfEarthMajorAxis", 6377563)
	m.SetSection(s3)
	data, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Decode(data, DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"Latin1", "LoV", "Dx", "projectionCentreFlag", "scaledValueOfEarthMajorAxis"} {
		want, _ := s3.Int(key)
		if v, err := got.Section(3).Int(key); err != nil || v != want {
			t.Errorf("%s = %v, %v; want %v", key, v, err, want)
		}
	}
	// Nx and Ny are also reachable by their long names.
	if v, _ := got.Section(3).Int("numberOfPointsAlongXAxis"); v != 3 {
		t.Errorf("numberOfPointsAlongXAxis = %v", v)
	}
}

func TestEncodeUnsupportedTemplate(t *testing.T) {
	m := latLonMessage()
	m.Section(3).Set("gridDefinitionTemplateNumber", 50)
	if _, err := Encode(m); !errors.Is(err, griberr.ErrUnsupportedEditionFeature) {
		t.Errorf("Encode(template 3.50) error = %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	data, err := Encode(latLonMessage())
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		name string
		data []byte
	}{
		{"truncated", data[:len(data)-10]},
		{"not grib", append([]byte("GRIX"), data[4:]...)},
		{"short", data[:8]},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode(tt.data, DecodeOptions{}); err == nil {
				t.Errorf("Decode succeeded, want error")
			}
		})
	}
}

func TestSignMagnitude(t *testing.T) {
	for _, tt := range []struct {
		k kind
		v int64
	}{
		{s1, -2}, {s2, -300}, {s4, -90000000}, {s4, 90000000}, {u4, 4294967294},
	} {
		b := &builder{}
		if err := b.put(tt.k, tt.v, "x"); err != nil {
			t.Fatal(err)
		}
		got, ok, err := (&octets{data: b.buf}).value(tt.k, false)
		if err != nil || !ok || got.(int64) != tt.v {
			t.Errorf("round trip of %d = %v, %v, %v", tt.v, got, ok, err)
		}
	}
	b := &builder{}
	if err := b.put(s1, int64(200), "x"); err == nil {
		t.Errorf("200 should not fit a signed octet")
	}
}
