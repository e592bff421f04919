package vertical

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/kr/pretty"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
)

// section4 returns a product definition section with both surfaces missing
// and kv applied on top. A nil value marks the key missing.
func section4(kv ...interface{}) *message.Section {
	sec := message.NewSection(4)
	sec.Set("productDefinitionTemplateNumber", 0)
	sec.Set("typeOfFirstFixedSurface", Missing)
	sec.SetMissing("scaleFactorOfFirstFixedSurface")
	sec.SetMissing("scaledValueOfFirstFixedSurface")
	sec.SetMissing("typeOfSecondFixedSurface")
	sec.SetMissing("scaleFactorOfSecondFixedSurface")
	sec.SetMissing("scaledValueOfSecondFixedSurface")
	sec.Set("NV", 0)
	for i := 0; i < len(kv); i += 2 {
		if kv[i+1] == nil {
			sec.SetMissing(kv[i].(string))
		} else {
			sec.Set(kv[i].(string), kv[i+1])
		}
	}
	return sec
}

func first(kind, factor, value int64) []interface{} {
	return []interface{}{"typeOfFirstFixedSurface", kind, "scaleFactorOfFirstFixedSurface", factor, "scaledValueOfFirstFixedSurface", value}
}

func second(kind, factor, value int64) []interface{} {
	return []interface{}{"typeOfSecondFixedSurface", kind, "scaleFactorOfSecondFixedSurface", factor, "scaledValueOfSecondFixedSurface", value}
}

func join(parts ...[]interface{}) []interface{} {
	var out []interface{}
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestLoad(t *testing.T) {
	nan := math.NaN()
	for _, tt := range []struct {
		name string
		kv   []interface{}
		want []*cube.Coord
	}{
		{"missing", nil, nil},
		{"ground", first(GroundOrWater, 0, 0), nil},
		{"isobaric", first(Isobaric, -2, 850), []*cube.Coord{
			{LongName: "pressure", Units: "Pa", Points: []float64{85000}},
		}},
		{"altitude", first(MeanSeaLevelHeight, 0, 1500), []*cube.Coord{
			{StandardName: "altitude", Units: "m", Points: []float64{1500}},
		}},
		{"height", first(HeightAboveGround, 1, 15), []*cube.Coord{
			{LongName: "height", Units: "m", Points: []float64{1.5}},
		}},
		{"depth", first(DepthBelowLand, 2, 10), []*cube.Coord{
			{StandardName: "depth", Units: "m", Points: []float64{0.1}},
		}},
		{"isentropic", first(Isentropic, 0, 320), []*cube.Coord{
			{StandardName: "air_potential_temperature", Units: "K", Points: []float64{320}},
		}},
		{"zero isotherm without a value", []interface{}{"typeOfFirstFixedSurface", ZeroIsotherm}, []*cube.Coord{
			{LongName: "air_temperature", Units: "Celsius", Points: []float64{0}},
		}},
		{"unknown type", first(160, 0, 20), []*cube.Coord{
			{Units: "1", Points: []float64{20}, Attributes: map[string]interface{}{SurfaceTypeAttribute: int64(160)}},
		}},
		{"layer", join(first(DepthBelowLand, 2, 10), second(DepthBelowLand, 2, 40)), []*cube.Coord{
			{StandardName: "depth", Units: "m", Points: []float64{0.25}, Bounds: [][2]float64{{0.1, 0.4}}},
		}},
		{"layer above ground", join(first(HeightAboveGround, 0, 10), second(GroundOrWater, 0, 0)), []*cube.Coord{
			{LongName: "height", Units: "m", Points: []float64{5}, Bounds: [][2]float64{{10, 0}}},
		}},
		{"layer from the ground", join(first(GroundOrWater, 0, 0), second(HeightAboveGround, 0, 10)), []*cube.Coord{
			{LongName: "height", Units: "m", Points: []float64{5}, Bounds: [][2]float64{{0, 10}}},
		}},
		{"layer across types", join(first(Isobaric, 0, 50000), second(HeightAboveGround, 0, 2)), []*cube.Coord{
			{LongName: "pressure", Units: "Pa", Points: []float64{50000}, Bounds: [][2]float64{{50000, nan}}, BoundsMask: [][2]bool{{false, true}}},
			{LongName: "height", Units: "m", Points: []float64{2}, Bounds: [][2]float64{{nan, 2}}, BoundsMask: [][2]bool{{true, false}}},
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Load(section4(tt.kv...))
			if err != nil {
				t.Fatal(err)
			}
			if l.Unsupported != nil {
				t.Errorf("Unsupported = %v", l.Unsupported)
			}
			if len(l.Coords) != len(tt.want) {
				t.Fatalf("got %d coordinates, want %d: %# v", len(l.Coords), len(tt.want), pretty.Formatter(l.Coords))
			}
			for i, c := range l.Coords {
				// NaN never equals itself; compare the masked ends through
				// the mask.
				got, want := *c, *tt.want[i]
				got.Bounds, want.Bounds = unmasked(got), unmasked(want)
				if diff := pretty.Diff(got, want); len(diff) > 0 {
					t.Errorf("coordinate %d differs: %v", i, diff)
				}
			}
		})
	}
}

func unmasked(c cube.Coord) [][2]float64 {
	if c.Bounds == nil {
		return nil
	}
	out := make([][2]float64, len(c.Bounds))
	for i, b := range c.Bounds {
		for j := range b {
			if !c.BoundMasked(i, j) {
				out[i][j] = b[j]
			}
		}
	}
	return out
}

func TestLoadUnknownMissingValue(t *testing.T) {
	l, err := Load(section4("typeOfFirstFixedSurface", 160))
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Coords) != 0 {
		t.Errorf("got coordinates %v", l.Coords)
	}
	if !errors.Is(l.Unsupported, griberr.ErrUnsupportedSurfaceType) {
		t.Errorf("Unsupported = %v", l.Unsupported)
	}
	if got := l.Attributes[SurfaceTypeAttribute]; got != int64(160) {
		t.Fatalf("%s = %v, want 160", SurfaceTypeAttribute, got)
	}

	// The surface type is written back with a missing value.
	c := scalarCube(t)
	if err := l.Apply(c); err != nil {
		t.Fatal(err)
	}
	sec := message.NewSection(4)
	if err := Save(c, nil, sec); err != nil {
		t.Fatal(err)
	}
	if kind := sec.IntOr("typeOfFirstFixedSurface", 0); kind != 160 {
		t.Errorf("typeOfFirstFixedSurface = %d, want 160", kind)
	}
	if !sec.IsMissing("scaledValueOfFirstFixedSurface") {
		t.Error("scaledValueOfFirstFixedSurface is not missing")
	}
	if kind := sec.IntOr("typeOfSecondFixedSurface", 0); kind != Missing {
		t.Errorf("typeOfSecondFixedSurface = %d, want %d", kind, Missing)
	}
	reloaded, err := Load(sec)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Attributes[SurfaceTypeAttribute]; got != int64(160) {
		t.Errorf("reloaded %s = %v, want 160", SurfaceTypeAttribute, got)
	}
}

func TestLoadErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		kv   []interface{}
		want error
	}{
		{"missing second value", join(first(DepthBelowLand, 0, 1), []interface{}{"typeOfSecondFixedSurface", DepthBelowLand}), griberr.ErrMalformedSection},
		{"missing first value", []interface{}{"typeOfFirstFixedSurface", Isobaric}, griberr.ErrMalformedSection},
		{"hybrid with a second surface", join(first(HybridLevel, 0, 3), second(HybridLevel, 0, 4)), griberr.ErrUnsupportedTranslation},
		{"coefficients without hybrid levels", join(first(Isobaric, 0, 100), []interface{}{"NV", 2, "pv", []float64{1, 2}}), griberr.ErrUnsupportedTranslation},
		{"level beyond the coefficients", join(first(HybridLevel, 0, 3), []interface{}{"NV", 4, "pv", []float64{1, 2, 3, 4}}), griberr.ErrMalformedSection},
		{"NV disagrees with pv", join(first(HybridLevel, 0, 1), []interface{}{"NV", 6, "pv", []float64{1, 2, 3, 4}}), griberr.ErrMalformedSection},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(section4(tt.kv...)); !errors.Is(err, tt.want) {
				t.Errorf("Load error = %v, want %v", err, tt.want)
			}
		})
	}
}

// hybridPV returns pv for n levels: a coefficients i and b coefficients
// 100+i at index i of each half.
func hybridPV(n int) []float64 {
	pv := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		pv[i], pv[n+i] = float64(i), float64(100+i)
	}
	return pv
}

func hybridValues(t *testing.T, l *Levels) map[string]float64 {
	t.Helper()
	if len(l.Coords) != 3 {
		t.Fatalf("got %d coordinates, want 3", len(l.Coords))
	}
	got := map[string]float64{}
	for _, c := range l.Coords {
		got[c.Name()] = c.Points[0]
	}
	return got
}

func TestLoadHybridPressure(t *testing.T) {
	pv := hybridPV(10)
	half := len(pv) / 2
	for _, kind := range []int64{HybridLevel, HybridPressure} {
		// Level N reads index N+1 of each half, so the last level is half-2.
		for level := 1; level <= half-2; level++ {
			t.Run(fmt.Sprintf("type %d level %d", kind, level), func(t *testing.T) {
				l, err := Load(section4(join(first(kind, 0, int64(level)), []interface{}{"NV", len(pv), "pv", pv})...))
				if err != nil {
					t.Fatal(err)
				}
				want := map[string]float64{
					"model_level_number": float64(level),
					"level_pressure":     pv[level+1],
					"sigma":              pv[half+level+1],
				}
				if diff := pretty.Diff(hybridValues(t, l), want); len(diff) > 0 {
					t.Errorf("levels differ: %v", diff)
				}
				if l.Factory == nil || l.Factory.Kind != "hybrid_pressure" || l.Factory.Delta != "level_pressure" || l.Factory.Surface != "surface_air_pressure" {
					t.Errorf("Factory = %+v", l.Factory)
				}
			})
		}
		t.Run(fmt.Sprintf("type %d level %d", kind, half-1), func(t *testing.T) {
			_, err := Load(section4(join(first(kind, 0, int64(half-1)), []interface{}{"NV", len(pv), "pv", pv})...))
			if !errors.Is(err, griberr.ErrMalformedSection) {
				t.Errorf("got %v, want %v", err, griberr.ErrMalformedSection)
			}
		})
	}
}

func TestLoadGRIB1Hybrid(t *testing.T) {
	pv := hybridPV(10)
	half := len(pv) / 2
	gds := message.NewSection(2)
	gds.Set("pv", pv)
	pds := func(level int) *message.Section {
		sec := message.NewSection(1)
		sec.Set("indicatorOfTypeOfLevel", 109)
		sec.Set("level", level)
		return sec
	}
	// GRIB1 level N reads index N of each half.
	for level := 1; level <= half-1; level++ {
		t.Run(fmt.Sprintf("level %d", level), func(t *testing.T) {
			l, err := LoadGRIB1(pds(level), gds)
			if err != nil {
				t.Fatal(err)
			}
			want := map[string]float64{
				"model_level_number": float64(level),
				"level_pressure":     pv[level],
				"sigma":              pv[half+level],
			}
			if diff := pretty.Diff(hybridValues(t, l), want); len(diff) > 0 {
				t.Errorf("levels differ: %v", diff)
			}
			if l.Factory == nil || l.Factory.Kind != "hybrid_pressure" || l.Factory.Surface != "surface_pressure" {
				t.Errorf("Factory = %+v", l.Factory)
			}
		})
	}
	t.Run(fmt.Sprintf("level %d", half), func(t *testing.T) {
		if _, err := LoadGRIB1(pds(half), gds); !errors.Is(err, griberr.ErrMalformedSection) {
			t.Errorf("got %v, want %v", err, griberr.ErrMalformedSection)
		}
	})
}

func TestLoadHybridHeight(t *testing.T) {
	pv := []float64{0, 0, 20, 55, 0, 0, 0.99, 0.97}
	l, err := Load(section4(join(first(HybridHeight, 0, 2), []interface{}{"NV", 8, "pv", pv})...))
	if err != nil {
		t.Fatal(err)
	}
	if l.Factory == nil || l.Factory.Kind != "hybrid_height" {
		t.Fatalf("Factory = %+v", l.Factory)
	}
	if c := l.Coords[1]; c.Name() != "level_height" || c.Units != "m" || c.Points[0] != 55 {
		t.Errorf("delta = %v", c)
	}
	if c := l.Coords[2]; c.Name() != "sigma" || c.Points[0] != 0.97 {
		t.Errorf("sigma = %v", c)
	}
}

func TestLoadGRIB1(t *testing.T) {
	pds := func(kv ...interface{}) *message.Section {
		sec := message.NewSection(1)
		for i := 0; i < len(kv); i += 2 {
			sec.Set(kv[i].(string), kv[i+1])
		}
		return sec
	}
	gds := message.NewSection(2)
	gds.Set("pv", []float64{10, 11, 12, 0.5, 0.6, 0.7})

	for _, tt := range []struct {
		name  string
		pds   *message.Section
		want  map[string]float64
		skips bool
	}{
		{"surface", pds("indicatorOfTypeOfLevel", 1, "level", 0), map[string]float64{}, false},
		{"isobaric", pds("indicatorOfTypeOfLevel", 100, "level", 850), map[string]float64{"pressure": 85000}, false},
		{"altitude", pds("indicatorOfTypeOfLevel", 103, "level", 1000), map[string]float64{"altitude": 1000}, false},
		{"height", pds("indicatorOfTypeOfLevel", 105, "level", 2), map[string]float64{"height": 2}, false},
		{"hybrid", pds("indicatorOfTypeOfLevel", 109, "level", 2), map[string]float64{"model_level_number": 2, "level_pressure": 12, "sigma": 0.7}, false},
		{"layer", pds("indicatorOfTypeOfLevel", 112, "topLevel", 0, "bottomLevel", 10), map[string]float64{}, true},
		{"unknown", pds("indicatorOfTypeOfLevel", 8, "level", 0), map[string]float64{}, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			l, err := LoadGRIB1(tt.pds, gds)
			if err != nil {
				t.Fatal(err)
			}
			if (l.Unsupported != nil) != tt.skips {
				t.Errorf("Unsupported = %v", l.Unsupported)
			}
			got := map[string]float64{}
			for _, c := range l.Coords {
				got[c.Name()] = c.Points[0]
			}
			if diff := pretty.Diff(got, tt.want); len(diff) > 0 {
				t.Errorf("levels differ: %v", diff)
			}
		})
	}

	if _, err := LoadGRIB1(pds("indicatorOfTypeOfLevel", 109, "level", 2), nil); !errors.Is(err, griberr.ErrMalformedSection) {
		t.Errorf("hybrid level without pv error = %v", err)
	}
}

func scalarCube(t *testing.T, coords ...*cube.Coord) *cube.Cube {
	t.Helper()
	c := cube.New(cube.Zeros([]int{2, 2}))
	c.StandardName = "air_temperature"
	c.Units = "K"
	for _, coord := range coords {
		if err := c.AddAuxCoord(coord); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func TestSave(t *testing.T) {
	nan := math.NaN()
	for _, tt := range []struct {
		name   string
		coords []*cube.Coord
		want   map[string]interface{}
	}{
		{
			name: "no level",
			want: map[string]interface{}{
				"typeOfFirstFixedSurface": int64(1), "scaleFactorOfFirstFixedSurface": int64(0), "scaledValueOfFirstFixedSurface": int64(0),
				"typeOfSecondFixedSurface": int64(255), "scaledValueOfSecondFixedSurface": nil,
			},
		},
		{
			name:   "pressure in hPa",
			coords: []*cube.Coord{{LongName: "pressure", Units: "hPa", Points: []float64{850}}},
			want: map[string]interface{}{
				"typeOfFirstFixedSurface": int64(100), "scaleFactorOfFirstFixedSurface": int64(0), "scaledValueOfFirstFixedSurface": int64(85000),
			},
		},
		{
			name:   "fractional height",
			coords: []*cube.Coord{{LongName: "height", Units: "m", Points: []float64{1.5}}},
			want: map[string]interface{}{
				"typeOfFirstFixedSurface": int64(103), "scaleFactorOfFirstFixedSurface": int64(1), "scaledValueOfFirstFixedSurface": int64(15),
			},
		},
		{
			name:   "depth layer",
			coords: []*cube.Coord{{StandardName: "depth", Units: "cm", Points: []float64{25}, Bounds: [][2]float64{{10, 40}}}},
			want: map[string]interface{}{
				"typeOfFirstFixedSurface": int64(106), "scaleFactorOfFirstFixedSurface": int64(1), "scaledValueOfFirstFixedSurface": int64(1),
				"typeOfSecondFixedSurface": int64(106), "scaleFactorOfSecondFixedSurface": int64(1), "scaledValueOfSecondFixedSurface": int64(4),
			},
		},
		{
			name: "layer across types",
			coords: []*cube.Coord{
				{LongName: "height", Units: "m", Points: []float64{2}, Bounds: [][2]float64{{nan, 2}}, BoundsMask: [][2]bool{{true, false}}},
				{LongName: "pressure", Units: "Pa", Points: []float64{50000}, Bounds: [][2]float64{{50000, nan}}, BoundsMask: [][2]bool{{false, true}}},
			},
			want: map[string]interface{}{
				"typeOfFirstFixedSurface": int64(100), "scaledValueOfFirstFixedSurface": int64(50000),
				"typeOfSecondFixedSurface": int64(103), "scaledValueOfSecondFixedSurface": int64(2),
			},
		},
		{
			name:   "unknown surface type",
			coords: []*cube.Coord{{Units: "1", Points: []float64{20}, Attributes: map[string]interface{}{SurfaceTypeAttribute: int64(160)}}},
			want: map[string]interface{}{
				"typeOfFirstFixedSurface": int64(160), "scaledValueOfFirstFixedSurface": int64(20),
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			sec := message.NewSection(4)
			if err := Save(scalarCube(t, tt.coords...), nil, sec); err != nil {
				t.Fatal(err)
			}
			for key, want := range tt.want {
				got, _ := sec.Get(key)
				if diff := pretty.Diff(got, want); len(diff) > 0 {
					t.Errorf("%s: %v", key, diff)
				}
			}
			// Whatever was saved loads back to the same levels.
			l, err := Load(sec)
			if err != nil {
				t.Fatal(err)
			}
			if len(l.Coords) != len(tt.coords) {
				t.Errorf("reloaded %d coordinates, want %d", len(l.Coords), len(tt.coords))
			}
		})
	}
}

func TestSaveErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		coords []*cube.Coord
	}{
		{"unrecognised vertical coordinate", []*cube.Coord{{StandardName: "model_level_number", Units: "1", Points: []float64{3}}}},
		{"incompatible units", []*cube.Coord{{LongName: "pressure", Units: "K", Points: []float64{3}}}},
		{"lone half layer", []*cube.Coord{{LongName: "height", Units: "m", Points: []float64{2}, Bounds: [][2]float64{{0, 2}}, BoundsMask: [][2]bool{{true, false}}}}},
		{"three levels", []*cube.Coord{
			{LongName: "pressure", Units: "Pa", Points: []float64{1}},
			{LongName: "height", Units: "m", Points: []float64{1}},
			{StandardName: "depth", Units: "m", Points: []float64{1}},
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := Save(scalarCube(t, tt.coords...), nil, message.NewSection(4)); !errors.Is(err, griberr.ErrUnsupportedTranslation) {
				t.Errorf("Save error = %v, want unsupported translation", err)
			}
		})
	}
}

func TestSaveHybrid(t *testing.T) {
	// A full cube on model levels 1, 2 and 4.
	full := cube.New(cube.Zeros([]int{3, 2, 2}))
	full.StandardName = "air_temperature"
	levels := &cube.Coord{StandardName: "model_level_number", Units: "1", Points: []float64{1, 2, 4}}
	if err := full.AddDimCoord(levels, 0); err != nil {
		t.Fatal(err)
	}
	if err := full.AddAuxCoord(&cube.Coord{LongName: "level_pressure", Units: "Pa", Points: []float64{10, 20, 40}}, 0); err != nil {
		t.Fatal(err)
	}
	if err := full.AddAuxCoord(&cube.Coord{LongName: "sigma", Units: "1", Points: []float64{0.9, 0.8, 0.6}}, 0); err != nil {
		t.Fatal(err)
	}
	full.Factory = &cube.HybridFactory{Kind: "hybrid_pressure", Delta: "level_pressure", Sigma: "sigma"}

	slice := scalarCube(t,
		&cube.Coord{StandardName: "model_level_number", Units: "1", Points: []float64{2}},
		&cube.Coord{LongName: "level_pressure", Units: "Pa", Points: []float64{20}},
		&cube.Coord{LongName: "sigma", Units: "1", Points: []float64{0.8}},
	)
	slice.Factory = full.Factory

	sec := message.NewSection(4)
	if err := Save(slice, full, sec); err != nil {
		t.Fatal(err)
	}
	pv, err := sec.Floats("pv")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0, 10, 20, 0, 40, 0, 0, 0.9, 0.8, 0, 0.6}
	if diff := pretty.Diff(pv, want); len(diff) > 0 {
		t.Errorf("pv differs: %v", diff)
	}
	if nv := sec.IntOr("NV", 0); nv != 12 {
		t.Errorf("NV = %d, want 12", nv)
	}
	if kind := sec.IntOr("typeOfFirstFixedSurface", 0); kind != HybridPressure {
		t.Errorf("typeOfFirstFixedSurface = %d", kind)
	}

	// Every level saved reads back its own coefficients.
	for i, n := range levels.Points {
		slice := scalarCube(t,
			&cube.Coord{StandardName: "model_level_number", Units: "1", Points: []float64{n}},
		)
		slice.Factory = full.Factory
		sec := message.NewSection(4)
		if err := Save(slice, full, sec); err != nil {
			t.Fatal(err)
		}
		pv, err := sec.Floats("pv")
		if err != nil {
			t.Fatal(err)
		}
		if len(pv) != 2*(4+2) {
			t.Errorf("level %v: len(pv) = %d, want %d", n, len(pv), 2*(4+2))
		}
		l, err := Load(sec)
		if err != nil {
			t.Fatal(err)
		}
		want := map[string]float64{
			"model_level_number": n,
			"level_pressure":     []float64{10, 20, 40}[i],
			"sigma":              []float64{0.9, 0.8, 0.6}[i],
		}
		if diff := pretty.Diff(hybridValues(t, l), want); len(diff) > 0 {
			t.Errorf("level %v reloaded levels differ: %v", n, diff)
		}
	}

	levels.Points[0] = 0
	if err := Save(slice, full, message.NewSection(4)); !errors.Is(err, griberr.ErrUnsupportedTranslation) {
		t.Errorf("level 0 error = %v", err)
	}
}
