package cube

import (
	"testing"

	"github.com/kr/pretty"
)

func latLonCube(t *testing.T, values []float64) *Cube {
	t.Helper()
	data, err := NewMaskedArray([]int{2, 3}, values, nil)
	if err != nil {
		t.Fatal(err)
	}
	c := New(data)
	c.StandardName = "air_temperature"
	c.Units = "K"
	if err := c.AddDimCoord(&Coord{StandardName: "latitude", Units: "degrees", Points: []float64{10, 0}}, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.AddDimCoord(&Coord{StandardName: "longitude", Units: "degrees", Points: []float64{0, 1, 2}}, 1); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestAddDimCoordChecks(t *testing.T) {
	c := latLonCube(t, make([]float64, 6))
	for _, tt := range []struct {
		name  string
		coord *Coord
		dim   int
	}{
		{"occupied", &Coord{LongName: "x", Points: []float64{1, 2, 3}}, 1},
		{"out of range", &Coord{LongName: "x", Points: []float64{1}}, 4},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.AddDimCoord(tt.coord, tt.dim); err == nil {
				t.Errorf("AddDimCoord succeeded, want error")
			}
		})
	}
	c.DimCoords[1] = nil
	if err := c.AddDimCoord(&Coord{LongName: "x", Points: []float64{1, 1, 2}}, 1); err == nil {
		t.Errorf("non-monotonic coordinate accepted")
	}
	if err := c.AddDimCoord(&Coord{LongName: "x", Points: []float64{1, 2}}, 1); err == nil {
		t.Errorf("wrong length accepted")
	}
}

func TestCoordLookup(t *testing.T) {
	c := latLonCube(t, make([]float64, 6))
	if err := c.AddAuxCoord(&Coord{LongName: "pressure", Units: "Pa", Points: []float64{85000}}); err != nil {
		t.Fatal(err)
	}
	if _, dims, ok := c.Coord("longitude"); !ok || len(dims) != 1 || dims[0] != 1 {
		t.Errorf("Coord(longitude) dims = %v, ok = %v", dims, ok)
	}
	if p, ok := c.ScalarCoord("pressure"); !ok || p.Points[0] != 85000 {
		t.Errorf("ScalarCoord(pressure) = %v, %v", p, ok)
	}
	if got := c.AxisCoords("Z"); len(got) != 1 {
		t.Errorf("AxisCoords(Z) = %v", got)
	}
	if !c.RemoveCoord("pressure") {
		t.Errorf("RemoveCoord(pressure) = false")
	}
	if _, _, ok := c.Coord("pressure"); ok {
		t.Errorf("pressure still present")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	c := latLonCube(t, make([]float64, 6))
	c.Attributes["GRIB_PARAM"] = "GRIB2:d000c000n000"
	cp := c.Copy()
	cp.DimCoords[0].Points[0] = 45
	cp.Attributes["GRIB_PARAM"] = "changed"
	if c.DimCoords[0].Points[0] != 10 || c.Attributes["GRIB_PARAM"] != "GRIB2:d000c000n000" {
		t.Errorf("Copy shares metadata with the original")
	}
	if cp.Data != c.Data {
		t.Errorf("Copy should share data")
	}
}

func TestExtract(t *testing.T) {
	a, err := NewMaskedArray([]int{2, 2, 3}, []float64{
		0, 1, 2, 3, 4, 5,
		6, 7, 8, 9, 10, 11,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.Extract(map[int]int{0: 1})
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(got.Values, []float64{6, 7, 8, 9, 10, 11}); len(diff) > 0 {
		t.Errorf("Extract(0:1) diff: %v", diff)
	}
	got, err = a.Extract(map[int]int{2: 0})
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(got.Values, []float64{0, 3, 6, 9}); len(diff) > 0 {
		t.Errorf("Extract(2:0) diff: %v", diff)
	}
	tr, err := got.Transpose2D()
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(tr.Values, []float64{0, 6, 3, 9}); len(diff) > 0 {
		t.Errorf("Transpose2D diff: %v", diff)
	}
}

func TestMergeOverScalar(t *testing.T) {
	var cubes []*Cube
	for i, p := range []float64{50000, 85000, 70000} {
		c := latLonCube(t, []float64{float64(i), 0, 0, 0, 0, 0})
		c.Attributes["GRIB_PARAM"] = "GRIB2:d000c000n000"
		if err := c.AddAuxCoord(&Coord{StandardName: "forecast_period", Units: "hours", Points: []float64{6}}); err != nil {
			t.Fatal(err)
		}
		if err := c.AddAuxCoord(&Coord{LongName: "pressure", Units: "Pa", Points: []float64{p}}); err != nil {
			t.Fatal(err)
		}
		cubes = append(cubes, c)
	}
	merged, err := Merge(cubes)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 1 {
		t.Fatalf("Merge returned %d cubes, want 1", len(merged))
	}
	m := merged[0]
	if diff := pretty.Diff(m.Shape(), []int{3, 2, 3}); len(diff) > 0 {
		t.Errorf("shape diff: %v", diff)
	}
	if diff := pretty.Diff(m.DimCoords[0].Points, []float64{50000, 70000, 85000}); len(diff) > 0 {
		t.Errorf("pressure diff: %v", diff)
	}
	if _, ok := m.ScalarCoord("forecast_period"); !ok {
		t.Errorf("forecast_period should stay scalar")
	}
	a, err := m.Data.Materialize()
	if err != nil {
		t.Fatal(err)
	}
	// The 70000 Pa field was the third input, with first value 2.
	if got := a.Values[6]; got != 2 {
		t.Errorf("first value of second slice = %v, want 2", got)
	}
}

func TestMergeKeepsDistinctPhenomena(t *testing.T) {
	a := latLonCube(t, make([]float64, 6))
	b := latLonCube(t, make([]float64, 6))
	b.StandardName = "relative_humidity"
	merged, err := Merge([]*Cube{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 2 {
		t.Errorf("Merge returned %d cubes, want 2", len(merged))
	}
}

func TestCellMethodString(t *testing.T) {
	m := CellMethod{Method: "mean", Coords: []string{"time"}, Intervals: []string{"1 hours"}}
	if got, want := m.String(), "mean: time (interval: 1 hours)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
