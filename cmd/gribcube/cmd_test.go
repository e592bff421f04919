package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kr/pretty"
	"github.com/sdifrance/gribcube"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/gribio"
	"github.com/sdifrance/gribcube/message"
	"github.com/sdifrance/gribcube/timestat"
)

// writeTemperature saves a 2 x 3 surface temperature analysis to dir.
func writeTemperature(t *testing.T, dir string) string {
	t.Helper()
	data := cube.Zeros([]int{2, 3})
	for i := range data.Values {
		data.Values[i] = 280 + float64(i)
	}
	c := cube.New(data)
	c.StandardName = "air_temperature"
	c.Units = "K"
	cs := cube.Sphere(6371229)
	if err := c.AddDimCoord(&cube.Coord{StandardName: "latitude", Units: "degrees", Points: []float64{10, -10}, System: cs}, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.AddDimCoord(&cube.Coord{StandardName: "longitude", Units: "degrees", Points: []float64{0, 10, 20}, System: cs}, 1); err != nil {
		t.Fatal(err)
	}
	rt := float64(time.Date(2012, 7, 1, 12, 0, 0, 0, time.UTC).Unix()) / 3600
	for _, coord := range []*cube.Coord{
		{StandardName: timestat.ForecastPeriod, Units: "hours", Points: []float64{0}},
		{StandardName: timestat.ForecastReferenceTime, Units: timestat.EpochUnits, Points: []float64{rt}},
		{StandardName: timestat.Time, Units: timestat.EpochUnits, Points: []float64{rt}},
	} {
		if err := c.AddAuxCoord(coord); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(dir, "t.grib2")
	if err := gribcube.Save([]*cube.Cube{c}, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRoot()
	root.SetOutput(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("gribcube %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestInspect(t *testing.T) {
	path := writeTemperature(t, t.TempDir())
	out := run(t, "inspect", "--sections", "0,4", path)
	for _, want := range []string{"message 0 (edition 2)", "section 0:", "section 4:", "parameterCategory=0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "section 3:") {
		t.Errorf("output has an unrequested section:\n%s", out)
	}
}

func TestInspectJSON(t *testing.T) {
	path := writeTemperature(t, t.TempDir())
	dec := json.NewDecoder(strings.NewReader(run(t, "inspect", "--json", path)))
	var got []map[string]interface{}
	for {
		var m map[string]interface{}
		if err := dec.Decode(&m); err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		got = append(got, m)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	if got[0]["edition"] != 2.0 {
		t.Errorf("edition = %v, want 2", got[0]["edition"])
	}
	sections, ok := got[0]["sections"].(map[string]interface{})
	if !ok {
		t.Fatalf("sections = %# v", pretty.Formatter(got[0]["sections"]))
	}
	sec4, ok := sections["4"].(map[string]interface{})
	if !ok {
		t.Fatalf("section 4 = %# v", pretty.Formatter(sections["4"]))
	}
	if sec4["parameterNumber"] != 0.0 {
		t.Errorf("parameterNumber = %v, want 0", sec4["parameterNumber"])
	}
}

func TestDump(t *testing.T) {
	path := writeTemperature(t, t.TempDir())
	out := run(t, "dump", path)
	if want := "air_temperature / (K) (latitude: 2; longitude: 3)"; !strings.Contains(out, want) {
		t.Errorf("dump output %q does not contain %q", out, want)
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := writeTemperature(t, dir)
	out := filepath.Join(dir, "t"+gribio.ArchiveExt)
	run(t, "convert", "--packing-bits", "12", "-o", out, in)

	src, err := gribio.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	msgs, err := message.ReadAll(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("converted %d messages, want 1", len(msgs))
	}
	if got := msgs[0].Section(5).IntOr("bitsPerValue", -1); got != 12 {
		t.Errorf("bitsPerValue = %d, want 12", got)
	}
}

func TestConvertNoOutput(t *testing.T) {
	root := newRoot()
	root.SetOutput(io.Discard)
	root.SetArgs([]string{"convert", "in.grib2"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "--output") {
		t.Errorf("got %v, want a missing output error", err)
	}
}

func TestApplyConfig(t *testing.T) {
	for _, test := range []struct {
		name    string
		config  string
		args    []string
		want    gribcube.Options
		wantErr string
	}{
		{
			name:   "values",
			config: "workers = 2\nskip-errors = true\npacking-bits = 10\n",
			want: gribcube.Options{
				SupportHindcastValues: true,
				SkipUntranslatable:    true,
				Workers:               2,
				CacheSize:             16,
				PackingBits:           10,
			},
		},
		{
			name:   "command line wins",
			config: "workers = 2\n",
			args:   []string{"--workers", "8"},
			want: gribcube.Options{
				SupportHindcastValues: true,
				Workers:               8,
				CacheSize:             16,
			},
		},
		{
			name:    "unknown key",
			config:  "threads = 2\n",
			wantErr: `unknown option "threads"`,
		},
		{
			name:    "bad value",
			config:  "workers = \"many\"\n",
			wantErr: `option "workers"`,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "gribcube.toml")
			if err := os.WriteFile(path, []byte(test.config), 0o644); err != nil {
				t.Fatal(err)
			}
			s := new(settings)
			fs := s.command().PersistentFlags()
			if err := fs.Parse(test.args); err != nil {
				t.Fatal(err)
			}
			err := applyConfig(fs, path)
			if test.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), test.wantErr) {
					t.Errorf("got %v, want an error containing %q", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := pretty.Diff(s.options(), test.want); len(diff) > 0 {
				t.Errorf("options: %v", diff)
			}
		})
	}
}
