package units

import (
	"math"
	"testing"
)

func TestConvert(t *testing.T) {
	for _, tt := range []struct {
		v        float64
		from, to string
		want     float64
		wantErr  bool
	}{
		{850, "hPa", "Pa", 85000, false},
		{1.5, "km", "m", 1500, false},
		{90, "minutes", "hours", 1.5, false},
		{0, "Celsius", "K", 273.15, false},
		{math.Pi, "radians", "degrees", 180, false},
		{12, "hours since 1970-01-01 00:00:00", "hours", 12, false},
		{1, "hPa", "m", 0, true},
		{1, "furlongs", "m", 0, true},
	} {
		got, err := Convert(tt.v, tt.from, tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("Convert(%v, %q, %q) error = %v, wantErr %v", tt.v, tt.from, tt.to, err, tt.wantErr)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Convert(%v, %q, %q) = %v, want %v", tt.v, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCompatible(t *testing.T) {
	if !Compatible("Pa", "hPa") {
		t.Errorf("Pa and hPa should be compatible")
	}
	if Compatible("K", "m") {
		t.Errorf("K and m should not be compatible")
	}
}
