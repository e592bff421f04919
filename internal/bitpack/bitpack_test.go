package bitpack

import (
	"math"
	"testing"

	"github.com/kr/pretty"
)

func TestReadWrite(t *testing.T) {
	w := &Writer{}
	w.Write(5, 3)
	w.Write(0x1ff, 9)
	w.Write(1, 1)
	if got, want := len(w.Bytes()), 2; got != want {
		t.Fatalf("wrote %d octets, want %d", got, want)
	}
	r := NewReader(w.Bytes())
	for _, tt := range []struct {
		n    int
		want uint64
	}{{3, 5}, {9, 0x1ff}, {1, 1}, {3, 0}} {
		got, err := r.Read(tt.n)
		if err != nil || got != tt.want {
			t.Errorf("Read(%d) = %v, %v; want %v", tt.n, got, err, tt.want)
		}
	}
	if _, err := r.Read(1); err == nil {
		t.Errorf("read past the end succeeded")
	}
}

func TestBits(t *testing.T) {
	got, err := NewReader([]byte{0b1011_0000}).Bits(5)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(got, []int64{1, 0, 1, 1, 0}); len(diff) > 0 {
		t.Errorf("Bits diff: %v", diff)
	}
}

func TestPack(t *testing.T) {
	values := []float64{-3.5, 0, 12.25, 1000.125}
	for _, bits := range []int{8, 16, 24} {
		p, data := Pack(values, bits)
		got, err := Unpack(p, data, len(values))
		if err != nil {
			t.Fatal(err)
		}
		tol := (1000.125 + 3.5) / (math.Pow(2, float64(bits)) - 1)
		for i := range values {
			if math.Abs(got[i]-values[i]) > tol {
				t.Errorf("bits=%d value %d = %v, want %v within %v", bits, i, got[i], values[i], tol)
			}
		}
	}
}

func TestPackConstant(t *testing.T) {
	p, data := Pack([]float64{7, 7}, 16)
	if p.BitsPerValue != 0 || len(data) != 0 {
		t.Errorf("constant field packed as %+v, %d octets", p, len(data))
	}
	got, _ := Unpack(p, data, 2)
	if got[1] != 7 {
		t.Errorf("constant field unpacked as %v", got)
	}
}

func TestUnpackDecimalScale(t *testing.T) {
	// R = 100, E = 1, D = 2: Y = (100 + 2X) / 100.
	p := Params{Reference: 100, BinaryScale: 1, DecimalScale: 2, BitsPerValue: 8}
	got, err := Unpack(p, []byte{0, 50}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(got, []float64{1, 2}); len(diff) > 0 {
		t.Errorf("Unpack diff: %v", diff)
	}
}
