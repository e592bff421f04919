package message

import (
	"fmt"

	"github.com/golang/glog"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
)

// DataCache keeps recently materialized arrays, keyed by message location.
type DataCache struct {
	c *lru.Cache[Location, *cube.MaskedArray]
}

// NewDataCache returns a cache holding at most size arrays. A size below 1
// disables caching.
func NewDataCache(size int) *DataCache {
	if size < 1 {
		return nil
	}
	c, err := lru.New[Location, *cube.MaskedArray](size)
	if err != nil {
		glog.Warningf("data cache disabled: %v", err)
		return nil
	}
	return &DataCache{c: c}
}

func (d *DataCache) get(loc Location) (*cube.MaskedArray, bool) {
	if d == nil {
		return nil, false
	}
	return d.c.Get(loc)
}

func (d *DataCache) add(loc Location, a *cube.MaskedArray) {
	if d == nil {
		return
	}
	d.c.Add(loc, a)
}

// Len returns the number of cached arrays.
func (d *DataCache) Len() int {
	if d == nil {
		return 0
	}
	return d.c.Len()
}

// DataProxy is the lazily read data array of one message. It holds only the
// message location; values are decoded when Materialize is called.
type DataProxy struct {
	shape  []int
	loc    Location
	opener Reopener
	cache  *DataCache
}

// NewDataProxy returns a proxy for the data of the message at loc.
func NewDataProxy(shape []int, loc Location, opener Reopener, cache *DataCache) *DataProxy {
	return &DataProxy{shape: append([]int(nil), shape...), loc: loc, opener: opener, cache: cache}
}

func (p *DataProxy) Shape() []int { return p.shape }

// Location returns where the values live.
func (p *DataProxy) Location() Location { return p.loc }

func (p *DataProxy) Materialize() (*cube.MaskedArray, error) {
	if a, ok := p.cache.get(p.loc); ok {
		return a, nil
	}
	m, err := p.opener.Reopen(p.loc)
	if err != nil {
		return nil, fmt.Errorf("reopening message %v: %w", p.loc, err)
	}
	values, mask, err := DecodeValues(m, cube.Size(p.shape))
	if err != nil {
		return nil, griberr.Wrap(err, p.loc.String())
	}
	a, err := cube.NewMaskedArray(p.shape, values, mask)
	if err != nil {
		return nil, err
	}
	p.cache.add(p.loc, a)
	return a, nil
}

func (p *DataProxy) String() string {
	return fmt.Sprintf("DataProxy(shape=%v, %v)", p.shape, p.loc)
}

// Bitmap indicators (code table 6.0).
const (
	BitmapPresent = 0
	BitmapNone    = 255
)

// DecodeValues expands the coded values of m into n points. Points cleared in
// the bitmap are masked; their values are zero.
func DecodeValues(m *Message, n int) ([]float64, []bool, error) {
	repr, bitmapSec, dataSec := m.Section(5), m.Section(6), m.Section(7)
	hasBitmap := false
	if m.Edition == 1 {
		repr, bitmapSec, dataSec = m.Section(4), m.Section(3), m.Section(4)
		hasBitmap = bitmapSec != nil && bitmapSec.Has("bitmap")
	} else {
		if repr == nil || bitmapSec == nil || dataSec == nil {
			return nil, nil, griberr.MalformedSectionf("message is missing a data section")
		}
		ind, err := bitmapSec.Int("bitMapIndicator")
		if err != nil {
			return nil, nil, err
		}
		switch ind {
		case BitmapPresent:
			hasBitmap = true
		case BitmapNone:
		default:
			return nil, nil, griberr.Unsupportedf("bitmap Section 6 contains unsupported bitmap indicator [%d]", ind)
		}
	}

	var bitmap []int64
	if hasBitmap {
		var err error
		if bitmap, err = bitmapSec.Ints("bitmap"); err != nil {
			return nil, nil, err
		}
		if len(bitmap) != n {
			return nil, nil, griberr.Unsupportedf("bitmap has %d points, grid has %d", len(bitmap), n)
		}
	}

	if bits := repr.IntOr("bitsPerValue", -1); bits == 0 && !dataSec.Has("codedValues") {
		// A constant field the codec did not expand.
		return make([]float64, n), maskOf(bitmap), nil
	}

	coded, err := dataSec.Floats("codedValues")
	if err != nil {
		return nil, nil, err
	}
	if bitmap == nil {
		if len(coded) != n {
			return nil, nil, griberr.Unsupportedf("%d coded values for %d grid points", len(coded), n)
		}
		return coded, nil, nil
	}
	mask := maskOf(bitmap)
	unmasked := 0
	for _, m := range mask {
		if !m {
			unmasked++
		}
	}
	if unmasked != len(coded) {
		return nil, nil, griberr.Unsupportedf("Shapes of data and bitmap do not match.")
	}
	values := make([]float64, n)
	k := 0
	for i, m := range mask {
		if !m {
			values[i] = coded[k]
			k++
		}
	}
	return values, mask, nil
}

func maskOf(bitmap []int64) []bool {
	if bitmap == nil {
		return nil
	}
	mask := make([]bool, len(bitmap))
	for i, b := range bitmap {
		mask[i] = b == 0
	}
	return mask
}

// EncodeValues stores values in m as coded values plus, when any point is
// masked, a bitmap.
func EncodeValues(m *Message, a *cube.MaskedArray) {
	bitmapSec, dataSec := m.Section(6), m.Section(7)
	if !a.AnyMasked() {
		bitmapSec.Set("bitMapIndicator", BitmapNone)
		bitmapSec.Delete("bitmap")
		dataSec.Set("codedValues", append([]float64(nil), a.Values...))
		return
	}
	bitmap := make([]int64, len(a.Values))
	var coded []float64
	for i, v := range a.Values {
		if a.Masked(i) {
			continue
		}
		bitmap[i] = 1
		coded = append(coded, v)
	}
	bitmapSec.Set("bitMapIndicator", BitmapPresent)
	bitmapSec.Set("bitmap", bitmap)
	dataSec.Set("codedValues", coded)
}
