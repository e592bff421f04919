package message

import (
	"fmt"

	"github.com/iancoleman/orderedmap"
	"github.com/pkg/errors"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/spf13/cast"
	"golang.org/x/exp/constraints"
)

// keyAliases lists alternative names under which a key may be stored.
var keyAliases = map[string][]string{
	"latitude":                          {"latitudes"},
	"latitudes":                         {"latitude"},
	"longitude":                         {"longitudes"},
	"longitudes":                        {"longitude"},
	"indicatorOfUnitForForecastTime":    {"indicatorOfUnitOfTimeRange"},
	"indicatorOfUnitOfTimeRange":        {"indicatorOfUnitForForecastTime"},
	"numberOfTimeRange":                 {"numberOfTimeRanges"},
	"numberOfTimeRanges":                {"numberOfTimeRange"},
	"numberOfPointsAlongXAxis":          {"Nx"},
	"numberOfPointsAlongYAxis":          {"Ny"},
	"xDirectionGridLengthInMillimetres": {"Dx"},
	"yDirectionGridLengthInMillimetres": {"Dy"},
	"Nx":                                {"numberOfPointsAlongXAxis"},
	"Ny":                                {"numberOfPointsAlongYAxis"},
	"Dx":                                {"xDirectionGridLengthInMillimetres"},
	"Dy":                                {"yDirectionGridLengthInMillimetres"},
}

// Section is an ordered set of named values decoded from one GRIB section.
//
// A nil value means the key is present but encoded as missing (all bits set,
// regulations 92.1.4 and 92.1.5). Integer values are stored as int64, real
// values as float64, arrays as []int64 or []float64.
type Section struct {
	Number int
	keys   *orderedmap.OrderedMap
}

// NewSection returns an empty section.
func NewSection(number int) *Section {
	return &Section{Number: number, keys: orderedmap.New()}
}

// Set stores v under key, replacing any aliased entry.
func (s *Section) Set(key string, v interface{}) {
	if _, ok := s.keys.Get(key); !ok {
		for _, alias := range keyAliases[key] {
			if _, ok := s.keys.Get(alias); ok {
				key = alias
				break
			}
		}
	}
	s.keys.Set(key, normalize(v))
}

// SetMissing marks key as encoded missing.
func (s *Section) SetMissing(key string) {
	s.Set(key, nil)
}

// Delete removes key.
func (s *Section) Delete(key string) {
	s.keys.Delete(key)
}

// Get returns the raw value of key and whether it is present.
func (s *Section) Get(key string) (interface{}, bool) {
	if v, ok := s.keys.Get(key); ok {
		return v, true
	}
	for _, alias := range keyAliases[key] {
		if v, ok := s.keys.Get(alias); ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether key is present, missing or not.
func (s *Section) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// IsMissing reports whether key is present and encoded as missing.
func (s *Section) IsMissing(key string) bool {
	v, ok := s.Get(key)
	return ok && v == nil
}

// Keys returns the keys in insertion order.
func (s *Section) Keys() []string {
	return s.keys.Keys()
}

// Len returns the number of keys.
func (s *Section) Len() int {
	return len(s.keys.Keys())
}

// Clone returns an independent copy of s.
func (s *Section) Clone() *Section {
	out := NewSection(s.Number)
	for _, k := range s.keys.Keys() {
		v, _ := s.keys.Get(k)
		switch t := v.(type) {
		case []int64:
			v = append([]int64(nil), t...)
		case []float64:
			v = append([]float64(nil), t...)
		}
		out.keys.Set(k, v)
	}
	return out
}

// MarshalJSON renders the keys in order.
func (s *Section) MarshalJSON() ([]byte, error) {
	return s.keys.MarshalJSON()
}

func (s *Section) String() string {
	out := fmt.Sprintf("section %d:", s.Number)
	for _, k := range s.keys.Keys() {
		v, _ := s.keys.Get(k)
		switch t := v.(type) {
		case nil:
			out += fmt.Sprintf(" %s=MISSING", k)
		case []int64:
			out += fmt.Sprintf(" %s=[%d values]", k, len(t))
		case []float64:
			out += fmt.Sprintf(" %s=[%d values]", k, len(t))
		default:
			out += fmt.Sprintf(" %s=%v", k, t)
		}
	}
	return out
}

func scalar[T constraints.Integer | constraints.Float](s *Section, key string, conv func(interface{}) (T, error)) (value T, present bool, err error) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false, griberr.MalformedSection(s.Number, key)
	}
	if v == nil {
		return 0, false, nil
	}
	out, err := conv(v)
	if err != nil {
		return 0, false, errors.Wrapf(err, "section %d key %q", s.Number, key)
	}
	return out, true, nil
}

// Int returns key as an integer. An absent or missing key is an error.
func (s *Section) Int(key string) (int64, error) {
	v, ok, err := scalar(s, key, cast.ToInt64E)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, griberr.MalformedSectionf("section %d: key %q is encoded as missing", s.Number, key)
	}
	return v, nil
}

// OptInt returns key as an integer. ok is false when the key is missing; an
// absent key is still an error.
func (s *Section) OptInt(key string) (v int64, ok bool, err error) {
	return scalar(s, key, cast.ToInt64E)
}

// IntOr returns key as an integer, or def when the key is absent or missing.
func (s *Section) IntOr(key string, def int64) int64 {
	v, ok, err := scalar(s, key, cast.ToInt64E)
	if err != nil || !ok {
		return def
	}
	return v
}

// Float returns key as a real. An absent or missing key is an error.
func (s *Section) Float(key string) (float64, error) {
	v, ok, err := scalar(s, key, cast.ToFloat64E)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, griberr.MalformedSectionf("section %d: key %q is encoded as missing", s.Number, key)
	}
	return v, nil
}

// OptFloat returns key as a real. ok is false when the key is missing.
func (s *Section) OptFloat(key string) (v float64, ok bool, err error) {
	return scalar(s, key, cast.ToFloat64E)
}

// Str returns key as a string.
func (s *Section) Str(key string) (string, error) {
	v, ok := s.Get(key)
	if !ok {
		return "", griberr.MalformedSection(s.Number, key)
	}
	return cast.ToStringE(v)
}

// Floats returns an array key as reals.
func (s *Section) Floats(key string) ([]float64, error) {
	v, ok := s.Get(key)
	if !ok {
		return nil, griberr.MalformedSection(s.Number, key)
	}
	switch t := v.(type) {
	case []float64:
		return t, nil
	case []int64:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, errors.Errorf("section %d key %q holds %T, want an array", s.Number, key, v)
}

// Ints returns an array key as integers.
func (s *Section) Ints(key string) ([]int64, error) {
	v, ok := s.Get(key)
	if !ok {
		return nil, griberr.MalformedSection(s.Number, key)
	}
	switch t := v.(type) {
	case []int64:
		return t, nil
	case []float64:
		out := make([]int64, len(t))
		for i, x := range t {
			out[i] = int64(x)
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, errors.Errorf("section %d key %q holds %T, want an array", s.Number, key, v)
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, int64, float64, string, []int64, []float64:
		return v
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case []int:
		return toInt64s(t)
	case []int32:
		return toInt64s(t)
	case []uint8:
		return toInt64s(t)
	case []float32:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
		return out
	case []interface{}:
		return normalizeSlice(t)
	}
	return v
}

func toInt64s[T constraints.Integer](in []T) []int64 {
	out := make([]int64, len(in))
	for i, x := range in {
		out[i] = int64(x)
	}
	return out
}

// normalizeSlice handles arrays decoded from self-describing formats.
func normalizeSlice(in []interface{}) interface{} {
	allInts := true
	for _, x := range in {
		if _, ok := normalize(x).(int64); !ok {
			allInts = false
			break
		}
	}
	if allInts {
		out := make([]int64, len(in))
		for i, x := range in {
			out[i] = normalize(x).(int64)
		}
		return out
	}
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = cast.ToFloat64(normalize(x))
	}
	return out
}
