package grib2

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sdifrance/gribcube/message"
)

// octets reads fields sequentially from a section body.
type octets struct {
	data []byte
	pos  int
}

func (o *octets) remaining() int { return len(o.data) - o.pos }

func (o *octets) raw(n int) ([]byte, error) {
	if o.remaining() < n {
		return nil, fmt.Errorf("need %d octets at position %d, only %d remain", n, o.pos, o.remaining())
	}
	b := o.data[o.pos : o.pos+n]
	o.pos += n
	return b, nil
}

// value decodes one scalar. ok is false for an all-ones value of a field that
// may be missing.
func (o *octets) value(k kind, missing bool) (v interface{}, ok bool, err error) {
	b, err := o.raw(k.size())
	if err != nil {
		return nil, false, err
	}
	if k == f4 {
		bits := binary.BigEndian.Uint32(b)
		if missing && bits == math.MaxUint32 {
			return nil, false, nil
		}
		return float64(math.Float32frombits(bits)), true, nil
	}
	var u uint64
	for _, x := range b {
		u = u<<8 | uint64(x)
	}
	allOnes := uint64(1)<<(8*uint(len(b))) - 1
	if missing && u == allOnes {
		return nil, false, nil
	}
	if !k.signed() {
		return int64(u), true, nil
	}
	// A negative value is indicated by setting the most significant bit to 1.
	signBit := uint64(1) << (8*uint(len(b)) - 1)
	if u&signBit != 0 {
		return -int64(u &^ signBit), true, nil
	}
	return int64(u), true, nil
}

// decodeFields reads layout into sec.
func decodeFields(o *octets, sec *message.Section, layout []field) error {
	for _, fd := range layout {
		switch {
		case fd.group != nil:
			n, err := sec.Int(fd.count)
			if err != nil {
				return err
			}
			for i := int64(0); i < n; i++ {
				target := sec
				if i > 0 {
					// Extra repetitions are consumed but not kept.
					target = message.NewSection(sec.Number)
				}
				if err := decodeFields(o, target, fd.group); err != nil {
					return fmt.Errorf("%s[%d]: %w", fd.key, i, err)
				}
			}
		case fd.count != "":
			n, err := sec.Int(fd.count)
			if err != nil {
				return err
			}
			values := make([]int64, n)
			for i := range values {
				v, _, err := o.value(fd.kind, false)
				if err != nil {
					return fmt.Errorf("%s[%d]: %w", fd.key, i, err)
				}
				values[i] = v.(int64)
			}
			sec.Set(fd.key, values)
		default:
			v, ok, err := o.value(fd.kind, fd.missing)
			if err != nil {
				return fmt.Errorf("%s: %w", fd.key, err)
			}
			if !ok {
				sec.SetMissing(fd.key)
				continue
			}
			sec.Set(fd.key, v)
		}
	}
	return nil
}

// builder accumulates an encoded section body.
type builder struct {
	buf []byte
}

func (b *builder) put(k kind, v interface{}, key string) error {
	size := k.size()
	if v == nil {
		for i := 0; i < size; i++ {
			b.buf = append(b.buf, 0xff)
		}
		return nil
	}
	if k == f4 {
		x, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		b.buf = binary.BigEndian.AppendUint32(b.buf, math.Float32bits(float32(x)))
		return nil
	}
	x, err := toInt(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	bits := uint(8 * size)
	var u uint64
	if k.signed() {
		mag := x
		if mag < 0 {
			mag = -mag
		}
		if uint64(mag) >= uint64(1)<<(bits-1) {
			return fmt.Errorf("%s: value %d does not fit in %d signed octets", key, x, size)
		}
		u = uint64(mag)
		if x < 0 {
			u |= uint64(1) << (bits - 1)
		}
	} else {
		if x < 0 || uint64(x) > uint64(1)<<bits-1 {
			return fmt.Errorf("%s: value %d does not fit in %d unsigned octets", key, x, size)
		}
		u = uint64(x)
	}
	for i := size - 1; i >= 0; i-- {
		b.buf = append(b.buf, byte(u>>(8*uint(i))))
	}
	return nil
}

// encodeFields writes layout from sec. Absent keys encode as zero, or as
// missing when the field allows it.
func encodeFields(b *builder, sec *message.Section, layout []field) error {
	for _, fd := range layout {
		switch {
		case fd.group != nil:
			n := sec.IntOr(fd.count, 0)
			for i := int64(0); i < n; i++ {
				if err := encodeFields(b, sec, fd.group); err != nil {
					return err
				}
			}
		case fd.count != "":
			n := sec.IntOr(fd.count, 0)
			values, err := sec.Ints(fd.key)
			if err != nil {
				return err
			}
			if int64(len(values)) != n {
				return fmt.Errorf("%s has %d values, %s = %d", fd.key, len(values), fd.count, n)
			}
			for _, v := range values {
				if err := b.put(fd.kind, v, fd.key); err != nil {
					return err
				}
			}
		default:
			v, ok := sec.Get(fd.key)
			if !ok {
				if fd.missing {
					v = nil
				} else {
					v = int64(0)
				}
			}
			if v == nil && !fd.missing {
				return fmt.Errorf("%s cannot be encoded as missing", fd.key)
			}
			if err := b.put(fd.kind, v, fd.key); err != nil {
				return err
			}
		}
	}
	return nil
}

func toInt(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case float64:
		return int64(math.Round(t)), nil
	}
	return 0, fmt.Errorf("cannot encode %T as an integer", v)
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	}
	return 0, fmt.Errorf("cannot encode %T as a real", v)
}
