// Package grib2 reads and writes GRIB edition 2 messages as keyed sections.
//
// GRIB2 is specified here: https://library.wmo.int/doc_num.php?explnum_id=11283
//
// Only the templates listed in layout.go are decoded field by field; other
// templates keep their section header keys so that translators can report
// them. Data values are supported for simple packing (template 5.0).
package grib2

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/internal/bitpack"
	"github.com/sdifrance/gribcube/message"
)

// DecodeOptions controls how much of a message is decoded.
type DecodeOptions struct {
	// Values requests the bitmap and the unpacked data values.
	Values bool
}

// Decode reads one GRIB2 message from the start of data. It returns the
// message and the number of bytes it occupies.
func Decode(data []byte, opts DecodeOptions) (*message.Message, int, error) {
	ind := &indicatorSection{}
	if err := ind.parseBytes(data); err != nil {
		return nil, 0, fmt.Errorf("error parsing indicator section: %w", err)
	}
	if int(ind.messageLength) > len(data) {
		return nil, 0, fmt.Errorf("message length is %d, but only %d bytes supplied", ind.messageLength, len(data))
	}
	data = data[:ind.messageLength]

	msg := message.New(2)
	sec0 := message.NewSection(0)
	sec0.Set("discipline", ind.discipline)
	sec0.Set("editionNumber", ind.edition)
	sec0.Set("totalLength", int64(ind.messageLength))
	msg.SetSection(sec0)

	start := 16
	for {
		if len(data)-start < 4 {
			return nil, 0, fmt.Errorf("message ends at byte %d without end section", start)
		}
		if string(data[start:start+4]) == "7777" {
			start += 4
			break
		}
		if len(data)-start < 5 {
			return nil, 0, fmt.Errorf("truncated section header at byte %d", start)
		}
		size := int(binary.BigEndian.Uint32(data[start:]))
		num := int(data[start+4])
		if size < 5 || start+size > len(data) {
			return nil, 0, fmt.Errorf("internal error: tried to read [%d:%d] from data array of length %d", start, start+size, len(data))
		}
		if msg.Section(num) != nil {
			return nil, 0, griberr.UnsupportedEditionFeaturef("section %d repeated: multiple fields per message are not supported", num)
		}
		sec := message.NewSection(num)
		if err := decodeSection(msg, sec, data[start+5:start+size], opts); err != nil {
			return nil, 0, fmt.Errorf("error parsing section %d: %w", num, err)
		}
		msg.SetSection(sec)
		start += size
	}
	if start != len(data) {
		return nil, 0, fmt.Errorf("consumed %d bytes, expected to consume %d based on message length in header", start, len(data))
	}
	return msg, start, nil
}

func decodeSection(msg *message.Message, sec *message.Section, body []byte, opts DecodeOptions) error {
	o := &octets{data: body}
	switch sec.Number {
	case 1:
		return decodeFields(o, sec, identification)
	case 2:
		sec.Set("section2Length", int64(len(body)+5))
		return nil
	case 3:
		if err := decodeFields(o, sec, gridHeader); err != nil {
			return err
		}
		template, _ := sec.Int("gridDefinitionTemplateNumber")
		layout, ok := gridTemplates[template]
		if !ok {
			glog.Warningf("grid definition template 3.%d is not decoded", template)
			return nil
		}
		if err := decodeFields(o, sec, layout); err != nil {
			return err
		}
		return decodePL(o, sec)
	case 4:
		if err := decodeFields(o, sec, productHeader); err != nil {
			return err
		}
		template, _ := sec.Int("productDefinitionTemplateNumber")
		layout, ok := productTemplates[template]
		if !ok {
			glog.Warningf("product definition template 4.%d is not decoded", template)
			return nil
		}
		if err := decodeFields(o, sec, layout); err != nil {
			return err
		}
		nv, _ := sec.Int("NV")
		pv := make([]float64, nv)
		for i := range pv {
			v, _, err := o.value(f4, false)
			if err != nil {
				return fmt.Errorf("pv[%d]: %w", i, err)
			}
			pv[i] = v.(float64)
		}
		sec.Set("pv", pv)
		return nil
	case 5:
		if err := decodeFields(o, sec, representationHeader); err != nil {
			return err
		}
		if template, _ := sec.Int("dataRepresentationTemplateNumber"); template == 0 {
			return decodeFields(o, sec, simplePacking)
		}
		return nil
	case 6:
		v, _, err := o.value(u1, false)
		if err != nil {
			return err
		}
		sec.Set("bitMapIndicator", v)
		if v.(int64) != message.BitmapPresent || !opts.Values {
			return nil
		}
		n, err := msg.Section(3).Int("numberOfDataPoints")
		if err != nil {
			return err
		}
		bitmap, err := bitpack.NewReader(body[1:]).Bits(int(n))
		if err != nil {
			return fmt.Errorf("bitmap: %w", err)
		}
		sec.Set("bitmap", bitmap)
		return nil
	case 7:
		if !opts.Values {
			return nil
		}
		return decodeValues(msg, sec, body)
	}
	glog.Warningf("skipping unknown section %d", sec.Number)
	return nil
}

// decodePL reads the optional list of points per row that follows the grid
// template of quasi-regular grids.
func decodePL(o *octets, sec *message.Section) error {
	width := sec.IntOr("numberOfOctectsForNumberOfPoints", 0)
	if width == 0 {
		return nil
	}
	var k kind
	switch width {
	case 1:
		k = u1
	case 2:
		k = u2
	case 4:
		k = u4
	default:
		return griberr.MalformedSectionf("unsupported width %d of the number of points list", width)
	}
	var pl []int64
	for o.remaining() >= int(width) {
		v, _, err := o.value(k, false)
		if err != nil {
			return err
		}
		pl = append(pl, v.(int64))
	}
	sec.Set("pl", pl)
	return nil
}

func decodeValues(msg *message.Message, sec *message.Section, body []byte) error {
	repr := msg.Section(5)
	if repr == nil {
		return griberr.MalformedSectionf("data section without data representation section")
	}
	template, err := repr.Int("dataRepresentationTemplateNumber")
	if err != nil {
		return err
	}
	if template != 0 {
		return griberr.UnsupportedEditionFeaturef("data representation template 5.%d cannot be unpacked", template)
	}
	n, err := repr.Int("numberOfValues")
	if err != nil {
		return err
	}
	p, err := readPacking(repr)
	if err != nil {
		return err
	}
	values, err := bitpack.Unpack(p, body, int(n))
	if err != nil {
		return err
	}
	sec.Set("codedValues", values)
	return nil
}

func readPacking(repr *message.Section) (bitpack.Params, error) {
	var p bitpack.Params
	var err error
	if p.Reference, err = repr.Float("referenceValue"); err != nil {
		return p, err
	}
	p.BinaryScale = int(repr.IntOr("binaryScaleFactor", 0))
	p.DecimalScale = int(repr.IntOr("decimalScaleFactor", 0))
	bits, err := repr.Int("bitsPerValue")
	if err != nil {
		return p, err
	}
	p.BitsPerValue = int(bits)
	return p, nil
}

type indicatorSection struct {
	discipline    byte
	edition       byte
	messageLength uint64
}

func (is *indicatorSection) parseBytes(data []byte) error {
	/* https://library.wmo.int/doc_num.php?explnum_id=11283

	92.2 Section 0 – Indicator section

	Section 0 – Indicator section
	Octet No. Contents
	1–4 GRIB (coded according to the International Alphabet No. 5)
	5–6 Reserved
	7 Discipline – GRIB Master table number (see Code table 0.0)
	8 GRIB edition number (currently 2)
	9–16 Total length of GRIB message in octets (including Section 0)
	*/

	if len(data) < 16 {
		return fmt.Errorf("invalid GRIB file < 16 bytes long")
	}
	data = data[0:16]
	if got, want := string(data[0:4]), "GRIB"; got != want {
		return fmt.Errorf("first four bytes = %q, want %q", got, want)
	}
	is.discipline = data[6]
	is.edition = data[7]
	if is.edition != 2 {
		return fmt.Errorf("got GRIB edition %d, expected edition 2", is.edition)
	}

	is.messageLength = binary.BigEndian.Uint64(data[8 : 8+8])

	glog.V(2).Infof("read indicator section %+v", is)

	return nil
}

// Encode serializes an edition 2 message. Values are taken from the
// codedValues key of section 7 and packed with simple packing, using
// bitsPerValue from section 5 when set and DefaultBitsPerValue otherwise.
func Encode(msg *message.Message) ([]byte, error) {
	if msg.Edition != 2 {
		return nil, griberr.UnsupportedEditionFeaturef("cannot encode GRIB edition %d", msg.Edition)
	}
	for _, n := range []int{0, 1, 3, 4, 6, 7} {
		if msg.Section(n) == nil {
			return nil, griberr.MalformedSectionf("message has no section %d", n)
		}
	}

	var body []byte
	appendSection := func(num int, b *builder) {
		body = binary.BigEndian.AppendUint32(body, uint32(len(b.buf)+5))
		body = append(body, byte(num))
		body = append(body, b.buf...)
	}

	b := &builder{}
	if err := encodeFields(b, msg.Section(1), identification); err != nil {
		return nil, errors.Wrap(err, "section 1")
	}
	appendSection(1, b)

	sec3 := msg.Section(3)
	b = &builder{}
	if err := encodeGrid(b, sec3); err != nil {
		return nil, errors.Wrap(err, "section 3")
	}
	appendSection(3, b)

	b = &builder{}
	if err := encodeProduct(b, msg.Section(4)); err != nil {
		return nil, errors.Wrap(err, "section 4")
	}
	appendSection(4, b)

	sec6, sec7 := msg.Section(6), msg.Section(7)
	coded, err := sec7.Floats("codedValues")
	if err != nil {
		return nil, errors.Wrap(err, "section 7")
	}
	bits := DefaultBitsPerValue
	if sec5 := msg.Section(5); sec5 != nil {
		if v := sec5.IntOr("bitsPerValue", 0); v > 0 && v <= 32 {
			bits = int(v)
		}
	}
	p, packed := bitpack.Pack(coded, bits)
	repr := message.NewSection(5)
	repr.Set("numberOfValues", len(coded))
	repr.Set("dataRepresentationTemplateNumber", 0)
	repr.Set("referenceValue", p.Reference)
	repr.Set("binaryScaleFactor", p.BinaryScale)
	repr.Set("decimalScaleFactor", p.DecimalScale)
	repr.Set("bitsPerValue", p.BitsPerValue)
	repr.Set("typeOfOriginalFieldValues", 0)
	b = &builder{}
	if err := encodeFields(b, repr, concat(representationHeader, simplePacking)); err != nil {
		return nil, errors.Wrap(err, "section 5")
	}
	appendSection(5, b)

	b = &builder{}
	ind := sec6.IntOr("bitMapIndicator", message.BitmapNone)
	if err := b.put(u1, ind, "bitMapIndicator"); err != nil {
		return nil, err
	}
	if ind == message.BitmapPresent {
		bitmap, err := sec6.Ints("bitmap")
		if err != nil {
			return nil, errors.Wrap(err, "section 6")
		}
		w := &bitpack.Writer{}
		for _, bit := range bitmap {
			w.Write(uint64(bit&1), 1)
		}
		b.buf = append(b.buf, w.Bytes()...)
	}
	appendSection(6, b)

	appendSection(7, &builder{buf: packed})

	out := []byte("GRIB")
	out = append(out, 0, 0, byte(msg.Section(0).IntOr("discipline", 0)), 2)
	out = binary.BigEndian.AppendUint64(out, uint64(16+len(body)+4))
	out = append(out, body...)
	out = append(out, "7777"...)
	return out, nil
}

func encodeGrid(b *builder, sec *message.Section) error {
	template, err := sec.Int("gridDefinitionTemplateNumber")
	if err != nil {
		return err
	}
	layout, ok := gridTemplates[template]
	if !ok {
		return griberr.UnsupportedEditionFeaturef("grid definition template 3.%d cannot be encoded", template)
	}
	if err := encodeFields(b, sec, concat(gridHeader, layout)); err != nil {
		return err
	}
	width := sec.IntOr("numberOfOctectsForNumberOfPoints", 0)
	if width == 0 {
		return nil
	}
	pl, err := sec.Ints("pl")
	if err != nil {
		return err
	}
	k := map[int64]kind{1: u1, 2: u2, 4: u4}[width]
	for _, v := range pl {
		if err := b.put(k, v, "pl"); err != nil {
			return err
		}
	}
	return nil
}

func encodeProduct(b *builder, sec *message.Section) error {
	template, err := sec.Int("productDefinitionTemplateNumber")
	if err != nil {
		return err
	}
	layout, ok := productTemplates[template]
	if !ok {
		return griberr.UnsupportedEditionFeaturef("product definition template 4.%d cannot be encoded", template)
	}
	var pv []float64
	if sec.Has("pv") {
		if pv, err = sec.Floats("pv"); err != nil {
			return err
		}
	}
	if nv := sec.IntOr("NV", 0); nv != int64(len(pv)) {
		return fmt.Errorf("NV = %d but pv holds %d values", nv, len(pv))
	}
	if err := encodeFields(b, sec, concat(productHeader, layout)); err != nil {
		return err
	}
	for _, v := range pv {
		if err := b.put(f4, v, "pv"); err != nil {
			return err
		}
	}
	return nil
}
