// Package grib1 contains a parser for GRIB messages that use edition 1.
//
// The specification for GRIB1 is available as PDF from
// https://library.wmo.int/idurl/4/35625 (WMO-No. 306, Volume I.2, FM 92 GRIB
// edition 1) and in an HTML format
// https://apps.ecmwf.int/codes/grib/format/grib1/sections/3/.
//
// Messages are decoded into keyed sections using ecCodes key names:
// section 1 is the product definition, 2 the grid description, 3 the bitmap
// and 4 the binary data. Only simple grid point packing can be unpacked.
package grib1

/*

During development of this library, it's useful to use grib_dump to inspect
the contents from the C library.
*/

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/hexademicalfloatingpoint"
	"github.com/sdifrance/gribcube/internal/bitpack"
	"github.com/sdifrance/gribcube/message"
)

// DecodeOptions controls how much of a message is decoded.
type DecodeOptions struct {
	// Values requests the bitmap and the unpacked data values.
	Values bool
}

// Read reads data from a raw GRIB file and returns a slice of parsed messages.
//
// Multiple messages may be present in a single .grib file.
func Read(data []byte, opts DecodeOptions) ([]*message.Message, error) {
	var out []*message.Message
	unconsumed := data
	offset := 0
	for len(unconsumed) > 0 {
		record, bytesRead, err := read1MaybeZeroPadded(unconsumed, opts)
		if err != nil {
			return nil, fmt.Errorf("error reading GRIB record @ byte offset %d: %w", offset, err)
		}
		if record != nil {
			length := record.Section(0).IntOr("totalLength", 0)
			record.Location = message.Location{
				Offset: int64(offset+bytesRead) - length,
				Length: length,
				Index:  len(out),
			}
			out = append(out, record)
		}
		unconsumed = unconsumed[bytesRead:]
		offset += bytesRead
	}
	return out, nil
}

func read1MaybeZeroPadded(data []byte, opts DecodeOptions) (*message.Message, int, error) {
	// It seems some files include zeros at the beginning. Read all the zeros before calling read1.
	zerosConsumed := 0
	for {
		if len(data) == 0 {
			return nil, zerosConsumed, nil
		}
		if data[0] == 0 {
			zerosConsumed++
			data = data[1:]
			continue
		}
		got, recordBytes, err := Read1(data, opts)
		return got, recordBytes + zerosConsumed, err
	}
}

// Read1 reads a single GRIB1 message from a byte array. It returns the message
// and the number of bytes it occupies.
func Read1(data []byte, opts DecodeOptions) (*message.Message, int, error) {
	msg := message.New(1)
	sec0 := message.NewSection(0)
	bytesRead, err := parseIndicator(data, sec0)
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing indicator section: %w", err)
	}
	msg.SetSection(sec0)
	unconsumed := data[bytesRead:]

	sec1 := message.NewSection(1)
	bytesRead, err = parseProductDefinition(unconsumed, sec1)
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing product definition section: %w", err)
	}
	msg.SetSection(sec1)
	unconsumed = unconsumed[bytesRead:]

	flags := sec1.IntOr("section1Flags", 0)
	if flags&section2Included != 0 {
		sec2 := message.NewSection(2)
		bytesRead, err = parseGridDescription(unconsumed, sec2)
		if err != nil {
			return nil, 0, fmt.Errorf("error parsing grid description section: %w", err)
		}
		msg.SetSection(sec2)
		unconsumed = unconsumed[bytesRead:]
	}

	if flags&section3Included != 0 {
		sec3 := message.NewSection(3)
		bytesRead, err = parseBitmap(unconsumed, sec3, msg, opts)
		if err != nil {
			return nil, 0, fmt.Errorf("error parsing bitmap section: %w", err)
		}
		msg.SetSection(sec3)
		unconsumed = unconsumed[bytesRead:]
	}

	sec4 := message.NewSection(4)
	bytesRead, err = parseBinaryData(unconsumed, sec4, msg, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing binary data section: %w", err)
	}
	msg.SetSection(sec4)
	unconsumed = unconsumed[bytesRead:]

	bytesRead, err = parseEnd(unconsumed)
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing end section: %w", err)
	}
	unconsumed = unconsumed[bytesRead:]

	consumedCount := len(data) - len(unconsumed)
	if want := int(sec0.IntOr("totalLength", 0)); consumedCount != want {
		extraInfo := ""
		if want > consumedCount {
			unconsumedBytes := data[consumedCount:want]
			if len(unconsumedBytes) < 100 {
				extraInfo = fmt.Sprintf("; unconsumed bytes = %+v (%q)", unconsumedBytes, string(unconsumedBytes))
			}
		}
		return nil, 0, fmt.Errorf("consumed %d bytes, expected to consume %d based on message length in header%s", consumedCount, want, extraInfo)
	}

	return msg, consumedCount, nil
}

func parseIndicator(data []byte, sec *message.Section) (int, error) {
	/* https://apps.ecmwf.int/codes/grib/format/grib1/overview

	Octets	Key	Type	Content
	1-4	identifier	ascii	GRIB (coded according to the CCITT International Alphabet No. 5)
	5-7	totalLength	unsigned	Total length of GRIB message (including Section 0)
	8	editionNumber	unsigned	GRIB edition number (currently 1)
	*/

	if len(data) < 8 {
		return 0, fmt.Errorf("invalid GRIB file < 8 bytes long")
	}
	if got, want := string(data[0:4]), "GRIB"; got != want {
		return 0, fmt.Errorf("first four bytes = %q, want %q", got, want)
	}
	if got, want := data[7], byte(1); got != want {
		return 0, fmt.Errorf("got GRIB edition %d, expected edition %d", got, want)
	}

	messageLength := parse3ByteUint(data[4], data[5], data[6])
	if int(messageLength) > len(data) {
		return 0, fmt.Errorf("message length is %d, but only %d bytes supplied", messageLength, len(data))
	}
	sec.Set("totalLength", messageLength)
	sec.Set("editionNumber", 1)
	return 8, nil
}

/*
	Code table 1 – Flag indication relative to Sections 2 and 3

Bit No. Value Meaning
1       0     Section 2 omitted
1       1     Section 2 included
2       0     Section 3 omitted
2       1     Section 3 included
Note: Bits enumerated from left to right.
*/
const (
	section2Included = 1 << 7
	section3Included = 1 << 6
)

// layerLevelTypes are the types of level (Code table 3) whose octets 11 and
// 12 hold the top and bottom of a layer rather than a single value.
var layerLevelTypes = map[int64]bool{
	101: true, 104: true, 106: true, 108: true, 110: true, 112: true,
	114: true, 116: true, 120: true, 121: true, 128: true, 141: true,
}

// TimeRangeP1Long is the time range indicator (Code table 5) for which P1
// occupies octets 19 and 20.
const TimeRangeP1Long = 10

func parseProductDefinition(data []byte, sec *message.Section) (int, error) {
	/* https://apps.ecmwf.int/codes/grib/format/grib1/sections/1/

	Octets	Key	Type	Content
	1-3	section1Length	unsigned	Length of section
	4	table2Version	unsigned	GRIB tables Version No. (currently 3 for international exchange) Version numbers 128-254 are reserved for local use
	5	centre	codetable	Identification of originating/generating centre (see Code table 0 = Common Code table C1 in Part C/c.)
	6	generatingProcessIdentifier	unsigned	Generating process identification number (allocated by originating centre)
	7	gridDefinition	unsigned	Grid definition (Number of grid used from catalogue defined by originating centre)
	8	section1Flags	codeflag	Flag (see Regulation 92.3.2 and Code table 1)
	9	indicatorOfParameter	codetable	Indicator of parameter (see Code table 2)
	10	indicatorOfTypeOfLevel	codetable	Indicator of type of level (see Code table 3)
	11-12			Height, pressure, etc. of levels (see Code table 3)
	13	yearOfCentury	unsigned	Year of century
	14	month	unsigned	Month      Reference time of data date and time of
	15	day	unsigned	Day          start of averaging or accumulation period
	16	hour	unsigned	Hour
	17	minute	unsigned	Minute
	18	unitOfTimeRange	codetable	Indicator of unit of time range (see Code table 4)
	19	P1	unsigned	P1 Period of time (number of time units) (0 for analyses or initialized analyses). Units of time given by octet 18
	20	P2	unsigned	P2 Period of time (number of time units); or Time interval between successive analyses, initialized analyses or forecasts, undergoing averaging or accumulation. Units of time given by octet 18
	21	timeRangeIndicator	codetable	Time range indicator (see Code table 5)
	22-23	numberIncludedInAverage	unsigned	Number included in average, when octet 21 (Code table 5) indicates an average or accumulation; otherwise set to zero
	24	numberMissingFromAveragesOrAccumulations	unsigned	Number missing from averages or accumulations
	25	centuryOfReferenceTimeOfData	unsigned	Century of reference time of data
	26	subCentre	codetable	Sub-centre identification (see common Code table C1 in Part C/c., Note (3))
	27-28	decimalScaleFactor	signed	Units decimal scale factor (D)
	29-40			Reserved: need not be present
	41-nn			Reserved for originating centre use
	*/

	if len(data) < 28 { // data[27] should be decimalScaleFactor
		return 0, fmt.Errorf("GRIB file section must be at least 28 bytes long")
	}
	length := parse3ByteUint(data[0], data[1], data[2])
	if int(length) > len(data) {
		return 0, fmt.Errorf("section 1 claims its length %d is greater than data size %d", length, len(data))
	}
	sec.Set("section1Length", length)
	sec.Set("table2Version", data[3])
	sec.Set("centre", data[4])
	sec.Set("generatingProcessIdentifier", data[5])
	sec.Set("gridDefinition", data[6])
	sec.Set("section1Flags", data[7])
	sec.Set("indicatorOfParameter", data[8])
	levelType := int64(data[9])
	sec.Set("indicatorOfTypeOfLevel", levelType)
	if layerLevelTypes[levelType] {
		sec.Set("topLevel", data[10])
		sec.Set("bottomLevel", data[11])
	} else {
		sec.Set("level", parse2ByteUint(data[10], data[11]))
	}
	sec.Set("yearOfCentury", data[12])
	sec.Set("month", data[13])
	sec.Set("day", data[14])
	sec.Set("hour", data[15])
	sec.Set("minute", data[16])
	sec.Set("unitOfTimeRange", data[17])
	timeRange := data[20]
	if timeRange == TimeRangeP1Long {
		sec.Set("P1", parse2ByteUint(data[18], data[19]))
		sec.Set("P2", 0)
	} else {
		sec.Set("P1", data[18])
		sec.Set("P2", data[19])
	}
	sec.Set("timeRangeIndicator", timeRange)
	sec.Set("numberIncludedInAverage", parse2ByteUint(data[21], data[22]))
	sec.Set("numberMissingFromAveragesOrAccumulations", data[23])
	sec.Set("centuryOfReferenceTimeOfData", data[24])
	sec.Set("subCentre", data[25])
	sec.Set("decimalScaleFactor", parse2ByteInt(data[26], data[27]))

	return int(length), nil
}

// Grid description field kinds. GRIB1 uses three octet integers for angles.
type kind int

const (
	u1 kind = iota
	u2
	u3
	s3
	ibm
)

func (k kind) size() int {
	switch k {
	case u1:
		return 1
	case u2:
		return 2
	case u3, s3:
		return 3
	}
	return 4
}

type field struct {
	key     string
	kind    kind
	missing bool
}

// reserved octets are skipped.
const reserved = ""

// latLonFields lays out octets 7 to 28 of the latitude/longitude, Gaussian
// and rotated grids. https://codes.ecmwf.int/grib/format/grib1/grids/0/
//
//	7-8	Ni	unsigned	Ni number of points along a parallel
//	9-10	Nj	unsigned	Nj number of points along a meridian
//	11-13	latitudeOfFirstGridPoint	signed	La1 latitude of first grid point
//	14-16	longitudeOfFirstGridPoint	signed	Lo1 longitude of first grid point
//	17	resolutionAndComponentFlags	codeflag	Resolution and component flags (see Code table 7)
//	18-20	latitudeOfLastGridPoint	signed	La2 latitude of last grid point
//	21-23	longitudeOfLastGridPoint	signed	Lo2 longitude of last grid point
//	24-25	iDirectionIncrement	unsigned	Di i direction increment
//	26-27	jDirectionIncrement	unsigned	Dj j direction increment (N for Gaussian grids)
//	28	scanningMode	codeflag	Scanning mode (flags see Flag/Code table 8)
//	29-32			Set to zero (reserved)
func latLonFields(last string) []field {
	return []field{
		{key: "Ni", kind: u2, missing: true},
		{key: "Nj", kind: u2},
		{key: "latitudeOfFirstGridPoint", kind: s3},
		{key: "longitudeOfFirstGridPoint", kind: s3},
		{key: "resolutionAndComponentFlags", kind: u1},
		{key: "latitudeOfLastGridPoint", kind: s3},
		{key: "longitudeOfLastGridPoint", kind: s3},
		{key: "iDirectionIncrement", kind: u2, missing: true},
		{key: last, kind: u2, missing: last == "jDirectionIncrement"},
		{key: "scanningMode", kind: u1},
	}
}

var gridFields = map[int64][]field{
	DataRepresentationTypeLL: latLonFields("jDirectionIncrement"),
	DataRepresentationTypeGG: latLonFields("N"),
	DataRepresentationType10: append(latLonFields("jDirectionIncrement"),
		field{key: reserved, kind: u2}, field{key: reserved, kind: u2},
		field{key: "latitudeOfSouthernPole", kind: s3},
		field{key: "longitudeOfSouthernPole", kind: s3},
		field{key: "angleOfRotationInDegrees", kind: ibm},
	),
	// https://codes.ecmwf.int/grib/format/grib1/grids/3/
	DataRepresentationTypeLC: {
		{key: "Nx", kind: u2},
		{key: "Ny", kind: u2},
		{key: "latitudeOfFirstGridPoint", kind: s3},
		{key: "longitudeOfFirstGridPoint", kind: s3},
		{key: "resolutionAndComponentFlags", kind: u1},
		{key: "LoV", kind: s3},
		{key: "DxInMetres", kind: u3},
		{key: "DyInMetres", kind: u3},
		{key: "projectionCentreFlag", kind: u1},
		{key: "scanningMode", kind: u1},
		{key: "Latin1", kind: s3},
		{key: "Latin2", kind: s3},
		{key: "latitudeOfSouthernPole", kind: s3},
		{key: "longitudeOfSouthernPole", kind: s3},
	},
	// https://codes.ecmwf.int/grib/format/grib1/grids/5/
	DataRepresentationTypePS: {
		{key: "Nx", kind: u2},
		{key: "Ny", kind: u2},
		{key: "latitudeOfFirstGridPoint", kind: s3},
		{key: "longitudeOfFirstGridPoint", kind: s3},
		{key: "resolutionAndComponentFlags", kind: u1},
		{key: "LoV", kind: s3},
		{key: "DxInMetres", kind: u3},
		{key: "DyInMetres", kind: u3},
		{key: "projectionCentreFlag", kind: u1},
		{key: "scanningMode", kind: u1},
	},
}

func decodeFields(data []byte, sec *message.Section, fields []field) error {
	pos := 0
	for _, fd := range fields {
		n := fd.kind.size()
		if pos+n > len(data) {
			return griberr.MalformedSectionf("grid description ends before %s", fd.key)
		}
		b := data[pos : pos+n]
		pos += n
		if fd.key == reserved {
			continue
		}
		var v interface{}
		switch fd.kind {
		case u1:
			v = int64(b[0])
		case u2:
			v = int64(parse2ByteUint(b[0], b[1]))
		case u3:
			v = int64(parse3ByteUint(b[0], b[1], b[2]))
		case s3:
			v = int64(parse3ByteInt(b[0], b[1], b[2]))
		case ibm:
			v = hexademicalfloatingpoint.Parse32(b)
		}
		if u, ok := v.(int64); ok && fd.missing && u == int64(1)<<(8*uint(n))-1 {
			sec.SetMissing(fd.key)
			continue
		}
		sec.Set(fd.key, v)
	}
	return nil
}

func parseGridDescription(data []byte, sec *message.Section) (int, error) {
	/* https://apps.ecmwf.int/codes/grib/format/grib1/sections/2/

	Octets	Key	Type	Content
	1-3	section2Length	unsigned	Length of section (octets)
	4	numberOfVerticalCoordinateValues	unsigned	NV number of vertical coordinate parameters
	5	pvlLocation	unsigned	PV location (octet number) of the list of vertical coordinate parameters, if present; or PL location (octet number) of the list of numbers of points in each row (if no vertical coordinate parameters are present), if present; or 255 (all bits set to 1) if neither are present
	6	dataRepresentationType	codetable	Data representation type (see Code table 6)
	7-32			Grid definition (according to data representation type octet 6 above)
	33-42			Extensions of grid definition for rotation or stretching of the coordinate system or Lambert conformal projection or Mercator projection
	33-44			Extensions of grid definition for space view perspective projection
	33-52			Extensions of grid definition for stretched and rotated coordinate system
	PV			List of vertical coordinate parameters (length = NV × 4 octets); if present, then PL = 4NV + PV
	PL			List of numbers of points in each row (length = NROWS x 2 octets, where NROWS is the total number of rows defined within the grid description)
	*/

	if len(data) < 6 {
		return 0, fmt.Errorf("GRIB file section must be at least 6 bytes long, got %d", len(data))
	}
	length := int(parse3ByteUint(data[0], data[1], data[2]))
	if length > len(data) || length < 6 {
		return 0, fmt.Errorf("section 2 claims length %d, data size is %d", length, len(data))
	}
	data = data[:length]
	nv := int(data[3])
	pvl := int(data[4])
	drt := int64(data[5])
	sec.Set("section2Length", length)
	sec.Set("NV", nv)
	sec.Set("pvlLocation", pvl)
	sec.Set("dataRepresentationType", drt)

	fields, ok := gridFields[drt]
	if !ok {
		// Don't attempt to parse the remaining bytes.
		glog.Warningf("GRIB1 data representation type %d is not decoded", drt)
		return length, nil
	}
	if err := decodeFields(data[6:], sec, fields); err != nil {
		return 0, err
	}

	if pvl == 255 || pvl == 0 {
		return length, nil
	}
	pos := pvl - 1
	if pos+4*nv > length {
		return 0, griberr.MalformedSectionf("%d vertical coordinates at octet %d overrun section 2 of %d octets", nv, pvl, length)
	}
	if nv > 0 {
		pv := make([]float64, nv)
		for i := range pv {
			pv[i] = hexademicalfloatingpoint.Parse32(data[pos : pos+4])
			pos += 4
		}
		sec.Set("pv", pv)
	}
	if sec.IsMissing("Ni") {
		rows := int(sec.IntOr("Nj", 0))
		if pos+2*rows > length {
			return 0, griberr.MalformedSectionf("%d row lengths at octet %d overrun section 2 of %d octets", rows, pos+1, length)
		}
		pl := make([]int64, rows)
		for i := range pl {
			pl[i] = int64(parse2ByteUint(data[pos], data[pos+1]))
			pos += 2
		}
		sec.Set("pl", pl)
	}
	return length, nil
}

// NumberOfPoints returns the number of grid points described by the grid
// description section sec2.
func NumberOfPoints(sec2 *message.Section) (int, error) {
	if pl, err := sec2.Ints("pl"); err == nil {
		n := 0
		for _, v := range pl {
			n += int(v)
		}
		return n, nil
	}
	x, y := "Ni", "Nj"
	if sec2.Has("Nx") {
		x, y = "Nx", "Ny"
	}
	nx, err := sec2.Int(x)
	if err != nil {
		return 0, err
	}
	ny, err := sec2.Int(y)
	if err != nil {
		return 0, err
	}
	return int(nx * ny), nil
}

func parseBitmap(data []byte, sec *message.Section, msg *message.Message, opts DecodeOptions) (int, error) {
	/* https://apps.ecmwf.int/codes/grib/format/grib1/sections/3/

	Octets	Key	Type	Content
	1-3	section3Length	unsigned	Length of section (octets)
	4	numberOfUnusedBitsAtEndOfSection3	unsigned	Number of unused bits at end of Section 3
	5-6	tableReference	unsigned	Table reference: If the octets contain zero, a bit-map follows. If the octets contain a number, it refers to a predetermined bit-map provided by the centre
	7-nn			The bit-map contiguous bits with a bit to data point correspondence, ordered as defined in the grid definition
	*/

	if len(data) < 6 {
		return 0, fmt.Errorf("GRIB file section must be at least 6 bytes long, got %d", len(data))
	}
	length := int(parse3ByteUint(data[0], data[1], data[2]))
	if length > len(data) || length < 6 {
		return 0, fmt.Errorf("section 3 claims length %d, data size is %d", length, len(data))
	}
	unused := int(data[3])
	table := parse2ByteUint(data[4], data[5])
	sec.Set("section3Length", length)
	sec.Set("numberOfUnusedBitsAtEndOfSection3", unused)
	sec.Set("tableReference", table)
	if !opts.Values {
		return length, nil
	}
	if table != 0 {
		return 0, griberr.UnsupportedEditionFeaturef("predefined bitmap %d", table)
	}
	n := 8*(length-6) - unused
	if sec2 := msg.Section(2); sec2 != nil {
		if points, err := NumberOfPoints(sec2); err == nil {
			n = points
		}
	}
	bitmap, err := bitpack.NewReader(data[6:length]).Bits(n)
	if err != nil {
		return 0, fmt.Errorf("bitmap: %w", err)
	}
	sec.Set("bitmap", bitmap)
	return length, nil
}

// Binary data flags (Code table 11). https://codes.ecmwf.int/grib/format/grib1/flag/11/
const (
	binaryDataFlagSphericalHarmonicCoefficients = 1 << (8 - 1)
	binaryDataFlagComplexOrSecondOrderPacking   = 1 << (8 - 2)
	binaryDataFlagIntegerValues                 = 1 << (8 - 3)
)

func parseBinaryData(data []byte, sec *message.Section, msg *message.Message, opts DecodeOptions) (int, error) {
	/* https://codes.ecmwf.int/grib/format/grib1/sections/4/

	1-3	section4Length	unsigned	Length of section
	4	dataFlag	codeflag	Flag (see Code table 11) (first 4 bits). Number of unused bits at end of Section 4 (last 4 bits)
	5-6	binaryScaleFactor	signed	Scale factor (E)
	7-10	referenceValue	real	Reference value (minimum of packed values)
	11	bitsPerValue	unsigned	Number of bits containing each packed value
	12-nn			Variable, depending on the flag value in octet 4
	*/

	if len(data) < 11 {
		return 0, fmt.Errorf("GRIB file section must be at least 11 bytes long, got %d", len(data))
	}
	length := int(parse3ByteUint(data[0], data[1], data[2]))
	if length > len(data) || length < 11 {
		return 0, fmt.Errorf("section 4 claims length %d, data size is %d", length, len(data))
	}
	flag := int64(data[3])
	p := bitpack.Params{
		BinaryScale:  int(parse2ByteInt(data[4], data[5])),
		Reference:    hexademicalfloatingpoint.Parse32(data[6:10]),
		BitsPerValue: int(data[10]),
		DecimalScale: int(msg.Section(1).IntOr("decimalScaleFactor", 0)),
	}
	sec.Set("section4Length", length)
	sec.Set("dataFlag", flag)
	sec.Set("binaryScaleFactor", p.BinaryScale)
	sec.Set("referenceValue", p.Reference)
	sec.Set("bitsPerValue", p.BitsPerValue)
	if !opts.Values {
		return length, nil
	}

	// Data shall be coded in the form of non-negative scaled differences from a
	// reference value: Y × 10^D = R + X × 2^E.
	if flag&(binaryDataFlagSphericalHarmonicCoefficients|binaryDataFlagComplexOrSecondOrderPacking) != 0 {
		return 0, griberr.UnsupportedEditionFeaturef("GRIB1 data flag %#x: only simple grid point packing is supported", flag)
	}
	n, err := codedValueCount(msg, data[11:length], flag, p.BitsPerValue)
	if err != nil {
		return 0, err
	}
	values, err := bitpack.Unpack(p, data[11:length], n)
	if err != nil {
		return 0, err
	}
	sec.Set("codedValues", values)
	return length, nil
}

// codedValueCount is the number of unmasked grid points when the grid is
// known, otherwise the number of values the section holds.
func codedValueCount(msg *message.Message, body []byte, flag int64, bits int) (int, error) {
	if sec2 := msg.Section(2); sec2 != nil {
		if n, err := NumberOfPoints(sec2); err == nil {
			if sec3 := msg.Section(3); sec3 != nil {
				bitmap, err := sec3.Ints("bitmap")
				if err != nil {
					return 0, err
				}
				n = 0
				for _, b := range bitmap {
					n += int(b)
				}
			}
			return n, nil
		}
	}
	if bits == 0 {
		return 0, griberr.MalformedSectionf("constant field without a grid description")
	}
	unused := int(flag & 0x0f)
	return (8*len(body) - unused) / bits, nil
}

func parseEnd(data []byte) (int, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("got end section length %d, expected data length of at least 4", len(data))
	}
	if got, want := string(data[0:4]), "7777"; got != want {
		return 0, fmt.Errorf("got end sequence %q, want %q", got, want)
	}
	return 4, nil
}

/*
Note on endinaness:

SPECIFICATIONS OF OCTET CONTENTS
Notes:
(1) Octets are numbered 1, 2, 3, etc., starting at the beginning of each section.
(2) In the following, bit positions within octets are referred to as bit 1 to bit 8, where bit 1 is the most significant and bit
8 is the least significant bit. Thus, an octet with only bit 8 set to 1 would have the integer value 1.

*/

func parse4ByteUint(byte0, byte1, byte2, byte3 byte) uint32 {
	return binary.BigEndian.Uint32([]byte{byte0, byte1, byte2, byte3})
}

func parse3ByteUint(byte0, byte1, byte2 byte) uint32 {
	return parse4ByteUint(0, byte0, byte1, byte2)
}

func parse2ByteUint(byte0, byte1 byte) uint32 {
	return parse3ByteUint(0, byte0, byte1)
}

func parse2ByteInt(byte0, byte1 byte) int32 {
	// A negative value of D shall be indicated by setting the high-order bit (bit 1) in the left-hand octet to 1 (on).
	unsigned := parse2ByteUint(byte0, byte1)
	absValue := (unsigned & 0b0111111111111111)
	negative := unsigned&(1<<15) != 0
	if negative {
		return -1 * int32(absValue)
	}
	return int32(absValue)
}

func parse3ByteInt(byte0, byte1, byte2 byte) int32 {
	unsigned := parse3ByteUint(byte0, byte1, byte2)
	absValue := (unsigned & 0b011111111111111111111111)
	negative := unsigned&(1<<23) != 0
	if negative {
		return -1 * int32(absValue)
	}
	return int32(absValue)
}

// Units of time (Code table 4). See
// https://github.com/ecmwf/eccodes/blob/fd549250dc5fe8f7f07dd242b8e781f73982735f/definitions/grib1/4.table
const (
	UnitOfTimeMinute    = 0
	UnitOfTimeHour      = 1
	UnitOfTimeDay       = 2
	UnitOfTimeMonth     = 3
	UnitOfTimeYear      = 4
	UnitOfTimeDecade    = 5
	UnitOfTimeNormal    = 6
	UnitOfTimeCentury   = 7
	UnitOfTime3Hours    = 10
	UnitOfTime6Hours    = 11
	UnitOfTime12Hours   = 12
	UnitOfTime15Minutes = 13
	UnitOfTime30Minutes = 14
	UnitOfTimeSecond    = 254
)

// Data representation types (Code table 6) this package decodes.
const (
	// DataRepresentationTypeLL indicates Latitude/Longitude Grid.
	DataRepresentationTypeLL = 0
	// DataRepresentationTypeLC indicates Lambert Conformal.
	DataRepresentationTypeLC = 3
	// DataRepresentationTypeGG indicates Gaussian Latitude/Longitude Grid.
	DataRepresentationTypeGG = 4
	// DataRepresentationTypePS indicates Polar Stereographic Projection Grid.
	DataRepresentationTypePS = 5
	// DataRepresentationType10 indicates Rotated Latitude/Longitude grid.
	DataRepresentationType10 = 10
)

// Resolution and component flags (Code table 7).
const (
	DirectionIncrementsGiven     = 1 << 7
	EarthAssumedOblateSpheroidal = 1 << 6
	UVResolvedGrid               = 1 << 3
)

// Scanning mode flags (Code table 8).
const (
	PointsScanInMinusIDirection    = 1 << 7
	PointsScanInPlusJDirection     = 1 << 6
	AdjPointsJDirectionConsecutive = 1 << 5
)
