package grib2

// kind is the encoding of one field.
type kind int

const (
	u1 kind = iota // unsigned, 1 octet
	u2
	u4
	s1 // sign and magnitude, 1 octet
	s2
	s4
	f4 // IEEE 754 single precision
)

func (k kind) size() int {
	switch k {
	case u1, s1:
		return 1
	case u2, s2:
		return 2
	}
	return 4
}

func (k kind) signed() bool {
	return k == s1 || k == s2 || k == s4
}

// field is one entry of a section layout. Fields flagged missing decode an
// all-ones value as missing (regulation 92.1.4). A non-empty count makes the
// field an array whose length is the value of the count key. A non-empty
// group repeats its fields count times; only the first repetition is kept.
type field struct {
	key     string
	kind    kind
	missing bool
	count   string
	group   []field
}

func f(key string, k kind) field { return field{key: key, kind: k} }
func m(key string, k kind) field { return field{key: key, kind: k, missing: true} }
func list(key string, k kind, count string) field {
	return field{key: key, kind: k, count: count}
}

func concat(parts ...[]field) []field {
	var out []field
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

/*
	Section 1 - Identification section

Octet No.  Contents
6–7   Identification of originating/generating centre (see Common Code table C-11)
8–9   Identification of originating/generating sub-centre (allocated by originating/generating centre)
10    GRIB master tables version number (see Code table 1.0)
11    Version number of GRIB local tables used to augment Master Tables (see Code table 1.1)
12    Significance of reference time (see Code table 1.2)
13–14 Year (4 digits)
15    Month
16    Day
17    Hour
18    Minute
19    Second
20    Production status of processed data in this GRIB message (see Code table 1.3)
21    Type of processed data in this GRIB message (see Code table 1.4)
*/
var identification = []field{
	f("centre", u2),
	f("subCentre", u2),
	f("tablesVersion", u1),
	f("localTablesVersion", u1),
	f("significanceOfReferenceTime", u1),
	f("year", u2),
	f("month", u1),
	f("day", u1),
	f("hour", u1),
	f("minute", u1),
	f("second", u1),
	f("productionStatusOfProcessedData", u1),
	f("typeOfProcessedData", u1),
}

/*
	Section 3 - Grid definition section

Octet No.  Contents
6     Source of grid definition (see Code table 3.0 and Note 1)
7–10  Number of data points
11    Number of octets for optional list of numbers defining number of points (see Note 2)
12    Interpretation of list of numbers defining number of points (see Code table 3.11)
13–14 Grid definition template number (= N) (see Code table 3.1)
15–xx Grid definition template (see Template 3.N, where N is the grid definition template

	number given in octets 13–14)
*/
var gridHeader = []field{
	f("sourceOfGridDefinition", u1),
	f("numberOfDataPoints", u4),
	f("numberOfOctectsForNumberOfPoints", u1),
	f("interpretationOfNumberOfPoints", u1),
	f("gridDefinitionTemplateNumber", u2),
}

// Octets 15-30 of every grid template: shape of the earth (Code table 3.2).
var earth = []field{
	f("shapeOfTheEarth", u1),
	m("scaleFactorOfRadiusOfSphericalEarth", u1),
	m("scaledValueOfRadiusOfSphericalEarth", u4),
	m("scaleFactorOfEarthMajorAxis", u1),
	m("scaledValueOfEarthMajorAxis", u4),
	m("scaleFactorOfEarthMinorAxis", u1),
	m("scaledValueOfEarthMinorAxis", u4),
}

var latLonBody = []field{
	f("Ni", u4),
	f("Nj", u4),
	f("basicAngleOfTheInitialProductionDomain", u4),
	m("subdivisionsOfBasicAngle", u4),
	f("latitudeOfFirstGridPoint", s4),
	f("longitudeOfFirstGridPoint", s4),
	f("resolutionAndComponentFlags", u1),
	f("latitudeOfLastGridPoint", s4),
	f("longitudeOfLastGridPoint", s4),
	m("iDirectionIncrement", u4),
}

var rotation = []field{
	f("latitudeOfSouthernPole", s4),
	f("longitudeOfSouthernPole", s4),
	f("angleOfRotation", f4),
}

var irregularBody = []field{
	f("Ni", u4),
	f("Nj", u4),
	f("basicAngleOfTheInitialProductionDomain", u4),
	m("subdivisionsOfBasicAngle", u4),
	f("resolutionAndComponentFlags", u1),
	f("scanningMode", u1),
}

var irregularLists = []field{
	list("longitude", s4, "Ni"),
	list("latitude", s4, "Nj"),
}

// gridTemplates maps a grid definition template number to the layout of
// octets 15 onward.
var gridTemplates = map[int64][]field{
	// 3.0 Latitude/longitude
	0: concat(earth, latLonBody, []field{m("jDirectionIncrement", u4), f("scanningMode", u1)}),
	// 3.1 Rotated latitude/longitude
	1: concat(earth, latLonBody, []field{m("jDirectionIncrement", u4), f("scanningMode", u1)}, rotation),
	// 3.4 Variable resolution latitude/longitude
	4: concat(earth, irregularBody, irregularLists),
	// 3.5 Variable resolution rotated latitude/longitude
	5: concat(earth, irregularBody, rotation, irregularLists),
	// 3.10 Mercator
	10: concat(earth, []field{
		f("Ni", u4),
		f("Nj", u4),
		f("latitudeOfFirstGridPoint", s4),
		f("longitudeOfFirstGridPoint", s4),
		f("resolutionAndComponentFlags", u1),
		f("LaD", s4),
		f("latitudeOfLastGridPoint", s4),
		f("longitudeOfLastGridPoint", s4),
		f("scanningMode", u1),
		f("orientationOfTheGrid", s4),
		f("Di", u4),
		f("Dj", u4),
	}),
	// 3.12 Transverse Mercator
	12: concat(earth, []field{
		f("Ni", u4),
		f("Nj", u4),
		f("latitudeOfReferencePoint", s4),
		f("longitudeOfReferencePoint", s4),
		f("resolutionAndComponentFlags", u1),
		f("scaleFactorAtReferencePoint", f4),
		f("XR", s4),
		f("YR", s4),
		f("scanningMode", u1),
		f("Di", u4),
		f("Dj", u4),
		f("X1", s4),
		f("Y1", s4),
		f("X2", s4),
		f("Y2", s4),
	}),
	// 3.20 Polar stereographic
	20: concat(earth, []field{
		f("Nx", u4),
		f("Ny", u4),
		f("latitudeOfFirstGridPoint", s4),
		f("longitudeOfFirstGridPoint", s4),
		f("resolutionAndComponentFlags", u1),
		f("LaD", s4),
		f("orientationOfTheGrid", s4),
		f("Dx", u4),
		f("Dy", u4),
		f("projectionCentreFlag", u1),
		f("scanningMode", u1),
	}),
	// 3.30 Lambert conformal
	30: concat(earth, []field{
		f("Nx", u4),
		f("Ny", u4),
		f("latitudeOfFirstGridPoint", s4),
		f("longitudeOfFirstGridPoint", s4),
		f("resolutionAndComponentFlags", u1),
		f("LaD", s4),
		f("LoV", s4),
		f("Dx", u4),
		f("Dy", u4),
		f("projectionCentreFlag", u1),
		f("scanningMode", u1),
		f("Latin1", s4),
		f("Latin2", s4),
		f("latitudeOfSouthernPole", s4),
		f("longitudeOfSouthernPole", s4),
	}),
	// 3.40 Gaussian latitude/longitude
	40: concat(earth, latLonBody, []field{f("N", u4), f("scanningMode", u1)}),
	// 3.90 Space view perspective or orthographic
	90: concat(earth, []field{
		f("Nx", u4),
		f("Ny", u4),
		f("latitudeOfSubSatellitePoint", s4),
		f("longitudeOfSubSatellitePoint", s4),
		f("resolutionAndComponentFlags", u1),
		f("dx", u4),
		f("dy", u4),
		f("Xp", u4),
		f("Yp", u4),
		f("scanningMode", u1),
		f("orientationOfTheGrid", s4),
		m("Nr", u4),
		f("Xo", u4),
		f("Yo", u4),
	}),
	// 3.140 Lambert azimuthal equal area
	140: concat(earth, []field{
		f("numberOfPointsAlongXAxis", u4),
		f("numberOfPointsAlongYAxis", u4),
		f("latitudeOfFirstGridPoint", s4),
		f("longitudeOfFirstGridPoint", s4),
		f("standardParallelInMicrodegrees", s4),
		f("centralLongitudeInMicrodegrees", s4),
		f("resolutionAndComponentFlags", u1),
		f("xDirectionGridLengthInMillimetres", u4),
		f("yDirectionGridLengthInMillimetres", u4),
		f("scanningMode", u1),
	}),
}

/*
	Section 4 - Product definition section

Octet No.  Contents
6–7   Number of coordinate values after template (see Note 1)
8–9   Product definition template number (see Code table 4.0)
10–xx Product definition template (see product template 4.X, where X is the

	number given in octets 8–9)

[xx+1]–nn Optional list of coordinate values (see Notes 2 and 3)
*/
var productHeader = []field{
	f("NV", u2),
	f("productDefinitionTemplateNumber", u2),
}

var generating = []field{
	f("typeOfGeneratingProcess", u1),
	f("backgroundProcess", u1),
	f("generatingProcessIdentifier", u1),
	m("hoursAfterDataCutoff", u2),
	m("minutesAfterDataCutoff", u1),
	f("indicatorOfUnitOfTimeRange", u1),
	f("forecastTime", u4),
	m("typeOfFirstFixedSurface", u1),
	m("scaleFactorOfFirstFixedSurface", s1),
	m("scaledValueOfFirstFixedSurface", u4),
	m("typeOfSecondFixedSurface", u1),
	m("scaleFactorOfSecondFixedSurface", s1),
	m("scaledValueOfSecondFixedSurface", u4),
}

var parameter = []field{
	f("parameterCategory", u1),
	f("parameterNumber", u1),
}

var ensemble = []field{
	f("typeOfEnsembleForecast", u1),
	f("perturbationNumber", u1),
	f("numberOfForecastsInEnsemble", u1),
}

var probability = []field{
	f("forecastProbabilityNumber", u1),
	f("totalNumberOfForecastProbabilities", u1),
	f("probabilityType", u1),
	m("scaleFactorOfLowerLimit", s1),
	m("scaledValueOfLowerLimit", s4),
	m("scaleFactorOfUpperLimit", s1),
	m("scaledValueOfUpperLimit", s4),
}

var percentile = []field{f("percentileValue", u1)}

// Statistical processing over a time interval, common to templates 4.8 to 4.12.
var interval = []field{
	f("yearOfEndOfOverallTimeInterval", u2),
	f("monthOfEndOfOverallTimeInterval", u1),
	f("dayOfEndOfOverallTimeInterval", u1),
	f("hourOfEndOfOverallTimeInterval", u1),
	f("minuteOfEndOfOverallTimeInterval", u1),
	f("secondOfEndOfOverallTimeInterval", u1),
	f("numberOfTimeRange", u1),
	f("numberOfMissingInStatisticalProcess", u4),
	{key: "timeRanges", count: "numberOfTimeRange", group: []field{
		f("typeOfStatisticalProcessing", u1),
		f("typeOfTimeIncrement", u1),
		f("indicatorOfUnitForTimeRange", u1),
		f("lengthOfTimeRange", u4),
		f("indicatorOfUnitForTimeIncrement", u1),
		m("timeIncrement", u4),
	}},
}

var spatial = []field{
	f("statisticalProcess", u1),
	f("spatialProcessing", u1),
	f("numberOfPointsUsed", u1),
}

// productTemplates maps a product definition template number to the layout
// of octets 10 onward.
var productTemplates = map[int64][]field{
	0:  concat(parameter, generating),
	1:  concat(parameter, generating, ensemble),
	5:  concat(parameter, generating, probability),
	6:  concat(parameter, generating, percentile),
	8:  concat(parameter, generating, interval),
	9:  concat(parameter, generating, probability, interval),
	10: concat(parameter, generating, percentile, interval),
	11: concat(parameter, generating, ensemble, interval),
	15: concat(parameter, generating, spatial),
	40: concat(parameter, []field{f("constituentType", u2)}, generating),
}

/*
	Section 5 - Data representation section

Octet No.  Contents
6–9   Number of data points where one or more values are specified in Section 7 when a bit

	map is present, total number of data points when a bit map is absent

10–11 Data representation template number (see Code table 5.0)
12–nn Data representation template (see Template 5.X, where X is the number given in

	octets 10–11)
*/
var representationHeader = []field{
	f("numberOfValues", u4),
	f("dataRepresentationTemplateNumber", u2),
}

// Template 5.0 Grid point data - simple packing.
var simplePacking = []field{
	f("referenceValue", f4),
	f("binaryScaleFactor", s2),
	f("decimalScaleFactor", s2),
	f("bitsPerValue", u1),
	f("typeOfOriginalFieldValues", u1),
}
