package phenom

import "fmt"

// Parameters of the WMO edition 1 table 2 that have a fixed meaning in every
// table version below 128.
var grib1International = map[int]CFName{
	11: {StandardName: "air_temperature", Units: "kelvin"},
	33: {StandardName: "x_wind", Units: "m s-1"},
	34: {StandardName: "y_wind", Units: "m s-1"},
}

// GRIB1Phenomenon translates an edition 1 parameter. The returned coordinate
// is non-nil for parameters that imply a fixed level. Local parameters with no
// mapping get an "UNKNOWN LOCAL PARAM" long name; international ones with no
// mapping report ok=false.
func GRIB1Phenomenon(p ParamCode) (cf CFName, fixed *FixedCoord, ok bool) {
	table, param := p.TableVersion(), p.Number
	if table < 128 && !(table == 1 && param >= 128) {
		cf, ok = grib1International[param]
		return cf, nil, ok
	}
	if name, coord, found := LookupConstrainedCF(p); found {
		return name, &coord, true
	}
	if name, found := LookupCF(p); found {
		return name, nil, true
	}
	return CFName{LongName: fmt.Sprintf("UNKNOWN LOCAL PARAM %d.%d", param, table), Units: "???"}, nil, true
}
