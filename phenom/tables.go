package phenom

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed tables.toml
var tablesTOML string

// CFName is a CF phenomenon identity.
type CFName struct {
	StandardName string
	LongName     string
	Units        string
}

// Name returns the standard name, or the long name when there is none.
func (c CFName) Name() string {
	if c.StandardName != "" {
		return c.StandardName
	}
	return c.LongName
}

// FixedCoord is a scalar coordinate implied by a parameter, such as the 10 m
// height of a 10 m wind.
type FixedCoord struct {
	Name  string
	Units string
	Value float64
}

type cfEntry struct {
	StandardName string  `toml:"standard_name"`
	LongName     string  `toml:"long_name"`
	Units        string  `toml:"units"`
	Discipline   int     `toml:"discipline"`
	Category     int     `toml:"category"`
	Number       int     `toml:"number"`
	Table        int     `toml:"table"`
	Centre       int     `toml:"centre"`
	Param        int     `toml:"param"`
	CoordName    string  `toml:"coord_name"`
	CoordUnits   string  `toml:"coord_units"`
	CoordValue   float64 `toml:"coord_value"`
}

func (e cfEntry) cf() CFName {
	return CFName{StandardName: e.StandardName, LongName: e.LongName, Units: e.Units}
}

func (e cfEntry) fixed() FixedCoord {
	return FixedCoord{Name: e.CoordName, Units: e.CoordUnits, Value: e.CoordValue}
}

type tableFile struct {
	GRIB2                     []cfEntry `toml:"grib2"`
	GRIB1Local                []cfEntry `toml:"grib1_local"`
	GRIB1LocalConstrained     []cfEntry `toml:"grib1_local_constrained"`
	CFToGRIB2                 []cfEntry `toml:"cf_to_grib2"`
	CFToGRIB1Local            []cfEntry `toml:"cf_to_grib1_local"`
	CFConstrainedToGRIB1Local []cfEntry `toml:"cf_constrained_to_grib1_local"`
}

type constrainedCF struct {
	name  CFName
	coord FixedCoord
}

type nameKey struct {
	standardName, longName string
}

type constrainedKey struct {
	nameKey
	coord FixedCoord
}

type tables struct {
	toCF            map[ParamCode]CFName
	toCFConstrained map[ParamCode]constrainedCF
	toGRIB2         map[nameKey]ParamCode
	toGRIB1         map[nameKey]ParamCode
	toGRIB1Fixed    map[constrainedKey]ParamCode
}

var (
	loadOnce sync.Once
	loaded   *tables
	loadErr  error
)

func get() *tables {
	loadOnce.Do(func() {
		loaded, loadErr = parseTables(tablesTOML)
	})
	if loadErr != nil {
		// The table file is compiled in; failing to parse it is a build defect.
		panic(fmt.Sprintf("phenom: %v", loadErr))
	}
	return loaded
}

func parseTables(src string) (*tables, error) {
	var f tableFile
	if _, err := toml.Decode(src, &f); err != nil {
		return nil, fmt.Errorf("parsing phenomenon tables: %w", err)
	}
	t := &tables{
		toCF:            map[ParamCode]CFName{},
		toCFConstrained: map[ParamCode]constrainedCF{},
		toGRIB2:         map[nameKey]ParamCode{},
		toGRIB1:         map[nameKey]ParamCode{},
		toGRIB1Fixed:    map[constrainedKey]ParamCode{},
	}
	for _, e := range f.GRIB2 {
		t.toCF[GRIB2(e.Discipline, e.Category, e.Number)] = e.cf()
	}
	for _, e := range f.GRIB1Local {
		t.toCF[GRIB1(e.Table, e.Centre, e.Param)] = e.cf()
	}
	for _, e := range f.GRIB1LocalConstrained {
		t.toCFConstrained[GRIB1(e.Table, e.Centre, e.Param)] = constrainedCF{e.cf(), e.fixed()}
	}
	for _, e := range f.CFToGRIB2 {
		t.toGRIB2[keyFor(e.StandardName, e.LongName)] = GRIB2(e.Discipline, e.Category, e.Number)
	}
	for _, e := range f.CFToGRIB1Local {
		t.toGRIB1[keyFor(e.StandardName, e.LongName)] = GRIB1(e.Table, e.Centre, e.Param)
	}
	for _, e := range f.CFConstrainedToGRIB1Local {
		t.toGRIB1Fixed[constrainedKey{keyFor(e.StandardName, e.LongName), e.fixed()}] = GRIB1(e.Table, e.Centre, e.Param)
	}
	return t, nil
}

// keyFor ignores the long name whenever a standard name is present.
func keyFor(standardName, longName string) nameKey {
	if standardName != "" {
		return nameKey{standardName: standardName}
	}
	return nameKey{longName: longName}
}

// LookupCF returns the CF phenomenon of a parameter code.
func LookupCF(p ParamCode) (CFName, bool) {
	cf, ok := get().toCF[p]
	return cf, ok
}

// LookupConstrainedCF returns the phenomenon and implied scalar coordinate of
// an edition 1 local parameter such as the 2 m temperature.
func LookupConstrainedCF(p ParamCode) (CFName, FixedCoord, bool) {
	c, ok := get().toCFConstrained[p]
	return c.name, c.coord, ok
}

// LookupParam returns the canonical parameter code of a CF phenomenon for
// the given edition.
func LookupParam(standardName, longName string, edition int) (ParamCode, bool) {
	t := get()
	k := keyFor(standardName, longName)
	switch edition {
	case 1:
		p, ok := t.toGRIB1[k]
		return p, ok
	case 2:
		p, ok := t.toGRIB2[k]
		return p, ok
	}
	return ParamCode{}, false
}

// LookupConstrainedParam returns the edition 1 local code of a phenomenon at a
// fixed coordinate value.
func LookupConstrainedParam(standardName, longName string, coord FixedCoord) (ParamCode, bool) {
	p, ok := get().toGRIB1Fixed[constrainedKey{keyFor(standardName, longName), coord}]
	return p, ok
}
