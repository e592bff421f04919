// Package phenom maps GRIB parameter codes to CF phenomenon names and back.
package phenom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParamCode identifies a GRIB parameter. Its meaning depends on the edition:
// edition 2 codes are (discipline, category, number) and edition 1 codes are
// (table version, centre, indicator of parameter).
type ParamCode struct {
	Edition int
	Table   int
	Group   int
	Number  int
}

// GRIB2 builds an edition 2 code.
func GRIB2(discipline, category, number int) ParamCode {
	return ParamCode{Edition: 2, Table: discipline, Group: category, Number: number}
}

// GRIB1 builds an edition 1 code.
func GRIB1(tableVersion, centre, number int) ParamCode {
	return ParamCode{Edition: 1, Table: tableVersion, Group: centre, Number: number}
}

func (p ParamCode) Discipline() int   { return p.Table }
func (p ParamCode) Category() int     { return p.Group }
func (p ParamCode) TableVersion() int { return p.Table }
func (p ParamCode) Centre() int       { return p.Group }

// String renders GRIB2:d000c000n000 or GRIB1:t000c000n000.
func (p ParamCode) String() string {
	switch p.Edition {
	case 1:
		return fmt.Sprintf("GRIB1:t%03dc%03dn%03d", p.Table, p.Group, p.Number)
	case 2:
		return fmt.Sprintf("GRIB2:d%03dc%03dn%03d", p.Table, p.Group, p.Number)
	}
	return fmt.Sprintf("<invalid ParamCode edition=%d %d %d %d>", p.Edition, p.Table, p.Group, p.Number)
}

var fourNumbers = regexp.MustCompile("^" + strings.Repeat(`[^\d]*(\d*)`, 4))

// ParseParamCode reads any string holding four decimal numbers separated by
// non-digits, the first being the edition.
func ParseParamCode(s string) (ParamCode, error) {
	m := fourNumbers.FindStringSubmatch(s)
	if m == nil {
		return ParamCode{}, errors.Errorf("invalid parameter code %q: requires 4 numbers, separated by non-numerals", s)
	}
	var nums [4]int
	for i, g := range m[1:] {
		n, err := strconv.Atoi(g)
		if err != nil {
			return ParamCode{}, errors.Errorf("invalid parameter code %q: requires 4 numbers, separated by non-numerals", s)
		}
		nums[i] = n
	}
	if nums[0] != 1 && nums[0] != 2 {
		return ParamCode{}, errors.Errorf("invalid GRIB edition %d in parameter code %q: can only be 1 or 2", nums[0], s)
	}
	return ParamCode{Edition: nums[0], Table: nums[1], Group: nums[2], Number: nums[3]}, nil
}

// CodeFromAttribute reads a GRIB_PARAM attribute value, which may be a
// ParamCode or its string form.
func CodeFromAttribute(v interface{}) (ParamCode, error) {
	switch t := v.(type) {
	case ParamCode:
		return t, nil
	case *ParamCode:
		return *t, nil
	case string:
		return ParseParamCode(t)
	case fmt.Stringer:
		return ParseParamCode(t.String())
	}
	return ParamCode{}, errors.Errorf("cannot read parameter code from %T", v)
}
