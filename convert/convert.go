// Package convert translates whole GRIB messages into cubes and cubes back
// into edition 2 messages, combining the geometry, phenomenon, vertical and
// time translators.
package convert

import (
	"github.com/golang/glog"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/geometry"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
	"github.com/sdifrance/gribcube/phenom"
	"github.com/sdifrance/gribcube/timestat"
	"github.com/sdifrance/gribcube/vertical"
)

// ParamAttribute is the cube attribute holding the GRIB parameter code.
const ParamAttribute = "GRIB_PARAM"

// Options control translation in both directions.
type Options struct {
	// WarnOnUnsupported logs the parts of a message that are skipped.
	WarnOnUnsupported bool
	// SupportHindcastValues reads negative forecast times that were written
	// in the sign and magnitude form of some hindcast products.
	SupportHindcastValues bool

	// Opener re-reads messages when the data of a loaded cube is
	// materialized. When nil the message passed to MessageToCube is used.
	Opener message.Reopener
	Cache  *message.DataCache

	// Edition of the saved messages; 0 means 2.
	Edition int
	// PackingBits is the simple packing width of saved values; 0 leaves the
	// codec default.
	PackingBits int
}

// Defaults are the options used by the command line tool.
var Defaults = Options{SupportHindcastValues: true}

func (o Options) times() timestat.Options {
	return timestat.Options{
		SupportHindcastValues: o.SupportHindcastValues,
		WarnOnUnsupported:     o.WarnOnUnsupported,
	}
}

func (o Options) proxy(shape []int, msg *message.Message) *message.DataProxy {
	opener := o.Opener
	if opener == nil {
		opener = message.NewSliceReader([]*message.Message{msg})
	}
	return message.NewDataProxy(shape, msg.Location, opener, o.Cache)
}

// Code table 5.0 - Data representation template number. Templates outside
// this list cannot be decoded by any supported codec.
var representations = map[int64]bool{
	0: true, 1: true, 2: true, 3: true, 4: true,
	40: true, 41: true, 42: true,
	50: true, 51: true, 61: true,
}

// MessageToCube translates one message. Any failure is returned as a
// *griberr.TranslationError naming the message location.
func MessageToCube(msg *message.Message, opts Options) (*cube.Cube, error) {
	var (
		c   *cube.Cube
		err error
	)
	switch msg.Edition {
	case 1:
		c, err = loadGRIB1(msg, opts)
	case 2:
		c, err = loadGRIB2(msg, opts)
	default:
		err = griberr.UnsupportedEditionFeaturef("GRIB edition %d is not supported", msg.Edition)
	}
	if err != nil {
		return nil, griberr.Wrap(err, msg.Location.String())
	}
	return c, nil
}

func sections(msg *message.Message, nums ...int) error {
	for _, n := range nums {
		if msg.Section(n) == nil {
			return griberr.MalformedSectionf("message has no section %d", n)
		}
	}
	return nil
}

func loadGRIB2(msg *message.Message, o Options) (*cube.Cube, error) {
	if err := sections(msg, 0, 1, 3, 4, 5, 6); err != nil {
		return nil, err
	}
	sec0, sec1, sec4 := msg.Section(0), msg.Section(1), msg.Section(4)

	drt, err := msg.Section(5).Int("dataRepresentationTemplateNumber")
	if err != nil {
		return nil, err
	}
	if !representations[drt] {
		return nil, griberr.Unsupportedf("data representation section 5 contains unsupported template [%d]", drt)
	}
	ind, err := msg.Section(6).Int("bitMapIndicator")
	if err != nil {
		return nil, err
	}
	if ind != message.BitmapPresent && ind != message.BitmapNone {
		return nil, griberr.Unsupportedf("bitmap Section 6 contains unsupported bitmap indicator [%d]", ind)
	}

	grid, err := geometry.Load(msg.Section(3))
	if err != nil {
		return nil, err
	}
	c := cube.New(o.proxy(grid.Shape, msg))

	var code [3]int64
	for i, k := range []string{"discipline", "parameterCategory", "parameterNumber"} {
		s := sec4
		if i == 0 {
			s = sec0
		}
		if code[i], err = s.Int(k); err != nil {
			return nil, err
		}
	}
	param := phenom.GRIB2(int(code[0]), int(code[1]), int(code[2]))
	cf, ok := phenom.LookupCF(param)
	if !ok && o.WarnOnUnsupported {
		glog.Warningf("no CF phenomenon for %v", param)
	}
	setPhenomenon(c, param, cf)
	if err := setCentre(c, sec1); err != nil {
		return nil, err
	}
	if err := grid.Apply(c); err != nil {
		return nil, err
	}

	levels, err := vertical.Load(sec4)
	if err != nil {
		return nil, err
	}
	if err := o.applyLevels(c, levels); err != nil {
		return nil, err
	}

	times, err := o.times().Load(sec1, sec4)
	if err != nil {
		return nil, err
	}
	if err := times.Apply(c); err != nil {
		return nil, err
	}
	if times.Probability != nil {
		if err := times.Probability.Apply(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func loadGRIB1(msg *message.Message, o Options) (*cube.Cube, error) {
	if err := sections(msg, 1, 4); err != nil {
		return nil, err
	}
	pds, gds := msg.Section(1), msg.Section(2)
	if gds == nil {
		return nil, griberr.UnsupportedEditionFeaturef("GRIB1 message without a grid description section")
	}
	grid, err := geometry.LoadGRIB1(gds)
	if err != nil {
		return nil, err
	}
	c := cube.New(o.proxy(grid.Shape, msg))

	var code [3]int64
	for i, k := range []string{"table2Version", "centre", "indicatorOfParameter"} {
		if code[i], err = pds.Int(k); err != nil {
			return nil, err
		}
	}
	param := phenom.GRIB1(int(code[0]), int(code[1]), int(code[2]))
	cf, fixed, ok := phenom.GRIB1Phenomenon(param)
	if !ok && o.WarnOnUnsupported {
		glog.Warningf("no CF phenomenon for %v", param)
	}
	setPhenomenon(c, param, cf)
	if err := setCentre(c, pds); err != nil {
		return nil, err
	}
	if err := grid.Apply(c); err != nil {
		return nil, err
	}

	levels, err := vertical.LoadGRIB1(pds, gds)
	if err != nil {
		return nil, err
	}
	if err := o.applyLevels(c, levels); err != nil {
		return nil, err
	}
	if fixed != nil {
		if _, _, ok := c.Coord(fixed.Name); !ok {
			coord := &cube.Coord{LongName: fixed.Name, Units: fixed.Units, Points: []float64{fixed.Value}}
			if err := c.AddAuxCoord(coord); err != nil {
				return nil, err
			}
		}
	}

	times, err := o.times().LoadGRIB1(pds)
	if err != nil {
		return nil, err
	}
	if err := times.Apply(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (o Options) applyLevels(c *cube.Cube, levels *vertical.Levels) error {
	if levels.Unsupported != nil && o.WarnOnUnsupported {
		glog.Warningf("%v", levels.Unsupported)
	}
	return levels.Apply(c)
}

func setPhenomenon(c *cube.Cube, param phenom.ParamCode, cf phenom.CFName) {
	c.Attributes[ParamAttribute] = param
	c.StandardName = cf.StandardName
	c.LongName = cf.LongName
	c.Units = cf.Units
}

// Common Code table C-1 - Originating centres, for the centres whose names
// are commonly seen.
var centres = map[int64]string{
	7:  "US National Weather Service, National Centres for Environmental Prediction",
	34: "Japanese Meteorological Agency - Tokyo",
	54: "Canadian Meteorological Service - Montreal",
	74: "U.K. Met Office - Exeter",
	78: "Offenbach (DWD)",
	85: "French Weather Service - Toulouse",
	98: "European Centre for Medium Range Weather Forecasts",
}

// setCentre records the originating centre of sec, which may be a GRIB2
// identification section or a GRIB1 product definition section.
func setCentre(c *cube.Cube, sec *message.Section) error {
	code, err := sec.Int("centre")
	if err != nil {
		return err
	}
	if name, ok := centres[code]; ok {
		c.Attributes["centre"] = name
	} else {
		c.Attributes["centre"] = code
	}
	return nil
}
