package convert

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/geometry"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
	"github.com/sdifrance/gribcube/phenom"
	"github.com/sdifrance/gribcube/timestat"
	"github.com/sdifrance/gribcube/vertical"
)

// Identification written on every saved message.
const (
	saveCentre            = 74
	saveSubCentre         = 0
	saveTablesVersion     = 4
	productionStatusOther = 255
)

// Code table 1.4 - Type of data.
const (
	analysisAndForecast = 2
	controlForecast     = 3
	perturbedForecast   = 4
)

// CubeToMessages translates c into one edition 2 message per 2-D horizontal
// field. The fields share the scalar metadata of c; the coordinates of the
// other dimensions become scalar coordinates of each field.
func CubeToMessages(c *cube.Cube, opts Options) ([]*message.Message, error) {
	if opts.Edition != 0 && opts.Edition != 2 {
		return nil, griberr.UnsupportedEditionFeaturef("cannot save GRIB edition %d", opts.Edition)
	}
	fields, err := Slices(c)
	if err != nil {
		return nil, err
	}
	out := make([]*message.Message, 0, len(fields))
	for i, f := range fields {
		m, err := SaveField(f, c, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "saving field %d of %q", i, c.Name())
		}
		out = append(out, m)
	}
	return out, nil
}

// Slices cuts c into its 2-D horizontal fields, in row-major order of the
// remaining dimensions. The data of c is materialized.
func Slices(c *cube.Cube) ([]*cube.Cube, error) {
	horiz := map[int]bool{}
	for _, axis := range []string{"X", "Y"} {
		coords := c.AxisCoords(axis)
		if len(coords) == 0 {
			return nil, griberr.Unsupportedf("cube %q has no %s coordinate", c.Name(), axis)
		}
		dim := c.DimCoordOf(coords[0].Coord)
		if dim < 0 {
			return nil, griberr.Unsupportedf("%s coordinate %q must be a dimension coordinate", axis, coords[0].Name())
		}
		horiz[dim] = true
	}
	data, err := c.Data.Materialize()
	if err != nil {
		return nil, err
	}
	shape := c.Shape()
	var outer []int
	for d := range shape {
		if !horiz[d] {
			outer = append(outer, d)
		}
	}

	var out []*cube.Cube
	idx := make([]int, len(outer))
	for {
		fixed := map[int]int{}
		for i, d := range outer {
			fixed[d] = idx[i]
		}
		s, err := slice(c, data, fixed)
		if err != nil {
			return nil, err
		}
		out = append(out, s)

		// Advance the index over the outer dimensions, last fastest.
		k := len(outer) - 1
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] < shape[outer[k]] {
				break
			}
			idx[k] = 0
		}
		if k < 0 {
			return out, nil
		}
	}
}

// slice extracts the field of c at the fixed indices.
func slice(c *cube.Cube, data *cube.MaskedArray, fixed map[int]int) (*cube.Cube, error) {
	values, err := data.Extract(fixed)
	if err != nil {
		return nil, err
	}
	meta := c.Copy()
	s := cube.New(values)
	s.StandardName, s.LongName, s.VarName, s.Units = meta.StandardName, meta.LongName, meta.VarName, meta.Units
	s.Attributes = meta.Attributes
	s.CellMethods = meta.CellMethods
	s.Factory = meta.Factory

	// newDim maps the kept dimensions of c to those of s.
	newDim := map[int]int{}
	for d := range c.Shape() {
		if _, ok := fixed[d]; !ok {
			newDim[d] = len(newDim)
		}
	}
	for d, dc := range meta.DimCoords {
		if dc == nil {
			continue
		}
		if i, ok := fixed[d]; ok {
			err = s.AddAuxCoord(dc.Index(i))
		} else {
			err = s.AddDimCoord(dc, newDim[d])
		}
		if err != nil {
			return nil, err
		}
	}
	for _, ac := range meta.AuxCoords {
		var kept, cut []int
		for _, d := range ac.Dims {
			if _, ok := fixed[d]; ok {
				cut = append(cut, d)
			} else {
				kept = append(kept, newDim[d])
			}
		}
		switch {
		case len(cut) == 0:
			err = s.AddAuxCoord(ac.Coord, kept...)
		case len(cut) == 1 && len(kept) == 0:
			err = s.AddAuxCoord(ac.Index(fixed[cut[0]]))
		default:
			err = griberr.Unsupportedf("coordinate %q spans dimensions %v and cannot be sliced into fields", ac.Name(), ac.Dims)
		}
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SaveField translates one 2-D field cut from full by Slices. full supplies
// the hybrid coefficients of every model level.
func SaveField(f, full *cube.Cube, o Options) (*message.Message, error) {
	if o.Edition != 0 && o.Edition != 2 {
		return nil, griberr.UnsupportedEditionFeaturef("cannot save GRIB edition %d", o.Edition)
	}
	msg := message.NewTemplate()
	sec1, sec4 := msg.Section(1), msg.Section(4)
	saveIdentification(f, sec1)
	sec4.Set("NV", 0)

	if err := geometry.Save(f, msg.Section(3)); err != nil {
		return nil, err
	}
	if err := timestat.Save(f, sec1, sec4); err != nil {
		return nil, err
	}
	saveParameter(f, msg.Section(0), sec4)
	if err := vertical.Save(f, full, sec4); err != nil {
		return nil, err
	}
	if err := saveData(f, msg, o.PackingBits); err != nil {
		return nil, err
	}
	return msg, nil
}

func saveIdentification(f *cube.Cube, sec1 *message.Section) {
	sec1.Set("centre", saveCentre)
	sec1.Set("subCentre", saveSubCentre)
	sec1.Set("tablesVersion", saveTablesVersion)
	sec1.Set("localTablesVersion", 0)
	sec1.Set("productionStatusOfProcessedData", productionStatusOther)
	kind := analysisAndForecast
	if r, ok := f.ScalarCoord(timestat.Realization); ok {
		kind = perturbedForecast
		if r.Points[0] == 0 {
			kind = controlForecast
		}
	}
	sec1.Set("typeOfProcessedData", kind)
}

// saveParameter writes the discipline, category and number of f. An edition
// 2 GRIB_PARAM attribute wins over the CF name.
func saveParameter(f *cube.Cube, sec0, sec4 *message.Section) {
	param, ok := paramOf(f)
	if !ok {
		if f.Name() != "unknown" {
			glog.Warningf("unable to determine the GRIB2 parameter code of %q, saving as 255/255/255", f.Name())
		}
		param = phenom.GRIB2(255, 255, 255)
	}
	sec0.Set("discipline", param.Discipline())
	sec4.Set("parameterCategory", param.Category())
	sec4.Set("parameterNumber", param.Number)
}

func paramOf(f *cube.Cube) (phenom.ParamCode, bool) {
	if v, ok := f.Attributes[ParamAttribute]; ok {
		p, err := phenom.CodeFromAttribute(v)
		switch {
		case err != nil:
			glog.Warningf("ignoring %s attribute: %v", ParamAttribute, err)
		case p.Edition == 2:
			return p, true
		}
	}
	return phenom.LookupParam(f.StandardName, f.LongName, 2)
}

// saveData writes section 5 for simple packing and the values of f, with a
// bitmap when any point is masked.
func saveData(f *cube.Cube, msg *message.Message, bits int) error {
	a, err := f.Data.Materialize()
	if err != nil {
		return err
	}
	sec5 := msg.Section(5)
	sec5.Set("numberOfValues", len(a.Values))
	sec5.Set("dataRepresentationTemplateNumber", 0)
	if bits > 0 {
		sec5.Set("bitsPerValue", bits)
	}
	message.EncodeValues(msg, a)
	return nil
}
