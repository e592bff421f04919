package gribcube

import (
	"github.com/pkg/errors"
	"github.com/sdifrance/gribcube/convert"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/gribio"
	"github.com/sdifrance/gribcube/message"
)

// SaveScanner translates the 2-D fields of a list of cubes one at a time.
type SaveScanner struct {
	conv   convert.Options
	cubes  []*cube.Cube
	full   *cube.Cube
	fields []*cube.Cube
	n      int
	pair   FieldPair
	err    error
}

// SavePairs returns a scanner over the fields of cubes with the default
// options.
func SavePairs(cubes []*cube.Cube) *SaveScanner {
	return DefaultOptions.SavePairs(cubes)
}

// SavePairs returns a scanner yielding each 2-D field of cubes with the
// GRIB2 message it translates to.
func (o Options) SavePairs(cubes []*cube.Cube) *SaveScanner {
	return &SaveScanner{conv: o.convert(nil), cubes: append([]*cube.Cube(nil), cubes...)}
}

// Scan advances to the next field. It returns false after the last field of
// the last cube or on the first error.
func (s *SaveScanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for len(s.fields) == 0 {
		if len(s.cubes) == 0 {
			return false
		}
		s.full, s.cubes = s.cubes[0], s.cubes[1:]
		fields, err := convert.Slices(s.full)
		if err != nil {
			s.err = errors.Wrapf(err, "slicing %q", s.full.Name())
			return false
		}
		s.fields = fields
	}
	f := s.fields[0]
	s.fields = s.fields[1:]
	m, err := convert.SaveField(f, s.full, s.conv)
	if err != nil {
		s.err = errors.Wrapf(err, "saving field %d (%q)", s.n, f.Name())
		return false
	}
	s.n++
	s.pair = FieldPair{Cube: f, Message: m}
	return true
}

// Pair returns the pair produced by the last call to Scan.
func (s *SaveScanner) Pair() FieldPair {
	return s.pair
}

// Err returns the error that ended the scan, if any.
func (s *SaveScanner) Err() error {
	return s.err
}

// SaveMessages writes the message of every remaining pair of s to w. w is
// not closed.
func SaveMessages(s *SaveScanner, w message.Writer) error {
	for s.Scan() {
		if err := w.Write(s.Pair().Message); err != nil {
			return err
		}
	}
	return s.Err()
}

// Save writes cubes to path, as a keyed archive when path ends in
// gribio.ArchiveExt and as GRIB2 otherwise.
func (o Options) Save(cubes []*cube.Cube, path string) error {
	w, err := gribio.Create(path, gribio.FormatForPath(path))
	if err != nil {
		return err
	}
	if err := SaveMessages(o.SavePairs(cubes), w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Save writes cubes to path with the default options.
func Save(cubes []*cube.Cube, path string) error {
	return DefaultOptions.Save(cubes, path)
}
