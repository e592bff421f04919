// Package gribcube loads GRIB1 and GRIB2 files as cubes of gridded data and
// saves cubes as GRIB2.
//
// Loading and saving are two-phase: LoadPairs and SavePairs yield each
// message alongside the cube it translates to, so callers can inspect or
// correct either side before LoadCubes merges the cubes or SaveMessages
// writes the messages.
//
//	s := gribcube.LoadPairs("forecast.grib2")
//	defer s.Close()
//	for s.Scan() {
//		p := s.Pair()
//		...
//	}
//	if err := s.Err(); err != nil { ... }
package gribcube

import (
	"github.com/sdifrance/gribcube/convert"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/gribio"
	"github.com/sdifrance/gribcube/message"
)

// Options configure loading and saving.
type Options struct {
	// WarnOnUnsupported logs message content that is skipped rather than
	// translated.
	WarnOnUnsupported bool
	// SupportHindcastValues reads negative forecast times written in the sign
	// and magnitude form of some hindcast products.
	SupportHindcastValues bool
	// SkipUntranslatable logs and skips messages that fail to translate
	// instead of ending the scan.
	SkipUntranslatable bool

	// Workers bounds the number of messages LoadCubes translates at once.
	Workers int
	// CacheSize is the number of materialized data arrays kept per load.
	CacheSize int
	// PackingBits is the simple packing width of saved values; 0 uses the
	// codec default.
	PackingBits int
}

// DefaultOptions are used by the package level functions.
var DefaultOptions = Options{
	SupportHindcastValues: true,
	Workers:               4,
	CacheSize:             16,
}

func (o Options) convert(cache *message.DataCache) convert.Options {
	return convert.Options{
		WarnOnUnsupported:     o.WarnOnUnsupported,
		SupportHindcastValues: o.SupportHindcastValues,
		Opener:                gribio.Paths{},
		Cache:                 cache,
		PackingBits:           o.PackingBits,
	}
}

// FieldPair is one message and the cube it translates to. Loaded cubes hold
// a single field with lazy data; saved cubes are the 2-D fields cut from the
// cube being saved.
type FieldPair struct {
	Cube    *cube.Cube
	Message *message.Message
}
