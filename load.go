package gribcube

import (
	"context"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/sdifrance/gribcube/convert"
	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/gribio"
	"github.com/sdifrance/gribcube/message"
	"golang.org/x/sync/errgroup"
)

// LoadScanner translates the messages of a list of files one at a time.
type LoadScanner struct {
	opts  Options
	conv  convert.Options
	paths []string
	src   gribio.Source
	pair  FieldPair
	err   error
}

// LoadPairs returns a scanner over the messages of paths with the default
// options.
func LoadPairs(paths ...string) *LoadScanner {
	return DefaultOptions.LoadPairs(paths...)
}

// LoadPairs returns a scanner over the messages of paths, in file order.
func (o Options) LoadPairs(paths ...string) *LoadScanner {
	return &LoadScanner{
		opts:  o,
		conv:  o.convert(message.NewDataCache(o.CacheSize)),
		paths: append([]string(nil), paths...),
	}
}

// Scan advances to the next message. It returns false at the end of the last
// file or on the first error.
func (s *LoadScanner) Scan() bool {
	for s.err == nil {
		m, ok := s.next()
		if !ok {
			return false
		}
		c, err := convert.MessageToCube(m, s.conv)
		if err != nil {
			if s.opts.SkipUntranslatable {
				glog.Warningf("skipping message: %v", err)
				continue
			}
			s.err = err
			return false
		}
		s.pair = FieldPair{Cube: c, Message: m}
		return true
	}
	return false
}

// next reads the next message header, opening files as needed.
func (s *LoadScanner) next() (*message.Message, bool) {
	for {
		if s.src == nil {
			if len(s.paths) == 0 {
				return nil, false
			}
			path := s.paths[0]
			s.paths = s.paths[1:]
			src, err := gribio.Open(path)
			if err != nil {
				s.err = errors.Wrapf(err, "opening %s", path)
				return nil, false
			}
			glog.V(1).Infof("loading %s", path)
			s.src = src
		}
		m, err := s.src.Next()
		if err == io.EOF {
			err = s.src.Close()
			s.src = nil
			if err != nil {
				s.err = err
				return nil, false
			}
			continue
		}
		if err != nil {
			s.err = err
			return nil, false
		}
		return m, true
	}
}

// Pair returns the pair read by the last call to Scan.
func (s *LoadScanner) Pair() FieldPair {
	return s.pair
}

// Err returns the error that ended the scan, if any.
func (s *LoadScanner) Err() error {
	return s.err
}

// Close releases the open file. Stopping before the end of the scan and
// closing is how a load is cancelled.
func (s *LoadScanner) Close() error {
	s.paths = nil
	if s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src = nil
	return err
}

// MergePairs merges the cubes of pairs that differ only in a scalar
// coordinate.
func MergePairs(pairs []FieldPair) ([]*cube.Cube, error) {
	cubes := make([]*cube.Cube, len(pairs))
	for i, p := range pairs {
		cubes[i] = p.Cube
	}
	return cube.Merge(cubes)
}

// LoadCubes loads and merges the cubes of paths with the default options.
func LoadCubes(ctx context.Context, paths ...string) ([]*cube.Cube, error) {
	return DefaultOptions.LoadCubes(ctx, paths...)
}

// LoadCubes reads the messages of paths in order, translates them on up to
// o.Workers goroutines and merges the results.
func (o Options) LoadCubes(ctx context.Context, paths ...string) ([]*cube.Cube, error) {
	var msgs []*message.Message
	for _, path := range paths {
		src, err := gribio.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", path)
		}
		m, err := message.ReadAll(src)
		src.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		msgs = append(msgs, m...)
	}

	conv := o.convert(message.NewDataCache(o.CacheSize))
	cubes := make([]*cube.Cube, len(msgs))
	eg, ctx := errgroup.WithContext(ctx)
	if o.Workers > 0 {
		eg.SetLimit(o.Workers)
	}
	for i, m := range msgs {
		i, m := i, m
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := convert.MessageToCube(m, conv)
			if err != nil {
				if o.SkipUntranslatable {
					glog.Warningf("skipping message: %v", err)
					return nil
				}
				return err
			}
			cubes[i] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	loaded := cubes[:0]
	for _, c := range cubes {
		if c != nil {
			loaded = append(loaded, c)
		}
	}
	glog.V(1).Infof("translated %d of %d messages", len(loaded), len(msgs))
	return cube.Merge(loaded)
}
