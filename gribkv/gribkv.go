// Package gribkv stores keyed GRIB messages in an archive file.
//
// The archive is the magic header followed by one record per message. Each
// record is a four octet big-endian length and a zstd-compressed msgpack
// document holding the edition and, for every section, its keys and values
// in order. Any template can be stored, including those the binary codecs do
// not lay out.
package gribkv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/sdifrance/gribcube/message"
	"github.com/vmihailenco/msgpack/v5"
)

// Magic starts every archive.
const Magic = "GRIBKV\x00\x01"

// IsArchive reports whether header starts with Magic.
func IsArchive(header []byte) bool {
	return len(header) >= len(Magic) && string(header[:len(Magic)]) == Magic
}

type record struct {
	Edition  int             `msgpack:"edition"`
	Sections []sectionRecord `msgpack:"sections"`
}

type sectionRecord struct {
	Number int           `msgpack:"number"`
	Keys   []string      `msgpack:"keys"`
	Values []interface{} `msgpack:"values"`
}

func toRecord(m *message.Message) record {
	rec := record{Edition: m.Edition}
	for _, s := range m.Sections() {
		sr := sectionRecord{Number: s.Number}
		for _, k := range s.Keys() {
			v, _ := s.Get(k)
			sr.Keys = append(sr.Keys, k)
			sr.Values = append(sr.Values, v)
		}
		rec.Sections = append(rec.Sections, sr)
	}
	return rec
}

func fromRecord(rec record) (*message.Message, error) {
	m := message.New(rec.Edition)
	for _, sr := range rec.Sections {
		if len(sr.Keys) != len(sr.Values) {
			return nil, errors.Errorf("section %d has %d keys and %d values", sr.Number, len(sr.Keys), len(sr.Values))
		}
		s := message.NewSection(sr.Number)
		for i, k := range sr.Keys {
			s.Set(k, sr.Values[i])
		}
		m.SetSection(s)
	}
	return m, nil
}

// Writer appends messages to an archive.
type Writer struct {
	w      io.Writer
	closer io.Closer
	zw     *zstd.Encoder
	offset int64
	count  int
}

// NewWriter writes the archive header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	zw, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd writer")
	}
	if _, err := io.WriteString(w, Magic); err != nil {
		return nil, err
	}
	out := &Writer{w: w, zw: zw, offset: int64(len(Magic))}
	if c, ok := w.(io.Closer); ok {
		out.closer = c
	}
	return out, nil
}

// Create creates the archive file path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Write appends m.
func (w *Writer) Write(m *message.Message) error {
	var buf bytes.Buffer
	w.zw.Reset(&buf)
	if err := msgpack.NewEncoder(w.zw).Encode(toRecord(m)); err != nil {
		return errors.Wrapf(err, "encoding message %d", w.count)
	}
	if err := w.zw.Close(); err != nil {
		return errors.Wrap(err, "failed to close zstd writer")
	}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(buf.Len()))
	if _, err := w.w.Write(length[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return err
	}
	glog.V(2).Infof("archived message %d at offset %d (%d bytes)", w.count, w.offset, buf.Len())
	w.offset += int64(4 + buf.Len())
	w.count++
	return nil
}

// Close closes the underlying writer when it is an io.Closer.
func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Reader reads an archive sequentially and reopens records by location.
type Reader struct {
	r      io.ReaderAt
	closer io.Closer
	path   string
	size   int64
	offset int64
	count  int
	zr     *zstd.Decoder
}

// NewReader checks the archive header of r, which holds size bytes. path is
// recorded in message locations.
func NewReader(r io.ReaderAt, size int64, path string) (*Reader, error) {
	header := make([]byte, len(Magic))
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, errors.Wrapf(err, "%s: reading archive header", path)
	}
	if !IsArchive(header) {
		return nil, errors.Errorf("%s is not a keyed message archive", path)
	}
	zr, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd reader")
	}
	out := &Reader{r: r, path: path, size: size, offset: int64(len(Magic)), zr: zr}
	if c, ok := r.(io.Closer); ok {
		out.closer = c
	}
	return out, nil
}

// Open opens the archive file path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := NewReader(f, fi.Size(), path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Next returns the next message, or io.EOF after the last one.
func (r *Reader) Next() (*message.Message, error) {
	if r.offset >= r.size {
		return nil, io.EOF
	}
	m, n, err := r.readAt(r.offset)
	if err != nil {
		return nil, err
	}
	m.Location = message.Location{Path: r.path, Offset: r.offset, Length: n, Index: r.count}
	r.offset += n
	r.count++
	return m, nil
}

// Reopen reads the record at loc again.
func (r *Reader) Reopen(loc message.Location) (*message.Message, error) {
	m, _, err := r.readAt(loc.Offset)
	if err != nil {
		return nil, err
	}
	m.Location = loc
	return m, nil
}

func (r *Reader) readAt(offset int64) (*message.Message, int64, error) {
	var length [4]byte
	if _, err := r.r.ReadAt(length[:], offset); err != nil {
		return nil, 0, errors.Wrapf(err, "%s: reading record length at offset %d", r.path, offset)
	}
	n := int64(binary.BigEndian.Uint32(length[:]))
	if offset+4+n > r.size {
		return nil, 0, fmt.Errorf("%s: record at offset %d claims %d bytes, only %d remain", r.path, offset, n, r.size-offset-4)
	}
	payload := make([]byte, n)
	if _, err := r.r.ReadAt(payload, offset+4); err != nil {
		return nil, 0, errors.Wrapf(err, "%s: reading record at offset %d", r.path, offset)
	}
	if err := r.zr.Reset(bytes.NewReader(payload)); err != nil {
		return nil, 0, errors.Wrap(err, "failed to reset zstd reader")
	}
	var rec record
	if err := msgpack.NewDecoder(r.zr).Decode(&rec); err != nil {
		return nil, 0, errors.Wrapf(err, "%s: decoding record at offset %d", r.path, offset)
	}
	m, err := fromRecord(rec)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "%s: record at offset %d", r.path, offset)
	}
	return m, 4 + n, nil
}

// Close releases the decoder and closes the underlying reader when it is an
// io.Closer.
func (r *Reader) Close() error {
	r.zr.Close()
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
