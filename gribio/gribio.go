// Package gribio contains functionality for reading grib files containing both
// GRIB1 and GRIB2 messages, and keyed message archives.
package gribio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/sdifrance/gribcube/grib1"
	"github.com/sdifrance/gribcube/grib2"
	"github.com/sdifrance/gribcube/gribkv"
	"github.com/sdifrance/gribcube/message"
)

// Source yields the messages of one file with headers decoded, and reopens
// any of them with data values.
type Source interface {
	message.Reader
	message.Reopener
}

// Open opens path as a GRIB file or, when it starts with the archive magic, as
// a keyed message archive.
func Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	header := make([]byte, len(gribkv.Magic))
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("error reading header of %s: %w", path, err)
	}
	if gribkv.IsArchive(header[:n]) {
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		r, err := gribkv.NewReader(f, fi.Size(), path)
		if err != nil {
			f.Close()
			return nil, err
		}
		return r, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, path: path, rr: bufio.NewReader(f)}, nil
}

// Paths is a message.Reopener that opens the file named by each location for
// the duration of one read. Lazy data loaded through it outlives the Source it
// was read from.
type Paths struct{}

// Reopen opens loc.Path, reads the message at loc and closes the file.
func (Paths) Reopen(loc message.Location) (*message.Message, error) {
	src, err := Open(loc.Path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Reopen(loc)
}

// File reads the GRIB messages of a file in order.
type File struct {
	f      *os.File
	path   string
	rr     *bufio.Reader
	offset int64
	count  int
}

// Next decodes the headers of the next message. Zero padding between messages
// is skipped. It returns io.EOF after the last message.
func (f *File) Next() (*message.Message, error) {
	skipCount, err := skipZeros(f.rr)
	f.offset += int64(skipCount)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("error parsing file: %w", err)
	}

	parseType, messageLen, err := peekParseType(f.rr)
	if err != nil {
		return nil, fmt.Errorf("error encountered when expecting a GRIB message @ byte offset %d: %w", f.offset, err)
	}
	glog.V(1).Infof("record @ offset %d is of type %s", f.offset, parseType)
	recordBytes := make([]byte, int(messageLen))
	if readCount, err := io.ReadFull(f.rr, recordBytes); err != nil {
		return nil, fmt.Errorf("error while reading message of expected length %d; only read %d bytes: %w", messageLen, readCount, err)
	}

	msg, err := decode(parseType, recordBytes, false)
	if err != nil {
		return nil, fmt.Errorf("%s @ byte offset %d: %w", f.path, f.offset, err)
	}
	msg.Location = message.Location{Path: f.path, Offset: f.offset, Length: int64(messageLen), Index: f.count}
	f.offset += int64(messageLen)
	f.count++
	return msg, nil
}

// Reopen reads the message at loc again, with its bitmap and data values.
func (f *File) Reopen(loc message.Location) (*message.Message, error) {
	data := make([]byte, loc.Length)
	if _, err := f.f.ReadAt(data, loc.Offset); err != nil {
		return nil, fmt.Errorf("error reading message at %v: %w", loc, err)
	}
	msg, err := decode(editionOf(data), data, true)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", loc, err)
	}
	msg.Location = loc
	return msg, nil
}

// Close closes the file.
func (f *File) Close() error {
	return f.f.Close()
}

func editionOf(data []byte) parseType {
	if len(data) < 8 {
		return parseAsInvalidMessage
	}
	switch data[7] {
	case 1:
		return parseAsGRIB1
	case 2:
		return parseAsGRIB2
	}
	return parseAsInvalidMessage
}

func decode(t parseType, data []byte, values bool) (*message.Message, error) {
	switch t {
	case parseAsGRIB1:
		msg, _, err := grib1.Read1(data, grib1.DecodeOptions{Values: values})
		if err != nil {
			return nil, fmt.Errorf("error reading GRIB1 message: %w", err)
		}
		return msg, nil
	case parseAsGRIB2:
		msg, _, err := grib2.Decode(data, grib2.DecodeOptions{Values: values})
		if err != nil {
			return nil, fmt.Errorf("error reading GRIB2 message: %w", err)
		}
		return msg, nil
	}
	return nil, fmt.Errorf("not a GRIB message")
}

func skipZeros(rr *bufio.Reader) (int, error) {
	skipCount := 0
	for {
		b, err := rr.ReadByte()
		if err != nil {
			return skipCount, err
		}
		if b == 0 {
			skipCount++
			continue
		}
		if err := rr.UnreadByte(); err != nil {
			return skipCount, err
		}
		return skipCount, nil
	}
}

type parseType int

const (
	parseAsInvalidMessage parseType = iota
	parseAsGRIB1
	parseAsGRIB2
)

func (t parseType) String() string {
	switch t {
	case parseAsGRIB1:
		return "GRIB1"
	case parseAsGRIB2:
		return "GRIB2"
	}
	return "invalid"
}

func peekParseType(rr *bufio.Reader) (parseType, uint64, error) {
	// GRIB1 messages can be shorter than 16 bytes only in theory; peek what
	// there is and check the length needed for the edition.
	data, err := rr.Peek(16)
	if err != nil && len(data) < 8 {
		return parseAsInvalidMessage, 0, fmt.Errorf("error while expecting GRIB record: %w", err)
	}

	if got, want := string(data[0:4]), "GRIB"; got != want {
		return parseAsInvalidMessage, 0, fmt.Errorf("first four bytes = %q, want %q", got, want)
	}
	edition := data[7]

	switch edition {
	case 1:
		// https://apps.ecmwf.int/codes/grib/format/grib1/sections/0/
		messageLength := uint64(binary.BigEndian.Uint32([]byte{0, data[4], data[5], data[6]}))
		return parseAsGRIB1, messageLength, nil
	case 2:
		if len(data) < 16 {
			return parseAsInvalidMessage, 0, fmt.Errorf("truncated GRIB2 indicator section: %w", err)
		}
		// https://apps.ecmwf.int/codes/grib/format/grib2/sections/0/
		messageLength := binary.BigEndian.Uint64(data[8 : 8+8])
		return parseAsGRIB2, messageLength, nil
	default:
		return parseAsInvalidMessage, 0, fmt.Errorf("invalid edition %d, wanted 1 or 2", edition)
	}
}

// Format is an output file format.
type Format int

const (
	// FormatGRIB writes GRIB2 binary messages.
	FormatGRIB Format = iota
	// FormatArchive writes a keyed message archive.
	FormatArchive
)

// ArchiveExt is the file extension that selects FormatArchive.
const ArchiveExt = ".gribkv"

// FormatForPath chooses the archive format for paths ending in ArchiveExt
// and GRIB otherwise.
func FormatForPath(path string) Format {
	if filepath.Ext(path) == ArchiveExt {
		return FormatArchive
	}
	return FormatGRIB
}

// Create creates path for writing messages in format.
func Create(path string, format Format) (message.Writer, error) {
	if format == FormatArchive {
		w, err := gribkv.Create(path)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return NewWriter(f), nil
}

// Writer encodes messages as GRIB2 binary.
type Writer struct {
	w     io.Writer
	count int
}

// NewWriter returns a Writer on w. Close closes w when it is an io.Closer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes and writes m.
func (w *Writer) Write(m *message.Message) error {
	data, err := grib2.Encode(m)
	if err != nil {
		return fmt.Errorf("error encoding message %d: %w", w.count, err)
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	w.count++
	return nil
}

// Close closes the underlying writer when it is an io.Closer.
func (w *Writer) Close() error {
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
