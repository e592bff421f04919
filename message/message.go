// Package message models encoded GRIB messages as keyed sections, and reads
// their data arrays on demand.
package message

import (
	"fmt"
	"io"
	"sort"
)

// Location identifies a message inside a file.
type Location struct {
	Path   string
	Offset int64
	Length int64
	// Index is the ordinal of the message in the file.
	Index int
}

func (l Location) String() string {
	return fmt.Sprintf("%s@%d", l.Path, l.Offset)
}

// Message is one encoded GRIB message.
type Message struct {
	Edition  int
	sections map[int]*Section
	Location Location
}

// New returns a message with no sections.
func New(edition int) *Message {
	return &Message{Edition: edition, sections: map[int]*Section{}}
}

// NewTemplate returns an edition 2 message with empty sections 0 to 7.
func NewTemplate() *Message {
	m := New(2)
	for n := 0; n <= 7; n++ {
		m.sections[n] = NewSection(n)
	}
	m.sections[0].Set("editionNumber", 2)
	return m
}

// Section returns section n, or nil if the message has none.
func (m *Message) Section(n int) *Section {
	return m.sections[n]
}

// SetSection adds or replaces a section.
func (m *Message) SetSection(s *Section) {
	m.sections[s.Number] = s
}

// Sections returns the sections in number order.
func (m *Message) Sections() []*Section {
	nums := make([]int, 0, len(m.sections))
	for n := range m.sections {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	out := make([]*Section, len(nums))
	for i, n := range nums {
		out[i] = m.sections[n]
	}
	return out
}

// Clone returns a message with independent sections.
func (m *Message) Clone() *Message {
	out := New(m.Edition)
	out.Location = m.Location
	for n, s := range m.sections {
		out.sections[n] = s.Clone()
	}
	return out
}

// Reader yields the messages of one source in order. Next returns io.EOF
// after the last message.
type Reader interface {
	Next() (*Message, error)
	Close() error
}

// Writer serializes messages.
type Writer interface {
	Write(*Message) error
	Close() error
}

// Reopener reads a single message again from its location.
type Reopener interface {
	Reopen(Location) (*Message, error)
}

// ReadAll drains r.
func ReadAll(r Reader) ([]*Message, error) {
	var out []*Message
	for {
		m, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
}

// SliceReader is a Reader over messages already in memory.
type SliceReader struct {
	msgs []*Message
	next int
}

// NewSliceReader returns a Reader over msgs.
func NewSliceReader(msgs []*Message) *SliceReader {
	return &SliceReader{msgs: msgs}
}

func (r *SliceReader) Next() (*Message, error) {
	if r.next >= len(r.msgs) {
		return nil, io.EOF
	}
	m := r.msgs[r.next]
	r.next++
	return m, nil
}

func (r *SliceReader) Close() error { return nil }

// Reopen finds the message with the same location.
func (r *SliceReader) Reopen(loc Location) (*Message, error) {
	for _, m := range r.msgs {
		if m.Location == loc {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no message at %v", loc)
}

// Collector is a Writer that keeps messages in memory. It doubles as a
// Reopener over what it collected.
type Collector struct {
	Messages []*Message
}

func (c *Collector) Write(m *Message) error {
	c.Messages = append(c.Messages, m)
	return nil
}

func (c *Collector) Close() error { return nil }

func (c *Collector) Reopen(loc Location) (*Message, error) {
	for _, m := range c.Messages {
		if m.Location == loc {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no message at %v", loc)
}
