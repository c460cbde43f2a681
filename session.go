package tmcgo

import (
	"math"

	"github.com/pkg/errors"
)

// MaxSessionBytes caps the memory a page session may allocate.
var MaxSessionBytes = 1 << 30

// PageSession accumulates dithered rows into microweave buffers and
// sends them as head passes through an Encoder.
//
// Logical scanline i of a flush is stored in the half i%2 of its plane
// buffer, at slot i/2. Even scanlines print in the first pass, odd
// scanlines in the second.
type PageSession struct {
	enc      *Encoder
	dev      Device
	inks     []Ink
	compress bool

	stride int
	rowMax int
	count  int

	buf    []byte
	planes [][]byte
	comp   []byte

	flushes int
	closed  bool
}

// NewPageSession allocates the buffers for one page. The encoder must
// have the page open.
func NewPageSession(enc *Encoder, dev Device, p Page) (*PageSession, error) {
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	g, err := p.geometry(dev)
	if err != nil {
		return nil, err
	}

	planes := dev.Class.Planes()
	size := int64(dev.MaxRowsPerFlush) * int64(g.stride)
	total := size*int64(planes) + 10*size
	if total > int64(MaxSessionBytes) || size > math.MaxInt32 {
		return nil, errors.Wrapf(ErrResource, "page session needs %d bytes", total)
	}

	s := &PageSession{
		enc:      enc,
		dev:      dev,
		inks:     dev.Class.Inks(),
		compress: p.Compress,
		stride:   g.stride,
		rowMax:   dev.MaxRowsPerFlush,
		planes:   make([][]byte, planes),
		comp:     make([]byte, 0, 10*size),
	}
	// One allocation for every plane
	s.buf = make([]byte, int(size)*planes)
	for i := range s.planes {
		s.planes[i] = s.buf[i*int(size) : (i+1)*int(size) : (i+1)*int(size)]
	}
	return s, nil
}

// RowStride returns the byte length of one dithered row.
func (s *PageSession) RowStride() int {
	return s.stride
}

// Planes returns the number of color planes.
func (s *PageSession) Planes() int {
	return len(s.inks)
}

// Rows returns the number of scanlines buffered since the last flush.
func (s *PageSession) Rows() int {
	return s.count
}

// Flushes returns the number of flushes so far.
func (s *PageSession) Flushes() int {
	return s.flushes
}

// Offset returns the byte offset of logical row i within a plane buffer.
func (s *PageSession) Offset(i int) int {
	return (i%2)*(s.rowMax/2)*s.stride + (i/2)*s.stride
}

// Accept stores the dithered row of one plane for the current scanline.
func (s *PageSession) Accept(plane int, row []byte) error {
	if s.closed {
		return errors.New("tmcgo: page session is closed")
	}
	if plane < 0 || plane >= len(s.planes) {
		return configErrorf("plane %d out of range [0,%d)", plane, len(s.planes))
	}
	if len(row) != s.stride {
		return configErrorf("plane %d row is %d bytes, want %d", plane, len(row), s.stride)
	}
	off := s.Offset(s.count)
	copy(s.planes[plane][off:off+s.stride], row)
	return nil
}

// Advance completes the current scanline and flushes when the buffers are full.
func (s *PageSession) Advance() error {
	if s.closed {
		return errors.New("tmcgo: page session is closed")
	}
	s.count++
	if s.count == s.rowMax {
		return s.flush()
	}
	return nil
}

// WriteLine accepts one row per plane and advances.
func (s *PageSession) WriteLine(rows [][]byte) error {
	if len(rows) != len(s.planes) {
		return configErrorf("got %d planes, want %d", len(rows), len(s.planes))
	}
	for plane, row := range rows {
		if err := s.Accept(plane, row); err != nil {
			return err
		}
	}
	return s.Advance()
}

// Close flushes the remaining rows and releases the buffers.
func (s *PageSession) Close() error {
	if s.closed {
		return nil
	}
	err := s.flush()
	s.closed = true
	s.buf = nil
	s.planes = nil
	s.comp = nil
	return err
}

func (s *PageSession) flush() error {
	n := s.count
	if n == 0 {
		return nil
	}
	s.flushes++

	half := (s.rowMax / 2) * s.stride
	// Even scanlines take the extra row when n is odd
	passRows := [2]int{(n + 1) / 2, n / 2}

	for plane, buf := range s.planes {
		if s.blank(buf, passRows) {
			continue
		}
		for parity := 0; parity < 2; parity++ {
			rows := passRows[parity]
			if rows == 0 {
				continue
			}
			start := parity * half
			data := buf[start : start+rows*s.stride]
			if err := s.emit(plane, parity == 1, rows, data); err != nil {
				return err
			}
		}
		if err := s.enc.Flush(); err != nil {
			return err
		}
	}

	clear(s.buf)
	s.count = 0
	s.enc.Advance(n)
	return nil
}

func (s *PageSession) blank(buf []byte, passRows [2]int) bool {
	half := (s.rowMax / 2) * s.stride
	for parity, rows := range passRows {
		start := parity * half
		for _, b := range buf[start : start+rows*s.stride] {
			if b != 0 {
				return false
			}
		}
	}
	return true
}

func (s *PageSession) emit(plane int, odd bool, rows int, data []byte) error {
	if err := s.enc.Feed(); err != nil {
		return err
	}

	d := DotRows{
		Ink:         s.inks[plane],
		Odd:         odd,
		Bits:        s.dev.BitsPerDot,
		BytesPerRow: s.stride,
		Rows:        rows,
		Data:        data,
	}
	if s.compress {
		s.comp = PackBits(s.comp[:0], data)
		if len(s.comp) < len(data) {
			d.Data = s.comp
			d.Compressed = true
		}
	}
	return s.enc.DotRows(d)
}
