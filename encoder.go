package tmcgo

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	esc = 0x1b
	cr  = 0x0d
	ff  = 0x0c

	microweaveFlag = 0x40
)

var (
	// Some printers need this at the start of each job to leave USB packet mode.
	cmdExitPacketMode = []byte("\x00\x00\x00\x1b\x01@EJL 1284.4\n@EJL     \n\x1b@")
	cmdReset          = []byte{esc, '@'}
	cmdExitRemote     = []byte{esc, 0x00, 0x00, 0x00}
	cmdPaperLoad      = []byte{esc, 0x19, 0x01}
)

var idleBlock [0x7fff]byte

type encoderState int

const (
	stateUninitialized encoderState = iota
	stateInitialized
	statePageOpen
	statePageClosed
	stateShutdown
)

func (s encoderState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateInitialized:
		return "initialized"
	case statePageOpen:
		return "page open"
	case statePageClosed:
		return "page closed"
	case stateShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DotRows is one microweave pass of one plane.
type DotRows struct {
	Ink         Ink
	Odd         bool
	Bits        int
	BytesPerRow int
	Rows        int
	Compressed  bool
	Data        []byte
}

// Encoder writes the ESC/P2 command stream. It is not safe for
// concurrent use.
type Encoder struct {
	w     *bufio.Writer
	log   logrus.FieldLogger
	state encoderState
	err   error

	pending uint64
	left    uint32
}

// NewEncoder returns an encoder writing to w. A nil logger discards output.
func NewEncoder(w io.Writer, log logrus.FieldLogger) *Encoder {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Encoder{
		w:   bufio.NewWriterSize(w, 64*1024),
		log: log,
	}
}

// Err returns the latched sink error, if any.
func (e *Encoder) Err() error {
	return e.err
}

func (e *Encoder) write(b []byte) error {
	if e.err != nil {
		return e.err
	}
	if _, err := e.w.Write(b); err != nil {
		e.err = &sinkError{err: err}
		return e.err
	}
	return nil
}

// escp writes a parenthesized command: ESC ( code nL nH data.
func (e *Encoder) escp(code byte, data []byte) error {
	if len(data) > math.MaxUint16 {
		return configErrorf("ESC ( %c: %d parameter bytes", code, len(data))
	}
	hdr := []byte{esc, '(', code, byte(len(data)), byte(len(data) >> 8)}
	if err := e.write(hdr); err != nil {
		return err
	}
	return e.write(data)
}

// remote writes a remote mode command: two letters, nL nH, data.
func (e *Encoder) remote(cmd string, data []byte) error {
	b := append([]byte(cmd), byte(len(data)), byte(len(data)>>8))
	b = append(b, data...)
	return e.write(b)
}

func (e *Encoder) expect(states ...encoderState) error {
	if e.err != nil {
		return e.err
	}
	for _, s := range states {
		if e.state == s {
			return nil
		}
	}
	return errors.Wrapf(ErrState, "encoder is %v", e.state)
}

// Init leaves packet mode. It does nothing once the encoder is initialized.
func (e *Encoder) Init() error {
	if e.err != nil {
		return e.err
	}
	switch e.state {
	case stateUninitialized:
	case stateShutdown:
		return errors.Wrap(ErrState, "encoder is shut down")
	default:
		return nil
	}
	if err := e.write(cmdExitPacketMode); err != nil {
		return err
	}
	e.state = stateInitialized
	return nil
}

// OpenPage sets up the printer for one page.
func (e *Encoder) OpenPage(dev Device, p Page) error {
	if err := e.Init(); err != nil {
		return err
	}
	if err := e.expect(stateInitialized, statePageClosed); err != nil {
		return err
	}
	if err := dev.Validate(); err != nil {
		return err
	}
	g, err := p.geometry(dev)
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"device":  dev.Name,
		"width":   p.Width,
		"height":  p.Height,
		"hdpi":    p.HDPI,
		"vdpi":    p.VDPI,
		"unit":    g.unit,
		"length":  g.length,
		"top":     g.top,
		"stride":  g.stride,
		"rowMax":  dev.MaxRowsPerFlush,
		"planes":  dev.Class.Planes(),
		"cut":     p.Cut,
		"compress": p.Compress,
	}).Debug("open page")

	if err := e.write(cmdReset); err != nil {
		return err
	}

	// Remote mode: media position, cutter
	if err := e.escp('R', []byte("\x00REMOTE1")); err != nil {
		return err
	}
	if err := e.remote("EX", []byte{0x00, 0x00, 0x00, 0x00, 0x05, 0x00}); err != nil {
		return err
	}
	if dev.Cutter {
		var cut byte
		if p.Cut {
			cut = 0x01
		}
		if err := e.remote("AC", []byte{0x00, cut}); err != nil {
			return err
		}
	}
	if err := e.write(cmdExitRemote); err != nil {
		return err
	}

	for i := 0; i < dev.IdleBlocks; i++ {
		if err := e.escp('d', idleBlock[:]); err != nil {
			return err
		}
	}

	// Graphics mode
	if err := e.escp('G', []byte{0x01}); err != nil {
		return err
	}

	// Line feed increment
	if err := e.escp('U', []byte{
		byte(g.page),
		byte(g.vertical),
		byte(g.horizontal),
		byte(g.unit),
		byte(g.unit >> 8),
	}); err != nil {
		return err
	}

	if err := e.escp('C', binary.LittleEndian.AppendUint32(nil, g.length)); err != nil {
		return err
	}

	margins := binary.LittleEndian.AppendUint32(nil, g.top)
	margins = binary.LittleEndian.AppendUint32(margins, g.length)
	if err := e.escp('c', margins); err != nil {
		return err
	}

	if err := e.write(cmdPaperLoad); err != nil {
		return err
	}

	e.pending = 0
	e.left = g.left
	e.state = statePageOpen
	return nil
}

// Advance adds n scanlines to the pending vertical feed.
func (e *Encoder) Advance(n int) {
	if n > 0 {
		e.pending += uint64(n)
	}
}

// Pending returns the vertical feed not yet sent.
func (e *Encoder) Pending() int {
	return int(e.pending)
}

// Feed sends the pending vertical feed, if any, and resets it.
func (e *Encoder) Feed() error {
	if err := e.expect(statePageOpen); err != nil {
		return err
	}
	if e.pending == 0 {
		return nil
	}
	if e.pending > math.MaxUint32 {
		return configErrorf("vertical feed of %d scanlines exceeds 32 bits", e.pending)
	}
	if err := e.escp('v', binary.LittleEndian.AppendUint32(nil, uint32(e.pending))); err != nil {
		return err
	}
	e.pending = 0
	return nil
}

// DotRows sends one pass of raster data.
func (e *Encoder) DotRows(d DotRows) error {
	if err := e.expect(statePageOpen); err != nil {
		return err
	}
	if d.BytesPerRow < 0 || d.BytesPerRow > math.MaxUint16 {
		return configErrorf("%d bytes per row exceeds 16 bits", d.BytesPerRow)
	}
	if d.Rows < 0 || d.Rows > math.MaxUint16 {
		return configErrorf("%d rows exceeds 16 bits", d.Rows)
	}
	if d.Bits < 1 || d.Bits > math.MaxUint8 {
		return configErrorf("%d bits per dot", d.Bits)
	}

	if d.Odd || e.left > 0 {
		if err := e.escp('$', binary.LittleEndian.AppendUint32(nil, e.left)); err != nil {
			return err
		}
	}

	color := d.Ink.Code()
	if d.Odd {
		color |= microweaveFlag
	}
	var compressed byte
	if d.Compressed {
		compressed = 0x01
	}
	if err := e.write([]byte{
		esc, 'i',
		color,
		compressed,
		byte(d.Bits),
		byte(d.BytesPerRow),
		byte(d.BytesPerRow >> 8),
		byte(d.Rows),
		byte(d.Rows >> 8),
	}); err != nil {
		return err
	}
	if err := e.write(d.Data); err != nil {
		return err
	}

	// Back to the left margin for the next pass
	if d.Odd {
		return e.write([]byte{cr})
	}
	return nil
}

// Flush pushes buffered commands to the sink.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.w.Flush(); err != nil {
		e.err = &sinkError{err: err}
		return e.err
	}
	return nil
}

// ClosePage ejects the page.
func (e *Encoder) ClosePage() error {
	if err := e.expect(statePageOpen); err != nil {
		return err
	}
	if err := e.write([]byte{ff}); err != nil {
		return err
	}
	if err := e.Flush(); err != nil {
		return err
	}
	e.pending = 0
	e.state = statePageClosed
	return nil
}

// Shutdown resets the printer and restores its defaults. The encoder
// cannot be used afterwards; further calls do nothing.
func (e *Encoder) Shutdown() error {
	if e.state == stateShutdown {
		return e.err
	}
	if e.err != nil {
		e.state = stateShutdown
		return e.err
	}
	if e.state == statePageOpen {
		if err := e.ClosePage(); err != nil {
			e.state = stateShutdown
			return err
		}
	}
	e.state = stateShutdown

	if err := e.write(cmdReset); err != nil {
		return err
	}
	if err := e.write(cmdReset); err != nil {
		return err
	}
	if err := e.escp('R', []byte("\x00REMOTE1")); err != nil {
		return err
	}
	if err := e.remote("LD", nil); err != nil {
		return err
	}
	if err := e.remote("JE", []byte{0x00, 0x00}); err != nil {
		return err
	}
	if err := e.write(cmdExitRemote); err != nil {
		return err
	}
	return e.Flush()
}
