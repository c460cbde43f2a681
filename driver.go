package tmcgo

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Separator turns scanline y of a page into one dithered row per plane.
// Each row in rows has the session's row stride and arrives zeroed.
type Separator interface {
	SeparateLine(y int, rows [][]byte) error
}

// PageReader yields the pages of a job. It returns io.EOF after the last page.
type PageReader interface {
	NextPage() (Page, Separator, error)
}

// Reporter receives job progress.
type Reporter interface {
	StartPage(page int)
	Progress(page, percent int)
	EndPage(page int)
}

type nopReporter struct{}

func (nopReporter) StartPage(int)     {}
func (nopReporter) Progress(int, int) {}
func (nopReporter) EndPage(int)       {}

// Driver prints pages for one process invocation.
type Driver struct {
	Device   Device
	Reporter Reporter

	enc   *Encoder
	log   logrus.FieldLogger
	pages int
}

// NewDriver returns a driver for dev writing to w.
func NewDriver(w io.Writer, dev Device, log logrus.FieldLogger) (*Driver, error) {
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	enc := NewEncoder(w, log)
	return &Driver{
		Device:   dev,
		Reporter: nopReporter{},
		enc:      enc,
		log:      enc.log,
	}, nil
}

// Pages returns the number of pages ejected so far.
func (d *Driver) Pages() int {
	return d.pages
}

// Run prints every page of r, then shuts the printer down. Cancellation
// of ctx stops after the current page is ejected and returns ctx.Err().
func (d *Driver) Run(ctx context.Context, r PageReader) error {
	err := d.run(ctx, r)
	if errors.Is(err, ErrSink) {
		return err
	}
	if serr := d.enc.Shutdown(); serr != nil && err == nil {
		err = errors.Wrap(serr, "shutdown")
	}
	return err
}

func (d *Driver) run(ctx context.Context, r PageReader) error {
	if err := d.enc.Init(); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, sep, err := r.NextPage()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read page")
		}
		if err := d.PrintPage(ctx, page, sep); err != nil {
			return err
		}
	}
}

// PrintPage prints a single page. On cancellation the rows read so far
// are printed and the page is ejected before ctx.Err() is returned.
func (d *Driver) PrintPage(ctx context.Context, p Page, sep Separator) error {
	num := d.pages + 1
	if err := d.enc.OpenPage(d.Device, p); err != nil {
		return errors.Wrapf(err, "page %d", num)
	}
	d.Reporter.StartPage(num)

	s, err := NewPageSession(d.enc, d.Device, p)
	if err != nil {
		// Leave the printer with the page ejected
		if cerr := d.enc.ClosePage(); cerr != nil {
			d.log.WithError(cerr).Warn("eject after failed page setup")
		}
		return errors.Wrapf(err, "page %d", num)
	}

	err = d.scan(ctx, num, p, s, sep)
	if errors.Is(err, ErrSink) {
		return err
	}
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if errors.Is(err, ErrSink) {
		return err
	}
	if cerr := d.enc.ClosePage(); cerr != nil {
		return cerr
	}
	d.pages++
	d.Reporter.EndPage(num)
	d.log.WithFields(logrus.Fields{
		"page":    num,
		"flushes": s.Flushes(),
	}).Debug("page done")

	if err != nil {
		return errors.Wrapf(err, "page %d", num)
	}
	return nil
}

func (d *Driver) scan(ctx context.Context, num int, p Page, s *PageSession, sep Separator) error {
	rows := make([][]byte, s.Planes())
	buf := make([]byte, s.Planes()*s.RowStride())
	for i := range rows {
		rows[i] = buf[i*s.RowStride() : (i+1)*s.RowStride()]
	}

	for y := 0; y < p.Height; y++ {
		if err := ctx.Err(); err != nil {
			d.log.WithField("page", num).WithField("row", y).Info("canceled")
			return err
		}
		if y&127 == 0 {
			d.Reporter.Progress(num, 100*y/p.Height)
		}

		clear(buf)
		if err := sep.SeparateLine(y, rows); err != nil {
			return errors.Wrapf(err, "separate row %d", y)
		}
		if err := s.WriteLine(rows); err != nil {
			return err
		}
	}
	return nil
}
