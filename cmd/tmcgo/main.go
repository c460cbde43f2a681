package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ka2n/tmcgo"
	"github.com/ka2n/tmcgo/conn"
	_ "github.com/ka2n/tmcgo/conn/usb"
	"github.com/ka2n/tmcgo/separate"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) int {
	log := newLogger(stderr, getenv("TMCGO_DEBUG") != "")

	if len(args) < 6 || len(args) > 7 {
		log.Errorf("%s job-id user title copies options [file]", filepath.Base(args[0]))
		return 1
	}

	opts, err := parseOptions(args[5])
	if err != nil {
		log.WithError(err).Error("Bad job options.")
		return 1
	}
	dev, err := tmcgo.LookupDevice(opts.Model)
	if err != nil {
		log.WithError(err).Error("The printer configuration could not be found.")
		return 1
	}

	input := stdin
	if len(args) == 7 {
		f, err := os.Open(args[6])
		if err != nil {
			log.WithError(err).Error("Unable to open raster file")
			return 1
		}
		defer f.Close()
		input = f
	}

	var sink conn.Sink = nopCloser{stdout}
	if uri := getenv("TMCGO_DEVICE"); uri != "" {
		sink, err = conn.OpenURI(uri)
		if err != nil {
			log.WithError(err).Error("Unable to open printer")
			return 1
		}
	}
	defer sink.Close()

	drv, err := tmcgo.NewDriver(sink, dev, log)
	if err != nil {
		log.WithError(err).Error("Bad printer configuration.")
		return 1
	}
	drv.Reporter = cupsReporter{w: stderr, log: log}

	err = drv.Run(ctx, &imagePages{r: input, dev: dev, opts: opts, log: log})
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("Job canceled.")
	case err != nil:
		log.WithError(err).Error("Print failed.")
		return 1
	}

	if drv.Pages() == 0 {
		log.Error("No pages were found.")
		return 1
	}
	log.Info("Ready to print.")
	return 0
}

// imagePages reads a single image as one page.
type imagePages struct {
	r    io.Reader
	dev  tmcgo.Device
	opts options
	log  logrus.FieldLogger
	done bool
}

func (p *imagePages) NextPage() (tmcgo.Page, tmcgo.Separator, error) {
	if p.done {
		return tmcgo.Page{}, nil, io.EOF
	}
	p.done = true

	img, err := separate.Decode(p.r)
	if err != nil {
		return tmcgo.Page{}, nil, err
	}
	sep, err := separate.New(img, p.dev, p.opts.widthDots())
	if err != nil {
		return tmcgo.Page{}, nil, err
	}
	p.log.WithFields(logrus.Fields{
		"width":  sep.Width(),
		"height": sep.Height(),
		"source": img.Bounds().Size(),
	}).Debug("image separated")

	page := tmcgo.Page{
		Width:      sep.Width(),
		Height:     sep.Height(),
		HDPI:       p.opts.HDPI,
		VDPI:       p.opts.VDPI,
		Length:     p.opts.lengthPoints(sep.Height()),
		TopMargin:  p.opts.topPoints(),
		LeftMargin: p.opts.leftDots(),
		Cut:        p.opts.Cut,
		Compress:   p.opts.Compress,
	}
	return page, sep, nil
}
