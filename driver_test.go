package tmcgo

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

type sepFunc func(y int, rows [][]byte) error

func (f sepFunc) SeparateLine(y int, rows [][]byte) error {
	return f(y, rows)
}

// solid marks every dot of every plane.
var solid = sepFunc(func(y int, rows [][]byte) error {
	for _, row := range rows {
		for i := range row {
			row[i] = 0xff
		}
	}
	return nil
})

type pageList struct {
	pages []Page
	seps  []Separator
}

func (l *pageList) NextPage() (Page, Separator, error) {
	if len(l.pages) == 0 {
		return Page{}, nil, io.EOF
	}
	p, s := l.pages[0], l.seps[0]
	l.pages, l.seps = l.pages[1:], l.seps[1:]
	return p, s, nil
}

type recordReporter struct {
	events []string
}

func (r *recordReporter) StartPage(page int) {
	r.events = append(r.events, "start")
}

func (r *recordReporter) Progress(page, percent int) {}

func (r *recordReporter) EndPage(page int) {
	r.events = append(r.events, "end")
}

// cyanRows counts the scanlines printed in the first plane.
func cyanRows(cmds []command) int {
	n := 0
	for _, c := range filter(cmds, "ESC i") {
		if c.color&^microweaveFlag == InkCyan.Code() {
			n += c.rows
		}
	}
	return n
}

var shutdownTail = []string{"ESC @", "ESC @", "ESC (R", "LD", "JE", "ESC 00"}

func tail(cmds []command, n int) []string {
	if len(cmds) < n {
		return names(cmds)
	}
	return names(cmds[len(cmds)-n:])
}

func TestDriverRun(t *testing.T) {
	short := testPage
	short.Height = 5

	var buf bytes.Buffer
	d, err := NewDriver(&buf, testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	rep := &recordReporter{}
	d.Reporter = rep

	err = d.Run(context.Background(), &pageList{
		pages: []Page{testPage, short},
		seps:  []Separator{solid, solid},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Pages() != 2 {
		t.Errorf("printed %d pages, want 2", d.Pages())
	}
	if want := []string{"start", "end", "start", "end"}; !reflect.DeepEqual(rep.events, want) {
		t.Errorf("reporter events %v, want %v", rep.events, want)
	}

	cmds := parseStream(t, buf.Bytes())
	if n := len(filter(cmds, "EJL")); n != 1 {
		t.Errorf("%d packet mode exits, want 1", n)
	}
	if n := len(filter(cmds, "ESC EM")); n != 2 {
		t.Errorf("%d paper loads, want 2", n)
	}
	if n := len(filter(cmds, "FF")); n != 2 {
		t.Errorf("%d form feeds, want 2", n)
	}
	if got := tail(cmds, len(shutdownTail)); !reflect.DeepEqual(got, shutdownTail) {
		t.Errorf("stream ends with %v, want %v", got, shutdownTail)
	}
	if n := cyanRows(after(cmds, "ESC EM")); n != 5 {
		t.Errorf("second page printed %d rows, want 5", n)
	}
	if n := cyanRows(cmds); n != 21 {
		t.Errorf("job printed %d rows, want 21", n)
	}
}

func TestDriverCancelMidPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := testPage
	p.Height = 100
	sep := sepFunc(func(y int, rows [][]byte) error {
		if y == 10 {
			cancel()
		}
		return solid(y, rows)
	})

	var buf bytes.Buffer
	d, err := NewDriver(&buf, testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Run(ctx, &pageList{pages: []Page{p, testPage}, seps: []Separator{sep, solid}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want canceled", err)
	}
	if d.Pages() != 1 {
		t.Errorf("ejected %d pages, want 1", d.Pages())
	}

	cmds := parseStream(t, buf.Bytes())
	if n := cyanRows(cmds); n != 11 {
		t.Errorf("printed %d rows, want 11", n)
	}
	if n := len(filter(cmds, "FF")); n != 1 {
		t.Errorf("%d form feeds, want 1", n)
	}
	if got := tail(cmds, len(shutdownTail)+1); !reflect.DeepEqual(got, append([]string{"FF"}, shutdownTail...)) {
		t.Errorf("stream ends with %v", got)
	}
}

func TestDriverCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	d, err := NewDriver(&buf, testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Run(ctx, &pageList{pages: []Page{testPage}, seps: []Separator{solid}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want canceled", err)
	}
	if d.Pages() != 0 {
		t.Errorf("printed %d pages", d.Pages())
	}
	want := append([]string{"EJL"}, shutdownTail...)
	if got := names(parseStream(t, buf.Bytes())); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDriverResourceError(t *testing.T) {
	old := MaxSessionBytes
	MaxSessionBytes = 64
	defer func() { MaxSessionBytes = old }()

	var buf bytes.Buffer
	d, err := NewDriver(&buf, testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Run(context.Background(), &pageList{pages: []Page{testPage}, seps: []Separator{solid}})
	if !errors.Is(err, ErrResource) {
		t.Fatalf("got %v, want resource error", err)
	}
	if d.Pages() != 0 {
		t.Errorf("counted %d pages", d.Pages())
	}

	cmds := parseStream(t, buf.Bytes())
	if n := len(filter(cmds, "ESC i")); n != 0 {
		t.Errorf("%d raster passes after a failed setup", n)
	}
	if got := tail(cmds, len(shutdownTail)+1); !reflect.DeepEqual(got, append([]string{"FF"}, shutdownTail...)) {
		t.Errorf("stream ends with %v", got)
	}
}

func TestDriverSinkError(t *testing.T) {
	w := &failWriter{}
	d, err := NewDriver(w, testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Run(context.Background(), &pageList{pages: []Page{testPage}, seps: []Separator{solid}})
	if !errors.Is(err, ErrSink) || !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want sink error", err)
	}
	if w.calls != 1 {
		t.Errorf("sink written %d times after failing", w.calls)
	}
	if d.Pages() != 0 {
		t.Errorf("counted %d pages", d.Pages())
	}
}

func TestDriverSeparatorError(t *testing.T) {
	sep := sepFunc(func(y int, rows [][]byte) error {
		if y == 3 {
			return errBoom
		}
		return solid(y, rows)
	})

	var buf bytes.Buffer
	d, err := NewDriver(&buf, testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Run(context.Background(), &pageList{pages: []Page{testPage, testPage}, seps: []Separator{sep, solid}})
	if !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want separator error", err)
	}
	if d.Pages() != 1 {
		t.Errorf("ejected %d pages, want 1", d.Pages())
	}
	cmds := parseStream(t, buf.Bytes())
	if n := cyanRows(cmds); n != 3 {
		t.Errorf("printed %d rows, want 3", n)
	}
	if n := len(filter(cmds, "ESC EM")); n != 1 {
		t.Errorf("%d pages started, want 1", n)
	}
}

func TestDriverRejectsBadDevice(t *testing.T) {
	dev := testDevice
	dev.MaxRowsPerFlush = 7
	if _, err := NewDriver(io.Discard, dev, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("got %v, want configuration error", err)
	}
}
