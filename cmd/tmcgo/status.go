package main

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
)

// cupsFormatter writes entries as CUPS filter status lines, "LEVEL: message".
type cupsFormatter struct{}

func (cupsFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	switch e.Level {
	case logrus.TraceLevel:
		b.WriteString("DEBUG2: ")
	case logrus.DebugLevel:
		b.WriteString("DEBUG: ")
	case logrus.InfoLevel:
		b.WriteString("INFO: ")
	case logrus.WarnLevel:
		b.WriteString("WARNING: ")
	case logrus.ErrorLevel:
		b.WriteString("ERROR: ")
	default:
		b.WriteString("CRIT: ")
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func newLogger(w io.Writer, debug bool) *logrus.Logger {
	l := logrus.New()
	l.Out = w
	l.Formatter = cupsFormatter{}
	l.Level = logrus.InfoLevel
	if debug {
		l.Level = logrus.DebugLevel
	}
	return l
}

// cupsReporter reports page and progress attributes to the spooler.
type cupsReporter struct {
	w   io.Writer
	log logrus.FieldLogger
}

func (r cupsReporter) StartPage(page int) {
	fmt.Fprintf(r.w, "PAGE: %d 1\n", page)
	r.log.Infof("Starting page %d.", page)
}

func (r cupsReporter) Progress(page, percent int) {
	r.log.Infof("Printing page %d, %d%% complete.", page, percent)
	fmt.Fprintf(r.w, "ATTR: job-media-progress=%d\n", percent)
}

func (r cupsReporter) EndPage(page int) {
	r.log.Infof("Finished page %d.", page)
}
