package main

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const mmPerInch = 25.4

type options struct {
	Model        string
	HDPI, VDPI   int
	Cut          bool
	Compress     bool
	PageWidth    float64 // mm
	MarginTop    float64 // mm
	MarginBottom float64 // mm
	MarginLeft   float64 // mm
}

func defaultOptions() options {
	return options{
		Model:        "tmc600",
		HDPI:         360,
		VDPI:         180,
		Compress:     true,
		PageWidth:    55,
		MarginTop:    1,
		MarginBottom: 15,
	}
}

// widthDots is the printable width left of the margin, in dots.
func (o options) widthDots() int {
	return int((o.PageWidth - o.MarginLeft) / mmPerInch * float64(o.HDPI))
}

func (o options) leftDots() int {
	return int(o.MarginLeft / mmPerInch * float64(o.HDPI))
}

func mmToPoints(mm float64) float64 {
	return mm / mmPerInch * 72
}

// lengthPoints is the page length holding height scanlines plus the margins.
func (o options) lengthPoints(height int) int {
	return int(math.Ceil(mmToPoints(o.MarginTop+o.MarginBottom) + float64(height)*72/float64(o.VDPI)))
}

func (o options) topPoints() int {
	return int(mmToPoints(o.MarginTop))
}

// parseOptions reads a CUPS option string: name=value pairs separated by
// spaces, values optionally quoted, bare names meaning true and a "no"
// prefix meaning false.
func parseOptions(s string) (options, error) {
	o := defaultOptions()
	kv, err := splitOptions(s)
	if err != nil {
		return o, err
	}
	for _, p := range kv {
		name, value := p[0], p[1]
		switch strings.ToLower(name) {
		case "model":
			o.Model = value
		case "resolution":
			o.HDPI, o.VDPI, err = parseResolution(value)
		case "cutmedia", "cut":
			o.Cut = parseCut(value)
		case "cupscompression", "compression":
			o.Compress, err = parseBool(value)
		case "pagewidth":
			o.PageWidth, err = parseMM(value)
		case "margintop":
			o.MarginTop, err = parseMM(value)
		case "marginbottom":
			o.MarginBottom, err = parseMM(value)
		case "marginleft":
			o.MarginLeft, err = parseMM(value)
		}
		if err != nil {
			return o, errors.Wrapf(err, "option %s", name)
		}
	}
	if o.MarginLeft >= o.PageWidth {
		return o, errors.Errorf("left margin %gmm leaves no printable width on %gmm", o.MarginLeft, o.PageWidth)
	}
	return o, nil
}

func splitOptions(s string) ([][2]string, error) {
	var out [][2]string
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return out, nil
		}

		start := i
		for i < len(s) && !isSpace(s[i]) && s[i] != '=' {
			i++
		}
		name := s[start:i]
		if name == "" {
			return nil, errors.Errorf("empty option name at offset %d", start)
		}

		if i >= len(s) || s[i] != '=' {
			if len(name) > 2 && strings.EqualFold(name[:2], "no") {
				out = append(out, [2]string{name[2:], "false"})
			} else {
				out = append(out, [2]string{name, "true"})
			}
			continue
		}
		i++

		var value strings.Builder
		for i < len(s) && !isSpace(s[i]) {
			switch c := s[i]; c {
			case '\'', '"':
				end := strings.IndexByte(s[i+1:], c)
				if end < 0 {
					return nil, errors.Errorf("option %s: unterminated quote", name)
				}
				value.WriteString(s[i+1 : i+1+end])
				i += end + 2
			case '\\':
				if i+1 < len(s) {
					value.WriteByte(s[i+1])
				}
				i += 2
			default:
				value.WriteByte(c)
				i++
			}
		}
		out = append(out, [2]string{name, value.String()})
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func parseResolution(v string) (int, int, error) {
	v = strings.TrimSuffix(strings.ToLower(v), "dpi")
	hs, vs, ok := strings.Cut(v, "x")
	if !ok {
		vs = hs
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, errors.Wrap(err, "horizontal resolution")
	}
	vv, err := strconv.Atoi(vs)
	if err != nil {
		return 0, 0, errors.Wrap(err, "vertical resolution")
	}
	if h <= 0 || vv <= 0 {
		return 0, 0, errors.Errorf("resolution %dx%d", h, vv)
	}
	return h, vv, nil
}

func parseCut(v string) bool {
	switch strings.ToLower(v) {
	case "", "none", "0", "false", "off", "no":
		return false
	}
	return true
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no", "none":
		return false, nil
	}
	return false, errors.Errorf("%q is not a boolean", v)
}

func parseMM(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToLower(v), "mm"), 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, errors.Errorf("negative length %gmm", f)
	}
	return f, nil
}
